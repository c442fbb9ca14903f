package analytics

import "math"

// RollingWindow keeps the last size values of one channel in a ring buffer.
type RollingWindow struct {
	size   int
	values []float64
	next   int
	count  int
	sum    float64
}

func NewRollingWindow(size int) *RollingWindow {
	if size < 1 {
		size = 1
	}
	return &RollingWindow{
		size:   size,
		values: make([]float64, size),
	}
}

func (rw *RollingWindow) Push(value float64) {
	if rw.count == rw.size {
		rw.sum -= rw.values[rw.next]
	} else {
		rw.count++
	}
	rw.values[rw.next] = value
	rw.sum += value
	rw.next = (rw.next + 1) % rw.size
}

func (rw *RollingWindow) Len() int {
	return rw.count
}

func (rw *RollingWindow) Mean() float64 {
	if rw.count == 0 {
		return 0
	}
	return rw.sum / float64(rw.count)
}

// StdDev is the population standard deviation; zero below two samples.
func (rw *RollingWindow) StdDev() float64 {
	if rw.count < 2 {
		return 0
	}
	mean := rw.Mean()
	var variance float64
	for _, v := range rw.values[:rw.count] {
		d := v - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(rw.count))
}
