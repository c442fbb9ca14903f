package analytics

import "math"

const (
	defaultSpikeWindow    = 50
	defaultSpikeThreshold = 2.0 // 2σ
)

// SpikeDetector flags values that deviate from the channel's recent history by
// more than threshold standard deviations.
type SpikeDetector struct {
	window    *RollingWindow
	threshold float64
}

func NewSpikeDetector() *SpikeDetector {
	return &SpikeDetector{
		window:    NewRollingWindow(defaultSpikeWindow),
		threshold: defaultSpikeThreshold,
	}
}

// Observe records value and returns whether it is a spike along with its z-score.
func (sd *SpikeDetector) Observe(value float64) (bool, float64) {
	sd.window.Push(value)

	stdDev := sd.window.StdDev()
	if stdDev == 0 {
		return false, 0
	}
	z := math.Abs((value - sd.window.Mean()) / stdDev)
	return z > sd.threshold, z
}
