package analytics

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"traffic-sensor-stream/models"
)

func TestRollingWindow(t *testing.T) {
	rw := NewRollingWindow(3)
	require.Zero(t, rw.Mean())
	require.Zero(t, rw.StdDev())

	rw.Push(2)
	rw.Push(4)
	require.Equal(t, 2, rw.Len())
	require.Equal(t, 3.0, rw.Mean())
	require.Equal(t, 1.0, rw.StdDev())

	rw.Push(6)
	rw.Push(8) // evicts 2
	require.Equal(t, 3, rw.Len())
	require.Equal(t, 6.0, rw.Mean())
}

func TestSpikeDetector(t *testing.T) {
	sd := NewSpikeDetector()
	for i := 0; i < 20; i++ {
		spike, _ := sd.Observe(100 + float64(i%2))
		require.False(t, spike)
	}
	spike, z := sd.Observe(5)
	require.True(t, spike)
	require.Greater(t, z, 2.0)
}

func TestMonitorPublishesAlerts(t *testing.T) {
	var mu sync.Mutex
	var got []models.SensorAlert
	m := NewMonitor(MonitorConfig{
		Thresholds: models.DefaultThresholds(),
		OnAlert: func(a models.SensorAlert) {
			mu.Lock()
			got = append(got, a)
			mu.Unlock()
		},
	}, nil)

	m.Submit(stored(1, 5, 50, 205, 100))
	m.Submit(stored(2, 50, 50, 50, 50))
	m.Submit(stored(3, 50, 3, 50, 50))
	m.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 3)
	ids := map[int64]int{}
	for _, a := range got {
		ids[a.ReadingID]++
	}
	require.Equal(t, map[int64]int{1: 2, 3: 1}, ids)
}

func TestMonitorDropsWhenQueueFull(t *testing.T) {
	gate := make(chan struct{})
	var dropped atomic.Int32
	m := NewMonitor(MonitorConfig{
		Thresholds: models.DefaultThresholds(),
		Workers:    4,
		QueueSize:  1,
		OnAlert:    func(models.SensorAlert) { <-gate },
		OnDrop:     func() { dropped.Add(1) },
	}, nil)

	for i := int64(1); i <= 20 && dropped.Load() == 0; i++ {
		m.Submit(stored(i, 1, 50, 50, 50))
		time.Sleep(time.Millisecond)
	}
	require.Positive(t, dropped.Load())

	close(gate)
	m.Close()
	// submitting after Close is a no-op
	m.Submit(stored(99, 1, 1, 1, 1))
}
