package analytics

import (
	"log/slog"
	"runtime"
	"sync"

	"traffic-sensor-stream/models"
)

type (
	AlertCallback func(alert models.SensorAlert)
	SpikeCallback func(sensorID int, value, zScore float64)
)

// MonitorConfig configures the live alert monitor. Zero values pick defaults.
type MonitorConfig struct {
	Thresholds models.Thresholds
	Workers    int
	QueueSize  int
	OnAlert    AlertCallback
	OnSpike    SpikeCallback
	OnDrop     func()
}

// Monitor checks freshly stored readings off the request path.
type Monitor struct {
	thresholds models.Thresholds
	onAlert    AlertCallback
	onSpike    SpikeCallback
	onDrop     func()
	log        *slog.Logger

	spikeMu sync.Mutex
	spikes  [models.SensorCount]*SpikeDetector

	mu       sync.RWMutex
	closed   bool
	readings chan models.StoredReading
	wg       sync.WaitGroup
}

func NewMonitor(cfg MonitorConfig, log *slog.Logger) *Monitor {
	if log == nil {
		log = slog.Default()
	}
	queue := cfg.QueueSize
	if queue <= 0 {
		queue = 10000
	}
	m := &Monitor{
		thresholds: cfg.Thresholds,
		onAlert:    cfg.OnAlert,
		onSpike:    cfg.OnSpike,
		onDrop:     cfg.OnDrop,
		log:        log.With(slog.String("component", "monitor")),
		readings:   make(chan models.StoredReading, queue),
	}
	for i := range m.spikes {
		m.spikes[i] = NewSpikeDetector()
	}

	workers := clampWorkers(cfg.Workers)
	m.log.Info("starting monitor workers", "workers", workers)
	m.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go m.run()
	}
	return m
}

func clampWorkers(n int) int {
	if n <= 0 {
		n = runtime.NumCPU() * 2
	}
	if n < 4 {
		n = 4
	}
	if n > 16 {
		n = 16
	}
	return n
}

// Submit queues a reading without blocking. A full queue drops the reading.
func (m *Monitor) Submit(r models.StoredReading) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}
	select {
	case m.readings <- r:
	default:
		m.log.Warn("monitor queue full, dropping reading", "id", r.ID)
		if m.onDrop != nil {
			m.onDrop()
		}
	}
}

// Close stops accepting readings and waits for queued ones to be checked.
func (m *Monitor) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.readings)
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Monitor) run() {
	defer m.wg.Done()
	for r := range m.readings {
		m.check(r)
	}
}

func (m *Monitor) check(r models.StoredReading) {
	for _, alert := range Alerts(r, m.thresholds) {
		m.log.Debug("sensor alert", "reading", alert.ReadingID, "sensor", alert.SensorID,
			"value", alert.Value, "type", alert.Type)
		if m.onAlert != nil {
			m.onAlert(alert)
		}
	}

	values := r.Values()
	m.spikeMu.Lock()
	var spikes [models.SensorCount]float64
	var flagged [models.SensorCount]bool
	for i, v := range values {
		flagged[i], spikes[i] = m.spikes[i].Observe(v)
	}
	m.spikeMu.Unlock()

	for i, isSpike := range flagged {
		if !isSpike {
			continue
		}
		m.log.Info("spike detected", "sensor", i+1, "value", values[i], "z_score", spikes[i])
		if m.onSpike != nil {
			m.onSpike(i+1, values[i], spikes[i])
		}
	}
}
