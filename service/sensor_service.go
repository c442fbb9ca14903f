package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"traffic-sensor-stream/analytics"
	"traffic-sensor-stream/metrics"
	"traffic-sensor-stream/models"
	"traffic-sensor-stream/realtime"
	"traffic-sensor-stream/store"
)

const (
	publishTimeout = 2 * time.Second

	DefaultReadingsLimit = 100
	MaxReadingsLimit     = 1000
)

// Submitter receives every stored reading for off-path checks.
type Submitter interface {
	Submit(r models.StoredReading)
}

// SensorService runs ingestion and the read-side queries over a store.
type SensorService struct {
	store      store.Store
	publisher  realtime.Publisher
	monitor    Submitter
	thresholds models.Thresholds
	now        func() time.Time
	log        *slog.Logger
}

type Option func(*SensorService)

func WithPublisher(p realtime.Publisher) Option {
	return func(s *SensorService) { s.publisher = p }
}

func WithMonitor(m Submitter) Option {
	return func(s *SensorService) { s.monitor = m }
}

func WithThresholds(t models.Thresholds) Option {
	return func(s *SensorService) { s.thresholds = t }
}

func WithClock(now func() time.Time) Option {
	return func(s *SensorService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSensorService(st store.Store, log *slog.Logger, opts ...Option) *SensorService {
	if log == nil {
		log = slog.Default()
	}
	s := &SensorService{
		store:      st,
		thresholds: models.DefaultThresholds(),
		now:        time.Now,
		log:        log.With(slog.String("component", "sensor-service")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Thresholds returns the configured default alert thresholds.
func (s *SensorService) Thresholds() models.Thresholds {
	return s.thresholds
}

// Ingest validates raw, stores it and notifies live subscribers. The returned
// error is about validation or storage only; notification is best effort.
func (s *SensorService) Ingest(ctx context.Context, raw map[string]any) (models.StoredReading, error) {
	reading, err := models.ValidateRaw(raw)
	if err != nil {
		return models.StoredReading{}, err
	}
	stored, err := s.store.Insert(ctx, reading)
	if err != nil {
		return models.StoredReading{}, models.WrapStorage("insert", err)
	}
	metrics.ReadingsIngestedTotal.Inc()
	s.log.Info("reading stored",
		"id", stored.ID,
		"captured_at", reading.CapturedAt().Format(time.RFC3339),
		"sensors", reading.Values(),
	)

	s.publish(ctx, realtime.Event{Topic: realtime.TopicSensorUpdates, Name: realtime.EventSensorData, Data: stored})
	if s.monitor != nil {
		s.monitor.Submit(stored)
	}
	return stored, nil
}

func (s *SensorService) Latest(ctx context.Context) (models.StoredReading, error) {
	r, err := s.store.Latest(ctx)
	return r, models.WrapStorage("latest", err)
}

// Readings returns up to limit readings, newest first. A non-positive limit
// means DefaultReadingsLimit.
func (s *SensorService) Readings(ctx context.Context, limit int) ([]models.StoredReading, error) {
	if limit <= 0 {
		limit = DefaultReadingsLimit
	}
	limit = min(limit, MaxReadingsLimit)
	out, err := s.store.Recent(ctx, limit)
	return out, models.WrapStorage("recent", err)
}

func (s *SensorService) Range(ctx context.Context, from, to time.Time) ([]models.StoredReading, error) {
	out, err := s.store.RangeQuery(ctx, from, to)
	return out, models.WrapStorage("range", err)
}

// Analytics aggregates the last hours of readings.
func (s *SensorService) Analytics(ctx context.Context, hours int, t models.Thresholds) (models.WindowStats, error) {
	window, err := s.window(hours)
	if err != nil {
		return models.WindowStats{}, err
	}
	if t.Min > t.Max {
		return models.WindowStats{}, &models.RangeError{Detail: "threshold min above max"}
	}
	readings, err := s.Range(ctx, window.From, window.To)
	if err != nil {
		return models.WindowStats{}, err
	}
	return analytics.Aggregate(readings, window, t), nil
}

// ChartData projects the last hours of readings for plotting.
func (s *SensorService) ChartData(ctx context.Context, hours int) ([]models.ChartPoint, error) {
	window, err := s.window(hours)
	if err != nil {
		return nil, err
	}
	readings, err := s.Range(ctx, window.From, window.To)
	if err != nil {
		return nil, err
	}
	return analytics.Project(readings), nil
}

func (s *SensorService) window(hours int) (models.Window, error) {
	if hours <= 0 {
		return models.Window{}, &models.RangeError{Detail: "hours must be positive"}
	}
	return models.LastHours(s.now().UTC(), hours), nil
}

// PublishAlert is the live monitor callback: it counts and broadcasts one alert.
func (s *SensorService) PublishAlert(alert models.SensorAlert) {
	metrics.SensorAlertsTotal.WithLabelValues(strconv.Itoa(alert.SensorID), string(alert.Type)).Inc()
	s.publish(context.Background(), realtime.Event{Topic: realtime.TopicSensorAlerts, Name: realtime.EventSensorAlert, Data: alert})
}

func (s *SensorService) publish(ctx context.Context, evt realtime.Event) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	err := s.publisher.Publish(ctx, evt)
	if err == nil {
		return
	}
	var perr *realtime.PublishError
	if errors.As(err, &perr) {
		for name := range perr.Failed {
			metrics.PublishFailuresTotal.WithLabelValues(name).Inc()
		}
	} else {
		metrics.PublishFailuresTotal.WithLabelValues(realtime.NameOf(s.publisher)).Inc()
	}
	s.log.Warn("publish failed", "topic", evt.Topic, "event", evt.Name, "err", err)
}
