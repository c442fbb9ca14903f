// Package metrics declares the Prometheus series exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	ReadingsIngestedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "readings_ingested_total",
			Help: "Total number of readings stored",
		},
	)

	SensorAlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensor_alerts_total",
			Help: "Sensor channel values outside the alert thresholds",
		},
		[]string{"sensor", "type"},
	)

	SensorSpikesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensor_spikes_total",
			Help: "Sensor channel values more than 2 sigma from the rolling mean",
		},
		[]string{"sensor"},
	)

	ReadingsPrunedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "readings_pruned_total",
			Help: "Total number of readings removed by retention",
		},
	)

	PublishFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "publish_failures_total",
			Help: "Real-time events that could not be delivered",
		},
		[]string{"publisher"},
	)

	MonitorDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monitor_dropped_total",
			Help: "Readings skipped by the live monitor because its queue was full",
		},
	)
)
