package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"traffic-sensor-stream/models"
)

var testWindow = models.Window{
	From: time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC),
	To:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
}

func stored(id int64, s1, s2, s3, s4 float64) models.StoredReading {
	return models.StoredReading{
		ID: id,
		Reading: models.Reading{
			SensorValues: models.SensorValues{Sensor1: s1, Sensor2: s2, Sensor3: s3, Sensor4: s4},
			Timestamp:    1740826800 + id,
		},
		RecordedAt: testWindow.From.Add(time.Duration(id) * time.Second),
	}
}

func TestAggregateEmpty(t *testing.T) {
	stats := Aggregate(nil, testWindow, models.DefaultThresholds())
	require.Equal(t, models.WindowStats{TimeRange: testWindow}, stats)
	require.Zero(t, stats.TotalReadings)
	require.Zero(t, stats.AlertsCount)
}

func TestAggregateAverageMinMax(t *testing.T) {
	readings := []models.StoredReading{
		stored(1, 10, 100, 1, 50),
		stored(2, 20, 150, 2, 50),
		stored(3, 15, 125, 4, 50),
	}
	stats := Aggregate(readings, testWindow, models.DefaultThresholds())

	require.Equal(t, 3, stats.TotalReadings)
	require.Equal(t, 15.0, stats.AverageValues.Sensor1)
	require.Equal(t, 125.0, stats.AverageValues.Sensor2)
	require.Equal(t, 2.33, stats.AverageValues.Sensor3)
	require.Equal(t, 50.0, stats.AverageValues.Sensor4)
	require.Equal(t, models.SensorValues{Sensor1: 10, Sensor2: 100, Sensor3: 1, Sensor4: 50}, stats.MinValues)
	require.Equal(t, models.SensorValues{Sensor1: 20, Sensor2: 150, Sensor3: 4, Sensor4: 50}, stats.MaxValues)
	// sensor3 is below 10 in all three readings
	require.Equal(t, 3, stats.AlertsCount)
	require.Equal(t, testWindow, stats.TimeRange)
}

func TestAggregateCountsFlaggedChannelInstances(t *testing.T) {
	readings := []models.StoredReading{
		stored(1, 5, 5, 250, 50),
		stored(2, 50, 50, 50, 50),
		stored(3, 1, 50, 50, 300),
	}
	stats := Aggregate(readings, testWindow, models.DefaultThresholds())
	require.Equal(t, 5, stats.AlertsCount)

	stats = Aggregate(readings, testWindow, models.Thresholds{Min: 0, Max: 1000})
	require.Zero(t, stats.AlertsCount)
}

func TestAggregateRoundsHalfAwayFromZero(t *testing.T) {
	stats := Aggregate([]models.StoredReading{stored(1, 1.005, 2.675, 0.125, 0.124)}, testWindow, models.DefaultThresholds())
	require.Equal(t, 1.01, stats.AverageValues.Sensor1)
	require.Equal(t, 2.68, stats.AverageValues.Sensor2)
	require.Equal(t, 0.13, stats.AverageValues.Sensor3)
	require.Equal(t, 0.12, stats.AverageValues.Sensor4)
	// min and max are never rounded
	require.Equal(t, 1.005, stats.MinValues.Sensor1)
	require.Equal(t, 2.675, stats.MaxValues.Sensor2)
}

func TestAggregateNearFloatLimit(t *testing.T) {
	readings := []models.StoredReading{
		stored(1, 1e308, 1e308, 20, 20),
		stored(2, 1e308, 1.7e308, 20, 20),
	}
	for _, r := range readings {
		require.NoError(t, r.Validate())
	}

	var stats models.WindowStats
	require.NotPanics(t, func() {
		stats = Aggregate(readings, testWindow, models.DefaultThresholds())
	})
	require.Equal(t, 1e308, stats.AverageValues.Sensor1)
	require.InEpsilon(t, 1.35e308, stats.AverageValues.Sensor2, 1e-12)
	require.Equal(t, 1.7e308, stats.MaxValues.Sensor2)
	require.Equal(t, 4, stats.AlertsCount)
}

func TestAggregateSampleReadings(t *testing.T) {
	readings := []models.StoredReading{
		stored(1, 25.43, 30.12, 15.67, 42.89),
		stored(2, 25.43, 30.12, 15.67, 42.89),
		stored(3, 25.43, 30.12, 15.67, 42.89),
	}
	stats := Aggregate(readings, testWindow, models.DefaultThresholds())
	require.Equal(t, 3, stats.TotalReadings)
	require.Equal(t, models.SensorValues{Sensor1: 25.43, Sensor2: 30.12, Sensor3: 15.67, Sensor4: 42.89}, stats.AverageValues)
	require.Zero(t, stats.AlertsCount)
}

func TestAggregateIgnoresOrder(t *testing.T) {
	a := []models.StoredReading{stored(1, 12.5, 3, 180, 201), stored(2, 7.25, 99, 10, 33.3), stored(3, 44, 0, 19.99, 150)}
	b := []models.StoredReading{a[2], a[0], a[1]}
	require.Equal(t, Aggregate(a, testWindow, models.DefaultThresholds()), Aggregate(b, testWindow, models.DefaultThresholds()))
}
