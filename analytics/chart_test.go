package analytics

import (
	"testing"

	"github.com/stretchr/testify/require"

	"traffic-sensor-stream/models"
)

func TestProject(t *testing.T) {
	readings := []models.StoredReading{stored(1, 1, 2, 3, 4), stored(2, 5, 6, 7, 8)}
	points := Project(readings)
	require.Equal(t, []models.ChartPoint{
		{Timestamp: readings[0].Timestamp, SensorValues: models.SensorValues{Sensor1: 1, Sensor2: 2, Sensor3: 3, Sensor4: 4}},
		{Timestamp: readings[1].Timestamp, SensorValues: models.SensorValues{Sensor1: 5, Sensor2: 6, Sensor3: 7, Sensor4: 8}},
	}, points)
}

func TestProjectIsRepeatable(t *testing.T) {
	readings := []models.StoredReading{stored(1, 1, 2, 3, 4), stored(2, 5, 6, 7, 8), stored(3, 9, 9, 9, 9)}
	first := Project(readings)
	first[0].Sensor1 = 999

	second := Project(readings)
	require.Equal(t, 1.0, second[0].Sensor1)
	require.Equal(t, 1.0, readings[0].Sensor1)
	require.Equal(t, second, Project(readings))
}

func TestProjectEmpty(t *testing.T) {
	points := Project(nil)
	require.NotNil(t, points)
	require.Empty(t, points)
}
