package analytics

import "traffic-sensor-stream/models"

// Project maps readings 1:1 onto chart points, preserving order.
func Project(readings []models.StoredReading) []models.ChartPoint {
	points := make([]models.ChartPoint, 0, len(readings))
	for _, r := range readings {
		points = append(points, models.ChartPoint{Timestamp: r.Timestamp, SensorValues: r.SensorValues})
	}
	return points
}
