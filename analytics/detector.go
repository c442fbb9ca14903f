package analytics

import "traffic-sensor-stream/models"

// Detect flags every channel whose value lies outside [t.Min, t.Max].
func Detect(values [models.SensorCount]float64, t models.Thresholds) [models.SensorCount]bool {
	var out [models.SensorCount]bool
	for i, v := range values {
		out[i] = v < t.Min || v > t.Max
	}
	return out
}

// CountAlerts returns how many channels Detect flags.
func CountAlerts(values [models.SensorCount]float64, t models.Thresholds) int {
	n := 0
	for _, flagged := range Detect(values, t) {
		if flagged {
			n++
		}
	}
	return n
}

// Alerts expands the flagged channels of a stored reading into alert records.
func Alerts(r models.StoredReading, t models.Thresholds) []models.SensorAlert {
	values := r.Values()
	var out []models.SensorAlert
	for i, flagged := range Detect(values, t) {
		if !flagged {
			continue
		}
		alert := models.SensorAlert{
			ReadingID: r.ID,
			SensorID:  i + 1,
			Value:     values[i],
			Threshold: t.Min,
			Type:      models.AlertBelowMin,
			Timestamp: r.Timestamp,
		}
		if values[i] > t.Max {
			alert.Threshold = t.Max
			alert.Type = models.AlertAboveMax
		}
		out = append(out, alert)
	}
	return out
}
