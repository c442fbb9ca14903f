package analytics

import (
	"github.com/shopspring/decimal"

	"traffic-sensor-stream/models"
)

// Aggregate computes window statistics in a single pass over readings.
// alertsCount is the number of flagged channel instances, so one reading can
// contribute up to four alerts. TimeRange always echoes the queried window.
// Sums are exact decimals and averages round half away from zero, so 2.675
// averages to 2.68 and channels near the float64 limit cannot overflow.
func Aggregate(readings []models.StoredReading, window models.Window, t models.Thresholds) models.WindowStats {
	stats := models.WindowStats{TimeRange: window}
	if len(readings) == 0 {
		return stats
	}

	var sum [models.SensorCount]decimal.Decimal
	var lo, hi [models.SensorCount]float64
	lo = readings[0].Values()
	hi = lo
	alerts := 0

	for _, r := range readings {
		values := r.Values()
		for i, v := range values {
			sum[i] = sum[i].Add(decimal.NewFromFloat(v))
			if v < lo[i] {
				lo[i] = v
			}
			if v > hi[i] {
				hi[i] = v
			}
		}
		alerts += CountAlerts(values, t)
	}

	var avg [models.SensorCount]float64
	n := decimal.NewFromInt(int64(len(readings)))
	for i := range sum {
		avg[i] = sum[i].Div(n).Round(2).InexactFloat64()
	}

	stats.TotalReadings = len(readings)
	stats.AverageValues = models.SensorValuesFrom(avg)
	stats.MinValues = models.SensorValuesFrom(lo)
	stats.MaxValues = models.SensorValuesFrom(hi)
	stats.AlertsCount = alerts
	return stats
}
