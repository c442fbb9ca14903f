package models

import (
	"math"
	"time"
)

// SensorCount is the number of distance channels on one sensing array.
const SensorCount = 4

// SensorValues holds one distance measurement per channel, in centimeters.
type SensorValues struct {
	Sensor1 float64 `json:"sensor1"`
	Sensor2 float64 `json:"sensor2"`
	Sensor3 float64 `json:"sensor3"`
	Sensor4 float64 `json:"sensor4"`
}

// Values returns the channels as a fixed tuple, sensor1 first.
func (v SensorValues) Values() [SensorCount]float64 {
	return [SensorCount]float64{v.Sensor1, v.Sensor2, v.Sensor3, v.Sensor4}
}

// SensorValuesFrom is the inverse of Values.
func SensorValuesFrom(a [SensorCount]float64) SensorValues {
	return SensorValues{Sensor1: a[0], Sensor2: a[1], Sensor3: a[2], Sensor4: a[3]}
}

// Reading is a validated reading that has not been stored yet.
// Timestamp is the device capture time in Unix seconds and is informational only.
type Reading struct {
	SensorValues
	Timestamp int64 `json:"timestamp"`
}

func (r *Reading) Validate() error {
	verr := &ValidationError{}
	for i, v := range r.Values() {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			verr.Add(SensorFields[i], ReasonOutOfRange)
		}
	}
	if r.Timestamp <= 0 {
		verr.Add(FieldTimestamp, ReasonOutOfRange)
	}
	if verr.Empty() {
		return nil
	}
	return verr
}

// CapturedAt converts the device timestamp to a time.
func (r Reading) CapturedAt() time.Time {
	return time.Unix(r.Timestamp, 0).UTC()
}

// StoredReading is a reading after a successful insert. ID and RecordedAt are
// assigned by the store; (RecordedAt, ID) is the ordering key.
type StoredReading struct {
	ID int64 `json:"id"`
	Reading
	RecordedAt time.Time `json:"recordedAt"`
}

// Before reports whether r sorts strictly before o in store order.
func (r StoredReading) Before(o StoredReading) bool {
	if r.RecordedAt.Equal(o.RecordedAt) {
		return r.ID < o.ID
	}
	return r.RecordedAt.Before(o.RecordedAt)
}

// Thresholds is the (min, max) alert boundary applied to every channel.
type Thresholds struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{Min: 10, Max: 200}
}

// Window is a queried time range, both bounds inclusive.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// maxWindowHours is the largest span a time.Duration can hold.
const maxWindowHours = math.MaxInt64 / int64(time.Hour)

// LastHours returns the window [now-hours, now]. Spans beyond what a
// time.Duration can express start at the zero time.
func LastHours(now time.Time, hours int) Window {
	if int64(hours) > maxWindowHours {
		return Window{To: now}
	}
	return Window{From: now.Add(-time.Duration(hours) * time.Hour), To: now}
}

type WindowStats struct {
	TotalReadings int          `json:"totalReadings"`
	AverageValues SensorValues `json:"averageValues"`
	MinValues     SensorValues `json:"minValues"`
	MaxValues     SensorValues `json:"maxValues"`
	AlertsCount   int          `json:"alertsCount"`
	TimeRange     Window       `json:"timeRange"`
}

// ChartPoint is the plotting projection of a stored reading.
type ChartPoint struct {
	Timestamp int64 `json:"timestamp"`
	SensorValues
}

type AlertType string

const (
	AlertBelowMin AlertType = "min"
	AlertAboveMax AlertType = "max"
)

// SensorAlert describes one channel of one reading outside its thresholds.
type SensorAlert struct {
	ReadingID int64     `json:"readingId"`
	SensorID  int       `json:"sensorId"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Type      AlertType `json:"type"`
	Timestamp int64     `json:"timestamp"`
}
