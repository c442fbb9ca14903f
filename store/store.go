// Package store holds the time-series persistence back ends. Every
// implementation orders readings by (RecordedAt, ID), assigns RecordedAt so
// that it never decreases, and makes Insert atomic with respect to reads.
package store

import (
	"context"
	"time"

	"traffic-sensor-stream/models"
)

type Store interface {
	// Insert assigns ID and RecordedAt and appends the reading.
	Insert(ctx context.Context, r models.Reading) (models.StoredReading, error)
	// Latest returns the newest reading or models.ErrNotFound.
	Latest(ctx context.Context) (models.StoredReading, error)
	// RangeQuery returns readings with from <= RecordedAt <= to, oldest first.
	RangeQuery(ctx context.Context, from, to time.Time) ([]models.StoredReading, error)
	// Recent returns at most limit readings, newest first.
	Recent(ctx context.Context, limit int) ([]models.StoredReading, error)
	// DeleteOlderThan removes readings with RecordedAt < cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}

// Clock supplies the insert time. Stores clamp it so RecordedAt never goes backwards.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now()
}

// recordTime normalises a clock reading to the microsecond resolution shared by all back ends.
func recordTime(now Clock) time.Time {
	return now().UTC().Truncate(time.Microsecond)
}

func checkRange(from, to time.Time) error {
	if from.After(to) {
		return &models.RangeError{Detail: "from is after to"}
	}
	return nil
}

// ceilMicro rounds t up to the next whole microsecond, so that a score >= the
// result is equivalent to a time >= t.
func ceilMicro(t time.Time) int64 {
	us := t.UnixMicro()
	if time.UnixMicro(us).Before(t) {
		us++
	}
	return us
}
