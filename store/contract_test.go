package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"traffic-sensor-stream/models"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func reading(v float64) models.Reading {
	return models.Reading{
		SensorValues: models.SensorValues{Sensor1: v, Sensor2: v + 1, Sensor3: v + 2, Sensor4: v + 3},
		Timestamp:    1740830400,
	}
}

type storeFactory func(t *testing.T, clock *fakeClock) Store

func runStoreContract(t *testing.T, newStore storeFactory) {
	ctx := context.Background()

	t.Run("LatestOnEmptyStore", func(t *testing.T) {
		s := newStore(t, newFakeClock())
		_, err := s.Latest(ctx)
		require.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("InsertThenLatest", func(t *testing.T) {
		clock := newFakeClock()
		s := newStore(t, clock)

		first, err := s.Insert(ctx, reading(25.43))
		require.NoError(t, err)
		require.Positive(t, first.ID)
		require.True(t, first.RecordedAt.Equal(clock.Now()))

		latest, err := s.Latest(ctx)
		require.NoError(t, err)
		require.Equal(t, first, latest)

		clock.Advance(time.Second)
		second, err := s.Insert(ctx, reading(30))
		require.NoError(t, err)
		require.Greater(t, second.ID, first.ID)

		latest, err = s.Latest(ctx)
		require.NoError(t, err)
		require.Equal(t, second, latest)
	})

	t.Run("InsertRejectsInvalidReading", func(t *testing.T) {
		s := newStore(t, newFakeClock())
		bad := reading(1)
		bad.Sensor2 = -1
		_, err := s.Insert(ctx, bad)
		var verr *models.ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("TiesResolveByInsertionOrder", func(t *testing.T) {
		s := newStore(t, newFakeClock())
		var ids []int64
		for i := 0; i < 3; i++ {
			r, err := s.Insert(ctx, reading(float64(i)))
			require.NoError(t, err)
			ids = append(ids, r.ID)
		}
		latest, err := s.Latest(ctx)
		require.NoError(t, err)
		require.Equal(t, ids[2], latest.ID)

		all, err := s.RangeQuery(ctx, time.Time{}, newFakeClock().Now().Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, all, 3)
		for i, r := range all {
			require.Equal(t, ids[i], r.ID)
		}
	})

	t.Run("RecordedAtNeverGoesBackwards", func(t *testing.T) {
		clock := newFakeClock()
		s := newStore(t, clock)
		first, err := s.Insert(ctx, reading(1))
		require.NoError(t, err)

		clock.Advance(-time.Minute)
		second, err := s.Insert(ctx, reading(2))
		require.NoError(t, err)
		require.False(t, second.RecordedAt.Before(first.RecordedAt))

		latest, err := s.Latest(ctx)
		require.NoError(t, err)
		require.Equal(t, second.ID, latest.ID)
	})

	t.Run("RangeQuery", func(t *testing.T) {
		clock := newFakeClock()
		s := newStore(t, clock)
		start := clock.Now()
		var stored []models.StoredReading
		for i := 0; i < 5; i++ {
			r, err := s.Insert(ctx, reading(float64(i)))
			require.NoError(t, err)
			stored = append(stored, r)
			clock.Advance(time.Minute)
		}

		got, err := s.RangeQuery(ctx, start.Add(time.Minute), start.Add(3*time.Minute))
		require.NoError(t, err)
		require.Equal(t, stored[1:4], got, "bounds are inclusive")

		got, err = s.RangeQuery(ctx, start.Add(30*time.Second), start.Add(90*time.Second))
		require.NoError(t, err)
		require.Equal(t, stored[1:2], got)

		got, err = s.RangeQuery(ctx, start.Add(time.Hour), start.Add(2*time.Hour))
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Empty(t, got)

		_, err = s.RangeQuery(ctx, start.Add(time.Minute), start)
		require.ErrorIs(t, err, models.ErrInvalidRange)
	})

	t.Run("SubMicrosecondBounds", func(t *testing.T) {
		clock := newFakeClock()
		s := newStore(t, clock)
		r, err := s.Insert(ctx, reading(7))
		require.NoError(t, err)
		after := r.RecordedAt.Add(500 * time.Nanosecond)

		got, err := s.RangeQuery(ctx, after, after.Add(time.Hour))
		require.NoError(t, err)
		require.Empty(t, got, "a from bound inside the same microsecond but later excludes the reading")

		got, err = s.RangeQuery(ctx, r.RecordedAt.Add(-time.Hour), after)
		require.NoError(t, err)
		require.Len(t, got, 1)

		n, err := s.DeleteOlderThan(ctx, after)
		require.NoError(t, err)
		require.Equal(t, int64(1), n)
	})

	t.Run("Recent", func(t *testing.T) {
		clock := newFakeClock()
		s := newStore(t, clock)
		var ids []int64
		for i := 0; i < 4; i++ {
			r, err := s.Insert(ctx, reading(float64(i)))
			require.NoError(t, err)
			ids = append(ids, r.ID)
			clock.Advance(time.Second)
		}

		got, err := s.Recent(ctx, 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		require.Equal(t, ids[3], got[0].ID)
		require.Equal(t, ids[2], got[1].ID)

		got, err = s.Recent(ctx, 100)
		require.NoError(t, err)
		require.Len(t, got, 4)

		got, err = s.Recent(ctx, 0)
		require.NoError(t, err)
		require.Empty(t, got)
	})

	t.Run("DeleteOlderThan", func(t *testing.T) {
		clock := newFakeClock()
		s := newStore(t, clock)
		start := clock.Now()
		var stored []models.StoredReading
		for i := 0; i < 4; i++ {
			r, err := s.Insert(ctx, reading(float64(i)))
			require.NoError(t, err)
			stored = append(stored, r)
			clock.Advance(time.Hour)
		}

		cutoff := start.Add(2 * time.Hour)
		n, err := s.DeleteOlderThan(ctx, cutoff)
		require.NoError(t, err)
		require.Equal(t, int64(2), n)

		n, err = s.DeleteOlderThan(ctx, cutoff)
		require.NoError(t, err)
		require.Zero(t, n)

		left, err := s.RangeQuery(ctx, start.Add(-time.Hour), start.Add(24*time.Hour))
		require.NoError(t, err)
		require.Equal(t, stored[2:], left)
	})

	t.Run("ConcurrentInserts", func(t *testing.T) {
		s := newStore(t, newFakeClock())
		const n = 40
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if _, err := s.Insert(ctx, reading(float64(i))); err != nil {
					errs <- fmt.Errorf("insert %d: %w", i, err)
				}
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		all, err := s.RangeQuery(ctx, time.Time{}, newFakeClock().Now().Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, all, n)
		seen := map[int64]bool{}
		for i, r := range all {
			require.False(t, seen[r.ID])
			seen[r.ID] = true
			if i > 0 {
				require.True(t, all[i-1].Before(r))
			}
		}
	})
}
