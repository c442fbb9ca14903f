package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"traffic-sensor-stream/models"
)

// MemoryStore keeps readings in an append-only slice. Because RecordedAt is
// clamped on insert, slice order is store order and lookups can binary search.
type MemoryStore struct {
	mu       sync.RWMutex
	readings []models.StoredReading
	nextID   int64
	last     time.Time
	now      Clock
}

type MemoryOption func(*MemoryStore)

func WithMemoryClock(now Clock) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{now: systemClock}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Insert(_ context.Context, r models.Reading) (models.StoredReading, error) {
	if err := r.Validate(); err != nil {
		return models.StoredReading{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	at := recordTime(s.now)
	if at.Before(s.last) {
		at = s.last
	}
	s.last = at
	s.nextID++

	stored := models.StoredReading{ID: s.nextID, Reading: r, RecordedAt: at}
	s.readings = append(s.readings, stored)
	return stored, nil
}

func (s *MemoryStore) Latest(_ context.Context) (models.StoredReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.readings) == 0 {
		return models.StoredReading{}, models.ErrNotFound
	}
	return s.readings[len(s.readings)-1], nil
}

func (s *MemoryStore) RangeQuery(_ context.Context, from, to time.Time) ([]models.StoredReading, error) {
	if err := checkRange(from, to); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	lo := s.firstAtOrAfter(from)
	hi := sort.Search(len(s.readings), func(i int) bool {
		return s.readings[i].RecordedAt.After(to)
	})
	out := make([]models.StoredReading, 0, max(hi-lo, 0))
	if lo < hi {
		out = append(out, s.readings[lo:hi]...)
	}
	return out, nil
}

func (s *MemoryStore) Recent(_ context.Context, limit int) ([]models.StoredReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := min(max(limit, 0), len(s.readings))
	out := make([]models.StoredReading, 0, n)
	for i := len(s.readings) - 1; i >= len(s.readings)-n; i-- {
		out = append(out, s.readings[i])
	}
	return out, nil
}

func (s *MemoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.firstAtOrAfter(cutoff)
	if idx == 0 {
		return 0, nil
	}
	s.readings = append([]models.StoredReading(nil), s.readings[idx:]...)
	return int64(idx), nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) firstAtOrAfter(t time.Time) int {
	return sort.Search(len(s.readings), func(i int) bool {
		return !s.readings[i].RecordedAt.Before(t)
	})
}
