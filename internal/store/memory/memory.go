// Package memory implements store.Store as a bounded in-memory ring buffer.
// Only the most recent Capacity readings are kept.
package memory

import (
	"context"
	"sync"

	"github.com/alfredjeanlab/motionrelay/internal/model"
	"github.com/alfredjeanlab/motionrelay/internal/store"
)

// DefaultCapacity is the number of readings kept when none is configured.
const DefaultCapacity = 100

// Store keeps the last N readings.
type Store struct {
	mu   sync.RWMutex
	ring []*model.Reading
	pos  int // next write position (wraps around)
	len  int // number of valid entries
}

var _ store.Store = (*Store)(nil)

// New returns a store holding at most capacity readings.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{ring: make([]*model.Reading, capacity)}
}

// Capacity returns the maximum number of readings kept.
func (s *Store) Capacity() int { return len(s.ring) }

func (s *Store) RecordReading(_ context.Context, r *model.Reading) error {
	clone := *r
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ring[s.pos] = &clone
	s.pos = (s.pos + 1) % len(s.ring)
	if s.len < len(s.ring) {
		s.len++
	}
	return nil
}

func (s *Store) GetReading(_ context.Context, id string) (*model.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.newestFirst() {
		if r.ID == id {
			clone := *r
			return &clone, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) LatestReading(_ context.Context) (*model.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.len == 0 {
		return nil, store.ErrNotFound
	}
	idx := (s.pos - 1 + len(s.ring)) % len(s.ring)
	clone := *s.ring[idx]
	return &clone, nil
}

func (s *Store) ListReadings(_ context.Context, filter model.ReadingFilter) ([]*model.Reading, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		result []*model.Reading
		total  int
	)
	for _, r := range s.newestFirst() {
		if !filter.Matches(r) {
			continue
		}
		total++
		if filter.Limit > 0 && len(result) >= filter.Limit {
			continue
		}
		clone := *r
		result = append(result, &clone)
	}
	return result, total, nil
}

func (s *Store) Stats(_ context.Context) (model.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.ComputeStats(s.newestFirst()), nil
}

func (s *Store) Close() error { return nil }

// newestFirst walks the ring from newest to oldest. Caller holds s.mu.
func (s *Store) newestFirst() []*model.Reading {
	out := make([]*model.Reading, 0, s.len)
	for i := 1; i <= s.len; i++ {
		idx := (s.pos - i + len(s.ring)) % len(s.ring)
		out = append(out, s.ring[idx])
	}
	return out
}
