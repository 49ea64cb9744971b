package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/jobeco/fairprice/internal/cache"
)

// RateStore coordinates rate limiting counters for a specific key.
type RateStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int, ttl time.Duration, err error)
}

// memoryRateStore is a process-local sliding window limiter. It is
// concurrency-safe.
type memoryRateStore struct {
	mu        sync.Mutex
	hits      map[string][]time.Time
	lastSweep time.Time
	clock     func() time.Time
}

// NewMemoryRateStore constructs an in-memory rate store.
func NewMemoryRateStore() RateStore {
	return newMemoryRateStore(time.Now)
}

func newMemoryRateStore(clock func() time.Time) *memoryRateStore {
	return &memoryRateStore{
		hits:  make(map[string][]time.Time),
		clock: clock,
	}
}

func (s *memoryRateStore) Increment(_ context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}

	now := s.clock()
	cutoff := now.Add(-window)

	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastSweep) > window {
		s.sweep(cutoff)
		s.lastSweep = now
	}

	hits := prune(s.hits[key], cutoff)
	hits = append(hits, now)
	s.hits[key] = hits

	return len(hits), hits[0].Add(window).Sub(now), nil
}

func (s *memoryRateStore) sweep(cutoff time.Time) {
	for key, hits := range s.hits {
		if kept := prune(hits, cutoff); len(kept) == 0 {
			delete(s.hits, key)
		} else {
			s.hits[key] = kept
		}
	}
}

// prune drops hits at or before cutoff; hits are in ascending order.
func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}

// storeRateStore implements RateStore over a shared cache.Store, so every
// process behind the same database sees one counter.
type storeRateStore struct {
	store cache.Store
}

// NewCacheRateStore wraps a cache store in a fixed-window RateStore.
func NewCacheRateStore(store cache.Store) RateStore {
	if store == nil {
		return nil
	}
	return &storeRateStore{store: store}
}

func (s *storeRateStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}
	count, ttl, err := s.store.IncrementWithTTL(ctx, key, window)
	return int(count), ttl, err
}
