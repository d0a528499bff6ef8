package ratelimit

import (
	"context"
	"fmt"
	"time"

	cache "github.com/patrickmn/go-cache"
)

// MemoryStore keeps counters in process. Counts are not shared between replicas.
type MemoryStore struct {
	cache *cache.Cache
}

// NewMemoryStore creates an in-process store that sweeps expired windows every cleanup interval
func NewMemoryStore(cleanup time.Duration) *MemoryStore {
	return &MemoryStore{cache: cache.New(cache.NoExpiration, cleanup)}
}

// Increment adds one to key
func (s *MemoryStore) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		ttl = time.Millisecond
	}

	// Add and IncrementInt64 each hold the cache lock; retry covers an
	// entry expiring between the two calls.
	for attempt := 0; attempt < 3; attempt++ {
		if err := s.cache.Add(key, int64(1), ttl); err == nil {
			return 1, nil
		}
		if n, err := s.cache.IncrementInt64(key, 1); err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("failed to increment counter %s", key)
}
