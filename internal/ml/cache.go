package ml

import (
	"strconv"
	"sync/atomic"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/yourusername/propcast/internal/metrics"
	"github.com/yourusername/propcast/internal/models"
)

// PredictionCache is an in-process TTL cache of stored predictions keyed by prop line id.
// It fronts the predictions table; entries are copies so callers cannot mutate them.
type PredictionCache struct {
	cache     *cache.Cache
	ttl       time.Duration
	maxSize   int
	hitCount  atomic.Uint64
	missCount atomic.Uint64
}

// NewPredictionCache creates a new prediction cache
func NewPredictionCache(ttl time.Duration, maxSize int) *PredictionCache {
	return &PredictionCache{
		cache:   cache.New(ttl, ttl*2),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

func cacheKey(propLineID int64) string {
	return strconv.FormatInt(propLineID, 10)
}

// Get retrieves a cached prediction
func (pc *PredictionCache) Get(propLineID int64) *models.Prediction {
	if result, found := pc.cache.Get(cacheKey(propLineID)); found {
		if pred, ok := result.(models.Prediction); ok {
			pc.hitCount.Add(1)
			pc.updateMetrics()
			return &pred
		}
	}

	pc.missCount.Add(1)
	pc.updateMetrics()
	return nil
}

// Set stores a prediction in cache. An entry already cached for the prop
// line is always replaced; new keys are dropped while the cache is full.
func (pc *PredictionCache) Set(prediction *models.Prediction) {
	key := cacheKey(prediction.PropLineID)
	if pc.cache.Replace(key, *prediction, pc.ttl) == nil {
		return
	}
	if pc.cache.ItemCount() >= pc.maxSize {
		pc.cache.DeleteExpired()
		if pc.cache.ItemCount() >= pc.maxSize {
			return
		}
	}
	pc.cache.Set(key, *prediction, pc.ttl)
}

// Delete drops the entry for a prop line
func (pc *PredictionCache) Delete(propLineID int64) {
	pc.cache.Delete(cacheKey(propLineID))
}

// Clear flushes the entire cache
func (pc *PredictionCache) Clear() {
	pc.cache.Flush()
	pc.hitCount.Store(0)
	pc.missCount.Store(0)
}

// Stats returns cache statistics
func (pc *PredictionCache) Stats() (hits, misses uint64, ratio float64) {
	hits = pc.hitCount.Load()
	misses = pc.missCount.Load()
	total := hits + misses
	if total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return
}

// updateMetrics updates Prometheus metrics
func (pc *PredictionCache) updateMetrics() {
	_, _, ratio := pc.Stats()
	metrics.UpdateCacheHitRatio(ratio)
}

// ItemCount returns the number of items in cache
func (pc *PredictionCache) ItemCount() int {
	return pc.cache.ItemCount()
}
