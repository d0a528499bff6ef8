package ml

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/propcast/internal/models"
)

func testPrediction(propLineID int64, prob float64) *models.Prediction {
	return &models.Prediction{
		PropLineID:         propLineID,
		ProbOver:           prob,
		ConfidenceInterval: 7.5,
		ModelVersionID:     "20250101T000000Z",
		GeneratedAt:        time.Now(),
	}
}

// TestPredictionCacheGet tests cache Get operation
func TestPredictionCacheGet(t *testing.T) {
	cache := NewPredictionCache(time.Hour, 100)
	defer cache.Clear()

	assert.Nil(t, cache.Get(42))
}

// TestPredictionCacheSet tests cache Set operation
func TestPredictionCacheSet(t *testing.T) {
	cache := NewPredictionCache(time.Hour, 100)
	defer cache.Clear()

	prediction := testPrediction(42, 0.61)
	cache.Set(prediction)

	retrieved := cache.Get(42)
	require.NotNil(t, retrieved)
	assert.Equal(t, prediction.ProbOver, retrieved.ProbOver)
	assert.Equal(t, prediction.ConfidenceInterval, retrieved.ConfidenceInterval)
}

// TestPredictionCacheReturnsCopies tests that cached entries cannot be mutated by callers
func TestPredictionCacheReturnsCopies(t *testing.T) {
	cache := NewPredictionCache(time.Hour, 100)
	defer cache.Clear()

	prediction := testPrediction(42, 0.61)
	cache.Set(prediction)
	prediction.ProbOver = 0.99

	first := cache.Get(42)
	require.NotNil(t, first)
	first.ProbOver = 0.01

	second := cache.Get(42)
	require.NotNil(t, second)
	assert.Equal(t, 0.61, second.ProbOver)
}

// TestPredictionCacheExpiration tests cache TTL expiration
func TestPredictionCacheExpiration(t *testing.T) {
	cache := NewPredictionCache(100*time.Millisecond, 100)
	defer cache.Clear()

	cache.Set(testPrediction(1, 0.5))
	require.NotNil(t, cache.Get(1))

	time.Sleep(150 * time.Millisecond)

	assert.Nil(t, cache.Get(1))
}

// TestPredictionCacheDelete tests removal of a single prop line
func TestPredictionCacheDelete(t *testing.T) {
	cache := NewPredictionCache(time.Hour, 100)
	defer cache.Clear()

	cache.Set(testPrediction(1, 0.5))
	cache.Set(testPrediction(2, 0.5))
	cache.Delete(1)

	assert.Nil(t, cache.Get(1))
	assert.NotNil(t, cache.Get(2))
}

// TestPredictionCacheStats tests cache statistics tracking
func TestPredictionCacheStats(t *testing.T) {
	cache := NewPredictionCache(time.Hour, 100)
	defer cache.Clear()

	hits, misses, ratio := cache.Stats()
	assert.Equal(t, uint64(0), hits)
	assert.Equal(t, uint64(0), misses)
	assert.Equal(t, 0.0, ratio)

	_ = cache.Get(7)
	hits, misses, ratio = cache.Stats()
	assert.Equal(t, uint64(0), hits)
	assert.Equal(t, uint64(1), misses)
	assert.Equal(t, 0.0, ratio)

	cache.Set(testPrediction(7, 0.75))
	_ = cache.Get(7)
	hits, misses, ratio = cache.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
	assert.Equal(t, 0.5, ratio)
}

// TestPredictionCacheMaxSize tests cache size limit enforcement
func TestPredictionCacheMaxSize(t *testing.T) {
	maxSize := 5
	cache := NewPredictionCache(time.Hour, maxSize)
	defer cache.Clear()

	for i := int64(0); i < 10; i++ {
		cache.Set(testPrediction(i, 0.5))
	}

	assert.LessOrEqual(t, cache.ItemCount(), maxSize)
}

// TestPredictionCacheFullReplacesExisting tests that a full cache still
// refreshes entries it holds while dropping new keys
func TestPredictionCacheFullReplacesExisting(t *testing.T) {
	cache := NewPredictionCache(time.Hour, 1)
	defer cache.Clear()

	cache.Set(testPrediction(42, 0.61))
	refreshed := testPrediction(42, 0.73)
	refreshed.ModelVersionID = "20250501T000000Z"
	cache.Set(refreshed)

	got := cache.Get(42)
	require.NotNil(t, got)
	assert.Equal(t, 0.73, got.ProbOver)
	assert.Equal(t, "20250501T000000Z", got.ModelVersionID)

	cache.Set(testPrediction(43, 0.5))
	assert.Nil(t, cache.Get(43))
	assert.Equal(t, 1, cache.ItemCount())
}
