package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistry(t *testing.T) {
	InitRegistry()
	registry := GetRegistry()

	assert.NotNil(t, registry)
	assert.IsType(t, &prometheus.Registry{}, registry)
}

func TestRecordPredictionServed(t *testing.T) {
	InitRegistry()
	before := testutil.ToFloat64(PredictionsServedTotal.WithLabelValues("cache"))

	RecordPredictionServed("cache")

	assert.Equal(t, before+1, testutil.ToFloat64(PredictionsServedTotal.WithLabelValues("cache")))
}

func TestRecordRateLimitDecision(t *testing.T) {
	InitRegistry()
	before := testutil.ToFloat64(RateLimitDecisionsTotal.WithLabelValues("props.generate", "rejected"))

	RecordRateLimitDecision("props.generate", false)
	RecordRateLimitDecision("props.generate", true)

	assert.Equal(t, before+1, testutil.ToFloat64(RateLimitDecisionsTotal.WithLabelValues("props.generate", "rejected")))
}

func TestSetModelVersionKeepsSingleSeries(t *testing.T) {
	InitRegistry()

	SetModelVersion("20250101T000000Z")
	SetModelVersion("20250201T000000Z")

	assert.Equal(t, 1, testutil.CollectAndCount(ModelVersionInfo))
	assert.Equal(t, 1.0, testutil.ToFloat64(ModelVersionInfo.WithLabelValues("20250201T000000Z")))
}

func TestRecordGeneration(t *testing.T) {
	InitRegistry()

	assert.NotPanics(t, func() {
		RecordGeneration(0.05)
		RecordGenerationFailure("InsufficientDataError")
		UpdateDrift(0.04, 0.21)
		UpdateCacheHitRatio(0.5)
	})
}

func TestMetricsHandler(t *testing.T) {
	InitRegistry()
	RecordPredictionServed("generated")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "propcast_predictions_served_total")
}
