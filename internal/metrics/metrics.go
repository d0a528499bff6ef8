// Package metrics provides the Prometheus registry for the prediction service.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "propcast"

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	PredictionsServedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "predictions_served_total",
		Help:      "Predictions returned to callers by source (cache, store, generated)",
	}, []string{"source"})
	PredictionsGeneratedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "predictions_generated_total",
		Help:      "Total number of feature build and scoring runs",
	})
	GenerationFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "generation_failures_total",
		Help:      "Failed generations by error kind",
	}, []string{"kind"})
	RateLimitDecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limit_decisions_total",
		Help:      "Admission decisions by route and outcome",
	}, []string{"route", "outcome"})
	RateLimitStoreFallbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limit_store_fallbacks_total",
		Help:      "Admissions served by the in-process store after a shared store error",
	})
	RetrainRecommendationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retrain_recommendations_total",
		Help:      "Retraining recommendations emitted by the drift monitor",
	})
)

// Gauge metrics
var (
	ModelVersionInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "model_version_info",
		Help:      "Set to 1 for the model version currently serving",
	}, []string{"version_id"})
	PredictionCacheHitRatio = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "prediction_cache_hit_ratio",
		Help:      "In-process prediction cache hit ratio",
	})
	DriftCalibrationError = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "drift_expected_calibration_error",
		Help:      "Expected calibration error over the drift lookback window",
	})
	DriftBrierScore = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "drift_brier_score",
		Help:      "Brier score over the drift lookback window",
	})
)

// Histogram metrics
var (
	GenerationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "generation_duration_seconds",
		Help:      "Duration of feature build, scoring and persistence",
		Buckets:   prometheus.DefBuckets,
	})
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and status code",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "status"})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(PredictionsServedTotal)
		registry.MustRegister(PredictionsGeneratedTotal)
		registry.MustRegister(GenerationFailuresTotal)
		registry.MustRegister(RateLimitDecisionsTotal)
		registry.MustRegister(RateLimitStoreFallbacksTotal)
		registry.MustRegister(RetrainRecommendationsTotal)

		registry.MustRegister(ModelVersionInfo)
		registry.MustRegister(PredictionCacheHitRatio)
		registry.MustRegister(DriftCalibrationError)
		registry.MustRegister(DriftBrierScore)

		registry.MustRegister(GenerationDuration)
		registry.MustRegister(HTTPRequestDuration)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return InitRegistry()
	}
	return registry
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordPredictionServed counts a prediction returned from source.
func RecordPredictionServed(source string) {
	PredictionsServedTotal.WithLabelValues(source).Inc()
}

// RecordGeneration records a completed generation run.
func RecordGeneration(durationSeconds float64) {
	PredictionsGeneratedTotal.Inc()
	GenerationDuration.Observe(durationSeconds)
}

// RecordGenerationFailure counts a failed generation by error kind.
func RecordGenerationFailure(kind string) {
	GenerationFailuresTotal.WithLabelValues(kind).Inc()
}

// RecordRateLimitDecision counts an admission decision.
func RecordRateLimitDecision(route string, allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = "rejected"
	}
	RateLimitDecisionsTotal.WithLabelValues(route, outcome).Inc()
}

// RecordRateLimitFallback counts a fallback to the in-process store.
func RecordRateLimitFallback() {
	RateLimitStoreFallbacksTotal.Inc()
}

// RecordRetrainRecommendation counts an emitted retraining recommendation.
func RecordRetrainRecommendation() {
	RetrainRecommendationsTotal.Inc()
}

// SetModelVersion marks versionID as the serving model.
func SetModelVersion(versionID string) {
	ModelVersionInfo.Reset()
	ModelVersionInfo.WithLabelValues(versionID).Set(1)
}

// UpdateCacheHitRatio updates the prediction cache hit ratio gauge.
func UpdateCacheHitRatio(ratio float64) {
	PredictionCacheHitRatio.Set(ratio)
}

// UpdateDrift updates the drift gauges.
func UpdateDrift(calibrationError, brier float64) {
	DriftCalibrationError.Set(calibrationError)
	DriftBrierScore.Set(brier)
}

// ObserveHTTPRequest records the latency of an HTTP request.
func ObserveHTTPRequest(route, status string, durationSeconds float64) {
	HTTPRequestDuration.WithLabelValues(route, status).Observe(durationSeconds)
}
