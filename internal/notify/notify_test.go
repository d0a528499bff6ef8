package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/propcast/internal/models"
)

func testRecommendation() *models.RetrainRecommendation {
	return &models.RetrainRecommendation{
		ID:        "rec-1",
		Reason:    "calibration error above threshold",
		Threshold: 0.08,
		Report: models.DriftReport{
			ModelVersionID:   "v1",
			Samples:          120,
			CalibrationError: 0.12,
			BrierScore:       0.27,
		},
		CreatedAt: time.Date(2025, 4, 20, 6, 0, 0, 0, time.UTC),
	}
}

func fastConfig(url string) WebhookConfig {
	cfg := DefaultWebhookConfig(url)
	cfg.RetryWaitMin = time.Millisecond
	cfg.RetryWaitMax = 2 * time.Millisecond
	cfg.RatePerMinute = 6000
	return cfg
}

func TestLogPublisher(t *testing.T) {
	log, hook := test.NewNullLogger()
	require.NoError(t, NewLogPublisher(log).Publish(context.Background(), testRecommendation()))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "audit", entry.Data["component"])
	assert.Equal(t, "v1", entry.Data["model_version_id"])
}

func TestWebhookPublisherDelivers(t *testing.T) {
	var got models.RetrainRecommendation
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	cfg := fastConfig(srv.URL)
	cfg.Token = "hook-token"
	log, _ := test.NewNullLogger()

	require.NoError(t, NewWebhookPublisher(cfg, log).Publish(context.Background(), testRecommendation()))
	assert.Equal(t, "Bearer hook-token", auth)
	assert.Equal(t, "rec-1", got.ID)
	assert.Equal(t, 0.12, got.Report.CalibrationError)
}

func TestWebhookPublisherRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	log, _ := test.NewNullLogger()
	require.NoError(t, NewWebhookPublisher(fastConfig(srv.URL), log).Publish(context.Background(), testRecommendation()))
	assert.Equal(t, int32(3), calls.Load())
}

func TestWebhookPublisherDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	log, _ := test.NewNullLogger()
	err := NewWebhookPublisher(fastConfig(srv.URL), log).Publish(context.Background(), testRecommendation())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWebhookPublisherOpensBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	log, _ := test.NewNullLogger()
	p := NewWebhookPublisher(fastConfig(srv.URL), log)
	for i := 0; i < 5; i++ {
		assert.Error(t, p.Publish(context.Background(), testRecommendation()))
	}
	assert.Equal(t, int32(3), calls.Load())
}

type stubPublisher struct {
	calls int
	err   error
}

func (s *stubPublisher) Publish(context.Context, *models.RetrainRecommendation) error {
	s.calls++
	return s.err
}

func TestMultiPublisherAttemptsAll(t *testing.T) {
	failing := &stubPublisher{err: errors.New("down")}
	ok := &stubPublisher{}

	err := MultiPublisher{failing, ok}.Publish(context.Background(), testRecommendation())
	require.Error(t, err)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, ok.calls)
}
