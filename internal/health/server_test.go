package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/propcast/internal/ml"
	"github.com/yourusername/propcast/internal/models"
)

// MockPinger mocks the database pinger
type MockPinger struct {
	mock.Mock
}

func (m *MockPinger) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type fixedModel struct {
	p   *ml.CalibratedPredictor
	err error
}

func (f fixedModel) Current() (*ml.CalibratedPredictor, error) {
	return f.p, f.err
}

func loadedModel(t *testing.T) fixedModel {
	t.Helper()
	counts := make([]int, ml.DefaultBucketCount)
	p, err := ml.NewCalibratedPredictor(&ml.Artifact{
		VersionID:      "v20250401T000000.000000",
		FeatureColumns: []string{"avg_points_last_5"},
		Model:          ml.LogisticModel{Weights: []float64{1}, Means: []float64{0}, Scales: []float64{1}},
		Calibration:    ml.Calibration{Buckets: ml.ConfidenceBuckets{Counts: counts}},
	})
	require.NoError(t, err)
	return fixedModel{p: p}
}

func newTestServer(db DatabasePinger, model ModelSource) *Server {
	log, _ := test.NewNullLogger()
	cfg := Config{ServiceName: "propcast", Version: "test", Logger: log, Model: model}
	if db != nil {
		cfg.Checks = append(cfg.Checks, DatabaseCheck(db))
	}
	cfg.Checks = append(cfg.Checks, ModelCheck(model))
	return NewServer(cfg)
}

func get(s *Server, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealthAndLive(t *testing.T) {
	s := newTestServer(nil, loadedModel(t))

	w := get(s, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "v20250401T000000.000000", resp.Model)
	assert.NotEmpty(t, resp.Uptime)

	assert.Equal(t, http.StatusOK, get(s, "/live").Code)
}

func TestReady(t *testing.T) {
	dbDown := errors.New("connection refused")

	tests := []struct {
		name       string
		ready      bool
		pingErr    error
		model      ModelSource
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name:       "all healthy",
			ready:      true,
			model:      loadedModel(t),
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"service": "ok", "database": "ok", "model": "v20250401T000000.000000"},
		},
		{
			name:       "not marked ready",
			ready:      false,
			model:      loadedModel(t),
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"service": "not_ready"},
		},
		{
			name:       "database down",
			ready:      true,
			pingErr:    dbDown,
			model:      loadedModel(t),
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"database": "error: connection refused"},
		},
		{
			name:       "model not loaded",
			ready:      true,
			model:      fixedModel{err: models.NewModelNotLoadedError(nil)},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"model": "not_loaded"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := new(MockPinger)
			db.On("Ping", mock.Anything).Return(tt.pingErr)

			s := newTestServer(db, tt.model)
			s.SetReady(tt.ready)

			w := get(s, "/ready")
			assert.Equal(t, tt.wantStatus, w.Code)

			var resp ReadyResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			for k, v := range tt.wantChecks {
				assert.Equal(t, v, resp.Checks[k], k)
			}
		})
	}
}

func TestReadyWithoutDatabase(t *testing.T) {
	s := newTestServer(nil, loadedModel(t))
	s.SetReady(true)

	w := get(s, "/ready")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "database")
}

func TestReadyCheckTimeout(t *testing.T) {
	log, _ := test.NewNullLogger()
	slow := NamedCheck{Name: "redis", Check: func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	s := NewServer(Config{ServiceName: "propcast", Logger: log, Checks: []NamedCheck{slow}, CheckTimeout: 20 * time.Millisecond})
	s.SetReady(true)

	w := get(s, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "deadline exceeded")
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}
