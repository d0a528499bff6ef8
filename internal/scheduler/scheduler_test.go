package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/propcast/internal/models"
)

// MockJobs implements every job interface
type MockJobs struct {
	mock.Mock
}

func (m *MockJobs) Check(ctx context.Context) (*models.DriftReport, *models.RetrainRecommendation, error) {
	args := m.Called(ctx)
	report, _ := args.Get(0).(*models.DriftReport)
	rec, _ := args.Get(1).(*models.RetrainRecommendation)
	return report, rec, args.Error(2)
}

func (m *MockJobs) Pregenerate(ctx context.Context, date time.Time) (int, error) {
	args := m.Called(ctx, date)
	return args.Int(0), args.Error(1)
}

func (m *MockJobs) Reload(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func newTestScheduler() (*Scheduler, *test.Hook) {
	log, hook := test.NewNullLogger()
	return NewScheduler(log), hook
}

func TestScheduleRejectsBadSpec(t *testing.T) {
	s, _ := newTestScheduler()
	err := s.ScheduleDriftCheck("every morning", new(MockJobs))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "drift_check")
}

func TestStartRequiresJobs(t *testing.T) {
	s, _ := newTestScheduler()
	assert.Error(t, s.Start())
}

func TestStartStop(t *testing.T) {
	s, _ := newTestScheduler()
	jobs := new(MockJobs)

	require.NoError(t, s.ScheduleDriftCheck("0 6 * * *", jobs))
	require.NoError(t, s.SchedulePregeneration("0 12 * * *", jobs))
	require.NoError(t, s.ScheduleModelReload(60, jobs))
	assert.Len(t, s.Entries(), 3)

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.False(t, s.GetNextRun().IsZero())
	assert.Error(t, s.Start())
	assert.Error(t, s.ScheduleModelReload(60, jobs), "cannot add jobs while running")

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.True(t, s.GetNextRun().IsZero())
}

func TestPregenerationUsesToday(t *testing.T) {
	s, hook := newTestScheduler()
	s.now = func() time.Time { return time.Date(2025, 4, 18, 15, 30, 0, 0, time.UTC) }

	jobs := new(MockJobs)
	jobs.On("Pregenerate", mock.Anything, time.Date(2025, 4, 18, 0, 0, 0, 0, time.UTC)).Return(12, nil)

	s.runPregeneration(jobs)

	jobs.AssertExpectations(t)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, 12, hook.LastEntry().Data["predictions"])
}

func TestDriftCheckLogsFailure(t *testing.T) {
	s, hook := newTestScheduler()
	jobs := new(MockJobs)
	jobs.On("Check", mock.Anything).Return(nil, nil, errors.New("database unavailable"))

	s.runDriftCheck(jobs)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestDriftCheckLogsRecommendation(t *testing.T) {
	s, hook := newTestScheduler()
	jobs := new(MockJobs)
	report := &models.DriftReport{ModelVersionID: "v1", Samples: 80, CalibrationError: 0.12}
	jobs.On("Check", mock.Anything).Return(report, &models.RetrainRecommendation{ID: "r1"}, nil)

	s.runDriftCheck(jobs)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, true, entry.Data["recommendation"])
	assert.Equal(t, "v1", entry.Data["model_version_id"])
}
