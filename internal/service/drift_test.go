package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/propcast/internal/models"
	"github.com/yourusername/propcast/internal/notify"
)

const servedVersion = "v20250401T000000.000000"

// MockPublisher mocks a recommendation publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, rec *models.RetrainRecommendation) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func outcomes(version string, n int, prob float64, overEvery int) []*models.PredictionOutcome {
	out := make([]*models.PredictionOutcome, n)
	for i := range out {
		out[i] = &models.PredictionOutcome{
			PropLineID:     int64(i + 1),
			ProbOver:       prob,
			ModelVersionID: version,
			WentOver:       overEvery > 0 && i%overEvery == 0,
			GameDate:       day(-1 - i%10),
		}
	}
	return out
}

func newDriftMonitor(t *testing.T, repo *MockPredictionRepository, pub notify.Publisher) *DriftMonitor {
	f := newFixture(t)
	d := NewDriftMonitor(repo, f.model, pub, DriftConfig{LookbackDays: 14, Threshold: 0.08, MinSamples: 50}, nullLogger())
	d.now = func() time.Time { return gameDay.Add(6 * time.Hour) }
	return d
}

func TestDriftCheckRecommendsRetrain(t *testing.T) {
	repo := new(MockPredictionRepository)
	rows := append(outcomes(servedVersion, 60, 0.9, 0), outcomes("v-older", 40, 0.5, 2)...)
	repo.On("GetOutcomes", mock.Anything, day(-14), gameDay).Return(rows, nil)

	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.AnythingOfType("*models.RetrainRecommendation")).Return(nil)

	d := newDriftMonitor(t, repo, pub)
	report, rec, err := d.Check(context.Background())
	require.NoError(t, err)

	assert.Equal(t, servedVersion, report.ModelVersionID)
	assert.Equal(t, 60, report.Samples)
	assert.InDelta(t, 0.0, report.ActualHitRate, 1e-9)
	assert.InDelta(t, 1.0, report.PredictedHitRate, 1e-9)
	assert.InDelta(t, 0.81, report.BrierScore, 1e-9)
	assert.InDelta(t, 0.9, report.CalibrationError, 1e-9)
	assert.InDelta(t, 0.231, report.TrainingBrierScore, 1e-9)

	require.NotNil(t, rec)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, 0.08, rec.Threshold)
	assert.Contains(t, rec.Reason, "exceeds threshold")
	pub.AssertNumberOfCalls(t, "Publish", 1)
	repo.AssertExpectations(t)
}

func TestDriftCheckWithinThreshold(t *testing.T) {
	repo := new(MockPredictionRepository)
	repo.On("GetOutcomes", mock.Anything, day(-14), gameDay).Return(outcomes(servedVersion, 80, 0.5, 2), nil)
	pub := new(MockPublisher)

	d := newDriftMonitor(t, repo, pub)
	report, rec, err := d.Check(context.Background())
	require.NoError(t, err)

	assert.Nil(t, rec)
	assert.Equal(t, 80, report.Samples)
	assert.InDelta(t, 0.5, report.ActualHitRate, 1e-9)
	assert.InDelta(t, 0.0, report.CalibrationError, 1e-9)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestDriftCheckSkipsSmallSamples(t *testing.T) {
	repo := new(MockPredictionRepository)
	repo.On("GetOutcomes", mock.Anything, day(-14), gameDay).Return(outcomes(servedVersion, 10, 0.95, 0), nil)
	pub := new(MockPublisher)

	d := newDriftMonitor(t, repo, pub)
	report, rec, err := d.Check(context.Background())
	require.NoError(t, err)

	assert.Nil(t, rec)
	assert.Equal(t, 10, report.Samples)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestDriftPublishFailureIsAdvisory(t *testing.T) {
	repo := new(MockPredictionRepository)
	repo.On("GetOutcomes", mock.Anything, day(-14), gameDay).Return(outcomes(servedVersion, 60, 0.9, 0), nil)
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("webhook unavailable"))

	d := newDriftMonitor(t, repo, pub)
	_, rec, err := d.Check(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, rec)
}

func TestDriftCheckWithoutModel(t *testing.T) {
	f := newFixture(t)
	f.model.err = models.NewModelNotLoadedError(errors.New("empty registry"))
	d := NewDriftMonitor(new(MockPredictionRepository), f.model, new(MockPublisher), DriftConfig{LookbackDays: 14}, nullLogger())

	_, _, err := d.Check(context.Background())
	assert.True(t, errors.Is(err, models.ErrModelNotLoaded))
}

func TestDriftEvaluateAgainstStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// LeBron scored 35 on day(-2) and 33 on day(-4)
	over := &models.PropLine{PlayerID: 7, GameDate: day(-2), Line: decimal.RequireFromString("30.5"), Sportsbook: "draftkings", FetchedAt: day(-2)}
	under := &models.PropLine{PlayerID: 7, GameDate: day(-4), Line: decimal.RequireFromString("34.5"), Sportsbook: "draftkings", FetchedAt: day(-4)}
	for _, p := range []*models.PropLine{over, under} {
		require.NoError(t, f.repos.PropLine.Upsert(ctx, p))
	}
	require.NoError(t, f.repos.Prediction.Upsert(ctx, &models.Prediction{PropLineID: over.ID, ProbOver: 0.7, ModelVersionID: servedVersion, GeneratedAt: day(-2)}))
	require.NoError(t, f.repos.Prediction.Upsert(ctx, &models.Prediction{PropLineID: under.ID, ProbOver: 0.6, ModelVersionID: servedVersion, GeneratedAt: day(-4)}))

	d := NewDriftMonitor(f.repos.Prediction, f.model, new(MockPublisher), DriftConfig{LookbackDays: 14}, nullLogger())
	report, err := d.Evaluate(ctx, servedVersion, day(-14), gameDay)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Samples)
	assert.InDelta(t, 0.5, report.ActualHitRate, 1e-9)
	assert.InDelta(t, 1.0, report.PredictedHitRate, 1e-9)
	assert.InDelta(t, 0.5, report.Accuracy, 1e-9)
	assert.InDelta(t, (0.09+0.36)/2, report.BrierScore, 1e-9)

	other, err := d.Evaluate(ctx, "v-unknown", day(-14), gameDay)
	require.NoError(t, err)
	assert.Equal(t, 0, other.Samples)
}
