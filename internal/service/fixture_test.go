package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/propcast/internal/features"
	"github.com/yourusername/propcast/internal/ml"
	"github.com/yourusername/propcast/internal/models"
	"github.com/yourusername/propcast/internal/repository"
)

var gameDay = time.Date(2025, 4, 18, 0, 0, 0, 0, time.UTC)

func day(offset int) time.Time {
	return gameDay.AddDate(0, 0, offset)
}

func nullLogger() *logrus.Logger {
	log, _ := test.NewNullLogger()
	return log
}

// fixture seeds LeBron James (id 7, five prior games averaging 30.2) with a
// 32.5 line on gameDay at home against GSW, and a rookie with no history.
type fixture struct {
	store  *repository.MemoryStore
	repos  *repository.Repositories
	real   *features.Builder
	model  *staticModel
	lebron *models.PropLine
	rookie *models.PropLine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore()
	repos := store.Repositories()

	players := []*models.Player{
		{ID: 7, ExternalID: "2544", FullName: "LeBron James", Team: "LAL"},
		{ID: 8, ExternalID: "201939", FullName: "Stephen Curry", Team: "GSW"},
		{ID: 9, ExternalID: "1642000", FullName: "Rookie Guard", Team: "LAL"},
	}
	for _, p := range players {
		require.NoError(t, repos.Player.Upsert(ctx, p))
	}

	tip := day(0).Add(26 * time.Hour)
	require.NoError(t, repos.Game.Upsert(ctx, &models.Game{GameDate: day(0), HomeTeam: "LAL", AwayTeam: "GSW", StartsAt: &tip}))

	for i, pts := range []int{35, 33, 31, 27, 25} {
		date := day(-2 * (i + 1))
		require.NoError(t, repos.PlayerStat.Insert(ctx, &models.PlayerStat{
			PlayerID: 7, GameDate: date, Team: "LAL", Opponent: "DEN", Points: pts, Minutes: 36, Rebounds: 7, Assists: 8,
		}))
	}
	for i, pts := range []int{28, 22, 30} {
		require.NoError(t, repos.PlayerStat.Insert(ctx, &models.PlayerStat{
			PlayerID: 8, GameDate: day(-3 * (i + 1)), Team: "GSW", Opponent: "SAC", Points: pts, Minutes: 34,
		}))
	}

	season := models.SeasonFor(gameDay)
	for team, rating := range map[string]float64{"BOS": 110.5, "DEN": 115.5} {
		require.NoError(t, repos.TeamDefense.Upsert(ctx, &models.TeamDefense{Team: team, Season: season, DefensiveRating: rating}))
	}

	lebron := &models.PropLine{PlayerID: 7, GameDate: day(0), Line: decimal.RequireFromString("32.5"), Sportsbook: "draftkings", FetchedAt: day(0).Add(9 * time.Hour)}
	curry := &models.PropLine{PlayerID: 8, GameDate: day(0), Line: decimal.RequireFromString("26.5"), Sportsbook: "draftkings", FetchedAt: day(0).Add(9 * time.Hour)}
	rookie := &models.PropLine{PlayerID: 9, GameDate: day(0), Line: decimal.RequireFromString("8.5"), Sportsbook: "fanduel", FetchedAt: day(0).Add(9 * time.Hour)}
	for _, p := range []*models.PropLine{lebron, curry, rookie} {
		require.NoError(t, repos.PropLine.Upsert(ctx, p))
	}

	pred, err := ml.NewCalibratedPredictor(testArtifact("v20250401T000000.000000", features.Columns))
	require.NoError(t, err)

	return &fixture{
		store:  store,
		repos:  repos,
		real:   features.NewBuilder(repos.PlayerStat, repos.Game, repos.TeamDefense, features.DefaultOptions(), nullLogger()),
		model:  &staticModel{predictor: pred},
		lebron: lebron,
		rookie: rookie,
	}
}

func (f *fixture) orchestrator(builder FeatureBuilder, locker Locker, cfg OrchestratorConfig) *Orchestrator {
	return NewOrchestrator(
		f.repos.PropLine,
		f.repos.Prediction,
		builder,
		f.model,
		ml.NewPredictionCache(time.Minute, 100),
		locker,
		cfg,
		nullLogger(),
	)
}

func testConfig() OrchestratorConfig {
	return OrchestratorConfig{
		WaitTimeout:       2 * time.Second,
		GenerationTimeout: 5 * time.Second,
		LockTTL:           5 * time.Second,
	}
}

func testArtifact(versionID string, columns []string) *ml.Artifact {
	weights := make([]float64, len(columns))
	means := make([]float64, len(columns))
	scales := make([]float64, len(columns))
	for i := range columns {
		weights[i] = 0.1
		means[i] = 20
		scales[i] = 10
	}
	if len(columns) == len(features.Columns) {
		// avg_points_last_5 up, line_minus_avg down
		weights[0], weights[4] = 0.8, -1.2
	}
	counts := make([]int, ml.DefaultBucketCount)
	for i := range counts {
		counts[i] = 30 + 10*i
	}
	return &ml.Artifact{
		VersionID:      versionID,
		FeatureColumns: append([]string(nil), columns...),
		Model:          ml.LogisticModel{Weights: weights, Bias: -0.2, Means: means, Scales: scales},
		Calibration: ml.Calibration{
			Method:   "isotonic",
			Isotonic: &ml.IsotonicCalibrator{X: []float64{0.05, 0.5, 0.95}, Y: []float64{0.1, 0.48, 0.9}},
			Buckets:  ml.ConfidenceBuckets{Counts: counts},
		},
		Metrics:   ml.EvaluationMetrics{ROCAUC: 0.64, Brier: 0.235, CalibratedBrier: 0.231, Folds: 5, Samples: 500},
		CreatedAt: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
	}
}

type staticModel struct {
	mu        sync.Mutex
	predictor *ml.CalibratedPredictor
	err       error
}

func (s *staticModel) Current() (*ml.CalibratedPredictor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.predictor, nil
}

// countingBuilder counts Build calls and optionally holds each call until gate closes
type countingBuilder struct {
	inner   FeatureBuilder
	calls   atomic.Int32
	gate    chan struct{}
	started chan struct{}
	once    sync.Once
}

func newCountingBuilder(inner FeatureBuilder, gated bool) *countingBuilder {
	b := &countingBuilder{inner: inner, started: make(chan struct{})}
	if gated {
		b.gate = make(chan struct{})
	}
	return b
}

func (b *countingBuilder) Build(ctx context.Context, prop *models.PropLine, columns []string) (*features.Vector, error) {
	b.calls.Add(1)
	b.once.Do(func() { close(b.started) })
	if b.gate != nil {
		<-b.gate
	}
	return b.inner.Build(ctx, prop, columns)
}

func (b *countingBuilder) open() {
	close(b.gate)
}
