package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/propcast/internal/features"
	"github.com/yourusername/propcast/internal/ml"
	"github.com/yourusername/propcast/internal/models"
	"github.com/yourusername/propcast/internal/registry"
	"github.com/yourusername/propcast/internal/repository"
)

// seedSeason adds a player with one game a day over [day(-60), day(-1)] and a
// 20.5 line on every game
func seedSeason(t *testing.T, store *repository.MemoryStore) {
	t.Helper()
	ctx := context.Background()
	repos := store.Repositories()

	require.NoError(t, repos.Player.Upsert(ctx, &models.Player{ID: 20, ExternalID: "1628369", FullName: "Jalen Brunson", Team: "NYK"}))
	require.NoError(t, repos.TeamDefense.Upsert(ctx, &models.TeamDefense{Team: "BOS", Season: models.SeasonFor(gameDay), DefensiveRating: 109}))

	for i := 0; i < 60; i++ {
		date := day(-60 + i)
		home, away := "NYK", "BOS"
		if i%2 == 1 {
			home, away = away, home
		}
		require.NoError(t, repos.Game.Upsert(ctx, &models.Game{GameDate: date, HomeTeam: home, AwayTeam: away}))
		require.NoError(t, repos.PlayerStat.Insert(ctx, &models.PlayerStat{
			PlayerID: 20, GameDate: date, Team: "NYK", Opponent: "BOS", Points: 12 + (i*7)%17, Minutes: 34,
		}))
		require.NoError(t, repos.PropLine.Upsert(ctx, &models.PropLine{
			PlayerID: 20, GameDate: date, Line: decimal.RequireFromString("20.5"), Sportsbook: "draftkings", FetchedAt: date.Add(9 * time.Hour),
		}))
	}
}

func newTrainingService(t *testing.T) (*TrainingService, *registry.Registry, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	seedSeason(t, store)
	repos := store.Repositories()

	fs, err := registry.NewFileStore(t.TempDir())
	require.NoError(t, err)
	reg := registry.New(fs, nullLogger())

	builder := features.NewBuilder(repos.PlayerStat, repos.Game, repos.TeamDefense, features.DefaultOptions(), nullLogger())
	trainer := ml.NewTrainer(ml.DefaultTrainerConfig(), nullLogger())
	return NewTrainingService(repos.PropLine, builder, trainer, reg, nullLogger()), reg, store
}

func TestBuildExamplesSkipsFirstGame(t *testing.T) {
	svc, _, _ := newTrainingService(t)

	examples, skipped, err := svc.BuildExamples(context.Background(), day(-60), day(-1))
	require.NoError(t, err)

	assert.Equal(t, 1, skipped)
	require.Len(t, examples, 59)
	var overs float64
	for _, ex := range examples {
		assert.Len(t, ex.Features, len(features.Columns))
		overs += ex.Label
	}
	assert.Greater(t, overs, 0.0)
	assert.Less(t, overs, 59.0)
}

func TestTrainAndPublishServesNewModel(t *testing.T) {
	svc, reg, _ := newTrainingService(t)
	ctx := context.Background()

	_, err := reg.Current()
	require.True(t, errors.Is(err, models.ErrModelNotLoaded))

	artifact, err := svc.TrainAndPublish(ctx, day(-60), day(-1))
	require.NoError(t, err)
	assert.NotEmpty(t, artifact.VersionID)
	assert.Equal(t, features.Columns, artifact.FeatureColumns)
	assert.Equal(t, 59, artifact.Metrics.Samples)

	current, err := reg.Current()
	require.NoError(t, err)
	assert.Equal(t, artifact.VersionID, current.VersionID())

	versions, err := reg.Versions(ctx)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.True(t, versions[0].IsLatest)
}

func TestTrainRejectsEmptyWindow(t *testing.T) {
	svc, _, _ := newTrainingService(t)

	_, err := svc.Train(context.Background(), day(10), day(20))
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestTrainedModelScoresTodaysProp(t *testing.T) {
	svc, reg, store := newTrainingService(t)
	ctx := context.Background()
	repos := store.Repositories()

	_, err := svc.TrainAndPublish(ctx, day(-60), day(-1))
	require.NoError(t, err)

	require.NoError(t, repos.Game.Upsert(ctx, &models.Game{GameDate: gameDay, HomeTeam: "NYK", AwayTeam: "MIA"}))
	require.NoError(t, repos.PropLine.Upsert(ctx, &models.PropLine{PlayerID: 20, GameDate: gameDay, Line: decimal.RequireFromString("21.5"), Sportsbook: "fanduel", FetchedAt: gameDay}))

	builder := features.NewBuilder(repos.PlayerStat, repos.Game, repos.TeamDefense, features.DefaultOptions(), nullLogger())
	orch := NewOrchestrator(repos.PropLine, repos.Prediction, builder, reg, ml.NewPredictionCache(time.Minute, 10), NewLocalLocker(), testConfig(), nullLogger())

	res, err := orch.GetOrGenerate(ctx, 20, gameDay)
	require.NoError(t, err)
	current, _ := reg.Current()
	assert.Equal(t, current.VersionID(), res.Prediction.ModelVersionID)
	assert.GreaterOrEqual(t, res.Prediction.ProbOver, 0.0)
	assert.LessOrEqual(t, res.Prediction.ProbOver, 1.0)
}
