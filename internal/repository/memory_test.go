package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/propcast/internal/models"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestMemoryPlayerUpsertKeepsIdentity(t *testing.T) {
	repos := NewMemoryRepositories()
	ctx := context.Background()

	p := &models.Player{ExternalID: "2544", FullName: "LeBron James", Team: "CLE"}
	require.NoError(t, repos.Player.Upsert(ctx, p))
	id := p.ID

	traded := &models.Player{ExternalID: "2544", FullName: "L. James", Team: "LAL"}
	require.NoError(t, repos.Player.Upsert(ctx, traded))

	assert.Equal(t, id, traded.ID)
	got, err := repos.Player.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "LeBron James", got.FullName, "name is immutable")
	assert.Equal(t, "LAL", got.Team)

	_, err = repos.Player.GetByID(ctx, 999)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryPlayerUpsertRequiresExternalID(t *testing.T) {
	repos := NewMemoryRepositories()
	ctx := context.Background()

	first := &models.Player{FullName: "LeBron James", Team: "LAL"}
	err := repos.Player.Upsert(ctx, first)
	assert.True(t, errors.Is(err, models.ErrValidation))

	second := &models.Player{ExternalID: "  ", FullName: "Rookie Guard", Team: "LAL"}
	err = repos.Player.Upsert(ctx, second)
	assert.True(t, errors.Is(err, models.ErrValidation))
	assert.Equal(t, "Rookie Guard", second.FullName, "rejected player must not be overwritten")

	players, err := repos.Player.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, players)
}

func TestMemoryPlayersWithDistinctExternalIDsStaySeparate(t *testing.T) {
	repos := NewMemoryRepositories()
	ctx := context.Background()

	lebron := &models.Player{ID: 7, ExternalID: "2544", FullName: "LeBron James", Team: "LAL"}
	rookie := &models.Player{ID: 9, ExternalID: "1642000", FullName: "Rookie Guard", Team: "LAL"}
	require.NoError(t, repos.Player.Upsert(ctx, lebron))
	require.NoError(t, repos.Player.Upsert(ctx, rookie))

	assert.Equal(t, int64(9), rookie.ID)
	assert.Equal(t, "Rookie Guard", rookie.FullName)
	got, err := repos.Player.GetByID(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, "Rookie Guard", got.FullName)

	players, err := repos.Player.List(ctx)
	require.NoError(t, err)
	assert.Len(t, players, 2)
}

func TestMemoryMatchup(t *testing.T) {
	repos := NewMemoryRepositories()
	ctx := context.Background()

	p := &models.Player{ExternalID: "1", FullName: "Jayson Tatum", Team: "BOS"}
	require.NoError(t, repos.Player.Upsert(ctx, p))
	require.NoError(t, repos.Game.Upsert(ctx, &models.Game{GameDate: day("2025-01-10"), HomeTeam: "NYK", AwayTeam: "BOS"}))

	m, err := repos.Game.GetMatchup(ctx, p.ID, day("2025-01-10"))
	require.NoError(t, err)
	assert.Equal(t, "NYK", m.Opponent)
	assert.False(t, m.IsHome)

	_, err = repos.Game.GetMatchup(ctx, p.ID, day("2025-01-11"))
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryGameUniqueness(t *testing.T) {
	repos := NewMemoryRepositories()
	ctx := context.Background()

	g1 := &models.Game{GameDate: day("2025-01-10"), HomeTeam: "NYK", AwayTeam: "BOS"}
	g2 := &models.Game{GameDate: day("2025-01-10"), HomeTeam: "NYK", AwayTeam: "BOS"}
	require.NoError(t, repos.Game.Upsert(ctx, g1))
	require.NoError(t, repos.Game.Upsert(ctx, g2))

	assert.Equal(t, g1.ID, g2.ID)
	games, err := repos.Game.GetByDate(ctx, day("2025-01-10"))
	require.NoError(t, err)
	assert.Len(t, games, 1)
}

func TestMemoryRecentStatsStrictlyBefore(t *testing.T) {
	repos := NewMemoryRepositories()
	ctx := context.Background()

	for i, d := range []string{"2025-01-01", "2025-01-03", "2025-01-05", "2025-01-07"} {
		require.NoError(t, repos.PlayerStat.Insert(ctx, &models.PlayerStat{
			PlayerID: 1, GameID: int64(i + 1), GameDate: day(d), Points: 10 + i,
		}))
	}

	err := repos.PlayerStat.Insert(ctx, &models.PlayerStat{PlayerID: 1, GameID: 1, GameDate: day("2025-01-01")})
	assert.ErrorIs(t, err, models.ErrDuplicateKey)

	recent, err := repos.PlayerStat.GetRecent(ctx, 1, day("2025-01-07"), 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, day("2025-01-05"), recent[0].GameDate)
	assert.Equal(t, day("2025-01-03"), recent[1].GameDate)

	season, err := repos.PlayerStat.GetRange(ctx, 1, day("2025-01-02"), day("2025-01-07"))
	require.NoError(t, err)
	assert.Len(t, season, 2)
}

func TestMemoryLeagueAverage(t *testing.T) {
	repos := NewMemoryRepositories()
	ctx := context.Background()

	_, err := repos.TeamDefense.GetLeagueAverage(ctx, "2024-25")
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, repos.TeamDefense.Upsert(ctx, &models.TeamDefense{Team: "BOS", Season: "2024-25", DefensiveRating: 110}))
	require.NoError(t, repos.TeamDefense.Upsert(ctx, &models.TeamDefense{Team: "NYK", Season: "2024-25", DefensiveRating: 114}))
	require.NoError(t, repos.TeamDefense.Upsert(ctx, &models.TeamDefense{Team: "NYK", Season: "2023-24", DefensiveRating: 120}))

	avg, err := repos.TeamDefense.GetLeagueAverage(ctx, "2024-25")
	require.NoError(t, err)
	assert.Equal(t, 112.0, avg)
}

func TestMemoryPropLineSelection(t *testing.T) {
	repos := NewMemoryRepositories()
	ctx := context.Background()
	base := time.Date(2025, 4, 18, 12, 0, 0, 0, time.UTC)

	dk := &models.PropLine{PlayerID: 7, GameDate: day("2025-04-18"), Line: decimal.RequireFromString("31.5"), Sportsbook: "draftkings", FetchedAt: base}
	fd := &models.PropLine{PlayerID: 7, GameDate: day("2025-04-18"), Line: decimal.RequireFromString("32.5"), Sportsbook: "fanduel", FetchedAt: base.Add(time.Hour)}
	require.NoError(t, repos.PropLine.Upsert(ctx, dk))
	require.NoError(t, repos.PropLine.Upsert(ctx, fd))

	latest, err := repos.PropLine.GetLatestForPlayerDate(ctx, 7, day("2025-04-18"))
	require.NoError(t, err)
	assert.Equal(t, fd.ID, latest.ID)

	refetch := &models.PropLine{PlayerID: 7, GameDate: day("2025-04-18"), Line: decimal.RequireFromString("30.5"), Sportsbook: "draftkings", FetchedAt: base.Add(2 * time.Hour)}
	require.NoError(t, repos.PropLine.Upsert(ctx, refetch))
	assert.Equal(t, dk.ID, refetch.ID, "same key updates in place")

	latest, err = repos.PropLine.GetLatestForPlayerDate(ctx, 7, day("2025-04-18"))
	require.NoError(t, err)
	assert.Equal(t, dk.ID, latest.ID)
	assert.True(t, latest.Line.Equal(decimal.RequireFromString("30.5")))

	listed, err := repos.PropLine.ListByDate(ctx, day("2025-04-18"))
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, dk.ID, listed[0].ID)

	_, err = repos.PropLine.GetLatestForPlayerDate(ctx, 8, day("2025-04-18"))
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryPredictionUpsertReplaces(t *testing.T) {
	store := NewMemoryStore()
	repos := store.Repositories()
	ctx := context.Background()

	first := &models.Prediction{PropLineID: 5, ProbOver: 0.4, ModelVersionID: "a"}
	require.NoError(t, repos.Prediction.Upsert(ctx, first))
	second := &models.Prediction{PropLineID: 5, ProbOver: 0.6, ModelVersionID: "b"}
	require.NoError(t, repos.Prediction.Upsert(ctx, second))

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, store.PredictionCount())

	got, err := repos.Prediction.GetByPropLineID(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 0.6, got.ProbOver)
	assert.Equal(t, "b", got.ModelVersionID)
}

func TestMemoryOutcomesAndSettled(t *testing.T) {
	repos := NewMemoryRepositories()
	ctx := context.Background()

	over := &models.PropLine{PlayerID: 1, GameDate: day("2025-03-01"), Line: decimal.RequireFromString("20.5"), Sportsbook: "dk"}
	under := &models.PropLine{PlayerID: 2, GameDate: day("2025-03-01"), Line: decimal.RequireFromString("20.5"), Sportsbook: "dk"}
	pending := &models.PropLine{PlayerID: 3, GameDate: day("2025-03-02"), Line: decimal.RequireFromString("10.5"), Sportsbook: "dk"}
	for _, p := range []*models.PropLine{over, under, pending} {
		require.NoError(t, repos.PropLine.Upsert(ctx, p))
		require.NoError(t, repos.Prediction.Upsert(ctx, &models.Prediction{PropLineID: p.ID, ProbOver: 0.5, ModelVersionID: "v"}))
	}
	require.NoError(t, repos.PlayerStat.Insert(ctx, &models.PlayerStat{PlayerID: 1, GameID: 1, GameDate: day("2025-03-01"), Points: 21}))
	require.NoError(t, repos.PlayerStat.Insert(ctx, &models.PlayerStat{PlayerID: 2, GameID: 1, GameDate: day("2025-03-01"), Points: 20}))

	outcomes, err := repos.Prediction.GetOutcomes(ctx, day("2025-02-01"), day("2025-03-05"))
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].WentOver)
	assert.False(t, outcomes[1].WentOver)

	settled, err := repos.PropLine.ListSettled(ctx, day("2025-03-01"), day("2025-03-02"))
	require.NoError(t, err)
	require.Len(t, settled, 2)
	assert.Equal(t, 21, settled[0].Points)
	assert.Equal(t, 20, settled[1].Points)
}

func TestMemoryPlayerSeededID(t *testing.T) {
	repos := NewMemoryRepositories()
	ctx := context.Background()

	seeded := &models.Player{ID: 7, ExternalID: "2544", FullName: "LeBron James", Team: "LAL"}
	require.NoError(t, repos.Player.Upsert(ctx, seeded))
	assert.Equal(t, int64(7), seeded.ID)

	next := &models.Player{ExternalID: "201939", FullName: "Stephen Curry", Team: "GSW"}
	require.NoError(t, repos.Player.Upsert(ctx, next))
	assert.Greater(t, next.ID, int64(7))
}
