package features

import (
	"context"
	"errors"
	"io"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/propcast/internal/models"
)

type fakeSource struct {
	stats     []*models.PlayerStat
	matchup   *models.Matchup
	ratings   map[string]float64
	league    float64
	hasLeague bool
	statsErr  error
}

func (f *fakeSource) GetRecent(ctx context.Context, playerID int64, before time.Time, limit int) ([]*models.PlayerStat, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	var out []*models.PlayerStat
	for _, s := range f.stats {
		if s.PlayerID == playerID && s.GameDate.Before(before) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameDate.After(out[j].GameDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeSource) GetMatchup(ctx context.Context, playerID int64, date time.Time) (*models.Matchup, error) {
	if f.matchup == nil {
		return nil, models.ErrNotFound
	}
	return f.matchup, nil
}

func (f *fakeSource) GetRating(ctx context.Context, team, season string) (float64, error) {
	if r, ok := f.ratings[team]; ok {
		return r, nil
	}
	return 0, models.ErrNotFound
}

func (f *fakeSource) GetLeagueAverage(ctx context.Context, season string) (float64, error) {
	if !f.hasLeague {
		return 0, models.ErrNotFound
	}
	return f.league, nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func statsFor(playerID int64, dates []string, points []int) []*models.PlayerStat {
	out := make([]*models.PlayerStat, len(dates))
	for i := range dates {
		out[i] = &models.PlayerStat{PlayerID: playerID, GameDate: day(dates[i]), Points: points[i]}
	}
	return out
}

func newTestBuilder(src *fakeSource) *Builder {
	return NewBuilder(src, src, src, DefaultOptions(), quietLogger())
}

func testProp(playerID int64, date, line string) *models.PropLine {
	return &models.PropLine{
		ID:         1,
		PlayerID:   playerID,
		GameDate:   day(date),
		Line:       decimal.RequireFromString(line),
		Sportsbook: "draftkings",
	}
}

func TestBuildFiveGameWindow(t *testing.T) {
	src := &fakeSource{
		stats: statsFor(7,
			[]string{"2025-04-06", "2025-04-08", "2025-04-10", "2025-04-13", "2025-04-16", "2025-03-01"},
			[]int{25, 27, 31, 33, 35, 60}),
		matchup:   &models.Matchup{Team: "LAL", Opponent: "DEN", IsHome: true},
		league:    114.2,
		hasLeague: true,
	}

	vec, err := newTestBuilder(src).Build(context.Background(), testProp(7, "2025-04-18", "32.5"), Columns)
	require.NoError(t, err)
	assert.Equal(t, Columns, vec.Columns)
	require.Len(t, vec.Values, len(Columns))

	m := vec.Map()
	assert.InDelta(t, 30.2, m[ColAvgPointsLast5], 1e-9)
	assert.InDelta(t, 4.147, m[ColStdPointsLast5], 1e-3)
	assert.Equal(t, 5.0, m[ColSampleSize])
	assert.Equal(t, 32.5, m[ColPropLine])
	assert.InDelta(t, 2.3, m[ColLineMinusAvg], 1e-9)
	assert.Equal(t, 114.2, m[ColOppDefRating])
	assert.Equal(t, 2.0, m[ColDaysOfRest])
	assert.Equal(t, 1.0, m[ColHomeVsAway])
}

func TestBuildUsesOnlyAvailableGames(t *testing.T) {
	src := &fakeSource{
		stats:   statsFor(3, []string{"2025-01-01", "2025-01-03"}, []int{10, 20}),
		matchup: &models.Matchup{Team: "BOS", Opponent: "NYK"},
		ratings: map[string]float64{"NYK": 111.5},
	}

	vec, err := newTestBuilder(src).Build(context.Background(), testProp(3, "2025-01-05", "14.5"), Columns)
	require.NoError(t, err)

	m := vec.Map()
	assert.Equal(t, 15.0, m[ColAvgPointsLast5])
	assert.InDelta(t, 7.0711, m[ColStdPointsLast5], 1e-4)
	assert.Equal(t, 2.0, m[ColSampleSize])
	assert.Equal(t, 111.5, m[ColOppDefRating])
	assert.Equal(t, 0.0, m[ColHomeVsAway])
}

func TestBuildSingleGameHasZeroStd(t *testing.T) {
	src := &fakeSource{
		stats:   statsFor(3, []string{"2024-12-01"}, []int{18}),
		matchup: &models.Matchup{Team: "BOS", Opponent: "NYK"},
	}

	vec, err := newTestBuilder(src).Build(context.Background(), testProp(3, "2025-01-05", "14.5"), Columns)
	require.NoError(t, err)

	m := vec.Map()
	assert.Equal(t, 0.0, m[ColStdPointsLast5])
	assert.Equal(t, 10.0, m[ColDaysOfRest], "rest is clipped")
	assert.Equal(t, 110.0, m[ColOppDefRating], "fallback league average")
}

func TestBuildNoPriorGames(t *testing.T) {
	src := &fakeSource{
		stats:   statsFor(3, []string{"2025-01-05"}, []int{18}),
		matchup: &models.Matchup{Team: "BOS", Opponent: "NYK"},
	}

	_, err := newTestBuilder(src).Build(context.Background(), testProp(3, "2025-01-05", "14.5"), Columns)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInsufficientData))
}

func TestBuildNoScheduledGame(t *testing.T) {
	src := &fakeSource{stats: statsFor(3, []string{"2025-01-01"}, []int{18})}

	_, err := newTestBuilder(src).Build(context.Background(), testProp(3, "2025-01-05", "14.5"), Columns)
	assert.ErrorIs(t, err, models.ErrInsufficientData)
}

func TestBuildStoreFailureIsDatabaseError(t *testing.T) {
	src := &fakeSource{statsErr: errors.New("connection reset")}

	_, err := newTestBuilder(src).Build(context.Background(), testProp(3, "2025-01-05", "14.5"), Columns)
	assert.ErrorIs(t, err, models.ErrDatabase)
	assert.Contains(t, err.Error(), "get recent stats")
}

func TestBuildSchemaMismatch(t *testing.T) {
	src := &fakeSource{
		stats:   statsFor(3, []string{"2025-01-01"}, []int{18}),
		matchup: &models.Matchup{Team: "BOS", Opponent: "NYK"},
	}
	b := newTestBuilder(src)

	reordered := append([]string(nil), Columns...)
	reordered[0], reordered[1] = reordered[1], reordered[0]

	cases := map[string][]string{
		"reordered": reordered,
		"short":     Columns[:len(Columns)-1],
		"extra":     append(append([]string(nil), Columns...), "minutes_avg"),
		"renamed":   append(append([]string(nil), Columns[:7]...), "is_home"),
	}
	for name, cols := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := b.Build(context.Background(), testProp(3, "2025-01-05", "14.5"), cols)
			assert.ErrorIs(t, err, models.ErrFeatureSchemaMismatch)
		})
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	src := &fakeSource{
		stats:   statsFor(9, []string{"2025-02-01", "2025-02-03", "2025-02-06"}, []int{22, 19, 30}),
		matchup: &models.Matchup{Team: "MIA", Opponent: "CHI", IsHome: true},
		ratings: map[string]float64{"CHI": 116.1},
	}
	b := newTestBuilder(src)
	prop := testProp(9, "2025-02-08", "23.5")

	first, err := b.Build(context.Background(), prop, Columns)
	require.NoError(t, err)
	second, err := b.Build(context.Background(), prop, Columns)
	require.NoError(t, err)
	assert.Equal(t, first.Values, second.Values)
}
