// Package features turns stored box scores and a prop line into model inputs.
package features

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/propcast/internal/models"
)

// Feature column names, in the order the builder emits them
const (
	ColAvgPointsLast5 = "avg_points_last_5"
	ColStdPointsLast5 = "std_points_last_5"
	ColSampleSize     = "sample_size"
	ColPropLine       = "prop_line"
	ColLineMinusAvg   = "line_minus_avg"
	ColOppDefRating   = "opp_def_rating"
	ColDaysOfRest     = "days_of_rest"
	ColHomeVsAway     = "home_vs_away"
)

// Columns is the builder's output schema
var Columns = []string{
	ColAvgPointsLast5,
	ColStdPointsLast5,
	ColSampleSize,
	ColPropLine,
	ColLineMinusAvg,
	ColOppDefRating,
	ColDaysOfRest,
	ColHomeVsAway,
}

// StatReader returns a player's box scores strictly before a date, newest first
type StatReader interface {
	GetRecent(ctx context.Context, playerID int64, before time.Time, limit int) ([]*models.PlayerStat, error)
}

// MatchupReader resolves the game a player appears in on a date
type MatchupReader interface {
	GetMatchup(ctx context.Context, playerID int64, date time.Time) (*models.Matchup, error)
}

// DefenseReader provides season defensive ratings
type DefenseReader interface {
	GetRating(ctx context.Context, team, season string) (float64, error)
	GetLeagueAverage(ctx context.Context, season string) (float64, error)
}

// Options tunes the builder
type Options struct {
	WindowSize            int
	RestClipDays          int
	LeagueAverageFallback float64
}

// DefaultOptions returns the production settings
func DefaultOptions() Options {
	return Options{
		WindowSize:            5,
		RestClipDays:          10,
		LeagueAverageFallback: 110,
	}
}

// Vector is an ordered feature vector
type Vector struct {
	Columns []string
	Values  []float64
}

// Get returns the value of a named column
func (v *Vector) Get(column string) (float64, bool) {
	for i, c := range v.Columns {
		if c == column {
			return v.Values[i], true
		}
	}
	return 0, false
}

// Map returns the vector keyed by column name
func (v *Vector) Map() map[string]float64 {
	m := make(map[string]float64, len(v.Columns))
	for i, c := range v.Columns {
		m[c] = v.Values[i]
	}
	return m
}

// Builder assembles feature vectors. It only reads from its sources.
type Builder struct {
	stats    StatReader
	matchups MatchupReader
	defense  DefenseReader
	opts     Options
	logger   *logrus.Logger
}

// NewBuilder creates a feature builder
func NewBuilder(stats StatReader, matchups MatchupReader, defense DefenseReader, opts Options, logger *logrus.Logger) *Builder {
	if opts.WindowSize <= 0 {
		opts.WindowSize = DefaultOptions().WindowSize
	}
	if opts.RestClipDays <= 0 {
		opts.RestClipDays = DefaultOptions().RestClipDays
	}
	if opts.LeagueAverageFallback <= 0 {
		opts.LeagueAverageFallback = DefaultOptions().LeagueAverageFallback
	}
	return &Builder{
		stats:    stats,
		matchups: matchups,
		defense:  defense,
		opts:     opts,
		logger:   logger,
	}
}

// CheckSchema fails with FeatureSchemaMismatchError unless columns equals the builder's output exactly
func CheckSchema(columns []string) error {
	if len(columns) != len(Columns) {
		return models.NewFeatureSchemaMismatchError(columns, Columns)
	}
	for i := range Columns {
		if columns[i] != Columns[i] {
			return models.NewFeatureSchemaMismatchError(columns, Columns)
		}
	}
	return nil
}

// Build produces the feature vector for prop, ordered by columns
func (b *Builder) Build(ctx context.Context, prop *models.PropLine, columns []string) (*Vector, error) {
	if err := CheckSchema(columns); err != nil {
		return nil, err
	}

	recent, err := b.stats.GetRecent(ctx, prop.PlayerID, prop.GameDate, b.opts.WindowSize)
	if err != nil {
		return nil, models.NewDatabaseError("get recent stats", err)
	}
	if len(recent) == 0 {
		return nil, models.NewInsufficientDataError(prop.PlayerID, "no games before "+prop.GameDate.Format("2006-01-02"))
	}

	matchup, err := b.matchups.GetMatchup(ctx, prop.PlayerID, prop.GameDate)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.NewInsufficientDataError(prop.PlayerID, "no scheduled game on "+prop.GameDate.Format("2006-01-02"))
	}
	if err != nil {
		return nil, models.NewDatabaseError("get matchup", err)
	}

	defRating, err := b.opponentRating(ctx, matchup.Opponent, models.SeasonFor(prop.GameDate))
	if err != nil {
		return nil, err
	}

	rolling := ComputeRollingPoints(recent)
	line := prop.LineFloat()
	home := 0.0
	if matchup.IsHome {
		home = 1.0
	}

	values := map[string]float64{
		ColAvgPointsLast5: rolling.Mean,
		ColStdPointsLast5: rolling.Std,
		ColSampleSize:     float64(rolling.SampleSize),
		ColPropLine:       line,
		ColLineMinusAvg:   line - rolling.Mean,
		ColOppDefRating:   defRating,
		ColDaysOfRest:     float64(DaysOfRest(recent[0].GameDate, prop.GameDate, b.opts.RestClipDays)),
		ColHomeVsAway:     home,
	}

	vec := &Vector{Columns: append([]string(nil), columns...), Values: make([]float64, len(columns))}
	for i, c := range columns {
		v, ok := values[c]
		if !ok {
			return nil, fmt.Errorf("feature %q has no value", c)
		}
		vec.Values[i] = v
	}
	return vec, nil
}

// opponentRating imputes the league average when the opponent has no rating
func (b *Builder) opponentRating(ctx context.Context, team, season string) (float64, error) {
	rating, err := b.defense.GetRating(ctx, team, season)
	if err == nil {
		return rating, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return 0, models.NewDatabaseError("get defensive rating", err)
	}

	avg, err := b.defense.GetLeagueAverage(ctx, season)
	if err == nil {
		b.logger.WithFields(logrus.Fields{
			"team":   team,
			"season": season,
			"rating": avg,
		}).Debug("Imputed league average defensive rating")
		return avg, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return 0, models.NewDatabaseError("get league average defensive rating", err)
	}

	b.logger.WithFields(logrus.Fields{
		"team":   team,
		"season": season,
		"rating": b.opts.LeagueAverageFallback,
	}).Warn("No defensive ratings for season, using fallback league average")
	return b.opts.LeagueAverageFallback, nil
}
