package repository

import (
	"context"
	"time"

	"github.com/yourusername/propcast/internal/models"
)

// PlayerRepository defines the interface for player data access
type PlayerRepository interface {
	Upsert(ctx context.Context, player *models.Player) error
	GetByID(ctx context.Context, id int64) (*models.Player, error)
	List(ctx context.Context) ([]*models.Player, error)
}

// GameRepository defines the interface for game schedule access
type GameRepository interface {
	Upsert(ctx context.Context, game *models.Game) error
	GetByDate(ctx context.Context, date time.Time) ([]*models.Game, error)
	GetMatchup(ctx context.Context, playerID int64, date time.Time) (*models.Matchup, error)
}

// PlayerStatRepository defines the interface for box score access. Rows are append-only.
type PlayerStatRepository interface {
	Insert(ctx context.Context, stat *models.PlayerStat) error
	GetRecent(ctx context.Context, playerID int64, before time.Time, limit int) ([]*models.PlayerStat, error)
	GetRange(ctx context.Context, playerID int64, from, before time.Time) ([]*models.PlayerStat, error)
}

// TeamDefenseRepository defines the interface for defensive rating access
type TeamDefenseRepository interface {
	Upsert(ctx context.Context, defense *models.TeamDefense) error
	GetRating(ctx context.Context, team, season string) (float64, error)
	GetLeagueAverage(ctx context.Context, season string) (float64, error)
}

// PropLineRepository defines the interface for prop line access
type PropLineRepository interface {
	Upsert(ctx context.Context, prop *models.PropLine) error
	GetByID(ctx context.Context, id int64) (*models.PropLine, error)
	// GetLatestForPlayerDate returns the most recently fetched line across sportsbooks
	GetLatestForPlayerDate(ctx context.Context, playerID int64, date time.Time) (*models.PropLine, error)
	// ListByDate returns one line per player, the most recently fetched
	ListByDate(ctx context.Context, date time.Time) ([]*models.PropLine, error)
	// ListSettled returns the latest line per player and date in [from, to] whose game has a box score
	ListSettled(ctx context.Context, from, to time.Time) ([]*models.SettledProp, error)
}

// PredictionRepository defines the interface for prediction access
type PredictionRepository interface {
	// Upsert writes the single prediction for its prop line, replacing any earlier one
	Upsert(ctx context.Context, prediction *models.Prediction) error
	GetByPropLineID(ctx context.Context, propLineID int64) (*models.Prediction, error)
	// GetOutcomes returns predictions for games in [from, to) that have a realized result
	GetOutcomes(ctx context.Context, from, to time.Time) ([]*models.PredictionOutcome, error)
}
