package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/yourusername/propcast/internal/database"
	"github.com/yourusername/propcast/internal/models"
)

// PostgresGameRepository implements GameRepository for PostgreSQL
type PostgresGameRepository struct {
	db *database.DB
}

// NewPostgresGameRepository creates a new game repository
func NewPostgresGameRepository(db *database.DB) GameRepository {
	return &PostgresGameRepository{db: db}
}

// Upsert inserts a game or refreshes its tip-off time
func (r *PostgresGameRepository) Upsert(ctx context.Context, game *models.Game) error {
	query := `
		INSERT INTO games (game_date, home_team, away_team, starts_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (game_date, home_team, away_team)
		DO UPDATE SET starts_at = COALESCE(EXCLUDED.starts_at, games.starts_at)
		RETURNING id
	`

	err := r.db.GetPool().QueryRow(ctx, query, game.GameDate, game.HomeTeam, game.AwayTeam, game.StartsAt).Scan(&game.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert game: %w", err)
	}

	return nil
}

// GetByDate returns the games scheduled on a date
func (r *PostgresGameRepository) GetByDate(ctx context.Context, date time.Time) ([]*models.Game, error) {
	query := `
		SELECT id, game_date, home_team, away_team, starts_at
		FROM games
		WHERE game_date = $1
		ORDER BY starts_at ASC NULLS LAST, id ASC
	`

	rows, err := r.db.GetPool().Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %w", err)
	}
	defer rows.Close()

	var games []*models.Game
	for rows.Next() {
		g := &models.Game{}
		if err := rows.Scan(&g.ID, &g.GameDate, &g.HomeTeam, &g.AwayTeam, &g.StartsAt); err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, g)
	}

	return games, rows.Err()
}

// GetMatchup resolves the game the player's current team plays on date
func (r *PostgresGameRepository) GetMatchup(ctx context.Context, playerID int64, date time.Time) (*models.Matchup, error) {
	query := `
		SELECT g.id, g.game_date, g.home_team, g.away_team, g.starts_at, p.team
		FROM players p
		JOIN games g ON g.game_date = $2 AND (g.home_team = p.team OR g.away_team = p.team)
		WHERE p.id = $1
		LIMIT 1
	`

	g := &models.Game{}
	var team string
	err := r.db.GetPool().QueryRow(ctx, query, playerID, date).Scan(
		&g.ID, &g.GameDate, &g.HomeTeam, &g.AwayTeam, &g.StartsAt, &team,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get matchup: %w", err)
	}

	return &models.Matchup{
		Game:     g,
		Team:     team,
		Opponent: g.Opponent(team),
		IsHome:   g.HomeTeam == team,
	}, nil
}
