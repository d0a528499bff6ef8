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

const playerStatColumns = `id, player_id, game_id, game_date, team, opponent, is_home, minutes, points,
	rebounds, assists, steals, blocks, turnovers, field_goals_attempted, field_goal_pct,
	three_pointers_attempted, free_throws_attempted, plus_minus`

// PostgresPlayerStatRepository implements PlayerStatRepository for PostgreSQL
type PostgresPlayerStatRepository struct {
	db *database.DB
}

// NewPostgresPlayerStatRepository creates a new box score repository
func NewPostgresPlayerStatRepository(db *database.DB) PlayerStatRepository {
	return &PostgresPlayerStatRepository{db: db}
}

// Insert appends a box score. A row for the same player and game is left untouched.
func (r *PostgresPlayerStatRepository) Insert(ctx context.Context, s *models.PlayerStat) error {
	query := `
		INSERT INTO player_stats (player_id, game_id, game_date, team, opponent, is_home, minutes, points,
			rebounds, assists, steals, blocks, turnovers, field_goals_attempted, field_goal_pct,
			three_pointers_attempted, free_throws_attempted, plus_minus)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (player_id, game_id) DO NOTHING
		RETURNING id
	`

	err := r.db.GetPool().QueryRow(ctx, query,
		s.PlayerID, s.GameID, s.GameDate, s.Team, s.Opponent, s.IsHome, s.Minutes, s.Points,
		s.Rebounds, s.Assists, s.Steals, s.Blocks, s.Turnovers, s.FieldGoalsAttempted, s.FieldGoalPct,
		s.ThreePointersAttempted, s.FreeThrowsAttempted, s.PlusMinus,
	).Scan(&s.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("failed to insert player stat: %w", err)
	}

	return nil
}

// GetRecent returns up to limit rows strictly before the date, newest first
func (r *PostgresPlayerStatRepository) GetRecent(ctx context.Context, playerID int64, before time.Time, limit int) ([]*models.PlayerStat, error) {
	query := `
		SELECT ` + playerStatColumns + `
		FROM player_stats
		WHERE player_id = $1 AND game_date < $2
		ORDER BY game_date DESC
		LIMIT $3
	`

	return r.query(ctx, query, playerID, before, limit)
}

// GetRange returns rows with from <= game_date < before, oldest first
func (r *PostgresPlayerStatRepository) GetRange(ctx context.Context, playerID int64, from, before time.Time) ([]*models.PlayerStat, error) {
	query := `
		SELECT ` + playerStatColumns + `
		FROM player_stats
		WHERE player_id = $1 AND game_date >= $2 AND game_date < $3
		ORDER BY game_date ASC
	`

	return r.query(ctx, query, playerID, from, before)
}

func (r *PostgresPlayerStatRepository) query(ctx context.Context, query string, args ...interface{}) ([]*models.PlayerStat, error) {
	rows, err := r.db.GetPool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query player stats: %w", err)
	}
	defer rows.Close()

	var stats []*models.PlayerStat
	for rows.Next() {
		s := &models.PlayerStat{}
		err := rows.Scan(
			&s.ID, &s.PlayerID, &s.GameID, &s.GameDate, &s.Team, &s.Opponent, &s.IsHome, &s.Minutes, &s.Points,
			&s.Rebounds, &s.Assists, &s.Steals, &s.Blocks, &s.Turnovers, &s.FieldGoalsAttempted, &s.FieldGoalPct,
			&s.ThreePointersAttempted, &s.FreeThrowsAttempted, &s.PlusMinus,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player stat: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}
