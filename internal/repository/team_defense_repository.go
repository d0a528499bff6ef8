package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/yourusername/propcast/internal/database"
	"github.com/yourusername/propcast/internal/models"
)

// PostgresTeamDefenseRepository implements TeamDefenseRepository for PostgreSQL
type PostgresTeamDefenseRepository struct {
	db *database.DB
}

// NewPostgresTeamDefenseRepository creates a new defensive rating repository
func NewPostgresTeamDefenseRepository(db *database.DB) TeamDefenseRepository {
	return &PostgresTeamDefenseRepository{db: db}
}

// Upsert writes a team's season rating
func (r *PostgresTeamDefenseRepository) Upsert(ctx context.Context, d *models.TeamDefense) error {
	query := `
		INSERT INTO team_defense (team, season, defensive_rating)
		VALUES ($1, $2, $3)
		ON CONFLICT (team, season) DO UPDATE SET defensive_rating = EXCLUDED.defensive_rating
	`

	if _, err := r.db.GetPool().Exec(ctx, query, d.Team, d.Season, d.DefensiveRating); err != nil {
		return fmt.Errorf("failed to upsert team defense: %w", err)
	}

	return nil
}

// GetRating returns a team's season rating or models.ErrNotFound
func (r *PostgresTeamDefenseRepository) GetRating(ctx context.Context, team, season string) (float64, error) {
	query := `SELECT defensive_rating FROM team_defense WHERE team = $1 AND season = $2`

	var rating float64
	err := r.db.GetPool().QueryRow(ctx, query, team, season).Scan(&rating)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, models.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get defensive rating: %w", err)
	}

	return rating, nil
}

// GetLeagueAverage averages every team's rating for the season, models.ErrNotFound when none exist
func (r *PostgresTeamDefenseRepository) GetLeagueAverage(ctx context.Context, season string) (float64, error) {
	query := `SELECT AVG(defensive_rating) FROM team_defense WHERE season = $1`

	var avg *float64
	if err := r.db.GetPool().QueryRow(ctx, query, season).Scan(&avg); err != nil {
		return 0, fmt.Errorf("failed to get league average defensive rating: %w", err)
	}
	if avg == nil {
		return 0, models.ErrNotFound
	}

	return *avg, nil
}
