package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/yourusername/propcast/internal/database"
	"github.com/yourusername/propcast/internal/models"
)

// PostgresPlayerRepository implements PlayerRepository for PostgreSQL
type PostgresPlayerRepository struct {
	db *database.DB
}

// NewPostgresPlayerRepository creates a new player repository
func NewPostgresPlayerRepository(db *database.DB) PlayerRepository {
	return &PostgresPlayerRepository{db: db}
}

// Upsert inserts a player on first sighting. Later sightings only update the team.
func (r *PostgresPlayerRepository) Upsert(ctx context.Context, player *models.Player) error {
	if strings.TrimSpace(player.ExternalID) == "" {
		return models.NewValidationError("player external_id is required")
	}

	query := `
		INSERT INTO players (external_id, full_name, team)
		VALUES ($1, $2, $3)
		ON CONFLICT (external_id) DO UPDATE SET team = EXCLUDED.team, updated_at = NOW()
		RETURNING id, full_name, created_at, updated_at
	`

	err := r.db.GetPool().QueryRow(ctx, query, player.ExternalID, player.FullName, player.Team).Scan(
		&player.ID, &player.FullName, &player.CreatedAt, &player.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert player: %w", err)
	}

	return nil
}

// GetByID retrieves a player by ID
func (r *PostgresPlayerRepository) GetByID(ctx context.Context, id int64) (*models.Player, error) {
	query := `
		SELECT id, external_id, full_name, team, created_at, updated_at
		FROM players WHERE id = $1
	`

	p := &models.Player{}
	err := r.db.GetPool().QueryRow(ctx, query, id).Scan(
		&p.ID, &p.ExternalID, &p.FullName, &p.Team, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}

	return p, nil
}

// List returns every player ordered by name
func (r *PostgresPlayerRepository) List(ctx context.Context) ([]*models.Player, error) {
	query := `
		SELECT id, external_id, full_name, team, created_at, updated_at
		FROM players
		ORDER BY full_name ASC, id ASC
	`

	rows, err := r.db.GetPool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query players: %w", err)
	}
	defer rows.Close()

	var players []*models.Player
	for rows.Next() {
		p := &models.Player{}
		if err := rows.Scan(&p.ID, &p.ExternalID, &p.FullName, &p.Team, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, p)
	}

	return players, rows.Err()
}
