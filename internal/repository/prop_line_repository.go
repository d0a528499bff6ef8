package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/yourusername/propcast/internal/database"
	"github.com/yourusername/propcast/internal/models"
)

// PostgresPropLineRepository implements PropLineRepository for PostgreSQL
type PostgresPropLineRepository struct {
	db *database.DB
}

// NewPostgresPropLineRepository creates a new prop line repository
func NewPostgresPropLineRepository(db *database.DB) PropLineRepository {
	return &PostgresPropLineRepository{db: db}
}

// Upsert inserts a line or, for a known (player, date, sportsbook), refreshes line and fetched_at
func (r *PostgresPropLineRepository) Upsert(ctx context.Context, prop *models.PropLine) error {
	if prop.FetchedAt.IsZero() {
		prop.FetchedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO prop_lines (player_id, game_date, line, sportsbook, fetched_at)
		VALUES ($1, $2, $3::numeric, $4, $5)
		ON CONFLICT (player_id, game_date, sportsbook)
		DO UPDATE SET line = EXCLUDED.line, fetched_at = EXCLUDED.fetched_at
		RETURNING id
	`

	err := r.db.GetPool().QueryRow(ctx, query,
		prop.PlayerID, prop.GameDate, prop.Line.String(), prop.Sportsbook, prop.FetchedAt,
	).Scan(&prop.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert prop line: %w", err)
	}

	return nil
}

// GetByID retrieves a prop line by ID
func (r *PostgresPropLineRepository) GetByID(ctx context.Context, id int64) (*models.PropLine, error) {
	query := `
		SELECT id, player_id, game_date, line::text, sportsbook, fetched_at
		FROM prop_lines WHERE id = $1
	`

	return r.queryOne(ctx, query, id)
}

// GetLatestForPlayerDate returns the most recently fetched line for the key
func (r *PostgresPropLineRepository) GetLatestForPlayerDate(ctx context.Context, playerID int64, date time.Time) (*models.PropLine, error) {
	query := `
		SELECT id, player_id, game_date, line::text, sportsbook, fetched_at
		FROM prop_lines
		WHERE player_id = $1 AND game_date = $2
		ORDER BY fetched_at DESC, id DESC
		LIMIT 1
	`

	return r.queryOne(ctx, query, playerID, date)
}

// ListByDate returns the most recently fetched line of every player on the date
func (r *PostgresPropLineRepository) ListByDate(ctx context.Context, date time.Time) ([]*models.PropLine, error) {
	query := `
		SELECT DISTINCT ON (player_id) id, player_id, game_date, line::text, sportsbook, fetched_at
		FROM prop_lines
		WHERE game_date = $1
		ORDER BY player_id, fetched_at DESC, id DESC
	`

	rows, err := r.db.GetPool().Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query prop lines: %w", err)
	}
	defer rows.Close()

	var props []*models.PropLine
	for rows.Next() {
		p, err := scanPropLine(rows)
		if err != nil {
			return nil, err
		}
		props = append(props, p)
	}

	return props, rows.Err()
}

// ListSettled returns the selected line for every key in [from, to] that has a box score
func (r *PostgresPropLineRepository) ListSettled(ctx context.Context, from, to time.Time) ([]*models.SettledProp, error) {
	query := `
		SELECT id, player_id, game_date, line, sportsbook, fetched_at, points FROM (
			SELECT DISTINCT ON (pl.player_id, pl.game_date)
				pl.id, pl.player_id, pl.game_date, pl.line::text AS line, pl.sportsbook, pl.fetched_at, ps.points
			FROM prop_lines pl
			JOIN player_stats ps ON ps.player_id = pl.player_id AND ps.game_date = pl.game_date
			WHERE pl.game_date >= $1 AND pl.game_date <= $2
			ORDER BY pl.player_id, pl.game_date, pl.fetched_at DESC, pl.id DESC
		) settled
		ORDER BY game_date ASC, player_id ASC
	`

	rows, err := r.db.GetPool().Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query settled prop lines: %w", err)
	}
	defer rows.Close()

	var settled []*models.SettledProp
	for rows.Next() {
		p := &models.PropLine{}
		var line string
		var points int
		if err := rows.Scan(&p.ID, &p.PlayerID, &p.GameDate, &line, &p.Sportsbook, &p.FetchedAt, &points); err != nil {
			return nil, fmt.Errorf("failed to scan settled prop line: %w", err)
		}
		if p.Line, err = decimal.NewFromString(line); err != nil {
			return nil, fmt.Errorf("failed to parse line %q: %w", line, err)
		}
		settled = append(settled, &models.SettledProp{Prop: p, Points: points})
	}

	return settled, rows.Err()
}

func (r *PostgresPropLineRepository) queryOne(ctx context.Context, query string, args ...interface{}) (*models.PropLine, error) {
	p, err := scanPropLine(r.db.GetPool().QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	return p, err
}

func scanPropLine(row pgx.Row) (*models.PropLine, error) {
	p := &models.PropLine{}
	var line string
	if err := row.Scan(&p.ID, &p.PlayerID, &p.GameDate, &line, &p.Sportsbook, &p.FetchedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan prop line: %w", err)
	}
	var err error
	if p.Line, err = decimal.NewFromString(line); err != nil {
		return nil, fmt.Errorf("failed to parse line %q: %w", line, err)
	}
	return p, nil
}
