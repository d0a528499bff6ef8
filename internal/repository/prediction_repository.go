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

// PostgresPredictionRepository implements PredictionRepository for PostgreSQL
type PostgresPredictionRepository struct {
	db *database.DB
}

// NewPostgresPredictionRepository creates a new prediction repository
func NewPostgresPredictionRepository(db *database.DB) PredictionRepository {
	return &PostgresPredictionRepository{db: db}
}

// Upsert writes the prediction in a single statement keyed by the unique prop_line_id
func (r *PostgresPredictionRepository) Upsert(ctx context.Context, p *models.Prediction) error {
	query := `
		INSERT INTO predictions (prop_line_id, prob_over, confidence_interval, model_version_id, generated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (prop_line_id) DO UPDATE SET
			prob_over = EXCLUDED.prob_over,
			confidence_interval = EXCLUDED.confidence_interval,
			model_version_id = EXCLUDED.model_version_id,
			generated_at = EXCLUDED.generated_at
		RETURNING id
	`

	err := r.db.GetPool().QueryRow(ctx, query,
		p.PropLineID, p.ProbOver, p.ConfidenceInterval, p.ModelVersionID, p.GeneratedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert prediction: %w", err)
	}

	return nil
}

// GetByPropLineID retrieves the prediction for a prop line
func (r *PostgresPredictionRepository) GetByPropLineID(ctx context.Context, propLineID int64) (*models.Prediction, error) {
	query := `
		SELECT id, prop_line_id, prob_over, confidence_interval, model_version_id, generated_at
		FROM predictions WHERE prop_line_id = $1
	`

	p := &models.Prediction{}
	err := r.db.GetPool().QueryRow(ctx, query, propLineID).Scan(
		&p.ID, &p.PropLineID, &p.ProbOver, &p.ConfidenceInterval, &p.ModelVersionID, &p.GeneratedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}

	return p, nil
}

// GetOutcomes pairs predictions for games in [from, to) with the realized result
func (r *PostgresPredictionRepository) GetOutcomes(ctx context.Context, from, to time.Time) ([]*models.PredictionOutcome, error) {
	query := `
		SELECT pr.prop_line_id, pr.prob_over, pr.model_version_id, ps.points > pl.line, pl.game_date
		FROM predictions pr
		JOIN prop_lines pl ON pl.id = pr.prop_line_id
		JOIN player_stats ps ON ps.player_id = pl.player_id AND ps.game_date = pl.game_date
		WHERE pl.game_date >= $1 AND pl.game_date < $2
		ORDER BY pl.game_date ASC, pr.prop_line_id ASC
	`

	rows, err := r.db.GetPool().Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query prediction outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []*models.PredictionOutcome
	for rows.Next() {
		o := &models.PredictionOutcome{}
		if err := rows.Scan(&o.PropLineID, &o.ProbOver, &o.ModelVersionID, &o.WentOver, &o.GameDate); err != nil {
			return nil, fmt.Errorf("failed to scan prediction outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}

	return outcomes, rows.Err()
}
