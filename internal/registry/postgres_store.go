package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/yourusername/propcast/internal/database"
	"github.com/yourusername/propcast/internal/ml"
	"github.com/yourusername/propcast/internal/models"
)

// PostgresStore keeps versions in model_versions and the pointer in model_pointer
type PostgresStore struct {
	db *database.DB
}

// NewPostgresStore creates a registry store over db
func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Save inserts a new immutable version row
func (s *PostgresStore) Save(ctx context.Context, artifact *ml.Artifact) error {
	params, err := json.Marshal(artifact.Model)
	if err != nil {
		return fmt.Errorf("failed to marshal model params: %w", err)
	}
	mv, err := artifact.ModelVersion(false)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO model_versions (version_id, feature_columns, model_params, metrics, calibration_params, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (version_id) DO NOTHING
		RETURNING version_id
	`

	var id string
	err = s.db.GetPool().QueryRow(ctx, query,
		mv.VersionID, mv.FeatureColumns, params, []byte(mv.Metrics), []byte(mv.CalibrationParams), mv.CreatedAt,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrDuplicateKey
	}
	if err != nil {
		return models.NewDatabaseError("save model version", err)
	}
	return nil
}

// Load reads one version row back into an artifact
func (s *PostgresStore) Load(ctx context.Context, versionID string) (*ml.Artifact, error) {
	query := `
		SELECT version_id, feature_columns, model_params, metrics, calibration_params, created_at
		FROM model_versions WHERE version_id = $1
	`

	var (
		artifact                     ml.Artifact
		params, metrics, calibration []byte
	)
	err := s.db.GetPool().QueryRow(ctx, query, versionID).Scan(
		&artifact.VersionID, &artifact.FeatureColumns, &params, &metrics, &calibration, &artifact.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, models.NewDatabaseError("load model version", err)
	}

	if err := json.Unmarshal(params, &artifact.Model); err != nil {
		return nil, fmt.Errorf("failed to decode model params for %s: %w", versionID, err)
	}
	if err := json.Unmarshal(metrics, &artifact.Metrics); err != nil {
		return nil, fmt.Errorf("failed to decode metrics for %s: %w", versionID, err)
	}
	if err := json.Unmarshal(calibration, &artifact.Calibration); err != nil {
		return nil, fmt.Errorf("failed to decode calibration for %s: %w", versionID, err)
	}
	return &artifact, nil
}

// SetLatest moves the pointer inside one transaction
func (s *PostgresStore) SetLatest(ctx context.Context, versionID string) error {
	return s.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM model_versions WHERE version_id = $1)`, versionID,
		).Scan(&exists); err != nil {
			return models.NewDatabaseError("check model version", err)
		}
		if !exists {
			return models.ErrNotFound
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO model_pointer (name, version_id, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (name) DO UPDATE SET version_id = EXCLUDED.version_id, updated_at = NOW()
		`, LatestPointer, versionID)
		if err != nil {
			return models.NewDatabaseError("update model pointer", err)
		}
		return nil
	})
}

// Latest returns the version id the pointer resolves to
func (s *PostgresStore) Latest(ctx context.Context) (string, error) {
	var id string
	err := s.db.GetPool().QueryRow(ctx,
		`SELECT version_id FROM model_pointer WHERE name = $1`, LatestPointer,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", models.ErrNotFound
	}
	if err != nil {
		return "", models.NewDatabaseError("read model pointer", err)
	}
	return id, nil
}

// List returns every version, newest first
func (s *PostgresStore) List(ctx context.Context) ([]*models.ModelVersion, error) {
	query := `
		SELECT v.version_id, v.feature_columns, v.metrics, v.calibration_params, v.created_at,
		       p.version_id IS NOT NULL AS is_latest
		FROM model_versions v
		LEFT JOIN model_pointer p ON p.version_id = v.version_id AND p.name = $1
		ORDER BY v.created_at DESC, v.version_id DESC
	`

	rows, err := s.db.GetPool().Query(ctx, query, LatestPointer)
	if err != nil {
		return nil, models.NewDatabaseError("list model versions", err)
	}
	defer rows.Close()

	var versions []*models.ModelVersion
	for rows.Next() {
		var (
			mv                   models.ModelVersion
			metrics, calibration []byte
		)
		if err := rows.Scan(&mv.VersionID, &mv.FeatureColumns, &metrics, &calibration, &mv.CreatedAt, &mv.IsLatest); err != nil {
			return nil, models.NewDatabaseError("scan model version", err)
		}
		mv.Metrics = metrics
		mv.CalibrationParams = calibration
		versions = append(versions, &mv)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewDatabaseError("list model versions", err)
	}
	return versions, nil
}
