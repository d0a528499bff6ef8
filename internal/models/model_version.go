package models

import (
	"encoding/json"
	"time"
)

// ModelVersion describes an immutable published model
type ModelVersion struct {
	VersionID         string          `db:"version_id" json:"version_id"`
	FeatureColumns    []string        `db:"feature_columns" json:"feature_columns"`
	Metrics           json.RawMessage `db:"metrics" json:"metrics"`
	CalibrationParams json.RawMessage `db:"calibration_params" json:"calibration_params"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	IsLatest          bool            `db:"is_latest" json:"is_latest"`
}

// GetMetric retrieves a metric value from the Metrics JSON
func (m *ModelVersion) GetMetric(name string) (interface{}, error) {
	if m.Metrics == nil {
		return nil, nil
	}

	var metrics map[string]interface{}
	if err := json.Unmarshal(m.Metrics, &metrics); err != nil {
		return nil, err
	}

	return metrics[name], nil
}
