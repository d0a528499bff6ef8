package models

import (
	"time"
)

// Prediction is the single calibrated prediction for a prop line
type Prediction struct {
	ID                 int64     `db:"id" json:"id"`
	PropLineID         int64     `db:"prop_line_id" json:"prop_line_id" validate:"required"`
	ProbOver           float64   `db:"prob_over" json:"prob_over" validate:"gte=0,lte=1"`
	ConfidenceInterval float64   `db:"confidence_interval" json:"confidence_interval" validate:"gte=0,lte=50"`
	ModelVersionID     string    `db:"model_version_id" json:"model_version_id" validate:"required"`
	GeneratedAt        time.Time `db:"generated_at" json:"generated_at"`
}

// PredictionOutcome pairs a stored prediction with its realized result
type PredictionOutcome struct {
	PropLineID     int64
	ProbOver       float64
	ModelVersionID string
	WentOver       bool
	GameDate       time.Time
}
