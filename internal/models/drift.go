package models

import "time"

// DriftReport summarises realized outcomes against stored probabilities
type DriftReport struct {
	ModelVersionID     string    `json:"model_version_id"`
	From               time.Time `json:"from"`
	To                 time.Time `json:"to"`
	Samples            int       `json:"samples"`
	Accuracy           float64   `json:"accuracy"`
	ActualHitRate      float64   `json:"actual_hit_rate"`
	PredictedHitRate   float64   `json:"predicted_hit_rate"`
	BrierScore         float64   `json:"brier_score"`
	CalibrationError   float64   `json:"calibration_error"`
	TrainingBrierScore float64   `json:"training_brier_score"`
	GeneratedAt        time.Time `json:"generated_at"`
}

// RetrainRecommendation is the advisory event raised when drift crosses its threshold
type RetrainRecommendation struct {
	ID        string      `json:"id"`
	Reason    string      `json:"reason"`
	Threshold float64     `json:"threshold"`
	Report    DriftReport `json:"report"`
	CreatedAt time.Time   `json:"created_at"`
}
