package ml

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/yourusername/propcast/internal/models"
)

// EvaluationMetrics are the cross-validated metrics stored with a version
type EvaluationMetrics struct {
	ROCAUC          float64   `json:"roc_auc"`
	Brier           float64   `json:"brier"`
	CalibratedBrier float64   `json:"calibrated_brier"`
	ECE             float64   `json:"expected_calibration_error"`
	FoldROCAUC      []float64 `json:"fold_roc_auc"`
	FoldBrier       []float64 `json:"fold_brier"`
	Folds           int       `json:"folds"`
	Samples         int       `json:"samples"`
	PositiveRate    float64   `json:"positive_rate"`
}

// Artifact is everything persisted for one model version
type Artifact struct {
	VersionID      string            `json:"version_id"`
	FeatureColumns []string          `json:"feature_columns"`
	Model          LogisticModel     `json:"model"`
	Calibration    Calibration       `json:"calibration"`
	Metrics        EvaluationMetrics `json:"metrics"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Validate checks the artifact can be served
func (a *Artifact) Validate() error {
	if len(a.FeatureColumns) == 0 {
		return fmt.Errorf("artifact %s has no feature columns", a.VersionID)
	}
	if err := a.Model.Validate(len(a.FeatureColumns)); err != nil {
		return fmt.Errorf("artifact %s: %w", a.VersionID, err)
	}
	if a.Calibration.Isotonic != nil {
		if err := a.Calibration.Isotonic.Validate(); err != nil {
			return fmt.Errorf("artifact %s: %w", a.VersionID, err)
		}
	}
	return nil
}

// Clone returns a deep copy sharing no slices with a
func (a *Artifact) Clone() *Artifact {
	c := *a
	c.FeatureColumns = append([]string(nil), a.FeatureColumns...)
	c.Model.Weights = append([]float64(nil), a.Model.Weights...)
	c.Model.Means = append([]float64(nil), a.Model.Means...)
	c.Model.Scales = append([]float64(nil), a.Model.Scales...)
	if a.Calibration.Isotonic != nil {
		c.Calibration.Isotonic = &IsotonicCalibrator{
			X: append([]float64(nil), a.Calibration.Isotonic.X...),
			Y: append([]float64(nil), a.Calibration.Isotonic.Y...),
		}
	}
	c.Calibration.Buckets.Counts = append([]int(nil), a.Calibration.Buckets.Counts...)
	c.Metrics.FoldROCAUC = append([]float64(nil), a.Metrics.FoldROCAUC...)
	c.Metrics.FoldBrier = append([]float64(nil), a.Metrics.FoldBrier...)
	return &c
}

// ModelVersion returns the catalogue record for the artifact
func (a *Artifact) ModelVersion(isLatest bool) (*models.ModelVersion, error) {
	metrics, err := json.Marshal(a.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metrics: %w", err)
	}
	calibration, err := json.Marshal(a.Calibration)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal calibration: %w", err)
	}
	return &models.ModelVersion{
		VersionID:         a.VersionID,
		FeatureColumns:    append([]string(nil), a.FeatureColumns...),
		Metrics:           metrics,
		CalibrationParams: calibration,
		CreatedAt:         a.CreatedAt,
		IsLatest:          isLatest,
	}, nil
}

// ScoreResult is the output of one scoring call
type ScoreResult struct {
	Raw                float64
	ProbOver           float64
	ConfidenceInterval float64
}

// CalibratedPredictor scores feature vectors with one immutable artifact
type CalibratedPredictor struct {
	artifact *Artifact
}

// NewCalibratedPredictor validates artifact and wraps a private copy of it,
// so later changes to artifact never reach the served version.
func NewCalibratedPredictor(artifact *Artifact) (*CalibratedPredictor, error) {
	if artifact == nil {
		return nil, fmt.Errorf("nil artifact")
	}
	if err := artifact.Validate(); err != nil {
		return nil, err
	}
	return &CalibratedPredictor{artifact: artifact.Clone()}, nil
}

// VersionID returns the version this predictor serves
func (p *CalibratedPredictor) VersionID() string {
	return p.artifact.VersionID
}

// FeatureColumns returns a copy of the ordered input columns
func (p *CalibratedPredictor) FeatureColumns() []string {
	return append([]string(nil), p.artifact.FeatureColumns...)
}

// Metrics returns the evaluation metrics recorded at training time
func (p *CalibratedPredictor) Metrics() EvaluationMetrics {
	return p.artifact.Metrics
}

// Score maps a feature vector to a calibrated probability and interval.
// It is a pure function of the artifact and values.
func (p *CalibratedPredictor) Score(values []float64) (ScoreResult, error) {
	if len(values) != len(p.artifact.FeatureColumns) {
		return ScoreResult{}, models.NewFeatureSchemaMismatchError(
			p.artifact.FeatureColumns, []string{fmt.Sprintf("%d values", len(values))})
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ScoreResult{}, models.NewValidationError(
				fmt.Sprintf("feature %s is not finite", p.artifact.FeatureColumns[i]))
		}
	}

	raw := p.artifact.Model.Score(values)
	prob := p.artifact.Calibration.Isotonic.Apply(raw)
	return ScoreResult{
		Raw:                raw,
		ProbOver:           prob,
		ConfidenceInterval: p.artifact.Calibration.Buckets.Interval(raw, prob),
	}, nil
}
