package ml

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/propcast/internal/models"
)

// Example is one labelled training row
type Example struct {
	Features []float64
	Label    float64
}

// TrainerConfig controls cross-validation and fitting
type TrainerConfig struct {
	Folds   int
	Buckets int
	Fit     FitOptions
}

// DefaultTrainerConfig returns five folds and decile buckets
func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		Folds:   5,
		Buckets: DefaultBucketCount,
		Fit:     DefaultFitOptions(),
	}
}

// Trainer fits a calibrated classifier with k-fold cross-validation
type Trainer struct {
	cfg    TrainerConfig
	logger *logrus.Logger
}

// NewTrainer creates a trainer
func NewTrainer(cfg TrainerConfig, logger *logrus.Logger) *Trainer {
	if cfg.Folds < 2 {
		cfg.Folds = DefaultTrainerConfig().Folds
	}
	if cfg.Buckets <= 0 {
		cfg.Buckets = DefaultBucketCount
	}
	if cfg.Fit.Epochs <= 0 {
		cfg.Fit = DefaultFitOptions()
	}
	return &Trainer{cfg: cfg, logger: logger}
}

// Train runs cross-validation, fits the calibration map on out-of-fold
// scores and refits the classifier on every example. Rows are assigned to
// folds round-robin so the result depends only on the input order.
func (t *Trainer) Train(ctx context.Context, columns []string, examples []Example) (*Artifact, error) {
	k := t.cfg.Folds
	if len(examples) < k {
		return nil, models.NewValidationError(fmt.Sprintf("need at least %d examples, got %d", k, len(examples)))
	}

	var positives float64
	for i, ex := range examples {
		if len(ex.Features) != len(columns) {
			return nil, models.NewFeatureSchemaMismatchError(columns, []string{fmt.Sprintf("row %d has %d values", i, len(ex.Features))})
		}
		positives += ex.Label
	}
	if positives == 0 || positives == float64(len(examples)) {
		return nil, models.NewValidationError("training labels contain a single class")
	}

	oof := make([]float64, len(examples))
	labels := make([]float64, len(examples))
	for i, ex := range examples {
		labels[i] = ex.Label
	}

	metrics := EvaluationMetrics{
		Folds:        k,
		Samples:      len(examples),
		PositiveRate: positives / float64(len(examples)),
	}

	for fold := 0; fold < k; fold++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var trainX [][]float64
		var trainY []float64
		var heldOut []int
		for i, ex := range examples {
			if i%k == fold {
				heldOut = append(heldOut, i)
				continue
			}
			trainX = append(trainX, ex.Features)
			trainY = append(trainY, ex.Label)
		}

		model, err := FitLogistic(trainX, trainY, t.cfg.Fit)
		if err != nil {
			return nil, fmt.Errorf("failed to fit fold %d: %w", fold, err)
		}

		foldScores := make([]float64, len(heldOut))
		foldLabels := make([]float64, len(heldOut))
		for j, i := range heldOut {
			oof[i] = model.Score(examples[i].Features)
			foldScores[j] = oof[i]
			foldLabels[j] = labels[i]
		}
		metrics.FoldROCAUC = append(metrics.FoldROCAUC, ROCAUC(foldScores, foldLabels))
		metrics.FoldBrier = append(metrics.FoldBrier, BrierScore(foldScores, foldLabels))
	}

	metrics.ROCAUC = ROCAUC(oof, labels)
	metrics.Brier = BrierScore(oof, labels)

	iso, err := FitIsotonic(oof, labels)
	if err != nil {
		return nil, fmt.Errorf("failed to fit calibration: %w", err)
	}
	calibrated := make([]float64, len(oof))
	for i, r := range oof {
		calibrated[i] = iso.Apply(r)
	}
	metrics.CalibratedBrier = BrierScore(calibrated, labels)
	metrics.ECE = ExpectedCalibrationError(calibrated, labels, t.cfg.Buckets)

	X := make([][]float64, len(examples))
	for i, ex := range examples {
		X[i] = ex.Features
	}
	final, err := FitLogistic(X, labels, t.cfg.Fit)
	if err != nil {
		return nil, fmt.Errorf("failed to fit final model: %w", err)
	}

	t.logger.WithFields(logrus.Fields{
		"samples":          metrics.Samples,
		"folds":            k,
		"roc_auc":          metrics.ROCAUC,
		"brier":            metrics.Brier,
		"calibrated_brier": metrics.CalibratedBrier,
	}).Info("Cross-validation completed")

	return &Artifact{
		FeatureColumns: append([]string(nil), columns...),
		Model:          *final,
		Calibration: Calibration{
			Method:   "isotonic",
			Isotonic: iso,
			Buckets:  NewConfidenceBuckets(oof, t.cfg.Buckets),
		},
		Metrics: metrics,
	}, nil
}
