package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/propcast/internal/metrics"
	"github.com/yourusername/propcast/internal/ml"
	"github.com/yourusername/propcast/internal/models"
	"github.com/yourusername/propcast/internal/notify"
	"github.com/yourusername/propcast/internal/repository"
)

// DriftConfig controls the calibration drift check
type DriftConfig struct {
	LookbackDays int
	Threshold    float64
	MinSamples   int
	Bins         int
}

// DriftMonitor compares realized outcomes with stored probabilities. Its
// findings are advisory: they are logged and published, never returned as
// serving errors.
type DriftMonitor struct {
	predictions repository.PredictionRepository
	models      ModelSource
	publisher   notify.Publisher
	cfg         DriftConfig
	logger      *logrus.Logger
	now         func() time.Time
}

// NewDriftMonitor creates a monitor
func NewDriftMonitor(predictions repository.PredictionRepository, source ModelSource, publisher notify.Publisher, cfg DriftConfig, logger *logrus.Logger) *DriftMonitor {
	if cfg.Bins <= 0 {
		cfg.Bins = ml.DefaultBucketCount
	}
	return &DriftMonitor{
		predictions: predictions,
		models:      source,
		publisher:   publisher,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// Evaluate scores outcomes for games in [from, to). When versionID is set
// only predictions made by that version count.
func (d *DriftMonitor) Evaluate(ctx context.Context, versionID string, from, to time.Time) (*models.DriftReport, error) {
	outcomes, err := d.predictions.GetOutcomes(ctx, from, to)
	if err != nil {
		return nil, models.NewDatabaseError("get prediction outcomes", err)
	}

	var probs, labels []float64
	for _, o := range outcomes {
		if versionID != "" && o.ModelVersionID != versionID {
			continue
		}
		probs = append(probs, o.ProbOver)
		label := 0.0
		if o.WentOver {
			label = 1
		}
		labels = append(labels, label)
	}

	report := &models.DriftReport{
		ModelVersionID: versionID,
		From:           from,
		To:             to,
		Samples:        len(probs),
		GeneratedAt:    d.now().UTC(),
	}
	if len(probs) == 0 {
		return report, nil
	}

	var actual, predicted float64
	for i := range probs {
		actual += labels[i]
		if probs[i] >= 0.5 {
			predicted++
		}
	}
	n := float64(len(probs))
	report.Accuracy = ml.Accuracy(probs, labels)
	report.ActualHitRate = actual / n
	report.PredictedHitRate = predicted / n
	report.BrierScore = ml.BrierScore(probs, labels)
	report.CalibrationError = ml.ExpectedCalibrationError(probs, labels, d.cfg.Bins)
	return report, nil
}

// Check evaluates the lookback window for the served model and publishes a
// recommendation when calibration error exceeds the threshold.
func (d *DriftMonitor) Check(ctx context.Context) (*models.DriftReport, *models.RetrainRecommendation, error) {
	predictor, err := d.models.Current()
	if err != nil {
		return nil, nil, err
	}

	to := d.now().UTC().Truncate(24 * time.Hour)
	from := to.AddDate(0, 0, -d.cfg.LookbackDays)

	report, err := d.Evaluate(ctx, predictor.VersionID(), from, to)
	if err != nil {
		return nil, nil, err
	}
	report.TrainingBrierScore = predictor.Metrics().CalibratedBrier

	log := d.logger.WithFields(logrus.Fields{
		"model_version_id":  report.ModelVersionID,
		"samples":           report.Samples,
		"calibration_error": report.CalibrationError,
		"brier_score":       report.BrierScore,
		"accuracy":          report.Accuracy,
	})

	if report.Samples < d.cfg.MinSamples {
		log.Info("Drift check skipped: not enough settled predictions")
		return report, nil, nil
	}
	metrics.UpdateDrift(report.CalibrationError, report.BrierScore)

	if report.CalibrationError <= d.cfg.Threshold {
		log.Info("Drift check passed")
		return report, nil, nil
	}

	rec := &models.RetrainRecommendation{
		ID: uuid.NewString(),
		Reason: fmt.Sprintf("expected calibration error %.4f exceeds threshold %.4f over %d outcomes",
			report.CalibrationError, d.cfg.Threshold, report.Samples),
		Threshold: d.cfg.Threshold,
		Report:    *report,
		CreatedAt: d.now().UTC(),
	}
	if err := d.publisher.Publish(ctx, rec); err != nil {
		log.WithError(err).Error("Failed to publish retrain recommendation")
	}
	return report, rec, nil
}
