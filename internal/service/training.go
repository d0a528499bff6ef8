package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/propcast/internal/features"
	"github.com/yourusername/propcast/internal/logger"
	"github.com/yourusername/propcast/internal/ml"
	"github.com/yourusername/propcast/internal/models"
	"github.com/yourusername/propcast/internal/registry"
	"github.com/yourusername/propcast/internal/repository"
)

// TrainingService assembles examples from settled props, trains and publishes
type TrainingService struct {
	props    repository.PropLineRepository
	builder  FeatureBuilder
	trainer  *ml.Trainer
	registry *registry.Registry
	plog     *logger.PredictionLogger
	logger   *logrus.Logger
}

// NewTrainingService creates a training service
func NewTrainingService(props repository.PropLineRepository, builder FeatureBuilder, trainer *ml.Trainer, reg *registry.Registry, log *logrus.Logger) *TrainingService {
	return &TrainingService{
		props:    props,
		builder:  builder,
		trainer:  trainer,
		registry: reg,
		plog:     logger.NewPredictionLogger(log),
		logger:   log,
	}
}

// BuildExamples builds one example per settled prop in [from, to] with the
// features known before its game. Props without enough history are skipped.
func (s *TrainingService) BuildExamples(ctx context.Context, from, to time.Time) ([]ml.Example, int, error) {
	settled, err := s.props.ListSettled(ctx, from, to)
	if err != nil {
		return nil, 0, models.NewDatabaseError("list settled props", err)
	}

	examples := make([]ml.Example, 0, len(settled))
	skipped := 0
	for _, sp := range settled {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		vec, err := s.builder.Build(ctx, sp.Prop, features.Columns)
		if errors.Is(err, models.ErrInsufficientData) {
			skipped++
			continue
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to build features for prop %d: %w", sp.Prop.ID, err)
		}
		label := 0.0
		if sp.Prop.WentOver(sp.Points) {
			label = 1
		}
		examples = append(examples, ml.Example{Features: vec.Values, Label: label})
	}
	return examples, skipped, nil
}

// Train fits a new artifact on [from, to] without publishing it
func (s *TrainingService) Train(ctx context.Context, from, to time.Time) (*ml.Artifact, error) {
	start := time.Now()
	examples, skipped, err := s.BuildExamples(ctx, from, to)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"from":     from.Format("2006-01-02"),
		"to":       to.Format("2006-01-02"),
		"examples": len(examples),
		"skipped":  skipped,
	}).Info("Assembled training examples")

	artifact, err := s.trainer.Train(ctx, features.Columns, examples)
	if err != nil {
		return nil, err
	}

	s.plog.LogModelTraining(artifact.VersionID, len(examples), time.Since(start), map[string]float64{
		"roc_auc":                    artifact.Metrics.ROCAUC,
		"brier":                      artifact.Metrics.Brier,
		"calibrated_brier":           artifact.Metrics.CalibratedBrier,
		"expected_calibration_error": artifact.Metrics.ECE,
	})
	return artifact, nil
}

// TrainAndPublish trains on [from, to] and publishes the result as latest
func (s *TrainingService) TrainAndPublish(ctx context.Context, from, to time.Time) (*ml.Artifact, error) {
	artifact, err := s.Train(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if _, err := s.registry.Publish(ctx, artifact); err != nil {
		return nil, err
	}
	return artifact, nil
}
