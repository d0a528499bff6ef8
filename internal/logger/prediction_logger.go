package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// PredictionLogger provides dedicated logging for prediction generation.
type PredictionLogger struct {
	*logrus.Entry
}

// NewPredictionLogger creates a new prediction logger.
func NewPredictionLogger(baseLogger *logrus.Logger) *PredictionLogger {
	return &PredictionLogger{
		Entry: baseLogger.WithField("component", "prediction"),
	}
}

// LogGeneration logs a completed prediction build.
func (pl *PredictionLogger) LogGeneration(propLineID int64, versionID string, probOver, confidence float64, duration time.Duration) {
	pl.WithFields(logrus.Fields{
		"prop_line_id":        propLineID,
		"model_version_id":    versionID,
		"prob_over":           probOver,
		"confidence_interval": confidence,
		"latency_ms":          float64(duration.Microseconds()) / 1000,
	}).Info("Prediction generated")
}

// LogGenerationError logs a failed prediction build.
func (pl *PredictionLogger) LogGenerationError(propLineID int64, kind string, err error) {
	pl.WithFields(logrus.Fields{
		"prop_line_id": propLineID,
		"error_kind":   kind,
	}).WithError(err).Error("Prediction generation failed")
}

// LogServed logs where a returned prediction came from.
func (pl *PredictionLogger) LogServed(propLineID int64, source string) {
	pl.WithFields(logrus.Fields{
		"prop_line_id": propLineID,
		"source":       source,
	}).Debug("Prediction served")
}

// LogModelTraining logs model training events.
func (pl *PredictionLogger) LogModelTraining(versionID string, samples int, duration time.Duration, metrics map[string]float64) {
	pl.WithFields(logrus.Fields{
		"model_version_id":  versionID,
		"samples":           samples,
		"training_duration": duration.Seconds(),
		"metrics":           metrics,
	}).Info("Model training completed")
}
