package logger

import (
	"github.com/sirupsen/logrus"
)

// AuditLogger provides dedicated audit trail logging for operator actions
// and model lifecycle events.
type AuditLogger struct {
	*logrus.Entry
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(baseLogger *logrus.Logger) *AuditLogger {
	return &AuditLogger{
		Entry: baseLogger.WithField("component", "audit"),
	}
}

// LogModelPublished logs a new model version written to the registry.
func (al *AuditLogger) LogModelPublished(versionID string, columns []string, promoted bool) {
	al.WithFields(logrus.Fields{
		"model_version_id": versionID,
		"feature_columns":  columns,
		"promoted":         promoted,
	}).Info("Model version published")
}

// LogModelPromoted logs a change of the latest pointer.
func (al *AuditLogger) LogModelPromoted(oldVersion, newVersion, changedBy string) {
	al.WithFields(logrus.Fields{
		"old_version": oldVersion,
		"new_version": newVersion,
		"changed_by":  changedBy,
	}).Info("Model version promoted")
}

// LogModelReloaded logs a registry reload.
func (al *AuditLogger) LogModelReloaded(oldVersion, newVersion string) {
	al.WithFields(logrus.Fields{
		"old_version": oldVersion,
		"new_version": newVersion,
		"changed":     oldVersion != newVersion,
	}).Info("Model registry reloaded")
}

// LogRetrainRecommendation logs a drift check that crossed its threshold.
func (al *AuditLogger) LogRetrainRecommendation(versionID string, ece, brier, threshold float64, samples int) {
	al.WithFields(logrus.Fields{
		"model_version_id":  versionID,
		"calibration_error": ece,
		"brier_score":       brier,
		"threshold":         threshold,
		"samples":           samples,
	}).Warn("Retrain recommended: calibration drift exceeded threshold")
}

// LogRateLimitExceeded logs a rejected request.
func (al *AuditLogger) LogRateLimitExceeded(route, clientID string, limit int64) {
	al.WithFields(logrus.Fields{
		"route":     route,
		"client_id": clientID,
		"limit":     limit,
	}).Warn("Rate limit exceeded")
}
