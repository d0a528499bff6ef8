// Package notify delivers retrain recommendations to the log and to an
// optional webhook.
package notify

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/propcast/internal/logger"
	"github.com/yourusername/propcast/internal/metrics"
	"github.com/yourusername/propcast/internal/models"
)

// Publisher delivers a retrain recommendation
type Publisher interface {
	Publish(ctx context.Context, rec *models.RetrainRecommendation) error
}

// LogPublisher writes recommendations to the audit log
type LogPublisher struct {
	audit *logger.AuditLogger
}

// NewLogPublisher creates a publisher over log
func NewLogPublisher(log *logrus.Logger) *LogPublisher {
	return &LogPublisher{audit: logger.NewAuditLogger(log)}
}

// Publish logs rec
func (p *LogPublisher) Publish(_ context.Context, rec *models.RetrainRecommendation) error {
	p.audit.LogRetrainRecommendation(
		rec.Report.ModelVersionID,
		rec.Report.CalibrationError,
		rec.Report.BrierScore,
		rec.Threshold,
		rec.Report.Samples,
	)
	metrics.RecordRetrainRecommendation()
	return nil
}

// MultiPublisher fans a recommendation out to every publisher.
// Every publisher is attempted; failures are joined.
type MultiPublisher []Publisher

// Publish delivers rec to each publisher
func (m MultiPublisher) Publish(ctx context.Context, rec *models.RetrainRecommendation) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
