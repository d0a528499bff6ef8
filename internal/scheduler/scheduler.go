// Package scheduler runs the periodic jobs of the prediction service: drift
// checks, daily pre-generation and model reload polling.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/propcast/internal/models"
)

// DriftChecker evaluates recent outcomes against stored probabilities
type DriftChecker interface {
	Check(ctx context.Context) (*models.DriftReport, *models.RetrainRecommendation, error)
}

// Pregenerator builds every prediction for a date
type Pregenerator interface {
	Pregenerate(ctx context.Context, date time.Time) (int, error)
}

// ModelReloader picks up a moved latest pointer
type ModelReloader interface {
	Reload(ctx context.Context) (bool, error)
}

// Scheduler manages the service's cron jobs
type Scheduler struct {
	cron            *cron.Cron
	logger          *logrus.Logger
	mu              sync.RWMutex
	isRunning       bool
	jobIDs          []cron.EntryID
	jobTimeout      time.Duration
	gracefulTimeout time.Duration
	now             func() time.Time
}

// NewScheduler creates a scheduler in UTC. A job still running when its next
// tick fires is skipped for that tick.
func NewScheduler(logger *logrus.Logger) *Scheduler {
	cronLog := cron.PrintfLogger(logger)
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		logger:          logger,
		jobIDs:          make([]cron.EntryID, 0),
		jobTimeout:      30 * time.Minute,
		gracefulTimeout: 30 * time.Second,
		now:             time.Now,
	}
}

func (s *Scheduler) add(spec, name string, job func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}

	entryID, err := s.cron.AddFunc(spec, job)
	if err != nil {
		return fmt.Errorf("failed to add %s job: %w", name, err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.logger.WithFields(logrus.Fields{
		"job":      name,
		"schedule": spec,
	}).Info("Scheduled job")
	return nil
}

// ScheduleDriftCheck runs checker on cronExpression
func (s *Scheduler) ScheduleDriftCheck(cronExpression string, checker DriftChecker) error {
	return s.add(cronExpression, "drift_check", func() { s.runDriftCheck(checker) })
}

func (s *Scheduler) runDriftCheck(checker DriftChecker) {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	report, rec, err := checker.Check(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Scheduled drift check failed")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"model_version_id":  report.ModelVersionID,
		"samples":           report.Samples,
		"calibration_error": report.CalibrationError,
		"recommendation":    rec != nil,
	}).Info("Scheduled drift check completed")
}

// SchedulePregeneration builds the day's predictions on cronExpression
func (s *Scheduler) SchedulePregeneration(cronExpression string, gen Pregenerator) error {
	return s.add(cronExpression, "pregenerate", func() { s.runPregeneration(gen) })
}

func (s *Scheduler) runPregeneration(gen Pregenerator) {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	y, m, d := s.now().UTC().Date()
	date := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	n, err := gen.Pregenerate(ctx, date)
	if err != nil {
		s.logger.WithError(err).WithField("date", date.Format("2006-01-02")).Error("Scheduled pre-generation failed")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"date":        date.Format("2006-01-02"),
		"predictions": n,
	}).Info("Scheduled pre-generation completed")
}

// ScheduleModelReload polls the registry every intervalSeconds
func (s *Scheduler) ScheduleModelReload(intervalSeconds int, reloader ModelReloader) error {
	if intervalSeconds < 5 {
		intervalSeconds = 5
	}
	timeout := time.Duration(intervalSeconds-1) * time.Second
	return s.add(fmt.Sprintf("@every %ds", intervalSeconds), "model_reload", func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := reloader.Reload(ctx); err != nil {
			s.logger.WithError(err).Warn("Model reload failed, keeping current version")
		}
	})
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}
	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")
	return nil
}

// Stop waits for running jobs up to the graceful timeout
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.isRunning = false
	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("Scheduler stopped")
		return nil
	case <-time.After(s.gracefulTimeout):
		return fmt.Errorf("scheduler jobs still running after %s", s.gracefulTimeout)
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRun returns the earliest next run across jobs
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return time.Time{}
	}

	nextRun := time.Time{}
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() && (nextRun.IsZero() || entry.Next.Before(nextRun)) {
			nextRun = entry.Next
		}
	}
	return nextRun
}

// Entries returns the scheduled entries
func (s *Scheduler) Entries() []cron.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]cron.Entry, 0, len(s.jobIDs))
	for _, jobID := range s.jobIDs {
		if entry := s.cron.Entry(jobID); entry.Valid() {
			entries = append(entries, entry)
		}
	}
	return entries
}
