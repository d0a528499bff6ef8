package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/propcast/internal/logger"
	"github.com/yourusername/propcast/internal/metrics"
	"github.com/yourusername/propcast/internal/ml"
	"github.com/yourusername/propcast/internal/models"
)

// Registry serves the latest model version from a Store. The served
// predictor is swapped with a single pointer store, so a scoring call that
// already holds a predictor finishes on that version.
type Registry struct {
	store   Store
	current atomic.Pointer[ml.CalibratedPredictor]
	writeMu sync.Mutex
	audit   *logger.AuditLogger
	logger  *logrus.Logger
	now     func() time.Time
}

// New creates a registry over store. Nothing is served until LoadLatest succeeds.
func New(store Store, log *logrus.Logger) *Registry {
	return &Registry{
		store:  store,
		audit:  logger.NewAuditLogger(log),
		logger: log,
		now:    time.Now,
	}
}

// Store exposes the backing store
func (r *Registry) Store() Store {
	return r.store
}

// LoadLatest resolves the latest pointer and starts serving that version
func (r *Registry) LoadLatest(ctx context.Context) (*ml.CalibratedPredictor, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	p, err := r.loadLatestLocked(ctx)
	if err != nil {
		return nil, models.NewModelNotLoadedError(err)
	}
	return p, nil
}

func (r *Registry) loadLatestLocked(ctx context.Context) (*ml.CalibratedPredictor, error) {
	id, err := r.store.Latest(ctx)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("no model version has been published")
		}
		return nil, err
	}

	if cur := r.current.Load(); cur != nil && cur.VersionID() == id {
		return cur, nil
	}

	p, err := r.GetVersion(ctx, id)
	if err != nil {
		return nil, err
	}
	r.swap(p)
	return p, nil
}

func (r *Registry) swap(p *ml.CalibratedPredictor) {
	r.current.Store(p)
	metrics.SetModelVersion(p.VersionID())
	r.logger.WithFields(logrus.Fields{
		"model_version_id": p.VersionID(),
		"feature_columns":  p.FeatureColumns(),
	}).Info("Serving model version")
}

// Current returns the predictor being served
func (r *Registry) Current() (*ml.CalibratedPredictor, error) {
	p := r.current.Load()
	if p == nil {
		return nil, models.NewModelNotLoadedError(nil)
	}
	return p, nil
}

// GetVersion loads any published version without changing what is served
func (r *Registry) GetVersion(ctx context.Context, versionID string) (*ml.CalibratedPredictor, error) {
	artifact, err := r.store.Load(ctx, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load model version %s: %w", versionID, err)
	}
	return ml.NewCalibratedPredictor(artifact)
}

// Artifact returns the stored artifact of a version
func (r *Registry) Artifact(ctx context.Context, versionID string) (*ml.Artifact, error) {
	return r.store.Load(ctx, versionID)
}

// Publish stores artifact as a new version, moves the latest pointer to it
// and reloads. An empty VersionID is filled from the clock.
func (r *Registry) Publish(ctx context.Context, artifact *ml.Artifact) (string, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if artifact.VersionID == "" {
		artifact.VersionID = NewVersionID(r.now())
	}
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = r.now().UTC()
	}

	p, err := ml.NewCalibratedPredictor(artifact)
	if err != nil {
		return "", models.NewValidationError(err.Error())
	}

	if err := r.store.Save(ctx, artifact); err != nil {
		return "", fmt.Errorf("failed to save model version %s: %w", artifact.VersionID, err)
	}
	if err := r.store.SetLatest(ctx, artifact.VersionID); err != nil {
		return "", fmt.Errorf("failed to promote model version %s: %w", artifact.VersionID, err)
	}

	r.swap(p)
	r.audit.LogModelPublished(artifact.VersionID, artifact.FeatureColumns, true)
	return artifact.VersionID, nil
}

// Promote points latest at an existing version and serves it
func (r *Registry) Promote(ctx context.Context, versionID, changedBy string) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	p, err := r.GetVersion(ctx, versionID)
	if err != nil {
		return err
	}

	old := r.servingID()
	if err := r.store.SetLatest(ctx, versionID); err != nil {
		return fmt.Errorf("failed to promote model version %s: %w", versionID, err)
	}
	r.swap(p)
	r.audit.LogModelPromoted(old, versionID, changedBy)
	return nil
}

// Reload re-reads the latest pointer, swapping when another process moved it.
// It reports whether the served version changed.
func (r *Registry) Reload(ctx context.Context) (bool, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	old := r.servingID()
	p, err := r.loadLatestLocked(ctx)
	if err != nil {
		return false, err
	}
	changed := p.VersionID() != old
	if changed {
		r.audit.LogModelReloaded(old, p.VersionID())
	}
	return changed, nil
}

// Versions lists every stored version, newest first
func (r *Registry) Versions(ctx context.Context) ([]*models.ModelVersion, error) {
	return r.store.List(ctx)
}

func (r *Registry) servingID() string {
	if p := r.current.Load(); p != nil {
		return p.VersionID()
	}
	return ""
}
