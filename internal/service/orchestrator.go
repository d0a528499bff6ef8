// Package service implements prediction generation, listing, search, drift
// monitoring and training on top of the repositories.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/yourusername/propcast/internal/features"
	"github.com/yourusername/propcast/internal/logger"
	"github.com/yourusername/propcast/internal/metrics"
	"github.com/yourusername/propcast/internal/ml"
	"github.com/yourusername/propcast/internal/models"
	"github.com/yourusername/propcast/internal/repository"
)

// Prediction sources
const (
	SourceCache     = "cache"
	SourceStore     = "store"
	SourceGenerated = "generated"
)

// FeatureBuilder assembles the model inputs for a prop line
type FeatureBuilder interface {
	Build(ctx context.Context, prop *models.PropLine, columns []string) (*features.Vector, error)
}

// ModelSource returns the predictor currently being served
type ModelSource interface {
	Current() (*ml.CalibratedPredictor, error)
}

// OrchestratorConfig bounds waiting and generation
type OrchestratorConfig struct {
	WaitTimeout       time.Duration
	GenerationTimeout time.Duration
	LockTTL           time.Duration
}

// DefaultOrchestratorConfig returns the serving defaults
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		WaitTimeout:       10 * time.Second,
		GenerationTimeout: 30 * time.Second,
		LockTTL:           30 * time.Second,
	}
}

// Result is a prediction with the prop line it belongs to
type Result struct {
	Prop       *models.PropLine
	Prediction *models.Prediction
	Source     string
}

// Orchestrator returns the stored prediction for a prop line or builds
// exactly one. Concurrent callers for the same prop line in this process
// share one build; the Locker extends that across processes.
type Orchestrator struct {
	props       repository.PropLineRepository
	predictions repository.PredictionRepository
	builder     FeatureBuilder
	models      ModelSource
	cache       *ml.PredictionCache
	invalidator CacheInvalidator
	locker      Locker
	group       singleflight.Group
	cfg         OrchestratorConfig
	plog        *logger.PredictionLogger
	logger      *logrus.Logger
	now         func() time.Time
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(
	props repository.PropLineRepository,
	predictions repository.PredictionRepository,
	builder FeatureBuilder,
	source ModelSource,
	cache *ml.PredictionCache,
	locker Locker,
	cfg OrchestratorConfig,
	log *logrus.Logger,
) *Orchestrator {
	return &Orchestrator{
		props:       props,
		predictions: predictions,
		builder:     builder,
		models:      source,
		cache:       cache,
		locker:      locker,
		cfg:         cfg,
		plog:        logger.NewPredictionLogger(log),
		logger:      log,
		now:         time.Now,
	}
}

// SetInvalidator makes forced regenerations drop the prediction from the
// caches of other processes
func (o *Orchestrator) SetInvalidator(inv CacheInvalidator) {
	o.invalidator = inv
}

// GetOrGenerate returns the prediction for the player's prop on date,
// generating it on first request.
func (o *Orchestrator) GetOrGenerate(ctx context.Context, playerID int64, date time.Time) (*Result, error) {
	prop, err := o.lookupProp(ctx, playerID, date)
	if err != nil {
		return nil, err
	}
	return o.PredictionFor(ctx, prop, false)
}

// Regenerate rebuilds the prediction even when one is stored
func (o *Orchestrator) Regenerate(ctx context.Context, playerID int64, date time.Time) (*Result, error) {
	prop, err := o.lookupProp(ctx, playerID, date)
	if err != nil {
		return nil, err
	}
	return o.PredictionFor(ctx, prop, true)
}

func (o *Orchestrator) lookupProp(ctx context.Context, playerID int64, date time.Time) (*models.PropLine, error) {
	prop, err := o.props.GetLatestForPlayerDate(ctx, playerID, date)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.NewPropNotFoundError(playerID, date.Format("2006-01-02"))
	}
	if err != nil {
		return nil, models.NewDatabaseError("get prop line", err)
	}
	return prop, nil
}

// PredictionFor serves prop's prediction from cache or store unless force is
// set, and otherwise generates it under the per-prop lock.
func (o *Orchestrator) PredictionFor(ctx context.Context, prop *models.PropLine, force bool) (*Result, error) {
	if !force {
		if pred := o.cache.Get(prop.ID); pred != nil {
			return o.served(prop, pred, SourceCache), nil
		}

		pred, err := o.predictions.GetByPropLineID(ctx, prop.ID)
		if err == nil {
			o.cache.Set(pred)
			return o.served(prop, pred, SourceStore), nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return nil, models.NewDatabaseError("get prediction", err)
		}
	}

	return o.generate(ctx, prop, force)
}

func (o *Orchestrator) served(prop *models.PropLine, pred *models.Prediction, source string) *Result {
	metrics.RecordPredictionServed(source)
	o.plog.LogServed(prop.ID, source)
	return &Result{Prop: prop, Prediction: pred, Source: source}
}

type generation struct {
	prediction *models.Prediction
	source     string
}

// generate joins or starts the single in-flight build for prop. The build
// runs detached from ctx so an abandoned caller does not cancel it for the
// others; each caller stops waiting after WaitTimeout.
func (o *Orchestrator) generate(ctx context.Context, prop *models.PropLine, force bool) (*Result, error) {
	key := strconv.FormatInt(prop.ID, 10)
	if force {
		key += ":force"
	}

	ch := o.group.DoChan(key, func() (interface{}, error) {
		genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.GenerationTimeout)
		defer cancel()
		return o.build(genCtx, prop, force)
	})

	timer := time.NewTimer(o.cfg.WaitTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		gen := res.Val.(*generation)
		pred := *gen.prediction
		metrics.RecordPredictionServed(gen.source)
		return &Result{Prop: prop, Prediction: &pred, Source: gen.source}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, models.NewGenerationTimeoutError(prop.ID)
	}
}

func lockKey(propLineID int64) string {
	return fmt.Sprintf("generate:%d", propLineID)
}

// build holds the generation lock while it checks for a stored prediction,
// builds features, scores and upserts. The lock is released on every path.
func (o *Orchestrator) build(ctx context.Context, prop *models.PropLine, force bool) (gen *generation, err error) {
	start := o.now()
	defer func() {
		if err != nil {
			kind := models.KindOf(err)
			metrics.RecordGenerationFailure(string(kind))
			o.plog.LogGenerationError(prop.ID, string(kind), err)
		}
	}()

	release, err := o.locker.Acquire(ctx, lockKey(prop.ID), o.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, models.NewGenerationTimeoutError(prop.ID)
		}
		return nil, fmt.Errorf("failed to acquire generation lock: %w", err)
	}
	defer release()

	if !force {
		stored, err := o.predictions.GetByPropLineID(ctx, prop.ID)
		if err == nil {
			o.cache.Set(stored)
			return &generation{prediction: stored, source: SourceStore}, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return nil, models.NewDatabaseError("get prediction", err)
		}
	}

	predictor, err := o.models.Current()
	if err != nil {
		return nil, err
	}

	vec, err := o.builder.Build(ctx, prop, predictor.FeatureColumns())
	if err != nil {
		return nil, err
	}

	score, err := predictor.Score(vec.Values)
	if err != nil {
		return nil, err
	}

	pred := &models.Prediction{
		PropLineID:         prop.ID,
		ProbOver:           score.ProbOver,
		ConfidenceInterval: score.ConfidenceInterval,
		ModelVersionID:     predictor.VersionID(),
		GeneratedAt:        o.now().UTC(),
	}
	if err := o.predictions.Upsert(ctx, pred); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, models.NewGenerationTimeoutError(prop.ID)
		}
		return nil, models.NewDatabaseError("upsert prediction", err)
	}
	o.cache.Set(pred)
	if force && o.invalidator != nil {
		if err := o.invalidator.Invalidate(ctx, prop.ID); err != nil {
			o.logger.WithError(err).WithField("prop_line_id", prop.ID).Warn("Other replicas may serve the replaced prediction until their cache expires")
		}
	}

	elapsed := o.now().Sub(start)
	metrics.RecordGeneration(elapsed.Seconds())
	o.plog.LogGeneration(prop.ID, pred.ModelVersionID, pred.ProbOver, pred.ConfidenceInterval, elapsed)
	return &generation{prediction: pred, source: SourceGenerated}, nil
}
