// Package app wires configuration into the service graph shared by the API
// server and the propctl CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/propcast/internal/config"
	"github.com/yourusername/propcast/internal/database"
	"github.com/yourusername/propcast/internal/features"
	"github.com/yourusername/propcast/internal/ml"
	"github.com/yourusername/propcast/internal/notify"
	"github.com/yourusername/propcast/internal/ratelimit"
	"github.com/yourusername/propcast/internal/registry"
	"github.com/yourusername/propcast/internal/repository"
	"github.com/yourusername/propcast/internal/service"
)

// App holds every long-lived component
type App struct {
	Config       *config.Config
	Logger       *logrus.Logger
	DB           *database.DB
	Redis        *redis.Client
	Repos        *repository.Repositories
	Registry     *registry.Registry
	Builder      *features.Builder
	Cache        *ml.PredictionCache
	Orchestrator *service.Orchestrator
	Invalidation *service.RedisCacheInvalidation
	Search       *service.PlayerSearch
	Props        *service.PropsService
	Drift        *service.DriftMonitor
	Training     *service.TrainingService
	Governor     *ratelimit.Governor
}

// New connects the configured backends and builds the services. The served
// model is not loaded here; call LoadModel.
func New(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: log}

	if cfg.NeedsDatabase() {
		db, err := database.Initialize(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.DB = db
		log.Info("Database connection established")
	}

	if cfg.NeedsRedis() {
		a.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		log.WithField("addr", cfg.Redis.Addr).Info("Redis connection established")
	}

	if err := a.buildRepositories(); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.buildRegistry(); err != nil {
		a.Close()
		return nil, err
	}
	a.buildServices()
	return a, nil
}

func (a *App) buildRepositories() error {
	switch a.Config.Storage.Backend {
	case config.BackendPostgres:
		repos, err := repository.NewRepositories(a.DB)
		if err != nil {
			return fmt.Errorf("failed to initialize repositories: %w", err)
		}
		a.Repos = repos
	default:
		a.Logger.Warn("Using in-memory storage; data is lost on restart")
		a.Repos = repository.NewMemoryRepositories()
	}
	return nil
}

func (a *App) buildRegistry() error {
	var store registry.Store
	switch a.Config.Model.RegistryBackend {
	case config.BackendPostgres:
		store = registry.NewPostgresStore(a.DB)
	default:
		fs, err := registry.NewFileStore(a.Config.Model.RegistryDir)
		if err != nil {
			return fmt.Errorf("failed to open model registry: %w", err)
		}
		store = fs
	}
	a.Registry = registry.New(store, a.Logger)
	return nil
}

func (a *App) buildServices() {
	cfg := a.Config
	log := a.Logger

	a.Builder = features.NewBuilder(a.Repos.PlayerStat, a.Repos.Game, a.Repos.TeamDefense, features.Options{
		WindowSize:            cfg.Features.WindowSize,
		RestClipDays:          cfg.Features.RestClipDays,
		LeagueAverageFallback: cfg.Features.LeagueAverageFallback,
	}, log)

	var locker service.Locker = service.NewLocalLocker()
	if cfg.Generation.LockBackend == config.BackendRedis {
		locker = service.NewRedisLocker(a.Redis, cfg.Generation.LockPoll(), log)
	}

	a.Cache = ml.NewPredictionCache(cfg.Generation.CacheTTL(), cfg.Generation.CacheMaxSize)
	a.Orchestrator = service.NewOrchestrator(
		a.Repos.PropLine,
		a.Repos.Prediction,
		a.Builder,
		a.Registry,
		a.Cache,
		locker,
		service.OrchestratorConfig{
			WaitTimeout:       cfg.Generation.WaitTimeout(),
			GenerationTimeout: cfg.Generation.GenerationTimeout(),
			LockTTL:           cfg.Generation.LockTTL(),
		},
		log,
	)
	// Replicas sharing a Redis lock also share forced regenerations, so
	// their in-process caches are invalidated over pub/sub.
	if cfg.Generation.LockBackend == config.BackendRedis {
		a.Invalidation = service.NewRedisCacheInvalidation(a.Redis, a.Cache, log)
		a.Orchestrator.SetInvalidator(a.Invalidation)
	}
	a.Search = service.NewPlayerSearch(a.Repos.Player)
	a.Props = service.NewPropsService(a.Repos, a.Orchestrator, a.Search, cfg.Generation.ListingConcurrency, log)

	a.Drift = service.NewDriftMonitor(a.Repos.Prediction, a.Registry, a.publisher(), service.DriftConfig{
		LookbackDays: cfg.Drift.LookbackDays,
		Threshold:    cfg.Drift.Threshold,
		MinSamples:   cfg.Drift.MinSamples,
	}, log)

	a.Training = service.NewTrainingService(a.Repos.PropLine, a.Builder, ml.NewTrainer(ml.DefaultTrainerConfig(), log), a.Registry, log)

	if cfg.RateLimit.Enabled {
		local := ratelimit.NewMemoryStore(time.Minute)
		var store ratelimit.Store = local
		var fallback ratelimit.Store
		if cfg.RateLimit.Backend == config.BackendRedis {
			store = ratelimit.NewRedisStore(a.Redis)
			fallback = local
		}
		a.Governor = ratelimit.NewGovernor(store, fallback, cfg.RateLimit.Window(), ratelimit.LimitsFromConfig(&cfg.RateLimit), log)
	}
}

// publisher logs every recommendation and also posts it when a webhook is configured
func (a *App) publisher() notify.Publisher {
	pubs := notify.MultiPublisher{notify.NewLogPublisher(a.Logger)}
	if url := a.Config.Drift.WebhookURL; url != "" {
		wcfg := notify.DefaultWebhookConfig(url)
		wcfg.Token = a.Config.Drift.WebhookToken
		if a.Config.Drift.WebhookRatePerMinute > 0 {
			wcfg.RatePerMinute = a.Config.Drift.WebhookRatePerMinute
		}
		pubs = append(pubs, notify.NewWebhookPublisher(wcfg, a.Logger))
	}
	return pubs
}

// LoadModel loads the latest published model into the registry
func (a *App) LoadModel(ctx context.Context) error {
	p, err := a.Registry.LoadLatest(ctx)
	if err != nil {
		return err
	}
	a.Logger.WithField("model_version_id", p.VersionID()).Info("Model loaded")
	return nil
}

// Close releases connections
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.WithError(err).Error("Failed to close redis client")
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
