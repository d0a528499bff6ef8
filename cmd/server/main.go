// Package main provides the entry point for the prediction API server.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/propcast/internal/api"
	"github.com/yourusername/propcast/internal/app"
	"github.com/yourusername/propcast/internal/config"
	"github.com/yourusername/propcast/internal/health"
	"github.com/yourusername/propcast/internal/logger"
	"github.com/yourusername/propcast/internal/scheduler"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Load AWS secrets if enabled
	if os.Getenv("AWS_SECRETS_ENABLED") == "true" {
		region := os.Getenv("AWS_REGION")
		secretName := os.Getenv("AWS_SECRET_NAME")
		if region == "" || secretName == "" {
			log.Fatalf("AWS_REGION and AWS_SECRET_NAME environment variables must be set when AWS_SECRETS_ENABLED is true")
		}
		if err := config.LoadSecretsFromAWS(context.Background(), cfg, region, secretName); err != nil {
			log.Fatalf("Failed to load secrets: %v", err)
		}
	}

	if err := config.Validate(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	appLog := logger.NewLoggerForEnvironment(cfg.App.LogLevel, cfg.App.Environment)
	appLog.WithFields(logrus.Fields{
		"environment": cfg.App.Environment,
		"version":     Version,
		"commit":      GitCommit,
		"storage":     cfg.Storage.Backend,
		"registry":    cfg.Model.RegistryBackend,
	}).Info("Propcast API starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, appLog)
	if err != nil {
		appLog.WithError(err).Fatal("Failed to initialize application")
	}
	defer a.Close()

	// Serving continues without a model; predictions fail with ModelNotLoadedError
	// until one is published and reloaded.
	if err := a.LoadModel(ctx); err != nil {
		appLog.WithError(err).Error("No model loaded at startup")
	}

	if a.Invalidation != nil {
		go func() {
			if err := a.Invalidation.Run(ctx); err != nil {
				appLog.WithError(err).Error("Prediction cache invalidation stopped")
			}
		}()
	}

	var checks []health.NamedCheck
	if a.DB != nil {
		checks = append(checks, health.DatabaseCheck(a.DB))
	}
	if a.Redis != nil {
		checks = append(checks, health.RedisCheck(a.Redis))
	}
	checks = append(checks, health.ModelCheck(a.Registry))
	healthServer := health.NewServer(health.Config{
		ServiceName: cfg.App.Name,
		Version:     Version,
		Port:        cfg.Health.Port,
		Logger:      appLog,
		Model:       a.Registry,
		Checks:      checks,
	})
	if err := healthServer.Start(ctx); err != nil {
		appLog.WithError(err).Fatal("Failed to start health server")
	}

	sched := scheduler.NewScheduler(appLog)
	if err := scheduleJobs(sched, a); err != nil {
		appLog.WithError(err).Fatal("Failed to schedule jobs")
	}
	if len(sched.Entries()) > 0 {
		if err := sched.Start(); err != nil {
			appLog.WithError(err).Fatal("Failed to start scheduler")
		}
	}

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	handler := api.NewServer(a.Props, a.Search, a.Registry, a.Governor, api.Config{
		CORSOrigins: cfg.Server.CORSOrigins,
		AdminToken:  cfg.Server.AdminToken,
		TrustProxy:  cfg.RateLimit.TrustProxy,
		MetricsPath: metricsPath,
	}, appLog)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		appLog.WithField("addr", cfg.Server.Addr).Info("API server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.WithError(err).Fatal("API server error")
		}
	}()
	healthServer.SetReady(true)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	appLog.WithField("signal", sig).Info("Shutdown signal received")

	healthServer.SetReady(false)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.WithError(err).Error("API server shutdown error")
	}
	if err := sched.Stop(); err != nil {
		appLog.WithError(err).Error("Scheduler shutdown error")
	}
	cancel()

	appLog.Info("Propcast API stopped")
}

func scheduleJobs(sched *scheduler.Scheduler, a *app.App) error {
	cfg := a.Config
	if cfg.Drift.Enabled {
		if err := sched.ScheduleDriftCheck(cfg.Drift.Cron, a.Drift); err != nil {
			return err
		}
	}
	if cfg.Generation.PregenerateCron != "" {
		if err := sched.SchedulePregeneration(cfg.Generation.PregenerateCron, a.Props); err != nil {
			return err
		}
	}
	if cfg.Model.ReloadIntervalSeconds > 0 {
		if err := sched.ScheduleModelReload(cfg.Model.ReloadIntervalSeconds, a.Registry); err != nil {
			return err
		}
	}
	return nil
}
