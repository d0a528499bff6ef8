// Package config provides configuration management for the propcast service.
package config

import (
	"time"
)

// Storage and backend names
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendFile     = "file"
)

// Config represents the complete application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app" validate:"required"`
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Health     HealthConfig     `mapstructure:"health"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage" validate:"required"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Model      ModelConfig      `mapstructure:"model" validate:"required"`
	Features   FeaturesConfig   `mapstructure:"features" validate:"required"`
	Generation GenerationConfig `mapstructure:"generation" validate:"required"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit" validate:"required"`
	Drift      DriftConfig      `mapstructure:"drift"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// ServerConfig represents the public HTTP API
type ServerConfig struct {
	Addr                string   `mapstructure:"addr" validate:"required"`
	ReadTimeoutSeconds  int      `mapstructure:"read_timeout_seconds" validate:"required,gt=0"`
	WriteTimeoutSeconds int      `mapstructure:"write_timeout_seconds" validate:"required,gt=0"`
	CORSOrigins         []string `mapstructure:"cors_origins"`
	AdminToken          string   `mapstructure:"admin_token"`
}

// HealthConfig represents the health probe server
type HealthConfig struct {
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Name               string `mapstructure:"name"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable require verify-full"`
	MaxConnections     int    `mapstructure:"max_connections" validate:"omitempty,gt=0"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections" validate:"omitempty,gt=0"`
	AutoMigrate        bool   `mapstructure:"auto_migrate"`
}

// StorageConfig selects the repository backend
type StorageConfig struct {
	Backend string `mapstructure:"backend" validate:"required,storage"`
}

// RedisConfig represents the shared redis used for rate limits and generation locks
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

// ModelConfig represents the model registry
type ModelConfig struct {
	RegistryBackend       string `mapstructure:"registry_backend" validate:"required,oneof=file postgres"`
	RegistryDir           string `mapstructure:"registry_dir"`
	ReloadIntervalSeconds int    `mapstructure:"reload_interval_seconds" validate:"gte=0"`
}

// FeaturesConfig represents feature construction settings
type FeaturesConfig struct {
	WindowSize            int     `mapstructure:"window_size" validate:"required,gt=0"`
	RestClipDays          int     `mapstructure:"rest_clip_days" validate:"required,gt=0"`
	LeagueAverageFallback float64 `mapstructure:"league_average_fallback" validate:"required,gt=0"`
}

// GenerationConfig represents the prediction orchestrator
type GenerationConfig struct {
	WaitTimeoutSeconds       int    `mapstructure:"wait_timeout_seconds" validate:"required,gt=0"`
	GenerationTimeoutSeconds int    `mapstructure:"generation_timeout_seconds" validate:"required,gt=0"`
	LockBackend              string `mapstructure:"lock_backend" validate:"required,oneof=memory redis"`
	LockTTLSeconds           int    `mapstructure:"lock_ttl_seconds" validate:"required,gt=0"`
	LockPollMillis           int    `mapstructure:"lock_poll_millis" validate:"required,gt=0"`
	CacheTTLSeconds          int    `mapstructure:"cache_ttl_seconds" validate:"required,gt=0"`
	CacheMaxSize             int    `mapstructure:"cache_max_size" validate:"required,gt=0"`
	ListingConcurrency       int    `mapstructure:"listing_concurrency" validate:"required,gt=0"`
	PregenerateCron          string `mapstructure:"pregenerate_cron" validate:"omitempty,cronspec"`
}

// RateLimitConfig represents per-route request budgets
type RateLimitConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Backend        string `mapstructure:"backend" validate:"required,oneof=memory redis"`
	WindowSeconds  int    `mapstructure:"window_seconds" validate:"required,gt=0"`
	ListBudget     int    `mapstructure:"list_budget" validate:"required,gt=0"`
	LookupBudget   int    `mapstructure:"lookup_budget" validate:"required,gt=0"`
	SearchBudget   int    `mapstructure:"search_budget" validate:"required,gt=0"`
	GenerateBudget int    `mapstructure:"generate_budget" validate:"required,gt=0"`
	TrustProxy     bool   `mapstructure:"trust_proxy"`
}

// DriftConfig represents the calibration drift monitor
type DriftConfig struct {
	Enabled              bool    `mapstructure:"enabled"`
	Cron                 string  `mapstructure:"cron" validate:"omitempty,cronspec"`
	LookbackDays         int     `mapstructure:"lookback_days" validate:"gte=0"`
	Threshold            float64 `mapstructure:"threshold" validate:"gte=0,lte=1"`
	MinSamples           int     `mapstructure:"min_samples" validate:"gte=0"`
	WebhookURL           string  `mapstructure:"webhook_url" validate:"omitempty,url"`
	WebhookToken         string  `mapstructure:"webhook_token"`
	WebhookRatePerMinute int     `mapstructure:"webhook_rate_per_minute" validate:"gte=0"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsStaging checks if the application is running in staging mode
func (c *Config) IsStaging() bool {
	return c.App.Environment == "staging"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// NeedsDatabase reports whether any component is backed by PostgreSQL
func (c *Config) NeedsDatabase() bool {
	return c.Storage.Backend == BackendPostgres || c.Model.RegistryBackend == BackendPostgres
}

// NeedsRedis reports whether any component is backed by redis
func (c *Config) NeedsRedis() bool {
	return c.RateLimit.Backend == BackendRedis || c.Generation.LockBackend == BackendRedis
}

// Window returns the rate limit window
func (c *RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// WaitTimeout returns how long a caller waits on an in-flight generation
func (c *GenerationConfig) WaitTimeout() time.Duration {
	return time.Duration(c.WaitTimeoutSeconds) * time.Second
}

// GenerationTimeout bounds one generation run
func (c *GenerationConfig) GenerationTimeout() time.Duration {
	return time.Duration(c.GenerationTimeoutSeconds) * time.Second
}

// LockTTL returns the distributed lock lease
func (c *GenerationConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// LockPoll returns the lock acquisition poll interval
func (c *GenerationConfig) LockPoll() time.Duration {
	return time.Duration(c.LockPollMillis) * time.Millisecond
}

// CacheTTL returns the in-process prediction cache TTL
func (c *GenerationConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}
