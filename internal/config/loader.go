package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PROPCAST_APP_LOG_LEVEL
const EnvPrefix = "PROPCAST"

// DefaultPath is used when no config path is given
const DefaultPath = "config/config.yaml"

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// Load reads and parses the configuration from file and environment variables.
// It expands environment variable placeholders in the YAML file (${VAR_NAME}).
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v := newViper()
	if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

// LoadWithDefaults loads configuration with default values for optional fields.
// A missing file is not an error; defaults and environment variables apply.
func LoadWithDefaults(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultPath
	}

	v := newViper()
	setDefaults(v)

	if data, err := os.ReadFile(configPath); err == nil {
		if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "propcast")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.write_timeout_seconds", 60)
	v.SetDefault("health.port", 8081)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.max_idle_connections", 2)

	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("model.registry_backend", BackendFile)
	v.SetDefault("model.registry_dir", "models")
	v.SetDefault("model.reload_interval_seconds", 60)

	v.SetDefault("features.window_size", 5)
	v.SetDefault("features.rest_clip_days", 10)
	v.SetDefault("features.league_average_fallback", 110.0)

	v.SetDefault("generation.wait_timeout_seconds", 10)
	v.SetDefault("generation.generation_timeout_seconds", 30)
	v.SetDefault("generation.lock_backend", BackendMemory)
	v.SetDefault("generation.lock_ttl_seconds", 30)
	v.SetDefault("generation.lock_poll_millis", 100)
	v.SetDefault("generation.cache_ttl_seconds", 300)
	v.SetDefault("generation.cache_max_size", 10000)
	v.SetDefault("generation.listing_concurrency", 8)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.backend", BackendMemory)
	v.SetDefault("rate_limit.window_seconds", 3600)
	v.SetDefault("rate_limit.list_budget", 100)
	v.SetDefault("rate_limit.lookup_budget", 100)
	v.SetDefault("rate_limit.search_budget", 200)
	v.SetDefault("rate_limit.generate_budget", 10)

	v.SetDefault("drift.cron", "0 6 * * *")
	v.SetDefault("drift.lookback_days", 14)
	v.SetDefault("drift.threshold", 0.08)
	v.SetDefault("drift.min_samples", 50)
	v.SetDefault("drift.webhook_rate_per_minute", 6)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}
