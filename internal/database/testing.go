package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/yourusername/propcast/internal/config"
)

// TestConfigEnv names the config file used by integration tests
const TestConfigEnv = "PROPCAST_TEST_CONFIG"

// SetupTestDB connects to the integration database and applies the schema.
// The test is skipped when PROPCAST_TEST_CONFIG is unset.
func SetupTestDB(t *testing.T) *DB {
	t.Helper()

	path := os.Getenv(TestConfigEnv)
	if path == "" {
		t.Skipf("integration test: set %s to a config file with a reachable database", TestConfigEnv)
	}

	cfg, err := config.LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("failed to load test config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		t.Fatalf("failed to create test database connection: %v", err)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// TeardownTestDB truncates the tables written by tests and closes the pool
func TeardownTestDB(t *testing.T, db *DB) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := db.pool.Exec(ctx, `TRUNCATE model_pointer, model_versions, predictions, prop_lines,
		player_stats, team_defense, games, players RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Logf("warning: failed to truncate test database: %v", err)
	}
	db.Close()
}
