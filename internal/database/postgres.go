// Package database wraps the pgx connection pool and owns the schema.
package database

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yourusername/propcast/internal/config"
)

// ApplicationName is reported to Postgres in pg_stat_activity
const ApplicationName = "propcast"

// DB owns the pgx pool shared by the repositories and the registry store
type DB struct {
	pool *pgxpool.Pool
}

// ConnString builds a postgres URL from cfg. Credentials are escaped, so
// passwords loaded from Secrets Manager may contain any character.
func ConnString(cfg *config.DatabaseConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.Name,
	}
	q := url.Values{}
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	}
	q.Set("application_name", ApplicationName)
	u.RawQuery = q.Encode()
	return u.String()
}

// NewDB opens the pool and pings once so a bad DSN fails at startup
func NewDB(ctx context.Context, cfg *config.DatabaseConfig) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConnections)
	}
	// idle connections kept warm for listing fan-out
	if cfg.MaxIdleConnections > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConnections)
		if poolConfig.MinConns > poolConfig.MaxConns {
			poolConfig.MinConns = poolConfig.MaxConns
		}
	}
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	poolConfig.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database %s@%s: %w", cfg.Name, cfg.Host, err)
	}

	return &DB{pool: pool}, nil
}

// Ping is used by the readiness probe
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Close waits for acquired connections to be released
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// WithTransaction runs fn in a read-committed transaction. fn's error is
// returned unwrapped after rollback so callers can still classify it.
func (db *DB) WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error {
	return pgx.BeginTxFunc(ctx, db.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
}

// GetPool returns the underlying pool
func (db *DB) GetPool() *pgxpool.Pool {
	return db.pool
}
