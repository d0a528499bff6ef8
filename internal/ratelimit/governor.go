// Package ratelimit admits or rejects requests per client and route using
// fixed windows over a swappable counter store.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/propcast/internal/config"
	"github.com/yourusername/propcast/internal/logger"
	"github.com/yourusername/propcast/internal/metrics"
)

// Route identifies a budgeted endpoint group
type Route string

const (
	RouteList     Route = "list"
	RouteLookup   Route = "lookup"
	RouteSearch   Route = "search"
	RouteGenerate Route = "generate"
)

// Decision is the outcome of one admission check
type Decision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// RetryAfter returns how long a rejected client should wait
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.ResetAt.Before(now) {
		return 0
	}
	return d.ResetAt.Sub(now)
}

// Store counts hits per key. Increment adds one and returns the new count;
// the counter must live for at least ttl after its first increment.
type Store interface {
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Governor enforces per-route budgets over fixed windows
type Governor struct {
	store    Store
	fallback Store
	window   time.Duration
	limits   map[Route]int64
	audit    *logger.AuditLogger
	logger   *logrus.Logger
	now      func() time.Time
}

// NewGovernor creates a governor. fallback is used when store errors and may be nil.
func NewGovernor(store, fallback Store, window time.Duration, limits map[Route]int64, log *logrus.Logger) *Governor {
	copied := make(map[Route]int64, len(limits))
	for r, l := range limits {
		copied[r] = l
	}
	return &Governor{
		store:    store,
		fallback: fallback,
		window:   window,
		limits:   copied,
		audit:    logger.NewAuditLogger(log),
		logger:   log,
		now:      time.Now,
	}
}

// LimitsFromConfig maps configured budgets onto routes
func LimitsFromConfig(cfg *config.RateLimitConfig) map[Route]int64 {
	return map[Route]int64{
		RouteList:     int64(cfg.ListBudget),
		RouteLookup:   int64(cfg.LookupBudget),
		RouteSearch:   int64(cfg.SearchBudget),
		RouteGenerate: int64(cfg.GenerateBudget),
	}
}

// Limit returns the budget of route, zero when unknown
func (g *Governor) Limit(route Route) int64 {
	return g.limits[route]
}

// Window returns the configured window length
func (g *Governor) Window() time.Duration {
	return g.window
}

// WindowStart aligns t down to the window boundary
func (g *Governor) WindowStart(t time.Time) time.Time {
	secs := int64(g.window / time.Second)
	if secs <= 0 {
		secs = 1
	}
	return time.Unix((t.Unix()/secs)*secs, 0).UTC()
}

// Key is the counter key for a client, route and window
func Key(route Route, clientKey string, windowStart time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%s:%d", route, clientKey, windowStart.Unix())
}

// Admit counts one request and reports whether it is within budget.
// A request for an unknown route is an error.
func (g *Governor) Admit(ctx context.Context, clientKey string, route Route) (Decision, error) {
	limit, ok := g.limits[route]
	if !ok {
		return Decision{}, fmt.Errorf("no rate limit configured for route %q", route)
	}

	now := g.now()
	start := g.WindowStart(now)
	reset := start.Add(g.window)
	key := Key(route, clientKey, start)
	ttl := reset.Sub(now)

	count, err := g.store.Increment(ctx, key, ttl)
	if err != nil {
		if g.fallback == nil {
			return Decision{}, fmt.Errorf("failed to increment rate limit counter: %w", err)
		}
		g.logger.WithError(err).WithField("route", route).Warn("Rate limit store unavailable, using in-process counters")
		metrics.RecordRateLimitFallback()
		count, err = g.fallback.Increment(ctx, key, ttl)
		if err != nil {
			return Decision{}, fmt.Errorf("failed to increment fallback rate limit counter: %w", err)
		}
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	d := Decision{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   reset,
	}

	metrics.RecordRateLimitDecision(string(route), d.Allowed)
	if !d.Allowed {
		g.audit.LogRateLimitExceeded(string(route), clientKey, limit)
	}
	return d, nil
}
