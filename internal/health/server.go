// Package health serves liveness and readiness probes on their own port so
// orchestrators can probe the API process without touching the rate limiter.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/propcast/internal/ml"
)

// Check probes one dependency and returns a short detail for the response
type Check func(ctx context.Context) (string, error)

// NamedCheck is a readiness check reported under Name
type NamedCheck struct {
	Name  string
	Check Check
}

// DatabasePinger checks database connectivity
type DatabasePinger interface {
	Ping(ctx context.Context) error
}

// ModelSource reports the model being served
type ModelSource interface {
	Current() (*ml.CalibratedPredictor, error)
}

// DatabaseCheck pings the pool
func DatabaseCheck(db DatabasePinger) NamedCheck {
	return NamedCheck{Name: "database", Check: func(ctx context.Context) (string, error) {
		if err := db.Ping(ctx); err != nil {
			return "", err
		}
		return "ok", nil
	}}
}

// RedisCheck pings the shared rate-limit and lock store
func RedisCheck(client *redis.Client) NamedCheck {
	return NamedCheck{Name: "redis", Check: func(ctx context.Context) (string, error) {
		if err := client.Ping(ctx).Err(); err != nil {
			return "", err
		}
		return "ok", nil
	}}
}

// ModelCheck fails until a model version is being served
func ModelCheck(src ModelSource) NamedCheck {
	return NamedCheck{Name: "model", Check: func(ctx context.Context) (string, error) {
		p, err := src.Current()
		if err != nil {
			return "not_loaded", err
		}
		return p.VersionID(), nil
	}}
}

// HealthResponse is the body of /health and /live
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version,omitempty"`
	Model   string `json:"model_version,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// ReadyResponse is the body of /ready
type ReadyResponse struct {
	Status   string            `json:"status"`
	Service  string            `json:"service"`
	Checks   map[string]string `json:"checks"`
	Duration string            `json:"duration,omitempty"`
}

// Config configures the probe server
type Config struct {
	ServiceName  string
	Version      string
	Port         int
	Logger       *logrus.Logger
	Model        ModelSource
	Checks       []NamedCheck
	CheckTimeout time.Duration
}

// Server is the probe server. Ready requires SetReady(true) and every
// configured check to pass.
type Server struct {
	cfg     Config
	addr    string
	started time.Time
	ready   atomic.Bool
	server  *http.Server
}

// NewServer creates a probe server
func NewServer(cfg Config) *Server {
	if cfg.Port == 0 {
		cfg.Port = 8081
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = 3 * time.Second
	}
	return &Server{
		cfg:     cfg,
		addr:    fmt.Sprintf(":%d", cfg.Port),
		started: time.Now(),
	}
}

// SetReady marks the service as accepting traffic
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// IsReady reports the manual readiness flag
func (s *Server) IsReady() bool {
	return s.ready.Load()
}

// Handler returns the probe routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/live", s.handleLive)
	mux.HandleFunc("/ready", s.handleReady)
	return mux
}

// Start listens in the background until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		s.cfg.Logger.WithField("addr", s.addr).Info("Health check server starting")
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.cfg.Logger.WithError(err).Error("Health check server error")
		}
	}()

	go func() {
		<-ctx.Done()
		if err := s.Shutdown(); err != nil {
			s.cfg.Logger.WithError(err).Warn("Health check server shutdown error")
		}
	}()

	return nil
}

// Shutdown stops the server, waiting up to five seconds
func (s *Server) Shutdown() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Service: s.cfg.ServiceName,
		Version: s.cfg.Version,
		Uptime:  time.Since(s.started).Truncate(time.Second).String(),
	}
	if s.cfg.Model != nil {
		if p, err := s.cfg.Model.Current(); err == nil {
			resp.Model = p.VersionID()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Service: s.cfg.ServiceName})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	checks := make(map[string]string, len(s.cfg.Checks)+1)
	healthy := s.IsReady()

	checks["service"] = "ok"
	if !healthy {
		checks["service"] = "not_ready"
	}

	for _, c := range s.cfg.Checks {
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.CheckTimeout)
		detail, err := c.Check(ctx)
		cancel()

		switch {
		case err != nil && detail != "":
			checks[c.Name] = detail
		case err != nil:
			checks[c.Name] = "error: " + err.Error()
		default:
			checks[c.Name] = detail
		}
		if err != nil {
			healthy = false
			s.cfg.Logger.WithError(err).WithField("check", c.Name).Debug("Readiness check failed")
		}
	}

	resp := ReadyResponse{
		Status:   "ok",
		Service:  s.cfg.ServiceName,
		Checks:   checks,
		Duration: time.Since(start).String(),
	}
	status := http.StatusOK
	if !healthy {
		resp.Status = "not_ready"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
