// Package api exposes the prediction service over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/propcast/internal/metrics"
	"github.com/yourusername/propcast/internal/ml"
	"github.com/yourusername/propcast/internal/models"
	"github.com/yourusername/propcast/internal/ratelimit"
	"github.com/yourusername/propcast/internal/service"
)

// PropsService serves the listing, lookup and forced generation
type PropsService interface {
	ListProps(ctx context.Context, date time.Time) ([]*models.PropListing, error)
	PlayerProp(ctx context.Context, name string, date time.Time) (*service.PlayerDetail, error)
	Generate(ctx context.Context, playerID int64, date time.Time) (*service.PlayerDetail, error)
}

// PlayerSearcher ranks players for a free-text query
type PlayerSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]service.PlayerMatch, error)
}

// ModelAdmin exposes the registry operations behind the admin routes
type ModelAdmin interface {
	Current() (*ml.CalibratedPredictor, error)
	Reload(ctx context.Context) (bool, error)
	Versions(ctx context.Context) ([]*models.ModelVersion, error)
}

// Config controls the router
type Config struct {
	CORSOrigins []string
	AdminToken  string
	TrustProxy  bool
	// MetricsPath serves Prometheus metrics when set
	MetricsPath string
}

// Server is the HTTP API
type Server struct {
	router   chi.Router
	props    PropsService
	search   PlayerSearcher
	models   ModelAdmin
	governor *ratelimit.Governor
	validate *validator.Validate
	cfg      Config
	logger   *logrus.Logger
	now      func() time.Time
}

// NewServer builds the router. governor may be nil to disable rate limiting.
func NewServer(props PropsService, search PlayerSearcher, admin ModelAdmin, governor *ratelimit.Governor, cfg Config, logger *logrus.Logger) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		props:    props,
		search:   search,
		models:   admin,
		governor: governor,
		validate: validator.New(),
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router
	if s.cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(requestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{HeaderRateLimit, HeaderRateRemaining, HeaderRateReset, "Retry-After", RequestIDHeader},
		MaxAge:         300,
	}))

	if s.cfg.MetricsPath != "" {
		r.Handle(s.cfg.MetricsPath, metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.With(s.rateLimit(ratelimit.RouteList)).Get("/props", s.listProps)
		r.With(s.rateLimit(ratelimit.RouteLookup)).Get("/props/player", s.playerProp)
		r.With(s.rateLimit(ratelimit.RouteGenerate)).Post("/props/generate", s.generate)
		r.With(s.rateLimit(ratelimit.RouteSearch)).Get("/players/search", s.searchPlayers)

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.adminOnly)
			r.Get("/models", s.listModels)
			r.Post("/models/reload", s.reloadModel)
		})
	})
}
