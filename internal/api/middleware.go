package api

import (
	"context"
	"crypto/subtle"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/propcast/internal/metrics"
	"github.com/yourusername/propcast/internal/models"
	"github.com/yourusername/propcast/internal/ratelimit"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

// Rate limit response headers
const (
	HeaderRateLimit     = "X-RateLimit-Limit"
	HeaderRateRemaining = "X-RateLimit-Remaining"
	HeaderRateReset     = "X-RateLimit-Reset"
)

// RequestIDFrom returns the id assigned to the request, if any
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// requestID keeps a caller-supplied id or assigns a new one
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// requestLogger logs each request and records its latency by route pattern
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		elapsed := time.Since(start)
		metrics.ObserveHTTPRequest(route, strconv.Itoa(status), elapsed.Seconds())

		s.logger.WithFields(logrus.Fields{
			"request_id":  RequestIDFrom(r.Context()),
			"method":      r.Method,
			"route":       route,
			"status":      status,
			"duration_ms": elapsed.Milliseconds(),
			"client":      clientKey(r),
		}).Debug("HTTP request")
	})
}

// clientKey identifies the caller for rate limiting. RealIP has already
// rewritten RemoteAddr when proxy headers are trusted.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// rateLimit admits the request against route's budget and sets quota headers
func (s *Server) rateLimit(route ratelimit.Route) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.governor == nil {
				next.ServeHTTP(w, r)
				return
			}

			decision, err := s.governor.Admit(r.Context(), clientKey(r), route)
			if err != nil {
				s.logger.WithError(err).WithField("route", route).Error("Rate limit check failed, admitting request")
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set(HeaderRateLimit, strconv.FormatInt(decision.Limit, 10))
			h.Set(HeaderRateRemaining, strconv.FormatInt(decision.Remaining, 10))
			h.Set(HeaderRateReset, strconv.FormatInt(decision.ResetAt.Unix(), 10))

			if !decision.Allowed {
				retry := decision.RetryAfter(time.Now())
				h.Set("Retry-After", strconv.Itoa(int((retry+time.Second-1)/time.Second)))
				s.writeError(w, r, models.NewRateLimitedError(string(route), decision.Limit))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// adminOnly requires the configured bearer token; without one the admin
// routes are closed.
func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if s.cfg.AdminToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) != 1 {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{
				Status:  "error",
				Kind:    models.KindValidation,
				Message: "admin token required",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
