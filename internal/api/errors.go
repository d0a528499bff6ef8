package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/propcast/internal/models"
)

// ErrorResponse is the envelope for every failed request
type ErrorResponse struct {
	Status  string           `json:"status"`
	Kind    models.ErrorKind `json:"kind"`
	Message string           `json:"message"`
}

// generationRetryAfter is the Retry-After hint for a timed out generation
const generationRetryAfter = 2 * time.Second

// StatusFor maps an error kind onto an HTTP status
func StatusFor(kind models.ErrorKind) int {
	switch kind {
	case models.KindInvalidDateFormat, models.KindValidation:
		return http.StatusBadRequest
	case models.KindPlayerNotFound, models.KindPropNotFound:
		return http.StatusNotFound
	case models.KindInsufficientData:
		return http.StatusUnprocessableEntity
	case models.KindRateLimited:
		return http.StatusTooManyRequests
	case models.KindGenerationTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError classifies err and writes the envelope. Internal failures are
// logged with their cause and reported to the client without it.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := models.KindOf(err)
	status := StatusFor(kind)
	message := err.Error()

	log := s.logger.WithFields(logrus.Fields{
		"request_id": RequestIDFrom(r.Context()),
		"path":       r.URL.Path,
		"error_kind": kind,
		"status":     status,
	}).WithError(err)
	switch {
	case kind == models.KindGenerationTimeout:
		log.Warn("Request timed out waiting for generation")
	case status >= http.StatusInternalServerError:
		log.Error("Request failed")
	default:
		log.Debug("Request rejected")
	}

	switch kind {
	case models.KindInternal:
		message = "internal error"
	case models.KindDatabase:
		message = "database error"
	}

	if kind == models.KindGenerationTimeout {
		w.Header().Set("Retry-After", strconv.Itoa(int(generationRetryAfter/time.Second)))
	}
	writeJSON(w, status, ErrorResponse{Status: "error", Kind: kind, Message: message})
}
