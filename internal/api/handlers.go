package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/yourusername/propcast/internal/models"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
	maxBodyBytes       = 1 << 16
)

// dateParam parses the date query parameter, defaulting to today
func (s *Server) dateParam(r *http.Request) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("date"))
	if raw == "" {
		y, m, d := s.now().UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	date, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, models.NewInvalidDateFormatError(raw)
	}
	return date, nil
}

// listProps handles GET /api/props
func (s *Server) listProps(w http.ResponseWriter, r *http.Request) {
	date, err := s.dateParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	listings, err := s.props.ListProps(r.Context(), date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := ListResponse{Date: date.Format(DateLayout), Count: len(listings), Props: make([]*PropResponse, 0, len(listings))}
	for _, l := range listings {
		resp.Props = append(resp.Props, newPropResponse(l))
	}
	writeJSON(w, http.StatusOK, resp)
}

// playerProp handles GET /api/props/player
func (s *Server) playerProp(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if strings.TrimSpace(name) == "" {
		s.writeError(w, r, models.NewValidationError("name is required"))
		return
	}
	date, err := s.dateParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	detail, err := s.props.PlayerProp(r.Context(), name, date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPlayerPropResponse(detail))
}

// generate handles POST /api/props/generate
func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, models.NewValidationError(fmt.Sprintf("invalid request body: %v", err)))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, r, requestValidationError(err))
		return
	}
	date, err := time.Parse(DateLayout, req.Date)
	if err != nil {
		s.writeError(w, r, models.NewInvalidDateFormatError(req.Date))
		return
	}

	detail, err := s.props.Generate(r.Context(), req.PlayerID, date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPlayerPropResponse(detail))
}

func requestValidationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return models.NewValidationError(err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Tag() == "datetime" {
			return models.NewInvalidDateFormatError(fmt.Sprint(fe.Value()))
		}
		msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag()))
	}
	return models.NewValidationError("invalid request: " + strings.Join(msgs, "; "))
}

// searchPlayers handles GET /api/players/search
func (s *Server) searchPlayers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxSearchLimit {
			s.writeError(w, r, models.NewValidationError(fmt.Sprintf("limit must be between 1 and %d", maxSearchLimit)))
			return
		}
		limit = n
	}

	matches, err := s.search.Search(r.Context(), q, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := SearchResponse{Query: q, Results: make([]SearchResult, 0, len(matches))}
	for _, m := range matches {
		resp.Results = append(resp.Results, SearchResult{
			PlayerInfo: PlayerInfo{PlayerID: m.Player.ID, FullName: m.Player.FullName, Team: m.Player.Team},
			Distance:   m.Distance,
			Exact:      m.Exact,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// reloadModel handles POST /api/admin/models/reload
func (s *Server) reloadModel(w http.ResponseWriter, r *http.Request) {
	changed, err := s.models.Reload(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.models.Current()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ReloadResponse{Changed: changed, ModelVersionID: p.VersionID()})
}

// listModels handles GET /api/admin/models
func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	versions, err := s.models.Versions(r.Context())
	if err != nil {
		s.writeError(w, r, models.NewDatabaseError("list model versions", err))
		return
	}

	serving := ""
	if p, err := s.models.Current(); err == nil {
		serving = p.VersionID()
	}

	out := make([]ModelVersionResponse, 0, len(versions))
	for _, v := range versions {
		out = append(out, ModelVersionResponse{
			VersionID:      v.VersionID,
			FeatureColumns: v.FeatureColumns,
			CreatedAt:      v.CreatedAt,
			IsLatest:       v.IsLatest,
			Serving:        v.VersionID == serving,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
