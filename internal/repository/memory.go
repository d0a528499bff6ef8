package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yourusername/propcast/internal/models"
)

// MemoryStore keeps every table in process. It mirrors the PostgreSQL
// uniqueness rules and is used for the memory storage backend and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	players     map[int64]*models.Player
	games       map[int64]*models.Game
	stats       map[int64][]*models.PlayerStat
	defense     map[string]float64
	props       map[int64]*models.PropLine
	predictions map[int64]*models.Prediction
	nextID      int64
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		players:     make(map[int64]*models.Player),
		games:       make(map[int64]*models.Game),
		stats:       make(map[int64][]*models.PlayerStat),
		defense:     make(map[string]float64),
		props:       make(map[int64]*models.PropLine),
		predictions: make(map[int64]*models.Prediction),
	}
}

func (s *MemoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func defenseKey(team, season string) string {
	return season + "/" + team
}

type memoryPlayers struct{ s *MemoryStore }

func (r *memoryPlayers) Upsert(ctx context.Context, player *models.Player) error {
	if strings.TrimSpace(player.ExternalID) == "" {
		return models.NewValidationError("player external_id is required")
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now().UTC()
	for _, existing := range r.s.players {
		if existing.ExternalID == player.ExternalID {
			existing.Team = player.Team
			existing.UpdatedAt = now
			*player = *existing
			return nil
		}
	}
	// A caller-assigned id is kept so seeded fixtures can use known ids
	if _, taken := r.s.players[player.ID]; player.ID <= 0 || taken {
		player.ID = r.s.id()
	} else if player.ID > r.s.nextID {
		r.s.nextID = player.ID
	}
	player.CreatedAt = now
	player.UpdatedAt = now
	stored := *player
	r.s.players[player.ID] = &stored
	return nil
}

func (r *memoryPlayers) GetByID(ctx context.Context, id int64) (*models.Player, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.players[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	out := *p
	return &out, nil
}

func (r *memoryPlayers) List(ctx context.Context) ([]*models.Player, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*models.Player, 0, len(r.s.players))
	for _, p := range r.s.players {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FullName != out[j].FullName {
			return out[i].FullName < out[j].FullName
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type memoryGames struct{ s *MemoryStore }

func (r *memoryGames) Upsert(ctx context.Context, game *models.Game) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.games {
		if sameDay(existing.GameDate, game.GameDate) && existing.HomeTeam == game.HomeTeam && existing.AwayTeam == game.AwayTeam {
			if game.StartsAt != nil {
				existing.StartsAt = game.StartsAt
			}
			game.ID = existing.ID
			return nil
		}
	}
	game.ID = r.s.id()
	stored := *game
	r.s.games[game.ID] = &stored
	return nil
}

func (r *memoryGames) GetByDate(ctx context.Context, date time.Time) ([]*models.Game, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.Game
	for _, g := range r.s.games {
		if sameDay(g.GameDate, date) {
			cp := *g
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryGames) GetMatchup(ctx context.Context, playerID int64, date time.Time) (*models.Matchup, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.players[playerID]
	if !ok {
		return nil, models.ErrNotFound
	}
	var match *models.Game
	for _, g := range r.s.games {
		if sameDay(g.GameDate, date) && g.Involves(p.Team) && (match == nil || g.ID < match.ID) {
			match = g
		}
	}
	if match == nil {
		return nil, models.ErrNotFound
	}
	g := *match
	return &models.Matchup{
		Game:     &g,
		Team:     p.Team,
		Opponent: g.Opponent(p.Team),
		IsHome:   g.HomeTeam == p.Team,
	}, nil
}

type memoryPlayerStats struct{ s *MemoryStore }

func (r *memoryPlayerStats) Insert(ctx context.Context, stat *models.PlayerStat) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.stats[stat.PlayerID] {
		if existing.GameID == stat.GameID && (stat.GameID != 0 || sameDay(existing.GameDate, stat.GameDate)) {
			return models.ErrDuplicateKey
		}
	}
	stat.ID = r.s.id()
	stored := *stat
	r.s.stats[stat.PlayerID] = append(r.s.stats[stat.PlayerID], &stored)
	return nil
}

func (r *memoryPlayerStats) GetRecent(ctx context.Context, playerID int64, before time.Time, limit int) ([]*models.PlayerStat, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.PlayerStat
	for _, st := range r.s.stats[playerID] {
		if st.GameDate.Before(before) && !sameDay(st.GameDate, before) {
			cp := *st
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameDate.After(out[j].GameDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryPlayerStats) GetRange(ctx context.Context, playerID int64, from, before time.Time) ([]*models.PlayerStat, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.PlayerStat
	for _, st := range r.s.stats[playerID] {
		if !st.GameDate.Before(from) && st.GameDate.Before(before) {
			cp := *st
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameDate.Before(out[j].GameDate) })
	return out, nil
}

// pointsOn returns the player's points on a date; caller holds the lock
func (s *MemoryStore) pointsOn(playerID int64, date time.Time) (int, bool) {
	for _, st := range s.stats[playerID] {
		if sameDay(st.GameDate, date) {
			return st.Points, true
		}
	}
	return 0, false
}

type memoryTeamDefense struct{ s *MemoryStore }

func (r *memoryTeamDefense) Upsert(ctx context.Context, d *models.TeamDefense) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.defense[defenseKey(d.Team, d.Season)] = d.DefensiveRating
	return nil
}

func (r *memoryTeamDefense) GetRating(ctx context.Context, team, season string) (float64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rating, ok := r.s.defense[defenseKey(team, season)]
	if !ok {
		return 0, models.ErrNotFound
	}
	return rating, nil
}

func (r *memoryTeamDefense) GetLeagueAverage(ctx context.Context, season string) (float64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var sum float64
	var n int
	prefix := season + "/"
	for k, v := range r.s.defense {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, models.ErrNotFound
	}
	return sum / float64(n), nil
}

type memoryPropLines struct{ s *MemoryStore }

func (r *memoryPropLines) Upsert(ctx context.Context, prop *models.PropLine) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if prop.FetchedAt.IsZero() {
		prop.FetchedAt = time.Now().UTC()
	}
	for _, existing := range r.s.props {
		if existing.PlayerID == prop.PlayerID && sameDay(existing.GameDate, prop.GameDate) && existing.Sportsbook == prop.Sportsbook {
			existing.Line = prop.Line
			existing.FetchedAt = prop.FetchedAt
			prop.ID = existing.ID
			return nil
		}
	}
	prop.ID = r.s.id()
	stored := *prop
	r.s.props[prop.ID] = &stored
	return nil
}

func (r *memoryPropLines) GetByID(ctx context.Context, id int64) (*models.PropLine, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.props[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	out := *p
	return &out, nil
}

func (r *memoryPropLines) GetLatestForPlayerDate(ctx context.Context, playerID int64, date time.Time) (*models.PropLine, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p := r.s.latestProp(playerID, date)
	if p == nil {
		return nil, models.ErrNotFound
	}
	out := *p
	return &out, nil
}

// latestProp picks the most recently fetched line for a key; caller holds the lock
func (s *MemoryStore) latestProp(playerID int64, date time.Time) *models.PropLine {
	var best *models.PropLine
	for _, p := range s.props {
		if p.PlayerID != playerID || !sameDay(p.GameDate, date) {
			continue
		}
		if best == nil || p.FetchedAt.After(best.FetchedAt) || (p.FetchedAt.Equal(best.FetchedAt) && p.ID > best.ID) {
			best = p
		}
	}
	return best
}

func (r *memoryPropLines) ListByDate(ctx context.Context, date time.Time) ([]*models.PropLine, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	seen := make(map[int64]bool)
	var out []*models.PropLine
	for _, p := range r.s.props {
		if !sameDay(p.GameDate, date) || seen[p.PlayerID] {
			continue
		}
		seen[p.PlayerID] = true
		cp := *r.s.latestProp(p.PlayerID, date)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out, nil
}

func (r *memoryPropLines) ListSettled(ctx context.Context, from, to time.Time) ([]*models.SettledProp, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	type key struct {
		player int64
		date   string
	}
	seen := make(map[key]bool)
	var out []*models.SettledProp
	for _, p := range r.s.props {
		if p.GameDate.Before(from) || p.GameDate.After(to) {
			continue
		}
		k := key{p.PlayerID, p.GameDate.Format("2006-01-02")}
		if seen[k] {
			continue
		}
		seen[k] = true
		points, ok := r.s.pointsOn(p.PlayerID, p.GameDate)
		if !ok {
			continue
		}
		cp := *r.s.latestProp(p.PlayerID, p.GameDate)
		out = append(out, &models.SettledProp{Prop: &cp, Points: points})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Prop.GameDate.Equal(out[j].Prop.GameDate) {
			return out[i].Prop.GameDate.Before(out[j].Prop.GameDate)
		}
		return out[i].Prop.PlayerID < out[j].Prop.PlayerID
	})
	return out, nil
}

type memoryPredictions struct{ s *MemoryStore }

func (r *memoryPredictions) Upsert(ctx context.Context, p *models.Prediction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if existing, ok := r.s.predictions[p.PropLineID]; ok {
		p.ID = existing.ID
	} else {
		p.ID = r.s.id()
	}
	stored := *p
	r.s.predictions[p.PropLineID] = &stored
	return nil
}

func (r *memoryPredictions) GetByPropLineID(ctx context.Context, propLineID int64) (*models.Prediction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.predictions[propLineID]
	if !ok {
		return nil, models.ErrNotFound
	}
	out := *p
	return &out, nil
}

func (r *memoryPredictions) GetOutcomes(ctx context.Context, from, to time.Time) ([]*models.PredictionOutcome, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.PredictionOutcome
	for _, pred := range r.s.predictions {
		prop, ok := r.s.props[pred.PropLineID]
		if !ok || prop.GameDate.Before(from) || !prop.GameDate.Before(to) {
			continue
		}
		points, ok := r.s.pointsOn(prop.PlayerID, prop.GameDate)
		if !ok {
			continue
		}
		out = append(out, &models.PredictionOutcome{
			PropLineID:     pred.PropLineID,
			ProbOver:       pred.ProbOver,
			ModelVersionID: pred.ModelVersionID,
			WentOver:       prop.WentOver(points),
			GameDate:       prop.GameDate,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].GameDate.Equal(out[j].GameDate) {
			return out[i].GameDate.Before(out[j].GameDate)
		}
		return out[i].PropLineID < out[j].PropLineID
	})
	return out, nil
}

// PredictionCount returns the number of stored predictions
func (s *MemoryStore) PredictionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.predictions)
}
