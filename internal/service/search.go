package service

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/yourusername/propcast/internal/models"
	"github.com/yourusername/propcast/internal/repository"
)

// PlayerMatch is one ranked search hit
type PlayerMatch struct {
	Player   *models.Player `json:"player"`
	Distance int            `json:"distance"`
	Exact    bool           `json:"exact"`
}

// PlayerSearch resolves free-text names to players
type PlayerSearch struct {
	players repository.PlayerRepository
}

// NewPlayerSearch creates a search over players
func NewPlayerSearch(players repository.PlayerRepository) *PlayerSearch {
	return &PlayerSearch{players: players}
}

// NormalizeName lowercases, strips accents and punctuation and collapses whitespace
func NormalizeName(name string) string {
	stripped, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), name)
	if err != nil {
		stripped = name
	}

	var b strings.Builder
	for _, r := range strings.ToLower(stripped) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Search returns up to limit players ranked by exact match, edit distance, then name
func (s *PlayerSearch) Search(ctx context.Context, query string, limit int) ([]PlayerMatch, error) {
	q := NormalizeName(query)
	if q == "" {
		return nil, models.NewValidationError("search query is required")
	}

	players, err := s.players.List(ctx)
	if err != nil {
		return nil, models.NewDatabaseError("list players", err)
	}

	maxDistance := len([]rune(q)) / 4
	if maxDistance < 2 {
		maxDistance = 2
	}
	qTokens := strings.Fields(q)

	var matches []PlayerMatch
	for _, p := range players {
		name := NormalizeName(p.FullName)
		if name == q {
			matches = append(matches, PlayerMatch{Player: p, Exact: true})
			continue
		}
		d := levenshtein(q, name)
		if d <= maxDistance || containsTokens(strings.Fields(name), qTokens) {
			matches = append(matches, PlayerMatch{Player: p, Distance: d})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Exact != b.Exact {
			return a.Exact
		}
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		return a.Player.FullName < b.Player.FullName
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Resolve returns the single best match for name
func (s *PlayerSearch) Resolve(ctx context.Context, name string) (*models.Player, error) {
	if NormalizeName(name) == "" {
		return nil, models.NewValidationError("player name is required")
	}
	matches, err := s.Search(ctx, name, 1)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, models.NewPlayerNotFoundError(name)
	}
	return matches[0].Player, nil
}

// containsTokens reports whether every query token appears in name
func containsTokens(name, query []string) bool {
	if len(query) == 0 {
		return false
	}
	for _, q := range query {
		found := false
		for _, n := range name {
			if n == q {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
