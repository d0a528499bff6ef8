package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/propcast/internal/models"
	"github.com/yourusername/propcast/internal/repository"
)

// recentGamesShown is how many box scores the player detail includes
const recentGamesShown = 10

// PlayerDetail is the full lookup response for one player and date
type PlayerDetail struct {
	Player         *models.Player
	Game           *models.Game
	Prop           *models.PropLine
	RecentGames    []*models.PlayerStat
	SeasonAverages *models.SeasonAverages
	Prediction     *models.Prediction
	Source         string
}

// PropsService serves the per-date listing and the player lookup
type PropsService struct {
	repos       *repository.Repositories
	orch        *Orchestrator
	search      *PlayerSearch
	concurrency int
	logger      *logrus.Logger
}

// NewPropsService creates the read-side service
func NewPropsService(repos *repository.Repositories, orch *Orchestrator, search *PlayerSearch, concurrency int, logger *logrus.Logger) *PropsService {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &PropsService{
		repos:       repos,
		orch:        orch,
		search:      search,
		concurrency: concurrency,
		logger:      logger,
	}
}

// ListProps returns every prop on date with its prediction, highest
// prob_over first. Props whose prediction cannot be produced are logged and
// left out.
func (s *PropsService) ListProps(ctx context.Context, date time.Time) ([]*models.PropListing, error) {
	props, err := s.repos.PropLine.ListByDate(ctx, date)
	if err != nil {
		return nil, models.NewDatabaseError("list prop lines", err)
	}

	listings := make([]*models.PropListing, len(props))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, prop := range props {
		i, prop := i, prop
		g.Go(func() error {
			listing, err := s.listing(gctx, prop)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.logger.WithFields(logrus.Fields{
					"prop_line_id": prop.ID,
					"player_id":    prop.PlayerID,
					"error_kind":   models.KindOf(err),
				}).WithError(err).Warn("Omitting prop from listing")
				return nil
			}
			listings[i] = listing
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*models.PropListing, 0, len(listings))
	for _, l := range listings {
		if l != nil {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Prediction.ProbOver != out[j].Prediction.ProbOver {
			return out[i].Prediction.ProbOver > out[j].Prediction.ProbOver
		}
		return out[i].Player.FullName < out[j].Player.FullName
	})
	return out, nil
}

func (s *PropsService) listing(ctx context.Context, prop *models.PropLine) (*models.PropListing, error) {
	player, err := s.repos.Player.GetByID(ctx, prop.PlayerID)
	if err != nil {
		return nil, models.NewDatabaseError("get player", err)
	}

	var game *models.Game
	matchup, err := s.repos.Game.GetMatchup(ctx, prop.PlayerID, prop.GameDate)
	switch {
	case err == nil:
		game = matchup.Game
	case !errors.Is(err, models.ErrNotFound):
		return nil, models.NewDatabaseError("get matchup", err)
	}

	res, err := s.orch.PredictionFor(ctx, prop, false)
	if err != nil {
		return nil, err
	}
	return &models.PropListing{Prop: prop, Player: player, Game: game, Prediction: res.Prediction}, nil
}

// PlayerProp resolves name and returns the detail for its prop on date
func (s *PropsService) PlayerProp(ctx context.Context, name string, date time.Time) (*PlayerDetail, error) {
	player, err := s.search.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}

	res, err := s.orch.GetOrGenerate(ctx, player.ID, date)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, player, res)
}

// Generate forces a new prediction for the player's prop on date
func (s *PropsService) Generate(ctx context.Context, playerID int64, date time.Time) (*PlayerDetail, error) {
	player, err := s.repos.Player.GetByID(ctx, playerID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.NewPlayerNotFoundError(strconv.FormatInt(playerID, 10))
	}
	if err != nil {
		return nil, models.NewDatabaseError("get player", err)
	}

	res, err := s.orch.Regenerate(ctx, playerID, date)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, player, res)
}

func (s *PropsService) detail(ctx context.Context, player *models.Player, res *Result) (*PlayerDetail, error) {
	date := res.Prop.GameDate

	var game *models.Game
	matchup, err := s.repos.Game.GetMatchup(ctx, player.ID, date)
	switch {
	case err == nil:
		game = matchup.Game
	case !errors.Is(err, models.ErrNotFound):
		return nil, models.NewDatabaseError("get matchup", err)
	}

	recent, err := s.repos.PlayerStat.GetRecent(ctx, player.ID, date, recentGamesShown)
	if err != nil {
		return nil, models.NewDatabaseError("get recent stats", err)
	}

	season, err := s.repos.PlayerStat.GetRange(ctx, player.ID, models.SeasonStart(date), date)
	if err != nil {
		return nil, models.NewDatabaseError("get season stats", err)
	}

	return &PlayerDetail{
		Player:         player,
		Game:           game,
		Prop:           res.Prop,
		RecentGames:    recent,
		SeasonAverages: models.ComputeSeasonAverages(models.SeasonFor(date), season),
		Prediction:     res.Prediction,
		Source:         res.Source,
	}, nil
}

// Pregenerate builds predictions for every prop on date and reports how many succeeded
func (s *PropsService) Pregenerate(ctx context.Context, date time.Time) (int, error) {
	listings, err := s.ListProps(ctx, date)
	if err != nil {
		return 0, err
	}
	s.logger.WithFields(logrus.Fields{
		"date":        date.Format("2006-01-02"),
		"predictions": len(listings),
	}).Info("Pre-generated predictions")
	return len(listings), nil
}
