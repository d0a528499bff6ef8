package api

import (
	"time"

	"github.com/yourusername/propcast/internal/models"
	"github.com/yourusername/propcast/internal/service"
)

// DateLayout is the wire format of every date parameter
const DateLayout = "2006-01-02"

// PropResponse is one row of the listing
type PropResponse struct {
	PlayerID           int64      `json:"player_id"`
	FullName           string     `json:"full_name"`
	Line               float64    `json:"line"`
	ProbOver           float64    `json:"prob_over"`
	ConfidenceInterval float64    `json:"confidence_interval"`
	HomeTeam           string     `json:"home_team,omitempty"`
	AwayTeam           string     `json:"away_team,omitempty"`
	GameTime           *time.Time `json:"game_time,omitempty"`
	LastUpdated        time.Time  `json:"last_updated"`
}

// ListResponse wraps the listing for a date
type ListResponse struct {
	Date  string          `json:"date"`
	Count int             `json:"count"`
	Props []*PropResponse `json:"props"`
}

// PlayerInfo identifies a player
type PlayerInfo struct {
	PlayerID int64  `json:"player_id"`
	FullName string `json:"full_name"`
	Team     string `json:"team,omitempty"`
}

// GameInfo describes the game a prop belongs to
type GameInfo struct {
	GameDate string     `json:"game_date"`
	HomeTeam string     `json:"home_team"`
	AwayTeam string     `json:"away_team"`
	GameTime *time.Time `json:"game_time,omitempty"`
}

// PropInfo is the line being predicted
type PropInfo struct {
	ID         int64     `json:"id"`
	Line       float64   `json:"line"`
	Sportsbook string    `json:"sportsbook"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// GameLine is one recent box score
type GameLine struct {
	GameDate string  `json:"game_date"`
	Opponent string  `json:"opponent"`
	IsHome   bool    `json:"is_home"`
	Minutes  float64 `json:"minutes"`
	Points   int     `json:"points"`
	Rebounds int     `json:"rebounds"`
	Assists  int     `json:"assists"`
}

// PredictionInfo is the stored prediction for a prop
type PredictionInfo struct {
	ProbOver           float64   `json:"prob_over"`
	ConfidenceInterval float64   `json:"confidence_interval"`
	ModelVersionID     string    `json:"model_version_id"`
	GeneratedAt        time.Time `json:"generated_at"`
	Source             string    `json:"source"`
}

// PlayerPropResponse is the detailed lookup for one player and date
type PlayerPropResponse struct {
	Player         PlayerInfo             `json:"player"`
	Game           *GameInfo              `json:"game,omitempty"`
	Prop           PropInfo               `json:"prop"`
	RecentGames    []GameLine             `json:"recent_games"`
	SeasonAverages *models.SeasonAverages `json:"season_averages"`
	Prediction     PredictionInfo         `json:"prediction"`
}

// SearchResult is one ranked player match
type SearchResult struct {
	PlayerInfo
	Distance int  `json:"distance"`
	Exact    bool `json:"exact"`
}

// SearchResponse lists matches for a query
type SearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}

// GenerateRequest forces regeneration for a player's prop on a date
type GenerateRequest struct {
	PlayerID int64  `json:"player_id" validate:"required,gt=0"`
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
}

// ReloadResponse reports the outcome of a registry reload
type ReloadResponse struct {
	Changed        bool   `json:"changed"`
	ModelVersionID string `json:"model_version_id"`
}

// ModelVersionResponse is one entry of the version catalogue
type ModelVersionResponse struct {
	VersionID      string    `json:"version_id"`
	FeatureColumns []string  `json:"feature_columns"`
	CreatedAt      time.Time `json:"created_at"`
	IsLatest       bool      `json:"is_latest"`
	Serving        bool      `json:"serving"`
}

func newPropResponse(l *models.PropListing) *PropResponse {
	out := &PropResponse{
		PlayerID:           l.Player.ID,
		FullName:           l.Player.FullName,
		Line:               l.Prop.LineFloat(),
		ProbOver:           l.Prediction.ProbOver,
		ConfidenceInterval: l.Prediction.ConfidenceInterval,
		LastUpdated:        l.Prediction.GeneratedAt,
	}
	if l.Game != nil {
		out.HomeTeam = l.Game.HomeTeam
		out.AwayTeam = l.Game.AwayTeam
		out.GameTime = l.Game.StartsAt
	}
	return out
}

func newPlayerPropResponse(d *service.PlayerDetail) *PlayerPropResponse {
	out := &PlayerPropResponse{
		Player: PlayerInfo{PlayerID: d.Player.ID, FullName: d.Player.FullName, Team: d.Player.Team},
		Prop: PropInfo{
			ID:         d.Prop.ID,
			Line:       d.Prop.LineFloat(),
			Sportsbook: d.Prop.Sportsbook,
			FetchedAt:  d.Prop.FetchedAt,
		},
		RecentGames:    make([]GameLine, 0, len(d.RecentGames)),
		SeasonAverages: d.SeasonAverages,
		Prediction: PredictionInfo{
			ProbOver:           d.Prediction.ProbOver,
			ConfidenceInterval: d.Prediction.ConfidenceInterval,
			ModelVersionID:     d.Prediction.ModelVersionID,
			GeneratedAt:        d.Prediction.GeneratedAt,
			Source:             d.Source,
		},
	}
	if d.Game != nil {
		out.Game = &GameInfo{
			GameDate: d.Game.GameDate.Format(DateLayout),
			HomeTeam: d.Game.HomeTeam,
			AwayTeam: d.Game.AwayTeam,
			GameTime: d.Game.StartsAt,
		}
	}
	for _, g := range d.RecentGames {
		out.RecentGames = append(out.RecentGames, GameLine{
			GameDate: g.GameDate.Format(DateLayout),
			Opponent: g.Opponent,
			IsHome:   g.IsHome,
			Minutes:  g.Minutes,
			Points:   g.Points,
			Rebounds: g.Rebounds,
			Assists:  g.Assists,
		})
	}
	return out
}
