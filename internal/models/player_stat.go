package models

import (
	"time"
)

// PlayerStat is one immutable box-score row for a player in a game
type PlayerStat struct {
	ID                     int64     `db:"id" json:"id"`
	PlayerID               int64     `db:"player_id" json:"player_id"`
	GameID                 int64     `db:"game_id" json:"game_id"`
	GameDate               time.Time `db:"game_date" json:"game_date"`
	Team                   string    `db:"team" json:"team"`
	Opponent               string    `db:"opponent" json:"opponent"`
	IsHome                 bool      `db:"is_home" json:"is_home"`
	Minutes                float64   `db:"minutes" json:"minutes"`
	Points                 int       `db:"points" json:"points"`
	Rebounds               int       `db:"rebounds" json:"rebounds"`
	Assists                int       `db:"assists" json:"assists"`
	Steals                 int       `db:"steals" json:"steals"`
	Blocks                 int       `db:"blocks" json:"blocks"`
	Turnovers              int       `db:"turnovers" json:"turnovers"`
	FieldGoalsAttempted    int       `db:"field_goals_attempted" json:"field_goals_attempted"`
	FieldGoalPct           float64   `db:"field_goal_pct" json:"field_goal_pct"`
	ThreePointersAttempted int       `db:"three_pointers_attempted" json:"three_pointers_attempted"`
	FreeThrowsAttempted    int       `db:"free_throws_attempted" json:"free_throws_attempted"`
	PlusMinus              int       `db:"plus_minus" json:"plus_minus"`
}

// SeasonAverages aggregates a player's season box scores
type SeasonAverages struct {
	Season      string  `json:"season"`
	GamesPlayed int     `json:"games_played"`
	Points      float64 `json:"points"`
	Rebounds    float64 `json:"rebounds"`
	Assists     float64 `json:"assists"`
	Minutes     float64 `json:"minutes"`
}

// ComputeSeasonAverages averages the given rows; an empty slice yields zeros
func ComputeSeasonAverages(season string, stats []*PlayerStat) *SeasonAverages {
	avg := &SeasonAverages{Season: season, GamesPlayed: len(stats)}
	if len(stats) == 0 {
		return avg
	}
	for _, s := range stats {
		avg.Points += float64(s.Points)
		avg.Rebounds += float64(s.Rebounds)
		avg.Assists += float64(s.Assists)
		avg.Minutes += s.Minutes
	}
	n := float64(len(stats))
	avg.Points /= n
	avg.Rebounds /= n
	avg.Assists /= n
	avg.Minutes /= n
	return avg
}
