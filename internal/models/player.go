package models

import (
	"fmt"
	"time"
)

// Player represents an NBA player as first seen by the historical fetcher
type Player struct {
	ID         int64     `db:"id" json:"player_id"`
	ExternalID string    `db:"external_id" json:"external_id"`
	FullName   string    `db:"full_name" json:"full_name" validate:"required"`
	Team       string    `db:"team" json:"team"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Game represents a scheduled or played game, unique on (date, home, away)
type Game struct {
	ID       int64      `db:"id" json:"game_id"`
	GameDate time.Time  `db:"game_date" json:"game_date"`
	HomeTeam string     `db:"home_team" json:"home_team"`
	AwayTeam string     `db:"away_team" json:"away_team"`
	StartsAt *time.Time `db:"starts_at" json:"starts_at,omitempty"`
}

// Involves reports whether team plays in this game
func (g *Game) Involves(team string) bool {
	return g.HomeTeam == team || g.AwayTeam == team
}

// Opponent returns the other side of the game for team
func (g *Game) Opponent(team string) string {
	if g.HomeTeam == team {
		return g.AwayTeam
	}
	return g.HomeTeam
}

// GameTime formats the tip-off time, empty when unknown
func (g *Game) GameTime() string {
	if g.StartsAt == nil {
		return ""
	}
	return g.StartsAt.UTC().Format("15:04")
}

// Matchup is the player's side of a game on a given date
type Matchup struct {
	Game     *Game
	Team     string
	Opponent string
	IsHome   bool
}

// TeamDefense holds a team's season defensive rating
type TeamDefense struct {
	Team            string  `db:"team" json:"team"`
	Season          string  `db:"season" json:"season"`
	DefensiveRating float64 `db:"defensive_rating" json:"defensive_rating"`
}

// SeasonFor returns the NBA season label ("2024-25") a date falls in.
// Seasons roll over on October 1st.
func SeasonFor(date time.Time) string {
	start := date.Year()
	if date.Month() < time.October {
		start--
	}
	return fmt.Sprintf("%d-%02d", start, (start+1)%100)
}

// SeasonStart returns the first day of the season containing date
func SeasonStart(date time.Time) time.Time {
	start := date.Year()
	if date.Month() < time.October {
		start--
	}
	return time.Date(start, time.October, 1, 0, 0, 0, 0, time.UTC)
}
