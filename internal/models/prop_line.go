package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PropLine is a bookmaker's points over/under threshold for a player on a date.
// Unique on (player_id, game_date, sportsbook); later fetches update Line and FetchedAt.
type PropLine struct {
	ID         int64           `db:"id" json:"id"`
	PlayerID   int64           `db:"player_id" json:"player_id" validate:"required"`
	GameDate   time.Time       `db:"game_date" json:"game_date" validate:"required"`
	Line       decimal.Decimal `db:"line" json:"line"`
	Sportsbook string          `db:"sportsbook" json:"sportsbook" validate:"required"`
	FetchedAt  time.Time       `db:"fetched_at" json:"fetched_at"`
}

// LineFloat returns the line as a float64 for feature arithmetic
func (p *PropLine) LineFloat() float64 {
	return p.Line.InexactFloat64()
}

// WentOver reports whether a realized points total beat the line
func (p *PropLine) WentOver(points int) bool {
	return decimal.NewFromInt(int64(points)).GreaterThan(p.Line)
}

// SettledProp pairs a prop line with the points the player actually scored
type SettledProp struct {
	Prop   *PropLine
	Points int
}

// PropListing is one row of the per-date listing
type PropListing struct {
	Prop       *PropLine
	Player     *Player
	Game       *Game
	Prediction *Prediction
}
