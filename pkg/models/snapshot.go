package models

import "time"

// OddsSnapshot is one immutable odds observation for a game/book/market/outcome.
// Snapshots are append-only: multiple rows per (book, outcome) accumulate over
// time, ordered by ObservedAt. Nothing in this service ever mutates one.
type OddsSnapshot struct {
	ID         int64    `json:"id,omitempty"`
	GameID     string   `json:"game_id"`
	SportKey   string   `json:"sport_key"`
	BookKey    string   `json:"book_key"`
	Market     string   `json:"market"`
	OutcomeKey string   `json:"outcome_key"`
	Line       *float64 `json:"line,omitempty"` // nil for h2h
	Odds       int      `json:"odds"`           // American odds

	// CommenceTime is denormalized from the ingest pipeline when available
	// and becomes the edge's expiry time (game start).
	CommenceTime *time.Time `json:"commence_time,omitempty"`

	ObservedAt time.Time `json:"observed_at"`
}

// Value returns the comparable value of the snapshot under a market family:
// the line for spreads/totals/props, the price for h2h. ok is false when a
// line market carries no line, which makes the snapshot unusable.
func (s OddsSnapshot) Value(mt MarketType) (float64, bool) {
	if mt.UsesLine() {
		if s.Line == nil {
			return 0, false
		}
		return *s.Line, true
	}
	return float64(s.Odds), true
}
