package models

import "time"

// OutcomeGroup is the detection unit: every snapshot observed for one
// (market, outcome) pair of a game, ascending by ObservedAt. Detection
// strategies and lifecycle recalculation both consume this shape.
type OutcomeGroup struct {
	GameID     string         `json:"game_id"`
	SportKey   string         `json:"sport_key"`
	Market     string         `json:"market"`
	MarketType MarketType     `json:"market_type"`
	OutcomeKey string         `json:"outcome_key"`
	Snapshots  []OddsSnapshot `json:"snapshots"`
}

// Usable returns the snapshots carrying a comparable value for this group's
// market family, preserving order. Line markets drop snapshots without a line.
func (g OutcomeGroup) Usable() []OddsSnapshot {
	usable := make([]OddsSnapshot, 0, len(g.Snapshots))
	for _, s := range g.Snapshots {
		if _, ok := s.Value(g.MarketType); ok {
			usable = append(usable, s)
		}
	}
	return usable
}

// Earliest returns the oldest usable snapshot, or false when none exists
func (g OutcomeGroup) Earliest() (OddsSnapshot, bool) {
	usable := g.Usable()
	if len(usable) == 0 {
		return OddsSnapshot{}, false
	}
	return usable[0], true
}

// Latest returns the newest usable snapshot, or false when none exists
func (g OutcomeGroup) Latest() (OddsSnapshot, bool) {
	usable := g.Usable()
	if len(usable) == 0 {
		return OddsSnapshot{}, false
	}
	return usable[len(usable)-1], true
}

// LatestPerBook returns each book's newest usable snapshot
func (g OutcomeGroup) LatestPerBook() map[string]OddsSnapshot {
	latest := make(map[string]OddsSnapshot)
	for _, s := range g.Usable() {
		prev, seen := latest[s.BookKey]
		if !seen || !s.ObservedAt.Before(prev.ObservedAt) {
			latest[s.BookKey] = s
		}
	}
	return latest
}

// SnapshotsForBook returns the usable snapshots posted by one book, in order
func (g OutcomeGroup) SnapshotsForBook(bookKey string) []OddsSnapshot {
	var out []OddsSnapshot
	for _, s := range g.Usable() {
		if s.BookKey == bookKey {
			out = append(out, s)
		}
	}
	return out
}

// CommenceTime returns the first non-nil game start time carried by the
// group's snapshots, or nil when the ingest pipeline supplied none.
func (g OutcomeGroup) CommenceTime() *time.Time {
	for _, s := range g.Snapshots {
		if s.CommenceTime != nil {
			return s.CommenceTime
		}
	}
	return nil
}
