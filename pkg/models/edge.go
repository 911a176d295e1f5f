package models

import (
	"fmt"
	"time"
)

// EdgeCandidate is a single detector hit before aggregation. Candidates are
// ephemeral: several may describe the same logical edge until the aggregator
// keeps the strongest one per (market type, outcome, signal).
type EdgeCandidate struct {
	SignalType      SignalType `json:"signal_type"`
	MarketType      MarketType `json:"market_type"`
	Market          string     `json:"market"`
	OutcomeKey      string     `json:"outcome_key"`
	Magnitude       float64    `json:"magnitude"`
	MagnitudePct    float64    `json:"magnitude_pct"`
	InitialValue    float64    `json:"initial_value"`
	CurrentValue    float64    `json:"current_value"`
	TriggeringBook  string     `json:"triggering_book"`
	BestCurrentBook string     `json:"best_current_book"`
	SharpBook       string     `json:"sharp_book,omitempty"`
	SharpBookLine   *float64   `json:"sharp_book_line,omitempty"`
	Confidence      float64    `json:"confidence"` // 0-100, heuristic score
	Notes           string     `json:"notes,omitempty"`
}

// Key is the aggregation identity for deduplication
func (c EdgeCandidate) Key() string {
	return fmt.Sprintf("%s|%s|%s", c.MarketType, c.OutcomeKey, c.SignalType)
}

// LiveEdge is the persisted form of a detected edge. At most one row exists
// per (game, market type, outcome, signal); detection upserts overwrite in
// place. Status and the lifecycle timestamps are mutated only by the
// lifecycle manager.
type LiveEdge struct {
	ID         int64      `json:"id,omitempty"`
	GameID     string     `json:"game_id"`
	SportKey   string     `json:"sport_key"`
	MarketType MarketType `json:"market_type"`
	Market     string     `json:"market"` // raw key, kept so recalculation fetches the exact slice
	OutcomeKey string     `json:"outcome_key"`
	SignalType SignalType `json:"signal_type"`
	Status     EdgeStatus `json:"status"`

	InitialValue     float64 `json:"initial_value"`
	CurrentValue     float64 `json:"current_value"`
	Magnitude        float64 `json:"magnitude"`         // live, recomputed each cycle
	InitialMagnitude float64 `json:"initial_magnitude"` // as detected; fading threshold base
	MagnitudePct     float64 `json:"magnitude_pct"`
	Confidence       float64 `json:"confidence"`

	TriggeringBook  string   `json:"triggering_book"`
	BestCurrentBook string   `json:"best_current_book"`
	SharpBook       string   `json:"sharp_book,omitempty"`
	SharpBookLine   *float64 `json:"sharp_book_line,omitempty"`
	Notes           string   `json:"notes,omitempty"`

	DetectedAt time.Time  `json:"detected_at"`
	FadedAt    *time.Time `json:"faded_at,omitempty"`
	ExpiredAt  *time.Time `json:"expired_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"` // game start
	UpdatedAt  time.Time  `json:"updated_at,omitempty"`
}

// NewLiveEdge builds the persisted row for an aggregated candidate.
// expiresAt may be nil when the ingest pipeline supplied no start time; such
// edges retire through staleness instead.
func NewLiveEdge(gameID, sportKey string, c EdgeCandidate, expiresAt *time.Time, now time.Time) *LiveEdge {
	return &LiveEdge{
		GameID:           gameID,
		SportKey:         sportKey,
		MarketType:       c.MarketType,
		Market:           c.Market,
		OutcomeKey:       c.OutcomeKey,
		SignalType:       c.SignalType,
		Status:           EdgeStatusActive,
		InitialValue:     c.InitialValue,
		CurrentValue:     c.CurrentValue,
		Magnitude:        c.Magnitude,
		InitialMagnitude: c.Magnitude,
		MagnitudePct:     c.MagnitudePct,
		Confidence:       c.Confidence,
		TriggeringBook:   c.TriggeringBook,
		BestCurrentBook:  c.BestCurrentBook,
		SharpBook:        c.SharpBook,
		SharpBookLine:    c.SharpBookLine,
		Notes:            c.Notes,
		DetectedAt:       now,
		ExpiresAt:        expiresAt,
		UpdatedAt:        now,
	}
}
