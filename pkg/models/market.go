package models

import "strings"

// MarketType classifies a raw market key into the families the detector
// understands. Quarter/half variants roll up into their base family.
type MarketType string

const (
	MarketTypeH2H         MarketType = "h2h"
	MarketTypeSpreads     MarketType = "spreads"
	MarketTypeTotals      MarketType = "totals"
	MarketTypePlayerProps MarketType = "player_props"
	MarketTypeUnknown     MarketType = "unknown"
)

// ClassifyMarket maps a raw market key to its MarketType by prefix
// "spreads_h1" → spreads, "player_points" → player_props
func ClassifyMarket(market string) MarketType {
	switch {
	case strings.HasPrefix(market, "h2h"):
		return MarketTypeH2H
	case strings.HasPrefix(market, "spreads"):
		return MarketTypeSpreads
	case strings.HasPrefix(market, "totals"):
		return MarketTypeTotals
	case strings.HasPrefix(market, "player_"):
		return MarketTypePlayerProps
	default:
		return MarketTypeUnknown
	}
}

// UsesLine reports whether the family moves on the posted line rather than
// the price. H2H markets have no line; movement there is measured in cents.
func (m MarketType) UsesLine() bool {
	return m == MarketTypeSpreads || m == MarketTypeTotals || m == MarketTypePlayerProps
}

// IsValid reports whether m is one of the detectable families
func (m MarketType) IsValid() bool {
	switch m {
	case MarketTypeH2H, MarketTypeSpreads, MarketTypeTotals, MarketTypePlayerProps:
		return true
	}
	return false
}

// SignalType identifies which detection strategy produced an edge
type SignalType string

const (
	SignalLineMovement       SignalType = "line_movement"       // Opening value vs current best book
	SignalJuiceImprovement   SignalType = "juice_improvement"   // Vig dropped at a single book
	SignalExchangeDivergence SignalType = "exchange_divergence" // Soft book strayed from sharp reference
	SignalReverseLine        SignalType = "reverse_line"        // Fast contrarian move (heuristic proxy)
)

// IsValid reports whether s is a known strategy
func (s SignalType) IsValid() bool {
	switch s {
	case SignalLineMovement, SignalJuiceImprovement, SignalExchangeDivergence, SignalReverseLine:
		return true
	}
	return false
}

// EdgeStatus tracks an edge through its lifecycle. Expired is absorbing:
// the update loop never fetches expired rows again.
type EdgeStatus string

const (
	EdgeStatusActive  EdgeStatus = "active"
	EdgeStatusFading  EdgeStatus = "fading"
	EdgeStatusExpired EdgeStatus = "expired"
)

// IsValid reports whether s is a known lifecycle status
func (s EdgeStatus) IsValid() bool {
	switch s {
	case EdgeStatusActive, EdgeStatusFading, EdgeStatusExpired:
		return true
	}
	return false
}
