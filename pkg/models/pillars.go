package models

import (
	"fmt"
	"math"
	"time"
)

// PillarScores is the six-factor vector produced by the pillar service.
// Each score lives in [0,1] with 0.5 meaning neutral (no adjustment).
type PillarScores struct {
	Execution       float64 `json:"execution"`
	Incentives      float64 `json:"incentives"`
	Shocks          float64 `json:"shocks"`
	TimeDecay       float64 `json:"time_decay"`
	Flow            float64 `json:"flow"`
	GameEnvironment float64 `json:"game_environment"`
}

// PillarWeights weights the six factors. Weights must sum to 1.0.
type PillarWeights struct {
	Execution       float64 `json:"execution" toml:"execution"`
	Incentives      float64 `json:"incentives" toml:"incentives"`
	Shocks          float64 `json:"shocks" toml:"shocks"`
	TimeDecay       float64 `json:"time_decay" toml:"time_decay"`
	Flow            float64 `json:"flow" toml:"flow"`
	GameEnvironment float64 `json:"game_environment" toml:"game_environment"`
}

// DefaultPillarWeights returns the canonical six-factor vector
func DefaultPillarWeights() PillarWeights {
	return PillarWeights{
		Execution:       0.30,
		Incentives:      0.20,
		Shocks:          0.15,
		TimeDecay:       0.15,
		Flow:            0.10,
		GameEnvironment: 0.10,
	}
}

// Sum returns the total of all six weights
func (w PillarWeights) Sum() float64 {
	return w.Execution + w.Incentives + w.Shocks + w.TimeDecay + w.Flow + w.GameEnvironment
}

// Validate checks the weights sum to 1.0 within a small epsilon
func (w PillarWeights) Validate() error {
	if math.Abs(w.Sum()-1.0) > 1e-9 {
		return fmt.Errorf("%w: got %.6f", ErrInvalidWeights, w.Sum())
	}
	return nil
}

// PillarReport is the pillar service's response for one game. CEQ is the
// externally computed 0-100 confidence percentage; this service consumes it
// for tier classification and never derives it from its own math.
type PillarReport struct {
	GameID            string       `json:"game_id"`
	Sport             string       `json:"sport"`
	PillarScores      PillarScores `json:"pillar_scores"`
	OverallConfidence string       `json:"overall_confidence"`
	CEQ               *float64     `json:"ceq,omitempty"`
	BestBet           string       `json:"best_bet,omitempty"`
	BestEdge          *float64     `json:"best_edge,omitempty"`
	GeneratedAt       time.Time    `json:"generated_at"`
}

// Tier buckets a CEQ percentage for display and alerting
type Tier string

const (
	TierPass       Tier = "pass"
	TierWatch      Tier = "watch"
	TierEdge       Tier = "edge"
	TierStrongEdge Tier = "strong_edge"
	TierRare       Tier = "rare"
)

// CompositeResult is the output of the probability composite: the book's
// implied probability adjusted by the weighted pillar deviation, clamped,
// with the resulting delta.
type CompositeResult struct {
	GameID           string    `json:"game_id"`
	BookOdds         int       `json:"book_odds"`
	BookImpliedProb  float64   `json:"book_implied_prob"`
	WeightedSum      float64   `json:"weighted_sum"`
	PillarAdjustment float64   `json:"pillar_adjustment"`
	OmiTrueProb      float64   `json:"omi_true_prob"`
	EdgeDelta        float64   `json:"edge_delta"`
	Tier             Tier      `json:"tier,omitempty"`
	CEQ              *float64  `json:"ceq,omitempty"`
	ComputedAt       time.Time `json:"computed_at"`
}
