// Package composite adjusts a book's implied probability by the weighted
// deviation of the six pillar scores and classifies the externally
// supplied CEQ percentage into a display tier.
package composite

import (
	"fmt"
	"time"

	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/models"
	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/oddsmath"
)

const (
	// dampening scales the raw weighted pillar sum before it moves the
	// book's implied probability.
	dampening = 0.3

	probFloor = 0.01
	probCeil  = 0.99
)

// Engine computes composite results with a fixed weight vector.
type Engine struct {
	weights models.PillarWeights
}

// New validates the weight vector and returns an engine bound to it.
func New(weights models.PillarWeights) (*Engine, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Engine{weights: weights}, nil
}

// WeightedSum is the dot product of the weight vector with each pillar's
// deviation from neutral (0.5). A fully neutral report sums to zero.
func (e *Engine) WeightedSum(s models.PillarScores) float64 {
	w := e.weights
	return (s.Execution-0.5)*w.Execution +
		(s.Incentives-0.5)*w.Incentives +
		(s.Shocks-0.5)*w.Shocks +
		(s.TimeDecay-0.5)*w.TimeDecay +
		(s.Flow-0.5)*w.Flow +
		(s.GameEnvironment-0.5)*w.GameEnvironment
}

// Compute derives the composite for one game at the given book odds. The
// adjusted probability is clamped to (0.01, 0.99) so extreme pillar reads
// never produce a certainty. Tier and CEQ pass through only when the
// report carries a CEQ; this engine never derives one from edgeDelta.
func (e *Engine) Compute(gameID string, bookOdds int, report models.PillarReport) (models.CompositeResult, error) {
	implied, err := oddsmath.AmericanToImplied(bookOdds)
	if err != nil {
		return models.CompositeResult{}, fmt.Errorf("implied probability for %d: %w", bookOdds, err)
	}

	sum := e.WeightedSum(report.PillarScores)
	adjustment := sum * dampening
	trueProb := clamp(implied+adjustment, probFloor, probCeil)

	result := models.CompositeResult{
		GameID:           gameID,
		BookOdds:         bookOdds,
		BookImpliedProb:  implied,
		WeightedSum:      sum,
		PillarAdjustment: adjustment,
		OmiTrueProb:      trueProb,
		EdgeDelta:        trueProb - implied,
		ComputedAt:       time.Now().UTC(),
	}
	if report.CEQ != nil {
		result.CEQ = report.CEQ
		result.Tier = ClassifyTier(*report.CEQ)
	}
	return result, nil
}

// ClassifyTier buckets a CEQ percentage on the published ladder. Rare is
// open-ended at 70; everything below the watch floor is a pass.
func ClassifyTier(ceq float64) models.Tier {
	switch {
	case ceq >= 70:
		return models.TierRare
	case ceq >= 64:
		return models.TierStrongEdge
	case ceq >= 59:
		return models.TierEdge
	case ceq >= 55:
		return models.TierWatch
	default:
		return models.TierPass
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
