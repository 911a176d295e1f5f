// Package oddsmath implements the American odds conversions and two-way vig
// removal used by the edge detector and the probability composite.
package oddsmath

import (
	"fmt"
	"math"

	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/models"
)

// AmericanToImplied converts American odds to implied probability
// -110 → 0.5238 (52.38%)
// +150 → 0.40 (40%)
func AmericanToImplied(american int) (float64, error) {
	if american == 0 {
		return 0, fmt.Errorf("%w: cannot be 0", models.ErrInvalidOdds)
	}

	if american > 0 {
		// Positive odds: 100 / (odds + 100)
		return 100.0 / (float64(american) + 100.0), nil
	}

	// Negative odds: |odds| / (|odds| + 100)
	abs := float64(-american)
	return abs / (abs + 100.0), nil
}

// ImpliedToAmerican converts an implied probability to the nearest integer
// American price
// 0.5238 → -110
// 0.40 → +150
func ImpliedToAmerican(probability float64) (int, error) {
	if probability <= 0 || probability >= 1 {
		return 0, fmt.Errorf("invalid probability: must be between 0 and 1")
	}

	if probability > 0.5 {
		// Favorite: -(p / (1 - p)) * 100
		return int(math.Round(-100.0 * probability / (1.0 - probability))), nil
	}

	// Underdog (or coin flip): ((1 - p) / p) * 100
	return int(math.Round(100.0 * (1.0 - probability) / probability)), nil
}

// Juice returns the vig component of an American price in cents.
// Both -120 and +120 carry 120 cents of juice.
func Juice(american int) int {
	if american < 0 {
		return -american
	}
	return american
}
