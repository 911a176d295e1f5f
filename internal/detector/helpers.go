package detector

import (
	"math"
	"sort"

	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/models"
)

// Confidence formulas are linear, hand-tuned heuristics, not fitted
// probabilities. The scaled ones use the movement threshold as their unit so
// a sport profile that widens the trigger also widens the scoring unit.

// movementConfidence: one threshold unit above opening adds 10 points over
// the 60 base, capped at 95
func movementConfidence(magnitude, unit float64) float64 {
	return capConfidence(60+10*(magnitude/unit), 95)
}

// juiceConfidence: each cent of vig improvement adds 5 points over the 55
// base, capped at 85
func juiceConfidence(improvement float64) float64 {
	return capConfidence(55+5*improvement, 85)
}

// divergenceConfidence: each unit of soft-vs-sharp gap adds 8 points over
// the 70 base, capped at 95
func divergenceConfidence(divergence float64) float64 {
	return capConfidence(70+8*divergence, 95)
}

// reverseConfidence: one threshold unit of fast movement adds 5 points over
// the 75 base, capped at 95
func reverseConfidence(magnitude, unit float64) float64 {
	return capConfidence(75+5*(magnitude/unit), 95)
}

func capConfidence(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	if v < 0 {
		return 0
	}
	return v
}

// pctOf expresses a magnitude relative to the opening value. A zero opener
// (pick'em spread) yields 0 rather than dividing by it.
func pctOf(magnitude, initial float64) float64 {
	if initial == 0 {
		return 0
	}
	return math.Abs(magnitude/initial) * 100
}

// latestByBook returns each book's newest usable snapshot, ordered by book
// key so detection output is deterministic
func latestByBook(group models.OutcomeGroup) []models.OddsSnapshot {
	latest := group.LatestPerBook()

	keys := make([]string, 0, len(latest))
	for k := range latest {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]models.OddsSnapshot, 0, len(keys))
	for _, k := range keys {
		out = append(out, latest[k])
	}
	return out
}
