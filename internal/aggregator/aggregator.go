// Package aggregator collapses the candidate lists produced by independent
// signal strategies into at most one edge per market/outcome/signal key.
package aggregator

import (
	"sort"

	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/models"
)

// Aggregate deduplicates candidates by their market|outcome|signal key.
// A later candidate replaces an earlier one only when its confidence is
// strictly greater; ties keep the first so strategy registration order
// stays authoritative. Output is sorted by key for deterministic writes.
func Aggregate(candidates []models.EdgeCandidate) []models.EdgeCandidate {
	if len(candidates) == 0 {
		return nil
	}

	best := make(map[string]models.EdgeCandidate, len(candidates))
	for _, c := range candidates {
		key := c.Key()
		cur, seen := best[key]
		if !seen || c.Confidence > cur.Confidence {
			best[key] = c
		}
	}

	keys := make([]string, 0, len(best))
	for key := range best {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]models.EdgeCandidate, 0, len(keys))
	for _, key := range keys {
		out = append(out, best[key])
	}
	return out
}
