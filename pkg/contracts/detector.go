package contracts

import (
	"context"

	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/models"
)

// SignalDetector is one detection strategy, run independently per
// (market, outcome) group. Strategies are not mutually exclusive: each may
// emit a candidate for the same group.
type SignalDetector interface {
	// Name returns the signal type this strategy emits
	Name() models.SignalType

	// Detect scans one outcome group and returns zero or more candidates.
	// Insufficient data (fewer than two usable snapshots, no sharp
	// reference) yields an empty result, not an error.
	Detect(ctx context.Context, group models.OutcomeGroup) ([]models.EdgeCandidate, error)
}

// SharpBookProvider identifies the low-vig reference books used by the
// divergence strategy and lifecycle recalculation.
type SharpBookProvider interface {
	// SharpBooks returns the sharp book keys in priority order
	SharpBooks() []string

	// IsSharpBook reports whether bookKey belongs to the sharp set
	IsSharpBook(bookKey string) bool
}
