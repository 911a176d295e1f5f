package detector

import (
	"context"
	"fmt"

	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/models"
	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/oddsmath"
)

// JuiceImprovementDetector flags outcomes whose current price at some book
// carries less vig than the opening observation. Only improvements count:
// -120 opening to -105 now is 15 cents of juice gone, the reverse direction
// is ignored.
type JuiceImprovementDetector struct {
	thresholds Thresholds
}

// NewJuiceImprovementDetector creates a new juice improvement detector
func NewJuiceImprovementDetector(thresholds Thresholds) *JuiceImprovementDetector {
	return &JuiceImprovementDetector{thresholds: thresholds}
}

// Name returns the signal type this detector emits
func (d *JuiceImprovementDetector) Name() models.SignalType {
	return models.SignalJuiceImprovement
}

// Detect compares the opening juice against each book's latest and keeps
// the book with the largest improvement at or above the threshold
func (d *JuiceImprovementDetector) Detect(ctx context.Context, group models.OutcomeGroup) ([]models.EdgeCandidate, error) {
	usable := group.Usable()
	if len(usable) < d.thresholds.MinSnapshots {
		return nil, nil // Not enough history for this outcome
	}

	opener := usable[0]
	openJuice := oddsmath.Juice(opener.Odds)

	var best models.OddsSnapshot
	bestImprovement := 0.0
	found := false
	for _, snap := range latestByBook(group) {
		improvement := float64(openJuice - oddsmath.Juice(snap.Odds))
		if improvement >= d.thresholds.JuiceImprovement && improvement > bestImprovement {
			best = snap
			bestImprovement = improvement
			found = true
		}
	}
	if !found {
		return nil, nil // Nobody is offering meaningfully better juice
	}

	candidate := models.EdgeCandidate{
		SignalType:      models.SignalJuiceImprovement,
		MarketType:      group.MarketType,
		Market:          group.Market,
		OutcomeKey:      group.OutcomeKey,
		Magnitude:       bestImprovement,
		MagnitudePct:    pctOf(bestImprovement, float64(openJuice)),
		InitialValue:    float64(opener.Odds),
		CurrentValue:    float64(best.Odds),
		TriggeringBook:  opener.BookKey,
		BestCurrentBook: best.BookKey,
		Confidence:      juiceConfidence(bestImprovement),
		Notes: fmt.Sprintf("juice improved %.0f cents, %d (%s) to %d (%s)",
			bestImprovement, opener.Odds, opener.BookKey, best.Odds, best.BookKey),
	}
	return []models.EdgeCandidate{candidate}, nil
}
