package detector

import (
	"context"
	"fmt"
	"math"

	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/models"
)

// LineMovementDetector flags outcomes where some book's current value has
// moved a full threshold away from the opening observation. Spreads, totals
// and props move on the line; h2h moves on the price in cents.
type LineMovementDetector struct {
	thresholds Thresholds
}

// NewLineMovementDetector creates a new line movement detector
func NewLineMovementDetector(thresholds Thresholds) *LineMovementDetector {
	return &LineMovementDetector{thresholds: thresholds}
}

// Name returns the signal type this detector emits
func (d *LineMovementDetector) Name() models.SignalType {
	return models.SignalLineMovement
}

// Detect compares the opening value against each book's latest and keeps the
// book that moved furthest, if any cleared the threshold
func (d *LineMovementDetector) Detect(ctx context.Context, group models.OutcomeGroup) ([]models.EdgeCandidate, error) {
	usable := group.Usable()
	if len(usable) < d.thresholds.MinSnapshots {
		return nil, nil // Not enough history for this outcome
	}

	opener := usable[0]
	initial, _ := opener.Value(group.MarketType)
	threshold := d.thresholds.MoveThreshold(group.MarketType)

	// Track the book furthest from the opener
	var best models.OddsSnapshot
	bestMove := 0.0
	found := false
	for _, snap := range latestByBook(group) {
		value, _ := snap.Value(group.MarketType)
		move := math.Abs(value - initial)
		if move >= threshold && move > bestMove {
			best = snap
			bestMove = move
			found = true
		}
	}
	if !found {
		return nil, nil // Nothing cleared the threshold
	}

	current, _ := best.Value(group.MarketType)
	unit := "points"
	if !group.MarketType.UsesLine() {
		unit = "cents"
	}

	candidate := models.EdgeCandidate{
		SignalType:      models.SignalLineMovement,
		MarketType:      group.MarketType,
		Market:          group.Market,
		OutcomeKey:      group.OutcomeKey,
		Magnitude:       bestMove,
		MagnitudePct:    pctOf(bestMove, initial),
		InitialValue:    initial,
		CurrentValue:    current,
		TriggeringBook:  opener.BookKey,
		BestCurrentBook: best.BookKey,
		Confidence:      movementConfidence(bestMove, threshold),
		Notes: fmt.Sprintf("moved %.1f %s from open %.1f (%s) to %.1f (%s)",
			bestMove, unit, initial, opener.BookKey, current, best.BookKey),
	}
	return []models.EdgeCandidate{candidate}, nil
}
