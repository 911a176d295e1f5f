package detector

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/models"
)

// ReverseLineDetector flags outcomes that moved hard and fast: at least
// twice the movement threshold inside a short recent window. This is a
// proxy for sharp or contrarian action. True reverse-line-movement detection
// needs public betting percentages, which this pipeline does not receive, so
// the signal stays a heuristic approximation.
type ReverseLineDetector struct {
	thresholds Thresholds
}

// NewReverseLineDetector creates a new reverse line detector
func NewReverseLineDetector(thresholds Thresholds) *ReverseLineDetector {
	return &ReverseLineDetector{thresholds: thresholds}
}

// Name returns the signal type this detector emits
func (d *ReverseLineDetector) Name() models.SignalType {
	return models.SignalReverseLine
}

// Detect windows the last few snapshots of the outcome and fires when the
// movement across the window clears the multiple within the time limit
func (d *ReverseLineDetector) Detect(ctx context.Context, group models.OutcomeGroup) ([]models.EdgeCandidate, error) {
	usable := group.Usable()
	if len(usable) < d.thresholds.MinSnapshots {
		return nil, nil // Not enough history for this outcome
	}

	window := usable
	if len(window) > d.thresholds.ReverseWindow {
		window = window[len(window)-d.thresholds.ReverseWindow:]
	}

	first := window[0]
	last := window[len(window)-1]

	span := last.ObservedAt.Sub(first.ObservedAt)
	if span > d.thresholds.ReverseMaxSpan() {
		return nil, nil // Slow drift, not a sharp move
	}

	firstValue, _ := first.Value(group.MarketType)
	lastValue, _ := last.Value(group.MarketType)
	magnitude := math.Abs(lastValue - firstValue)

	moveThreshold := d.thresholds.MoveThreshold(group.MarketType)
	required := d.thresholds.ReverseMultiple * moveThreshold
	if magnitude < required {
		return nil, nil // Window movement below the fast-move bar
	}

	candidate := models.EdgeCandidate{
		SignalType:      models.SignalReverseLine,
		MarketType:      group.MarketType,
		Market:          group.Market,
		OutcomeKey:      group.OutcomeKey,
		Magnitude:       magnitude,
		MagnitudePct:    pctOf(magnitude, firstValue),
		InitialValue:    firstValue,
		CurrentValue:    lastValue,
		TriggeringBook:  first.BookKey,
		BestCurrentBook: last.BookKey,
		Confidence:      reverseConfidence(magnitude, moveThreshold),
		Notes: fmt.Sprintf("moved %.1f in %s across last %d snapshots; heuristic proxy, no public betting splits",
			magnitude, span.Round(time.Second), len(window)),
	}
	return []models.EdgeCandidate{candidate}, nil
}
