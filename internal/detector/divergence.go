package detector

import (
	"context"
	"fmt"
	"math"

	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/contracts"
	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/models"
)

// ExchangeDivergenceDetector flags soft retail books whose current value has
// strayed from the sharp reference price. The reference is the first sharp
// book (in priority order) that has posted this outcome.
type ExchangeDivergenceDetector struct {
	thresholds Thresholds
	sharpBooks contracts.SharpBookProvider
}

// NewExchangeDivergenceDetector creates a new exchange divergence detector
func NewExchangeDivergenceDetector(thresholds Thresholds, sharpBooks contracts.SharpBookProvider) *ExchangeDivergenceDetector {
	return &ExchangeDivergenceDetector{
		thresholds: thresholds,
		sharpBooks: sharpBooks,
	}
}

// Name returns the signal type this detector emits
func (d *ExchangeDivergenceDetector) Name() models.SignalType {
	return models.SignalExchangeDivergence
}

// Detect compares every soft book's latest value against the sharp reference
// and keeps the widest gap at or above the threshold
func (d *ExchangeDivergenceDetector) Detect(ctx context.Context, group models.OutcomeGroup) ([]models.EdgeCandidate, error) {
	usable := group.Usable()
	if len(usable) < d.thresholds.MinSnapshots {
		return nil, nil // Not enough history for this outcome
	}

	latest := group.LatestPerBook()

	// First sharp book in priority order wins the reference slot
	var sharp models.OddsSnapshot
	sharpFound := false
	for _, book := range d.sharpBooks.SharpBooks() {
		if snap, ok := latest[book]; ok {
			sharp = snap
			sharpFound = true
			break
		}
	}
	if !sharpFound {
		return nil, nil // No sharp reference posted for this outcome
	}

	sharpValue, _ := sharp.Value(group.MarketType)
	threshold := d.thresholds.DivergenceThreshold(group.MarketType)

	var best models.OddsSnapshot
	bestDivergence := 0.0
	found := false
	for _, snap := range latestByBook(group) {
		if d.sharpBooks.IsSharpBook(snap.BookKey) {
			continue // Sharp books define the reference, they cannot diverge from it
		}
		value, _ := snap.Value(group.MarketType)
		divergence := math.Abs(value - sharpValue)
		if divergence >= threshold && divergence > bestDivergence {
			best = snap
			bestDivergence = divergence
			found = true
		}
	}
	if !found {
		return nil, nil // Every soft book is in line with sharp pricing
	}

	current, _ := best.Value(group.MarketType)
	sharpLine := sharpValue

	candidate := models.EdgeCandidate{
		SignalType:      models.SignalExchangeDivergence,
		MarketType:      group.MarketType,
		Market:          group.Market,
		OutcomeKey:      group.OutcomeKey,
		Magnitude:       bestDivergence,
		MagnitudePct:    pctOf(bestDivergence, sharpValue),
		InitialValue:    sharpValue,
		CurrentValue:    current,
		TriggeringBook:  sharp.BookKey,
		BestCurrentBook: best.BookKey,
		SharpBook:       sharp.BookKey,
		SharpBookLine:   &sharpLine,
		Confidence:      divergenceConfidence(bestDivergence),
		Notes: fmt.Sprintf("%s at %.1f diverges %.1f from %s at %.1f",
			best.BookKey, current, bestDivergence, sharp.BookKey, sharpValue),
	}
	return []models.EdgeCandidate{candidate}, nil
}
