// Package detector turns one game's snapshot batch into edge candidates.
// Four independent strategies run per (market, outcome) group; they are not
// mutually exclusive and each may fire for the same group.
package detector

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/contracts"
	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/models"
)

// Detector runs every registered strategy over one game's snapshots
type Detector struct {
	strategies []contracts.SignalDetector
	logger     zerolog.Logger
}

// New builds a detector with the standard four strategies
func New(thresholds Thresholds, sharpBooks contracts.SharpBookProvider, logger zerolog.Logger) *Detector {
	return &Detector{
		strategies: []contracts.SignalDetector{
			NewLineMovementDetector(thresholds),
			NewJuiceImprovementDetector(thresholds),
			NewExchangeDivergenceDetector(thresholds, sharpBooks),
			NewReverseLineDetector(thresholds),
		},
		logger: logger.With().Str("component", "detector").Logger(),
	}
}

// DetectGame scans one game's snapshot batch and returns every candidate
// from every strategy. Unclassified markets are skipped, a failing strategy
// never blocks the others, and an outcome with too little data simply
// contributes nothing.
func (d *Detector) DetectGame(ctx context.Context, snapshots []models.OddsSnapshot) ([]models.EdgeCandidate, error) {
	groups := GroupSnapshots(snapshots)

	var candidates []models.EdgeCandidate
	for _, group := range groups {
		if !group.MarketType.IsValid() {
			d.logger.Debug().
				Str("market", group.Market).
				Str("outcome", group.OutcomeKey).
				Msg("skipping unclassified market")
			continue
		}

		for _, strategy := range d.strategies {
			found, err := strategy.Detect(ctx, group)
			if err != nil {
				d.logger.Warn().
					Err(err).
					Str("market", group.Market).
					Str("outcome", group.OutcomeKey).
					Str("signal", string(strategy.Name())).
					Msg("strategy failed, continuing with the rest")
				continue
			}
			candidates = append(candidates, found...)
		}
	}
	return candidates, nil
}
