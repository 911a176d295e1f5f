// Package lifecycle keeps persisted edges honest: magnitudes are recomputed
// from fresh snapshots every cycle, stale or started edges are expired, and
// old expired rows are archived then deleted.
package lifecycle

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/contracts"
	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/models"
)

// Config holds the lifecycle knobs.
type Config struct {
	// FadingRatio is the fraction of the initial magnitude below which an
	// edge transitions to fading. 0.5 means half the detected move.
	FadingRatio float64

	// Retention is how long expired edges stay queryable before cleanup.
	Retention time.Duration
}

// Manager evaluates persisted edges against the current snapshot state.
// Archiver and publisher are optional; nil disables that side effect.
type Manager struct {
	edges     contracts.EdgeStore
	snapshots contracts.SnapshotStore
	sharp     contracts.SharpBookProvider
	cfg       Config
	archiver  contracts.Archiver
	publisher contracts.EdgePublisher
	logger    zerolog.Logger
}

// NewManager creates a lifecycle manager.
func NewManager(
	edges contracts.EdgeStore,
	snapshots contracts.SnapshotStore,
	sharp contracts.SharpBookProvider,
	cfg Config,
	archiver contracts.Archiver,
	publisher contracts.EdgePublisher,
	logger zerolog.Logger,
) *Manager {
	return &Manager{
		edges:     edges,
		snapshots: snapshots,
		sharp:     sharp,
		cfg:       cfg,
		archiver:  archiver,
		publisher: publisher,
		logger:    logger.With().Str("component", "lifecycle").Logger(),
	}
}

// UpdateEdges evaluates every active and fading edge once. Each edge is
// handled in isolation: a failure lands in the report and the batch moves
// on to the next edge.
func (m *Manager) UpdateEdges(ctx context.Context) (*Report, error) {
	started := time.Now()

	edges, err := m.edges.GetEvaluableEdges(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch evaluable edges: %w", err)
	}

	report := &Report{Evaluated: len(edges)}
	now := time.Now().UTC()

	for _, edge := range edges {
		if err := m.evaluateEdge(ctx, edge, now, report); err != nil {
			m.logger.Warn().
				Err(err).
				Int64("edge_id", edge.ID).
				Str("game_id", edge.GameID).
				Msg("edge evaluation failed")
		}
	}

	report.Duration = time.Since(started)
	m.logger.Info().
		Int("evaluated", report.Evaluated).
		Int("kept", report.Kept).
		Int("faded", report.Faded).
		Int("expired", report.Expired).
		Int("failed", len(report.Failed)).
		Dur("duration", report.Duration).
		Msg("lifecycle pass complete")
	return report, nil
}

func (m *Manager) evaluateEdge(ctx context.Context, edge models.LiveEdge, now time.Time, report *Report) error {
	// Game start trumps everything else
	if edge.ExpiresAt != nil && !edge.ExpiresAt.After(now) {
		return m.expireEdge(ctx, edge, now, report)
	}

	snaps, err := m.snapshots.GetSnapshots(ctx, edge.GameID, contracts.SnapshotFilters{
		Market:     edge.Market,
		OutcomeKey: edge.OutcomeKey,
	})
	if err != nil {
		report.Failed = append(report.Failed, EdgeFailure{EdgeID: edge.ID, Kind: "snapshots", Err: err.Error()})
		return fmt.Errorf("fetch snapshots: %w", err)
	}

	magnitude, currentValue, usable := m.recompute(edge, snaps)
	if !usable {
		// The market slice this edge was detected on is gone
		return m.expireEdge(ctx, edge, now, report)
	}

	status := models.EdgeStatusActive
	if magnitude < edge.InitialMagnitude*m.cfg.FadingRatio {
		status = models.EdgeStatusFading
	}

	patch := contracts.EdgePatch{
		Status:       &status,
		Magnitude:    &magnitude,
		CurrentValue: &currentValue,
	}
	if status == models.EdgeStatusFading && edge.FadedAt == nil {
		t := now
		patch.FadedAt = &t
	}

	if err := m.edges.UpdateEdgeLifecycle(ctx, edge.ID, patch); err != nil {
		report.Failed = append(report.Failed, EdgeFailure{EdgeID: edge.ID, Kind: "patch", Err: err.Error()})
		return fmt.Errorf("patch edge: %w", err)
	}

	if status == models.EdgeStatusFading {
		report.Faded++
	} else {
		report.Kept++
	}

	if status != edge.Status {
		m.publishTransition(ctx, edge, status, magnitude, currentValue, models.EdgeEventUpdated)
	}
	return nil
}

func (m *Manager) expireEdge(ctx context.Context, edge models.LiveEdge, now time.Time, report *Report) error {
	status := models.EdgeStatusExpired
	patch := contracts.EdgePatch{Status: &status}
	if edge.ExpiredAt == nil {
		t := now
		patch.ExpiredAt = &t
	}

	if err := m.edges.UpdateEdgeLifecycle(ctx, edge.ID, patch); err != nil {
		report.Failed = append(report.Failed, EdgeFailure{EdgeID: edge.ID, Kind: "patch", Err: err.Error()})
		return fmt.Errorf("expire edge: %w", err)
	}

	report.Expired++
	m.publishTransition(ctx, edge, status, edge.Magnitude, edge.CurrentValue, models.EdgeEventExpired)
	return nil
}

// recompute rebuilds the edge's magnitude from fresh snapshots with the same
// comparison its signal used at detection time. The bool reports whether the
// snapshots still support the comparison at all.
func (m *Manager) recompute(edge models.LiveEdge, snaps []models.OddsSnapshot) (magnitude, currentValue float64, ok bool) {
	group := models.OutcomeGroup{
		GameID:     edge.GameID,
		SportKey:   edge.SportKey,
		Market:     edge.Market,
		MarketType: edge.MarketType,
		OutcomeKey: edge.OutcomeKey,
		Snapshots:  snaps,
	}
	latest := group.LatestPerBook()
	if len(latest) == 0 {
		return 0, 0, false
	}

	switch edge.SignalType {
	case models.SignalLineMovement, models.SignalReverseLine:
		snap, found := latest[edge.BestCurrentBook]
		if !found {
			// Book dropped the outcome: judge the move by whoever still posts it
			var exists bool
			snap, exists = group.Latest()
			if !exists {
				return 0, 0, false
			}
		}
		value, _ := snap.Value(edge.MarketType)
		return math.Abs(value - edge.InitialValue), value, true

	case models.SignalJuiceImprovement:
		snap, found := latest[edge.BestCurrentBook]
		if !found {
			return 0, 0, false
		}
		value, _ := snap.Value(edge.MarketType)
		improvement := math.Abs(edge.InitialValue) - math.Abs(value)
		if improvement < 0 {
			improvement = 0
		}
		return improvement, value, true

	case models.SignalExchangeDivergence:
		var sharpSnap models.OddsSnapshot
		sharpFound := false
		for _, book := range m.sharp.SharpBooks() {
			if snap, found := latest[book]; found {
				sharpSnap = snap
				sharpFound = true
				break
			}
		}
		if !sharpFound {
			return 0, 0, false
		}
		soft, found := latest[edge.BestCurrentBook]
		if !found {
			return 0, 0, false
		}
		sharpValue, _ := sharpSnap.Value(edge.MarketType)
		softValue, _ := soft.Value(edge.MarketType)
		return math.Abs(softValue - sharpValue), softValue, true
	}

	return 0, 0, false
}

func (m *Manager) publishTransition(ctx context.Context, edge models.LiveEdge, status models.EdgeStatus, magnitude, currentValue float64, eventType string) {
	if m.publisher == nil {
		return
	}

	edge.Status = status
	edge.Magnitude = magnitude
	edge.CurrentValue = currentValue
	if err := m.publisher.PublishTransition(ctx, edge, eventType); err != nil {
		m.logger.Warn().
			Err(err).
			Int64("edge_id", edge.ID).
			Str("event", eventType).
			Msg("failed to publish transition")
	}
}

// ExpireStartedGames force-expires every remaining edge whose game has
// started. This backstops the per-edge path when cycles are missed.
func (m *Manager) ExpireStartedGames(ctx context.Context) (int64, error) {
	n, err := m.edges.ExpireStartedGames(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("expire started games: %w", err)
	}
	if n > 0 {
		m.logger.Info().Int64("expired", n).Msg("expired edges for started games")
	}
	return n, nil
}

// CleanupOldEdges archives then deletes expired edges older than the
// retention window. When archival is enabled a failed archive aborts the
// delete; rows are never dropped unarchived.
func (m *Manager) CleanupOldEdges(ctx context.Context) (*CleanupReport, error) {
	cutoff := time.Now().UTC().Add(-m.cfg.Retention)

	report := &CleanupReport{}

	if m.archiver != nil {
		old, err := m.edges.ListExpiredBefore(ctx, cutoff)
		if err != nil {
			return nil, fmt.Errorf("list expired edges: %w", err)
		}
		if len(old) > 0 {
			key, err := m.archiver.ArchiveEdges(ctx, old)
			if err != nil {
				return nil, fmt.Errorf("archive expired edges: %w", err)
			}
			report.Archived = len(old)
			report.ObjectKey = key
		}
	}

	deleted, err := m.edges.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("delete expired edges: %w", err)
	}
	report.Deleted = deleted

	if report.Deleted > 0 || report.Archived > 0 {
		m.logger.Info().
			Int("archived", report.Archived).
			Int64("deleted", report.Deleted).
			Str("object_key", report.ObjectKey).
			Msg("cleanup pass complete")
	}
	return report, nil
}
