// Package engine orchestrates the detection pipeline: change events in,
// detected edges out. It wires the stream consumer to the detector, the
// aggregator, the edge store, and the outbound publisher.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/OMIGROUPOPS/omi-edge-engine/internal/aggregator"
	"github.com/OMIGROUPOPS/omi-edge-engine/internal/config"
	"github.com/OMIGROUPOPS/omi-edge-engine/internal/consumer"
	"github.com/OMIGROUPOPS/omi-edge-engine/internal/detector"
	"github.com/OMIGROUPOPS/omi-edge-engine/internal/metrics"
	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/contracts"
	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/models"
)

// Config holds the stream-loop knobs.
type Config struct {
	ChangesStream string
	Debounce      time.Duration // min gap between detection runs per game
}

// RunResult summarizes one detection run for a game.
type RunResult struct {
	GameID     string `json:"game_id"`
	SportKey   string `json:"sport_key,omitempty"`
	Candidates int    `json:"candidates"`
	Upserted   int    `json:"upserted"`
}

// Engine drives detection off the change stream. It also exposes the same
// detection flow as a direct call for the API's manual trigger.
type Engine struct {
	consumer  *consumer.StreamConsumer
	snapshots contracts.SnapshotStore
	edges     contracts.EdgeStore
	publisher contracts.EdgePublisher
	notifier  contracts.Notifier
	metrics   *metrics.EngineMetrics
	cfg       Config
	logger    zerolog.Logger

	// Detectors are built per sport so threshold profiles apply
	detectorCfg config.DetectorConfig
	sharp       contracts.SharpBookProvider
	detectors   map[string]*detector.Detector
	detMu       sync.Mutex

	lastRun sync.Map // gameID -> time.Time of the last detection run

	detectedCount int64
	errorCount    int64
	mu            sync.Mutex
}

// New creates the engine. consumer may be nil when the stream loop is not
// used (the API binary calls DetectGame directly); publisher and notifier
// may be nil to disable publishing and alerting.
func New(
	streamConsumer *consumer.StreamConsumer,
	snapshots contracts.SnapshotStore,
	edges contracts.EdgeStore,
	detectorCfg config.DetectorConfig,
	cfg Config,
	publisher contracts.EdgePublisher,
	notifier contracts.Notifier,
	m *metrics.EngineMetrics,
	logger zerolog.Logger,
) *Engine {
	if m == nil {
		m = metrics.New()
	}
	return &Engine{
		consumer:    streamConsumer,
		snapshots:   snapshots,
		edges:       edges,
		publisher:   publisher,
		notifier:    notifier,
		metrics:     m,
		cfg:         cfg,
		logger:      logger.With().Str("component", "engine").Logger(),
		detectorCfg: detectorCfg,
		sharp:       detector.NewStaticSharpBooks(detectorCfg.SharpBooks),
		detectors:   make(map[string]*detector.Detector),
	}
}

// Start consumes the change stream until the context ends. Processing
// failures are logged and counted; only a missing consumer is fatal.
func (e *Engine) Start(ctx context.Context) error {
	if e.consumer == nil {
		return fmt.Errorf("stream consumer not configured")
	}

	messageCh, errorCh := e.consumer.ConsumeStream(ctx, e.cfg.ChangesStream)
	e.logger.Info().Str("stream", e.cfg.ChangesStream).Msg("consuming change events")

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-errorCh:
			if err != nil {
				if errors.Is(err, consumer.ErrMalformedEvent) {
					e.metrics.StreamEvents.WithLabelValues("unknown", "unparseable").Inc()
				}
				e.logger.Warn().Err(err).Msg("stream error")
				e.incrementErrorCount()
			}

		case msg, ok := <-messageCh:
			if !ok {
				return nil
			}

			if err := e.ProcessChange(ctx, msg.Change); err != nil {
				e.logger.Error().Err(err).Str("message_id", msg.ID).Msg("failed to process change event")
				e.incrementErrorCount()
			}

			if err := e.consumer.AckMessage(ctx, msg.StreamKey, msg.ID); err != nil {
				e.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("failed to ack message")
			}
		}
	}
}

// ProcessChange handles one change event. Only inserts on the snapshots
// table trigger detection; everything else is counted and dropped.
func (e *Engine) ProcessChange(ctx context.Context, change models.ChangeEvent) error {
	e.metrics.StreamEvents.WithLabelValues(change.Table, change.EventType).Inc()

	if change.Table != models.TableSnapshots || change.EventType != models.ChangeInsert {
		return nil
	}

	var row models.OddsSnapshot
	if err := json.Unmarshal(change.Row, &row); err != nil {
		return fmt.Errorf("snapshot row: %w", err)
	}
	if row.GameID == "" {
		return fmt.Errorf("snapshot row missing game_id")
	}

	if !e.shouldRun(row.GameID) {
		e.metrics.DetectionRuns.WithLabelValues("debounced").Inc()
		return nil
	}

	_, err := e.DetectGame(ctx, row.GameID)
	return err
}

// DetectGame runs the full pipeline for one game: fetch snapshots, run every
// strategy, aggregate duplicates, upsert the winners, publish and alert.
// Manual triggers bypass the debounce.
func (e *Engine) DetectGame(ctx context.Context, gameID string) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{GameID: gameID}

	snaps, err := e.snapshots.GetSnapshots(ctx, gameID, contracts.SnapshotFilters{})
	if err != nil {
		e.metrics.RecordDetection("error", time.Since(start).Seconds())
		return nil, fmt.Errorf("snapshots for game %s: %w", gameID, err)
	}
	if len(snaps) == 0 {
		e.metrics.RecordDetection("empty", time.Since(start).Seconds())
		return result, nil
	}

	sportKey := snaps[0].SportKey
	result.SportKey = sportKey

	candidates, err := e.detectorFor(sportKey).DetectGame(ctx, snaps)
	if err != nil {
		e.metrics.RecordDetection("error", time.Since(start).Seconds())
		return nil, fmt.Errorf("detect game %s: %w", gameID, err)
	}
	result.Candidates = len(candidates)
	for _, c := range candidates {
		e.metrics.EdgeCandidates.WithLabelValues(string(c.SignalType)).Inc()
	}

	aggregated := aggregator.Aggregate(candidates)
	expiresAt := latestCommenceTime(snaps)
	now := time.Now().UTC()

	for _, c := range aggregated {
		edge := models.NewLiveEdge(gameID, sportKey, c, expiresAt, now)
		if err := e.edges.UpsertEdge(ctx, edge); err != nil {
			e.logger.Error().Err(err).
				Str("game_id", gameID).
				Str("key", c.Key()).
				Msg("failed to upsert edge")
			e.incrementErrorCount()
			continue
		}

		result.Upserted++
		e.incrementDetectedCount()
		e.metrics.RecordEdge(sportKey, string(edge.SignalType))

		if e.publisher != nil {
			if err := e.publisher.PublishDetected(ctx, *edge); err != nil {
				e.logger.Warn().Err(err).Int64("edge_id", edge.ID).Msg("failed to publish detection")
			}
		}
		if e.notifier != nil {
			if err := e.notifier.Notify(ctx, *edge); err != nil {
				e.logger.Warn().Err(err).Int64("edge_id", edge.ID).Msg("failed to send alert")
			}
		}

		e.logger.Info().
			Str("game_id", gameID).
			Str("sport", sportKey).
			Str("signal", string(edge.SignalType)).
			Str("market", edge.Market).
			Str("outcome", edge.OutcomeKey).
			Float64("confidence", edge.Confidence).
			Int64("edge_id", edge.ID).
			Msg("edge detected")
	}

	if result.Upserted > 0 {
		e.metrics.RecordDetection("ok", time.Since(start).Seconds())
	} else {
		e.metrics.RecordDetection("empty", time.Since(start).Seconds())
	}
	return result, nil
}

// detectorFor returns the detector for a sport, building it on first use so
// per-sport threshold profiles take effect.
func (e *Engine) detectorFor(sportKey string) *detector.Detector {
	e.detMu.Lock()
	defer e.detMu.Unlock()

	if d, ok := e.detectors[sportKey]; ok {
		return d
	}
	d := detector.New(e.detectorCfg.ThresholdsFor(sportKey), e.sharp, e.logger)
	e.detectors[sportKey] = d
	return d
}

// shouldRun applies the per-game debounce and records the run time.
func (e *Engine) shouldRun(gameID string) bool {
	if e.cfg.Debounce <= 0 {
		return true
	}

	now := time.Now()
	if v, ok := e.lastRun.Load(gameID); ok {
		if last, ok := v.(time.Time); ok && now.Sub(last) < e.cfg.Debounce {
			return false
		}
	}
	e.lastRun.Store(gameID, now)

	// Drop the entry once it can no longer suppress anything
	go func() {
		time.Sleep(e.cfg.Debounce * 2)
		e.lastRun.Delete(gameID)
	}()

	return true
}

// latestCommenceTime picks the most recently observed commence time in the
// batch. The ingest pipeline may stamp it only on newer snapshots.
func latestCommenceTime(snaps []models.OddsSnapshot) *time.Time {
	var commence *time.Time
	for i := range snaps {
		if snaps[i].CommenceTime != nil {
			commence = snaps[i].CommenceTime
		}
	}
	return commence
}

func (e *Engine) incrementDetectedCount() {
	e.mu.Lock()
	e.detectedCount++
	e.mu.Unlock()
}

func (e *Engine) incrementErrorCount() {
	e.mu.Lock()
	e.errorCount++
	e.mu.Unlock()
}

// GetMetrics returns the running totals for the stats ticker
func (e *Engine) GetMetrics() (detected, errors int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.detectedCount, e.errorCount
}
