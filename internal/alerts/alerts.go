// Package alerts delivers Slack notifications for qualifying detections.
// Filtering and deduplication run inside the engine process; a suppressed
// or failed alert never blocks detection.
package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/OMIGROUPOPS/omi-edge-engine/internal/metrics"
	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/contracts"
	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/models"
)

// dedupStore is the slice of go-redis used for dedup claims
type dedupStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Config tunes which edges alert and how often the same edge may repeat.
type Config struct {
	WebhookURL    string
	MinConfidence float64
	Signals       []string // empty allows every signal type
	DedupTTL      time.Duration
}

// Notifier filters, deduplicates and delivers edge alerts.
type Notifier struct {
	dedup   dedupStore
	sender  *SlackSender
	cfg     Config
	signals map[models.SignalType]bool
	metrics *metrics.EngineMetrics
	logger  zerolog.Logger
}

// New creates the notifier. The redis client backs the dedup window; m may
// be nil when the caller does not track alert metrics.
func New(client dedupStore, cfg Config, m *metrics.EngineMetrics, logger zerolog.Logger) *Notifier {
	signals := make(map[models.SignalType]bool, len(cfg.Signals))
	for _, s := range cfg.Signals {
		signals[models.SignalType(s)] = true
	}
	return &Notifier{
		dedup:   client,
		sender:  NewSlackSender(cfg.WebhookURL),
		cfg:     cfg,
		signals: signals,
		metrics: m,
		logger:  logger.With().Str("component", "alerts").Logger(),
	}
}

// Notify delivers an alert for the edge if it qualifies and has not alerted
// within the dedup window.
func (n *Notifier) Notify(ctx context.Context, edge models.LiveEdge) error {
	if should, reason := n.shouldAlert(edge); !should {
		n.logger.Debug().Str("game_id", edge.GameID).Str("reason", reason).Msg("alert suppressed")
		return nil
	}

	key := dedupKey(edge)
	fresh, err := n.dedup.SetNX(ctx, key, "1", n.cfg.DedupTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to claim dedup key: %w", err)
	}
	if !fresh {
		n.logger.Debug().Str("game_id", edge.GameID).Str("key", key).Msg("alert deduplicated")
		return nil
	}

	if err := n.sender.Send(ctx, edge); err != nil {
		// Release the claim so the next detection retries instead of
		// waiting out the TTL
		if _, delErr := n.dedup.Del(ctx, key).Result(); delErr != nil {
			n.logger.Warn().Err(delErr).Str("key", key).Msg("failed to release dedup key")
		}
		return fmt.Errorf("failed to send alert: %w", err)
	}

	if n.metrics != nil {
		n.metrics.AlertsSent.Inc()
	}
	n.logger.Info().
		Str("game_id", edge.GameID).
		Str("signal", string(edge.SignalType)).
		Float64("confidence", edge.Confidence).
		Msg("alert sent")
	return nil
}

// shouldAlert applies the status, confidence and signal filters
func (n *Notifier) shouldAlert(edge models.LiveEdge) (bool, string) {
	if edge.Status != models.EdgeStatusActive {
		return false, fmt.Sprintf("status %s is not alertable", edge.Status)
	}
	if edge.Confidence < n.cfg.MinConfidence {
		return false, fmt.Sprintf("confidence %.0f below threshold %.0f", edge.Confidence, n.cfg.MinConfidence)
	}
	if len(n.signals) > 0 && !n.signals[edge.SignalType] {
		return false, fmt.Sprintf("signal %s not in allowlist", edge.SignalType)
	}
	return true, ""
}

// dedupKey builds the suppression key for an edge identity
func dedupKey(edge models.LiveEdge) string {
	return fmt.Sprintf("alert:dedup:%s:%s:%s:%s", edge.GameID, edge.MarketType, edge.OutcomeKey, edge.SignalType)
}

var _ contracts.Notifier = (*Notifier)(nil)
