package contracts

import (
	"context"

	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/models"
)

// PillarProvider fetches the externally computed six-factor report for a
// game. Scores are consumed verbatim; nothing here recomputes them.
type PillarProvider interface {
	GetPillars(ctx context.Context, gameID, sport string) (*models.PillarReport, error)
}

// EdgePublisher emits edge events for downstream consumers (websocket
// broadcaster, alerting, anything else on the stream).
type EdgePublisher interface {
	// PublishDetected announces a freshly upserted edge
	PublishDetected(ctx context.Context, edge models.LiveEdge) error

	// PublishTransition announces a lifecycle status change
	PublishTransition(ctx context.Context, edge models.LiveEdge, eventType string) error
}

// Archiver stores a batch of retired edges outside the hot store and
// returns the location written.
type Archiver interface {
	ArchiveEdges(ctx context.Context, edges []models.LiveEdge) (string, error)
}

// Notifier delivers a human-facing alert for a qualifying edge
type Notifier interface {
	Notify(ctx context.Context, edge models.LiveEdge) error
}
