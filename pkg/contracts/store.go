package contracts

import (
	"context"
	"time"

	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/models"
)

// SnapshotFilters narrows a snapshot fetch. Zero values mean "no filter".
type SnapshotFilters struct {
	Market     string
	OutcomeKey string
	Since      *time.Time
	Until      *time.Time
}

// SnapshotStore reads the append-only odds observation log. The log is
// written by the ingest pipeline; this service never mutates it.
type SnapshotStore interface {
	// GetSnapshots returns every snapshot for a game matching the filters,
	// ordered by observation time ascending
	GetSnapshots(ctx context.Context, gameID string, filters SnapshotFilters) ([]models.OddsSnapshot, error)
}

// EdgePatch is a partial lifecycle update applied by edge id. Nil fields are
// left untouched.
type EdgePatch struct {
	Status       *models.EdgeStatus
	Magnitude    *float64
	CurrentValue *float64
	FadedAt      *time.Time
	ExpiredAt    *time.Time
}

// EdgeFilters narrows the edge read surface. Zero values mean "no filter".
type EdgeFilters struct {
	SportKey      string
	GameID        string
	Status        models.EdgeStatus
	MarketType    models.MarketType
	SignalType    models.SignalType
	MinConfidence float64
	Limit         int
	Offset        int
}

// EdgeStore persists live edges. Identity is (game, market type, outcome,
// signal); the upsert's conflict handling is the only guard for the
// at-most-one invariant, there is no in-process locking.
type EdgeStore interface {
	// UpsertEdge writes an edge, overwriting any row with the same identity
	// key in place (fresh detection fields, status reset to active, id kept)
	UpsertEdge(ctx context.Context, edge *models.LiveEdge) error

	// UpdateEdgeLifecycle patches status/magnitude/timestamps on one row.
	// Returns models.ErrEdgeNotFound when the id has no row.
	UpdateEdgeLifecycle(ctx context.Context, id int64, patch EdgePatch) error

	// GetEvaluableEdges returns the active and fading edges only. Expired
	// rows never come back from this call, which is what makes the expired
	// state absorbing.
	GetEvaluableEdges(ctx context.Context) ([]models.LiveEdge, error)

	// ExpireStartedGames force-expires every active or fading edge whose
	// expiry time has passed and returns the number of rows touched
	ExpireStartedGames(ctx context.Context, now time.Time) (int64, error)

	// ListExpiredBefore returns expired edges whose expiredAt is older than
	// the cutoff, for archival ahead of deletion
	ListExpiredBefore(ctx context.Context, cutoff time.Time) ([]models.LiveEdge, error)

	// DeleteExpiredBefore hard-deletes expired edges older than the cutoff
	// and returns the number of rows removed
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// ListEdges returns edges matching the filters, newest detection first
	ListEdges(ctx context.Context, filters EdgeFilters) ([]models.LiveEdge, error)

	// GetEdge returns one edge by id, or models.ErrEdgeNotFound
	GetEdge(ctx context.Context, id int64) (*models.LiveEdge, error)

	// CountEdgesByStatus returns row counts per lifecycle status
	CountEdgesByStatus(ctx context.Context) (map[models.EdgeStatus]int64, error)
}
