package models

import (
	"encoding/json"
	"time"
)

// Change event types pushed by the store's notification subsystem
const (
	ChangeInsert = "insert"
	ChangeUpdate = "update"
	ChangeDelete = "delete"
)

// Tables the change stream covers
const (
	TableSnapshots = "odds_snapshots"
	TableEdges     = "live_edges"
)

// ChangeEvent is one store change notification. Field names follow the
// upstream realtime contract (camelCase), not this service's convention.
type ChangeEvent struct {
	EventType string          `json:"eventType"` // insert | update | delete
	Table     string          `json:"table"`
	Row       json.RawMessage `json:"row"`
	EmittedAt time.Time       `json:"emittedAt,omitempty"`
}

// Edge event types published to the outbound streams
const (
	EdgeEventDetected = "edge.detected"
	EdgeEventUpdated  = "edge.updated"
	EdgeEventExpired  = "edge.expired"
)

// EdgeEvent is the published form of an edge detection or transition,
// consumed by the websocket broadcaster and downstream services.
type EdgeEvent struct {
	Type      string    `json:"type"`
	SportKey  string    `json:"sport_key"`
	GameID    string    `json:"game_id"`
	Edge      LiveEdge  `json:"edge"`
	EmittedAt time.Time `json:"emitted_at"`
}
