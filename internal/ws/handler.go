package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler serves the websocket upgrade plus health and stats endpoints.
type Handler struct {
	hub    *Hub
	ctx    context.Context
	logger zerolog.Logger
}

// NewHandler creates the handler. ctx bounds the lifetime of every client
// pump started from an upgrade.
func NewHandler(ctx context.Context, hub *Hub, logger zerolog.Logger) *Handler {
	return &Handler{
		hub:    hub,
		ctx:    ctx,
		logger: logger.With().Str("component", "ws-handler").Logger(),
	}
}

// HandleWebSocket upgrades the connection and starts the client pumps.
// ?sports= and ?games= query parameters seed the subscription filter.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	filter := NewFilter(splitParam(r, "sports"), splitParam(r, "games"))
	c := NewClient(uuid.New().String(), conn, h.hub, filter, h.logger)

	h.hub.Register(c)

	go c.WritePump(h.ctx)
	go c.ReadPump(h.ctx)
}

// HandleHealth reports service liveness
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":         "healthy",
		"service":        "edge-ws",
		"active_clients": h.hub.ClientCount(),
	})
}

// HandleStats exposes the hub counters
func (h *Handler) HandleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.hub.Stats())
}

// splitParam parses a comma-separated query parameter
func splitParam(r *http.Request, key string) []string {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
