package ws

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/models"
)

const broadcastBuffer = 1000

// Hub tracks active clients and fans edge events out to the ones whose
// filter matches.
type Hub struct {
	clients   map[*Client]bool
	clientsMu sync.RWMutex

	broadcast  chan models.EdgeEvent
	register   chan *Client
	unregister chan *Client

	totalConnections int64
	totalBroadcasts  int64
	droppedClients   int64
	statsMu          sync.Mutex

	logger zerolog.Logger
}

// NewHub creates the hub. Run must be started before clients register.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan models.EdgeEvent, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.With().Str("component", "ws-hub").Logger(),
	}
}

// Run processes registrations and broadcasts until the context ends
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info().Msg("hub started")

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case c := <-h.register:
			h.registerClient(c)

		case c := <-h.unregister:
			h.unregisterClient(c)

		case event := <-h.broadcast:
			h.broadcastEvent(event)
		}
	}
}

// Register adds a client to the hub
func (h *Hub) Register(c *Client) {
	h.register <- c
}

// Unregister removes a client and closes its send channel
func (h *Hub) Unregister(c *Client) {
	h.unregister <- c
}

// Broadcast queues an event for fan-out, dropping it when the hub is
// saturated rather than blocking the feeder.
func (h *Hub) Broadcast(event models.EdgeEvent) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn().Str("game_id", event.GameID).Msg("broadcast buffer full, dropping event")
	}
}

func (h *Hub) registerClient(c *Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	h.clients[c] = true
	h.statsMu.Lock()
	h.totalConnections++
	h.statsMu.Unlock()

	h.logger.Info().Str("client_id", c.ID).Int("active", len(h.clients)).Msg("client connected")
}

func (h *Hub) unregisterClient(c *Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.Send)
		h.logger.Info().Str("client_id", c.ID).Int("active", len(h.clients)).Msg("client disconnected")
	}
}

func (h *Hub) broadcastEvent(event models.EdgeEvent) {
	h.clientsMu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.RUnlock()

	sent := 0
	for _, c := range clients {
		if !c.Matches(event) {
			continue
		}
		if c.TrySend(event) {
			sent++
			continue
		}

		// Full buffer means the client cannot keep up
		h.logger.Warn().Str("client_id", c.ID).Msg("client buffer full, disconnecting")
		h.statsMu.Lock()
		h.droppedClients++
		h.statsMu.Unlock()
		go h.Unregister(c)
	}

	if sent > 0 {
		h.statsMu.Lock()
		h.totalBroadcasts++
		h.statsMu.Unlock()
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// Stats returns hub counters for the stats endpoint
func (h *Hub) Stats() map[string]interface{} {
	h.clientsMu.RLock()
	active := len(h.clients)
	h.clientsMu.RUnlock()

	h.statsMu.Lock()
	defer h.statsMu.Unlock()
	return map[string]interface{}{
		"active_clients":     active,
		"total_connections":  h.totalConnections,
		"total_broadcasts":   h.totalBroadcasts,
		"dropped_clients":    h.droppedClients,
		"broadcast_capacity": cap(h.broadcast),
		"broadcast_pending":  len(h.broadcast),
	}
}

func (h *Hub) shutdown() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	h.logger.Info().Int("active", len(h.clients)).Msg("shutting down hub")
	for c := range h.clients {
		close(c.Send)
		delete(h.clients, c)
	}
}
