package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/models"
)

const (
	// Time allowed to write a frame to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer
	pongWait = 60 * time.Second

	// Ping period, must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound frame size
	maxMessageSize = 512

	// Outbound buffer per client; a full buffer drops the client
	sendBufferSize = 256
)

// Actions accepted from clients
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// ClientMessage adjusts a connection's subscription filter
type ClientMessage struct {
	Action string   `json:"action"`
	Sports []string `json:"sports,omitempty"`
	Games  []string `json:"games,omitempty"`
}

// Client is one websocket connection with its subscription filter.
type Client struct {
	ID   string
	Send chan models.EdgeEvent

	conn     *websocket.Conn
	hub      *Hub
	filter   Filter
	filterMu sync.RWMutex
	logger   zerolog.Logger
}

// NewClient wraps an upgraded connection. The initial filter comes from the
// upgrade request's query parameters.
func NewClient(id string, conn *websocket.Conn, hub *Hub, filter Filter, logger zerolog.Logger) *Client {
	return &Client{
		ID:     id,
		Send:   make(chan models.EdgeEvent, sendBufferSize),
		conn:   conn,
		hub:    hub,
		filter: filter,
		logger: logger.With().Str("client_id", id).Logger(),
	}
}

// ReadPump consumes subscribe/unsubscribe messages until the peer goes away
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			var msg ClientMessage
			if err := c.conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					c.logger.Debug().Err(err).Msg("unexpected close")
				}
				return
			}
			c.Apply(msg)
		}
	}
}

// WritePump streams matching edge events and keepalive pings to the peer
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case event, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				c.logger.Debug().Err(err).Msg("write error")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Apply adjusts the filter for one client message
func (c *Client) Apply(msg ClientMessage) {
	switch msg.Action {
	case ActionSubscribe:
		c.setFilter(c.Filter().With(msg.Sports, msg.Games))
		c.logger.Debug().Strs("sports", msg.Sports).Strs("games", msg.Games).Msg("subscribed")
	case ActionUnsubscribe:
		c.setFilter(c.Filter().Without(msg.Sports, msg.Games))
		c.logger.Debug().Strs("sports", msg.Sports).Strs("games", msg.Games).Msg("unsubscribed")
	default:
		c.logger.Debug().Str("action", msg.Action).Msg("unknown client action")
	}
}

// TrySend queues an event without blocking; false means the buffer is full
func (c *Client) TrySend(event models.EdgeEvent) bool {
	select {
	case c.Send <- event:
		return true
	default:
		return false
	}
}

// Matches reports whether the client's filter accepts the event
func (c *Client) Matches(event models.EdgeEvent) bool {
	return c.Filter().Matches(event)
}

// Filter returns the current subscription filter
func (c *Client) Filter() Filter {
	c.filterMu.RLock()
	defer c.filterMu.RUnlock()
	return c.filter
}

func (c *Client) setFilter(filter Filter) {
	c.filterMu.Lock()
	defer c.filterMu.Unlock()
	c.filter = filter
}
