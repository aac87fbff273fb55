// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package websocket

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/kafilah/kafilah/internal/auth"
	"github.com/kafilah/kafilah/internal/config"
	"github.com/kafilah/kafilah/internal/logging"
	"github.com/kafilah/kafilah/internal/metrics"
)

// clientIDCounter hands out monotonically increasing IDs so broadcast
// order over a room snapshot is deterministic.
var clientIDCounter atomic.Uint64

// EventHandler receives decoded inbound frames from a client's read pump.
type EventHandler interface {
	HandleEvent(ctx context.Context, c *Client, event string, data json.RawMessage)
}

// Client is the middleman between one websocket connection and the hub.
// Its claims are fixed at admission; a user who changes groups must
// reconnect with a fresh token.
type Client struct {
	id      uint64
	hub     *Hub
	conn    *websocket.Conn
	claims  *auth.Claims
	handler EventHandler
	cfg     *config.RealtimeConfig

	// mu guards send against closeSend: the hub closes the channel
	// while the read pump may still be queueing pong replies.
	mu     sync.Mutex
	send   chan Message
	closed bool
}

// NewClient creates a client for an admitted connection.
func NewClient(hub *Hub, conn *websocket.Conn, claims *auth.Claims, handler EventHandler, cfg *config.RealtimeConfig) *Client {
	return &Client{
		id:      clientIDCounter.Add(1),
		hub:     hub,
		conn:    conn,
		claims:  claims,
		handler: handler,
		cfg:     cfg,
		send:    make(chan Message, cfg.SendBuffer),
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() uint64 { return c.id }

// UserID returns the authenticated user's ID.
func (c *Client) UserID() string { return c.claims.UserID }

// GroupID returns the group from the client's claims, "" when the user
// is not in a group.
func (c *Client) GroupID() string { return c.claims.GroupID }

// Claims returns the verified claims this connection was admitted with.
func (c *Client) Claims() *auth.Claims { return c.claims }

// trySend queues a message without blocking. Returns false when the
// buffer is full or the client has already been closed by the hub; a
// send to a just-closed client is a harmless no-op, never a panic.
func (c *Client) trySend(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// closeSend closes the send channel exactly once. Only the hub calls
// this; the client goroutines never close their own channel.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Start begins the read and write pumps. The caller must have already
// sent the client to hub.Register.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// readPump reads frames until the connection drops, dispatching each
// decoded event to the handler.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		var msg inboundMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Str("user_id", c.UserID()).Msg("unexpected websocket close")
			}
			break
		}

		metrics.WebSocketMessagesReceived.WithLabelValues(msg.Event).Inc()

		if msg.Event == EventPing {
			c.trySend(Message{Event: EventPong})
			continue
		}

		// Request context is gone once the upgrade handler returns, so
		// event handling runs against the background context.
		c.handler.HandleEvent(context.Background(), c, msg.Event, msg.Data)
	}
}

// writePump drains the send channel to the connection and keeps the
// connection alive with periodic pings.
func (c *Client) writePump() {
	pingPeriod := c.cfg.PongWait * 9 / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				logging.Error().Err(err).Str("user_id", c.UserID()).Msg("failed to write message")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
