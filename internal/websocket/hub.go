// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package websocket

import (
	"context"
	"sync"

	"github.com/goccy/go-json"

	"github.com/kafilah/kafilah/internal/logging"
	"github.com/kafilah/kafilah/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Inbound wire event names, sent by clients.
const (
	EventLocationUpdate = "location-update"
	EventPanicAlert     = "panic-alert"
	EventPanicResolved  = "panic-resolved"
	EventPing           = "ping"
)

// Outbound wire event names, broadcast to rooms. Deliberately distinct
// from the inbound names so a relayed frame can never be mistaken for a
// client submission.
const (
	EventUserLocationUpdated = "user-location-updated"
	EventNewPanicAlert       = "new-panic-alert"
	EventPanicAlertResolved  = "panic-alert-resolved"
	EventUserProfileUpdated  = "user-profile-updated"
	EventPong                = "pong"
)

// Message is the envelope every frame carries: an event name and an
// event-specific payload.
type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// inboundMessage defers payload decoding to the event router.
type inboundMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// roomMessage is a broadcast scoped to one group's room. exclude, when
// non-nil, is skipped (the sender of a location update does not need its
// own position back).
type roomMessage struct {
	groupID string
	exclude *Client
	msg     Message
}

// Hub maintains the set of connected clients, their room membership, and
// delivers room-scoped broadcasts.
type Hub struct {
	clients    map[*Client]bool
	registry   *RoomRegistry
	broadcast  chan roomMessage
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		registry:   NewRoomRegistry(),
		broadcast:  make(chan roomMessage, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// RunWithContext runs the hub loop until the context is canceled. It is
// designed to be supervised: on cancellation all clients are closed and
// ctx.Err() is returned so the supervisor sees a clean stop.
//
// Channel selection is priority ordered so behavior stays predictable
// when several channels are ready at once:
//   - Priority 1: context cancellation
//   - Priority 2: client lifecycle (Register/Unregister)
//   - Priority 3: room broadcasts
//
// Lifecycle-first ordering means a client that disconnected never
// receives a broadcast queued behind its unregister.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.registerClient(client)
			continue
		case client := <-h.Unregister:
			h.unregisterClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case rm := <-h.broadcast:
			h.deliverToRoom(rm)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	if gid := client.GroupID(); gid != "" {
		h.registry.Attach(gid, client)
	}

	metrics.WebSocketConnectionsActive.Set(float64(total))
	metrics.WebSocketRoomsActive.Set(float64(h.registry.RoomCount()))
	logging.Info().
		Str("user_id", client.UserID()).
		Str("room", h.registry.RoomOf(client)).
		Int("total_clients", total).
		Msg("websocket client connected")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	client.closeSend()
	total := len(h.clients)
	h.mu.Unlock()

	h.registry.Detach(client)

	metrics.WebSocketConnectionsActive.Set(float64(total))
	metrics.WebSocketRoomsActive.Set(float64(h.registry.RoomCount()))
	logging.Info().
		Str("user_id", client.UserID()).
		Int("total_clients", total).
		Msg("websocket client disconnected")
}

// deliverToRoom fans a message out to the room snapshot. A client whose
// send buffer is full is dropped from the hub; its write pump is wedged
// and keeping it would stall presence for the whole group.
func (h *Hub) deliverToRoom(rm roomMessage) {
	members := h.registry.Members(rm.groupID, rm.exclude)

	var toRemove []*Client
	for _, client := range members {
		if client.trySend(rm.msg) {
			metrics.WebSocketMessagesSent.WithLabelValues(rm.msg.Event).Inc()
		} else {
			toRemove = append(toRemove, client)
		}
	}

	if len(toRemove) == 0 {
		return
	}
	h.mu.Lock()
	for _, client := range toRemove {
		delete(h.clients, client)
		client.closeSend()
		h.registry.Detach(client)
		logging.Warn().
			Str("user_id", client.UserID()).
			Msg("dropping slow websocket client")
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WebSocketConnectionsActive.Set(float64(total))
	metrics.WebSocketRoomsActive.Set(float64(h.registry.RoomCount()))
}

// BroadcastToRoom queues a message for every member of the group's room,
// skipping exclude when non-nil. Queueing never blocks; if the hub's
// broadcast buffer is full the message is dropped and logged.
func (h *Hub) BroadcastToRoom(groupID string, exclude *Client, event string, data interface{}) {
	if groupID == "" {
		return
	}
	rm := roomMessage{
		groupID: groupID,
		exclude: exclude,
		msg:     Message{Event: event, Data: data},
	}
	select {
	case h.broadcast <- rm:
	default:
		logging.Warn().
			Str("event", event).
			Str("room", roomName(groupID)).
			Msg("broadcast channel full, dropping message")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Registry exposes room membership, primarily for the event router.
func (h *Hub) Registry() *RoomRegistry {
	return h.registry
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	count := h.ClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", count).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		h.registry.Detach(client)
		client.closeSend()
		delete(h.clients, client)
	}
	metrics.WebSocketConnectionsActive.Set(0)
	metrics.WebSocketRoomsActive.Set(0)
}
