// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package websocket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/kafilah/kafilah/internal/auth"
	"github.com/kafilah/kafilah/internal/database"
	"github.com/kafilah/kafilah/internal/logging"
	"github.com/kafilah/kafilah/internal/metrics"
	"github.com/kafilah/kafilah/internal/models"
	"github.com/kafilah/kafilah/internal/validation"
)

// Router-level errors surfaced to the REST handlers.
var (
	ErrAlertNotFound    = errors.New("panic alert not found")
	ErrPermissionDenied = errors.New("not allowed to resolve this alert")
)

// Store is the subset of the database the event router needs.
type Store interface {
	RecordLocation(ctx context.Context, userID string, lat, lng float64, at time.Time) error
	CreatePanicAlert(ctx context.Context, userID, message string, lat, lng float64) (*models.PanicAlert, error)
	GetPanicAlert(ctx context.Context, alertID string) (*models.PanicAlert, error)
	ResolvePanicAlert(ctx context.Context, alertID, resolvedBy string) error
}

// PanicPublisher fans a panic alert out to the group's push
// subscriptions. Implementations must not block the caller.
type PanicPublisher interface {
	PublishPanic(groupID string, alert *models.PanicAlert)
}

// EventRouter applies the semantics behind each wire event: persistence
// first, then room broadcast. It is shared by the socket read pumps and
// the REST handlers so both paths behave identically.
type EventRouter struct {
	hub   *Hub
	store Store
	push  PanicPublisher // nil when push is disabled
}

// NewEventRouter wires the router to the hub and store.
func NewEventRouter(hub *Hub, store Store, push PanicPublisher) *EventRouter {
	return &EventRouter{hub: hub, store: store, push: push}
}

// locationPayload is the inbound location-update shape. Clients send
// long-form coordinate keys; outbound frames use the compact lat/lng of
// models.Location.
type locationPayload struct {
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
}

// LocationBroadcast is the outbound user-location-updated payload.
type LocationBroadcast struct {
	UserID   string          `json:"userId"`
	Location models.Location `json:"location"`
}

// panicAlertPayload wraps the inbound panic-alert frame.
type panicAlertPayload struct {
	Alert models.PanicAlert `json:"alert"`
}

type resolvePayload struct {
	AlertID string `json:"alertId" validate:"required"`
}

// ResolveBroadcast is the outbound panic-alert-resolved payload. UserID
// is the alert owner, so group members know whose panic state cleared.
type ResolveBroadcast struct {
	AlertID string `json:"alertId"`
	UserID  string `json:"userId"`
}

// ProfileBroadcast is the outbound user-profile-updated payload.
type ProfileBroadcast struct {
	UserID string `json:"userId"`
	Avatar string `json:"avatar"`
}

// HandleEvent dispatches one inbound frame. Malformed or unauthorized
// frames are dropped and counted; a bad frame never tears down the
// connection.
func (r *EventRouter) HandleEvent(ctx context.Context, c *Client, event string, data json.RawMessage) {
	switch event {
	case EventLocationUpdate:
		r.handleLocationUpdate(ctx, c, data)
	case EventPanicAlert:
		r.handlePanicAlert(c, data)
	case EventPanicResolved:
		r.handlePanicResolved(ctx, c, data)
	default:
		metrics.WebSocketEventsDropped.WithLabelValues(event, "unknown_event").Inc()
		logging.Debug().Str("event", event).Str("user_id", c.UserID()).Msg("unknown websocket event")
	}
}

// handleLocationUpdate persists the sender's position as their last
// known location, then broadcasts it to the room excluding the sender.
// A sender with no group has no room; the frame is dropped silently.
func (r *EventRouter) handleLocationUpdate(ctx context.Context, c *Client, data json.RawMessage) {
	if c.GroupID() == "" {
		metrics.WebSocketEventsDropped.WithLabelValues(EventLocationUpdate, "no_group").Inc()
		return
	}

	var p locationPayload
	if err := json.Unmarshal(data, &p); err != nil {
		metrics.WebSocketEventsDropped.WithLabelValues(EventLocationUpdate, "validation").Inc()
		logging.Debug().Err(err).Str("user_id", c.UserID()).Msg("malformed location payload")
		return
	}
	if err := validation.ValidateStruct(&p); err != nil {
		metrics.WebSocketEventsDropped.WithLabelValues(EventLocationUpdate, "validation").Inc()
		logging.Debug().Err(err).Str("user_id", c.UserID()).Msg("invalid coordinates")
		return
	}

	now := time.Now()
	if err := r.store.RecordLocation(ctx, c.UserID(), p.Latitude, p.Longitude, now); err != nil {
		metrics.WebSocketEventsDropped.WithLabelValues(EventLocationUpdate, "store").Inc()
		logging.Error().Err(err).Str("user_id", c.UserID()).Msg("failed to record location")
		return
	}

	r.hub.BroadcastToRoom(c.GroupID(), c, EventUserLocationUpdated, LocationBroadcast{
		UserID:   c.UserID(),
		Location: models.Location{Lat: p.Latitude, Lng: p.Longitude, Timestamp: now.UnixMilli()},
	})
}

// handlePanicAlert re-broadcasts an alert the sender already created
// through the REST endpoint. The socket path is broadcast-only; the REST
// handler is the single validated write path for new alerts. The sender
// is included so their own UI confirms delivery.
func (r *EventRouter) handlePanicAlert(c *Client, data json.RawMessage) {
	if c.GroupID() == "" {
		metrics.WebSocketEventsDropped.WithLabelValues(EventPanicAlert, "no_group").Inc()
		return
	}

	var p panicAlertPayload
	if err := json.Unmarshal(data, &p); err != nil {
		metrics.WebSocketEventsDropped.WithLabelValues(EventPanicAlert, "validation").Inc()
		logging.Debug().Err(err).Str("user_id", c.UserID()).Msg("malformed panic alert payload")
		return
	}

	alert := p.Alert
	alert.UserID = c.UserID() // never trust the frame's identity
	if alert.Message == "" {
		alert.Message = models.DefaultPanicMessage
	}
	if alert.Timestamp == 0 {
		alert.Timestamp = time.Now().UnixMilli()
	}

	r.hub.BroadcastToRoom(c.GroupID(), nil, EventNewPanicAlert, &alert)
}

// handlePanicResolved resolves an alert over the socket with the same
// permission and idempotency rules as the REST path.
func (r *EventRouter) handlePanicResolved(ctx context.Context, c *Client, data json.RawMessage) {
	var p resolvePayload
	if err := json.Unmarshal(data, &p); err != nil {
		metrics.WebSocketEventsDropped.WithLabelValues(EventPanicResolved, "validation").Inc()
		return
	}
	if err := validation.ValidateStruct(&p); err != nil {
		metrics.WebSocketEventsDropped.WithLabelValues(EventPanicResolved, "validation").Inc()
		return
	}

	if _, err := r.ResolvePanic(ctx, c.Claims(), p.AlertID); err != nil {
		reason := "store"
		switch {
		case errors.Is(err, ErrAlertNotFound):
			reason = "not_found"
		case errors.Is(err, ErrPermissionDenied):
			reason = "permission"
		}
		metrics.WebSocketEventsDropped.WithLabelValues(EventPanicResolved, reason).Inc()
		logging.Debug().Err(err).
			Str("user_id", c.UserID()).
			Str("alert_id", p.AlertID).
			Msg("panic resolve rejected")
	}
}

// RaisePanic persists a new alert, broadcasts it to the whole room
// including the raiser, and hands it to the push publisher. Push
// delivery is fire and forget: its failures never fail the raise.
func (r *EventRouter) RaisePanic(ctx context.Context, claims *auth.Claims, message string, lat, lng float64) (*models.PanicAlert, error) {
	alert, err := r.store.CreatePanicAlert(ctx, claims.UserID, message, lat, lng)
	if err != nil {
		return nil, fmt.Errorf("create panic alert: %w", err)
	}
	metrics.PanicAlertsRaised.Inc()

	logging.Warn().
		Str("user_id", claims.UserID).
		Str("alert_id", alert.ID).
		Str("group_id", claims.GroupID).
		Msg("panic alert raised")

	r.hub.BroadcastToRoom(claims.GroupID, nil, EventNewPanicAlert, alert)

	if r.push != nil && claims.GroupID != "" {
		r.push.PublishPanic(claims.GroupID, alert)
	}
	return alert, nil
}

// ResolvePanic resolves an alert on behalf of the caller. Only the alert
// owner or an admin may resolve; resolving an already-resolved alert is
// a no-op that still succeeds and re-broadcasts, so retries converge.
func (r *EventRouter) ResolvePanic(ctx context.Context, claims *auth.Claims, alertID string) (*models.PanicAlert, error) {
	alert, err := r.store.GetPanicAlert(ctx, alertID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("load panic alert: %w", err)
	}

	if alert.UserID != claims.UserID && !auth.IsAdmin(claims.Role) {
		return nil, ErrPermissionDenied
	}

	if !alert.IsResolved {
		if err := r.store.ResolvePanicAlert(ctx, alertID, claims.UserID); err != nil {
			return nil, fmt.Errorf("resolve panic alert: %w", err)
		}
		metrics.PanicAlertsResolved.Inc()
		logging.Info().
			Str("alert_id", alertID).
			Str("resolved_by", claims.UserID).
			Msg("panic alert resolved")
	}

	r.hub.BroadcastToRoom(claims.GroupID, nil, EventPanicAlertResolved, ResolveBroadcast{
		AlertID: alertID,
		UserID:  alert.UserID,
	})
	return alert, nil
}

// BroadcastLocation publishes a location recorded through the REST API
// to the user's room. No socket connection is excluded; the REST caller
// has no connection to echo back to.
func (r *EventRouter) BroadcastLocation(groupID, userID string, lat, lng float64, at time.Time) {
	r.hub.BroadcastToRoom(groupID, nil, EventUserLocationUpdated, LocationBroadcast{
		UserID:   userID,
		Location: models.Location{Lat: lat, Lng: lng, Timestamp: at.UnixMilli()},
	})
}

// BroadcastProfileUpdated publishes a profile change made through the
// REST API to the user's room. Only the avatar travels over the wire;
// clients refresh names from the roster.
func (r *EventRouter) BroadcastProfileUpdated(groupID, userID, avatar string) {
	r.hub.BroadcastToRoom(groupID, nil, EventUserProfileUpdated, ProfileBroadcast{
		UserID: userID,
		Avatar: avatar,
	})
}
