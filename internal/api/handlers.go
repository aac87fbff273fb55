// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"net/http"
	"time"

	"github.com/kafilah/kafilah/internal/auth"
	"github.com/kafilah/kafilah/internal/cache"
	"github.com/kafilah/kafilah/internal/config"
	"github.com/kafilah/kafilah/internal/database"
	"github.com/kafilah/kafilah/internal/websocket"
)

// Handlers carries the dependencies shared by every endpoint.
type Handlers struct {
	cfg    *config.Config
	db     *database.DB
	jwt    *auth.JWTManager
	hub    *websocket.Hub
	events *websocket.EventRouter
	start  time.Time

	// settingsCache fronts GET /api/settings, which every client polls
	// on its tracking interval.
	settingsCache *cache.Cache
}

// NewHandlers wires the handler set.
func NewHandlers(cfg *config.Config, db *database.DB, jwt *auth.JWTManager, hub *websocket.Hub, events *websocket.EventRouter) *Handlers {
	return &Handlers{
		cfg:           cfg,
		db:            db,
		jwt:           jwt,
		hub:           hub,
		events:        events,
		start:         time.Now(),
		settingsCache: cache.New(30 * time.Second),
	}
}

// mustClaims returns the verified claims; the auth middleware guarantees
// they exist on protected routes.
func mustClaims(r *http.Request) *auth.Claims {
	return auth.ClaimsFromContext(r.Context())
}

type healthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
	Database      string `json:"database"`
	Connections   int    `json:"connections"`
}

// Health reports liveness, database reachability, and the realtime
// connection count.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	dbStatus := "ok"
	status := http.StatusOK
	if err := h.db.Ping(r.Context()); err != nil {
		dbStatus = "unreachable"
		status = http.StatusServiceUnavailable
	}

	respondData(w, status, healthResponse{
		Status:        "up",
		UptimeSeconds: int64(time.Since(h.start).Seconds()),
		Database:      dbStatus,
		Connections:   h.hub.ClientCount(),
	})
}
