// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"net/http"

	gorilla "github.com/gorilla/websocket"

	"github.com/kafilah/kafilah/internal/logging"
	"github.com/kafilah/kafilah/internal/websocket"
)

// WebSocket admits an authenticated connection into the realtime hub.
// The auth middleware has already verified the token (header or ?token=
// query parameter) before this handler runs, so an invalid token is
// rejected with 401 BEFORE the protocol upgrade ever happens.
func (h *Handlers) WebSocket(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)

	upgrader := gorilla.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logging.Debug().Err(err).Str("user_id", claims.UserID).Msg("websocket upgrade failed")
		return
	}

	client := websocket.NewClient(h.hub, conn, claims, h.events, &h.cfg.Realtime)
	h.hub.Register <- client
	client.Start()
}

// checkOrigin mirrors the CORS policy for the websocket handshake.
// Requests without an Origin header (native mobile clients) are allowed.
func (h *Handlers) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
