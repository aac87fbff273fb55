// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kafilah/kafilah/internal/models"
	"github.com/kafilah/kafilah/internal/websocket"
)

// PanicAlerts lists the caller's group alerts, newest first.
func (h *Handlers) PanicAlerts(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	if claims.GroupID == "" {
		respondData(w, http.StatusOK, []models.PanicAlert{})
		return
	}

	alerts, err := h.db.ListGroupAlerts(r.Context(), claims.GroupID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load alerts", err)
		return
	}
	respondData(w, http.StatusOK, alerts)
}

type raisePanicRequest struct {
	Message string  `json:"message" validate:"omitempty,max=500"`
	Lat     float64 `json:"lat" validate:"latitude"`
	Lng     float64 `json:"lng" validate:"longitude"`
}

// RaisePanic creates a panic alert: persisted, broadcast to the whole
// room including the raiser, and fanned out over web push. An empty
// message gets the default distress text.
func (h *Handlers) RaisePanic(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)

	var req raisePanicRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	alert, err := h.events.RaisePanic(r.Context(), claims, req.Message, req.Lat, req.Lng)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to raise alert", err)
		return
	}
	respondData(w, http.StatusCreated, alert)
}

// ResolvePanic marks an alert resolved. Owner-or-admin only; resolving
// twice is harmless.
func (h *Handlers) ResolvePanic(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	alertID := chi.URLParam(r, "id")

	alert, err := h.events.ResolvePanic(r.Context(), claims, alertID)
	if err != nil {
		switch {
		case errors.Is(err, websocket.ErrAlertNotFound):
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Alert not found", nil)
		case errors.Is(err, websocket.ErrPermissionDenied):
			respondError(w, http.StatusForbidden, "FORBIDDEN", "Only the alert owner or an admin may resolve", nil)
		default:
			respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to resolve alert", err)
		}
		return
	}

	// Return the post-resolve state.
	resolved, err := h.db.GetPanicAlert(r.Context(), alert.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load alert", err)
		return
	}
	respondData(w, http.StatusOK, resolved)
}
