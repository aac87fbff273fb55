// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kafilah/kafilah/internal/database"
	"github.com/kafilah/kafilah/internal/models"
)

// Users returns the caller's group roster with last-known locations and
// online/panic flags, the data behind the live map.
func (h *Handlers) Users(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	if claims.GroupID == "" {
		respondData(w, http.StatusOK, []models.User{})
		return
	}

	users, err := h.db.GetGroupUsers(r.Context(), claims.GroupID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load group members", err)
		return
	}
	respondData(w, http.StatusOK, users)
}

// User returns one member's state. Only members of the same group may
// look each other up.
func (h *Handlers) User(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	user, err := h.db.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "User not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load user", err)
		return
	}
	if user.GroupID == "" || user.GroupID != claims.GroupID {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "User not found", nil)
		return
	}
	respondData(w, http.StatusOK, user)
}

type profileRequest struct {
	Name   string `json:"name" validate:"omitempty,min=1,max=100"`
	Avatar string `json:"avatar" validate:"omitempty,max=500"`
}

// UpdateProfile changes the caller's display name and/or avatar, then
// broadcasts the change to their room.
func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)

	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}
	if req.Name == "" && req.Avatar == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Nothing to update", nil)
		return
	}

	if err := h.db.UpdateProfile(r.Context(), claims.UserID, req.Name, req.Avatar); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "User not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update profile", err)
		return
	}

	user, err := h.db.GetUser(r.Context(), claims.UserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load user", err)
		return
	}

	h.events.BroadcastProfileUpdated(claims.GroupID, claims.UserID, user.Avatar)
	respondData(w, http.StatusOK, user)
}

type restLocationRequest struct {
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
}

// UpdateLocation is the REST fallback for clients without an open
// socket. Semantics match the socket event: persist last-known, then
// broadcast to the room. With no socket to exclude, every member
// including the sender's other devices receives it.
func (h *Handlers) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)

	var req restLocationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	now := time.Now()
	if err := h.db.RecordLocation(r.Context(), claims.UserID, req.Latitude, req.Longitude, now); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "User not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to record location", err)
		return
	}

	if claims.GroupID != "" {
		h.events.BroadcastLocation(claims.GroupID, claims.UserID, req.Latitude, req.Longitude, now)
	}
	respondData(w, http.StatusOK, models.Location{Lat: req.Latitude, Lng: req.Longitude, Timestamp: now.UnixMilli()})
}
