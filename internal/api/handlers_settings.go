// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"net/http"

	"github.com/kafilah/kafilah/internal/auth"
	"github.com/kafilah/kafilah/internal/models"
)

// Settings returns the caller's group tracking settings, or the defaults
// when the group never customized them.
func (h *Handlers) Settings(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	if claims.GroupID == "" {
		defaults := models.DefaultGroupSettings()
		respondData(w, http.StatusOK, defaults)
		return
	}

	if cached, ok := h.settingsCache.Get(claims.GroupID); ok {
		respondData(w, http.StatusOK, cached)
		return
	}

	settings, err := h.db.GetGroupSettings(r.Context(), claims.GroupID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load settings", err)
		return
	}
	h.settingsCache.Set(claims.GroupID, settings)
	respondData(w, http.StatusOK, settings)
}

type settingsRequest struct {
	IsGpsActive      bool `json:"isGpsActive"`
	TrackingInterval int  `json:"trackingInterval" validate:"required,min=5,max=3600"`
	RadiusLimit      int  `json:"radiusLimit" validate:"required,min=50,max=100000"`
	IsAppActive      bool `json:"isAppActive"`
}

// UpdateSettings writes the group's tracking settings. Guides and
// admins only.
func (h *Handlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	if !auth.IsStaff(claims.Role) {
		respondError(w, http.StatusForbidden, "FORBIDDEN", "Guide or admin role required", nil)
		return
	}
	if claims.GroupID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "You are not in a group", nil)
		return
	}

	var req settingsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	settings := &models.GroupSettings{
		IsGpsActive:      req.IsGpsActive,
		TrackingInterval: req.TrackingInterval,
		RadiusLimit:      req.RadiusLimit,
		IsAppActive:      req.IsAppActive,
	}
	if err := h.db.UpsertGroupSettings(r.Context(), claims.GroupID, settings); err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to save settings", err)
		return
	}
	h.settingsCache.Delete(claims.GroupID)
	respondData(w, http.StatusOK, settings)
}
