// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kafilah/kafilah/internal/auth"
	"github.com/kafilah/kafilah/internal/database"
	"github.com/kafilah/kafilah/internal/models"
)

// Itinerary returns the caller's group schedule, optionally filtered to
// one day with ?day=N.
func (h *Handlers) Itinerary(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	if claims.GroupID == "" {
		respondData(w, http.StatusOK, []models.ItineraryItem{})
		return
	}

	var (
		items []models.ItineraryItem
		err   error
	)
	if dayParam := r.URL.Query().Get("day"); dayParam != "" {
		day, convErr := strconv.Atoi(dayParam)
		if convErr != nil || day < 1 {
			respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "day must be a positive number", nil)
			return
		}
		items, err = h.db.ListItineraryByDay(r.Context(), claims.GroupID, day)
	} else {
		items, err = h.db.ListItinerary(r.Context(), claims.GroupID)
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load itinerary", err)
		return
	}
	respondData(w, http.StatusOK, items)
}

type itineraryRequest struct {
	Day         int    `json:"day" validate:"required,min=1"`
	Date        string `json:"date" validate:"omitempty,max=30"`
	Time        string `json:"time" validate:"omitempty,max=20"`
	Activity    string `json:"activity" validate:"required,max=300"`
	Location    string `json:"location" validate:"omitempty,max=300"`
	Description string `json:"description" validate:"omitempty,max=1000"`
	Icon        string `json:"icon" validate:"omitempty,max=50"`
}

// CreateItineraryItem adds a schedule entry. Guides and admins only.
func (h *Handlers) CreateItineraryItem(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	if !auth.IsStaff(claims.Role) {
		respondError(w, http.StatusForbidden, "FORBIDDEN", "Guide or admin role required", nil)
		return
	}
	if claims.GroupID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "You are not in a group", nil)
		return
	}

	var req itineraryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	item, err := h.db.CreateItineraryItem(r.Context(), claims.GroupID, &models.ItineraryItem{
		Day:         req.Day,
		Date:        req.Date,
		Time:        req.Time,
		Activity:    req.Activity,
		Location:    req.Location,
		Description: req.Description,
		Icon:        req.Icon,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create item", err)
		return
	}
	respondData(w, http.StatusCreated, item)
}

// UpdateItineraryItem replaces a schedule entry. Guides and admins only,
// scoped to the caller's group.
func (h *Handlers) UpdateItineraryItem(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	if !auth.IsStaff(claims.Role) {
		respondError(w, http.StatusForbidden, "FORBIDDEN", "Guide or admin role required", nil)
		return
	}
	if claims.GroupID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "You are not in a group", nil)
		return
	}

	var req itineraryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	item, err := h.db.UpdateItineraryItem(r.Context(), claims.GroupID, chi.URLParam(r, "id"), &models.ItineraryItem{
		Day:         req.Day,
		Date:        req.Date,
		Time:        req.Time,
		Activity:    req.Activity,
		Location:    req.Location,
		Description: req.Description,
		Icon:        req.Icon,
	})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Itinerary item not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update item", err)
		return
	}
	respondData(w, http.StatusOK, item)
}

// DeleteItineraryItem removes a schedule entry. Guides and admins only,
// scoped to the caller's group.
func (h *Handlers) DeleteItineraryItem(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	if !auth.IsStaff(claims.Role) {
		respondError(w, http.StatusForbidden, "FORBIDDEN", "Guide or admin role required", nil)
		return
	}
	if claims.GroupID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "You are not in a group", nil)
		return
	}

	err := h.db.DeleteItineraryItem(r.Context(), claims.GroupID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Itinerary item not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete item", err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"message": "deleted"})
}
