// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kafilah/kafilah/internal/auth"
	"github.com/kafilah/kafilah/internal/database"
	"github.com/kafilah/kafilah/internal/models"
)

// Notifications lists the caller's group announcements, newest first.
func (h *Handlers) Notifications(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	if claims.GroupID == "" {
		respondData(w, http.StatusOK, []models.Notification{})
		return
	}

	list, err := h.db.ListNotifications(r.Context(), claims.GroupID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load notifications", err)
		return
	}
	respondData(w, http.StatusOK, list)
}

type notificationRequest struct {
	Title   string `json:"title" validate:"required,max=200"`
	Content string `json:"content" validate:"required,max=2000"`
	Type    string `json:"type" validate:"omitempty,oneof=info warning urgent"`
}

// CreateNotification posts an announcement to the caller's group. Guides
// and admins only; ordinary members read.
func (h *Handlers) CreateNotification(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	if !auth.IsStaff(claims.Role) {
		respondError(w, http.StatusForbidden, "FORBIDDEN", "Guide or admin role required", nil)
		return
	}
	if claims.GroupID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "You are not in a group", nil)
		return
	}

	var req notificationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	n, err := h.db.CreateNotification(r.Context(), claims.GroupID, &models.Notification{
		Title:   req.Title,
		Content: req.Content,
		Type:    req.Type,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create notification", err)
		return
	}
	respondData(w, http.StatusCreated, n)
}

// MarkNotificationRead flags an announcement as read for the caller's
// group. Any member may mark; repeating the call is harmless.
func (h *Handlers) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	if claims.GroupID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "You are not in a group", nil)
		return
	}

	err := h.db.MarkNotificationRead(r.Context(), claims.GroupID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Notification not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update notification", err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"message": "marked as read"})
}
