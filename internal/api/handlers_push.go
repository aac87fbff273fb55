// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"net/http"

	"github.com/goccy/go-json"
)

// VAPIDPublicKey hands clients the key they need to subscribe. Returns
// 404 when push is disabled so clients skip registration cleanly.
func (h *Handlers) VAPIDPublicKey(w http.ResponseWriter, r *http.Request) {
	if !h.cfg.Push.Enabled {
		respondError(w, http.StatusNotFound, "PUSH_DISABLED", "Web push is not configured", nil)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"publicKey": h.cfg.Push.VAPIDPublicKey})
}

type pushSubscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
	Keys     struct {
		P256dh string `json:"p256dh" validate:"required"`
		Auth   string `json:"auth" validate:"required"`
	} `json:"keys"`
}

// PushSubscribe stores the caller's browser push subscription. One per
// user; re-registering replaces the previous one.
func (h *Handlers) PushSubscribe(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)

	var req pushSubscribeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	// Store the subscription in the exact shape web-push expects back.
	payload, err := json.Marshal(req)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to encode subscription", err)
		return
	}
	if err := h.db.UpsertPushSubscription(r.Context(), claims.UserID, string(payload)); err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to save subscription", err)
		return
	}
	respondData(w, http.StatusCreated, map[string]string{"message": "subscribed"})
}

// PushUnsubscribe removes the caller's subscription.
func (h *Handlers) PushUnsubscribe(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	if err := h.db.DeletePushSubscription(r.Context(), claims.UserID); err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to remove subscription", err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"message": "unsubscribed"})
}
