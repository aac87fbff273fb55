// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"errors"
	"net/http"

	"github.com/kafilah/kafilah/internal/database"
	"github.com/kafilah/kafilah/internal/logging"
	"github.com/kafilah/kafilah/internal/models"
)

func toGroupModel(g *database.GroupInfo) *models.Group {
	return &models.Group{
		ID:               g.ID,
		Name:             g.Name,
		Destination:      g.Destination,
		JoinCode:         g.JoinCode,
		DepartureDate:    g.DepartureDate,
		ReturnDate:       g.ReturnDate,
		DepartureAirport: g.DepartureAirport,
		IsActive:         g.IsActive,
	}
}

// CurrentGroup returns the caller's group with the full member roster.
func (h *Handlers) CurrentGroup(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	if claims.GroupID == "" {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "You are not in a group", nil)
		return
	}

	info, err := h.db.GetGroup(r.Context(), claims.GroupID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Group not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load group", err)
		return
	}

	members, err := h.db.GetGroupUsers(r.Context(), claims.GroupID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load members", err)
		return
	}

	group := toGroupModel(info)
	group.Members = members
	group.MemberCount = len(members)
	respondData(w, http.StatusOK, group)
}

type joinGroupRequest struct {
	JoinCode string `json:"joinCode" validate:"required,len=6"`
}

type membershipResponse struct {
	Token   string        `json:"token"`
	Group   *models.Group `json:"group,omitempty"`
	Message string        `json:"message"`
}

// JoinGroup moves the caller into the group matching the join code and
// reissues the token. Group claims are baked into the token, so the old
// one no longer reflects reality; clients must swap tokens and reconnect
// their socket.
func (h *Handlers) JoinGroup(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)

	var req joinGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	group, err := h.db.GetGroupByJoinCode(r.Context(), req.JoinCode)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Kode grup tidak ditemukan", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to look up group", err)
		return
	}

	if err := h.db.SetUserGroup(r.Context(), claims.UserID, group.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to join group", err)
		return
	}

	token, err := h.jwt.GenerateToken(claims.UserID, claims.Phone, claims.Role, group.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "TOKEN_ERROR", "Failed to issue token", err)
		return
	}

	logging.Info().Str("user_id", claims.UserID).Str("group_id", group.ID).Msg("user joined group")
	respondData(w, http.StatusOK, membershipResponse{
		Token:   token,
		Group:   toGroupModel(group),
		Message: "Berhasil bergabung dengan grup",
	})
}

// LeaveGroup removes the caller from their group and reissues a token
// without group claims.
func (h *Handlers) LeaveGroup(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	if claims.GroupID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "You are not in a group", nil)
		return
	}

	if err := h.db.SetUserGroup(r.Context(), claims.UserID, ""); err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to leave group", err)
		return
	}

	token, err := h.jwt.GenerateToken(claims.UserID, claims.Phone, claims.Role, "")
	if err != nil {
		respondError(w, http.StatusInternalServerError, "TOKEN_ERROR", "Failed to issue token", err)
		return
	}

	logging.Info().Str("user_id", claims.UserID).Str("group_id", claims.GroupID).Msg("user left group")
	respondData(w, http.StatusOK, membershipResponse{
		Token:   token,
		Message: "Berhasil keluar dari grup",
	})
}
