// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"errors"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/kafilah/kafilah/internal/database"
	"github.com/kafilah/kafilah/internal/logging"
	"github.com/kafilah/kafilah/internal/models"
)

type loginRequest struct {
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type qrLoginRequest struct {
	QRToken string `json:"qrToken" validate:"required"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Login authenticates by phone number and password and returns a signed
// token plus the user's current state.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	authUser, err := h.db.GetAuthUserByPhone(r.Context(), req.Phone)
	if err != nil {
		// Same response as a bad password; do not leak which phones exist.
		respondError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Nomor telepon atau password salah", nil)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(authUser.Password), []byte(req.Password)); err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Nomor telepon atau password salah", nil)
		return
	}

	h.completeLogin(w, r, authUser)
}

// LoginQR authenticates with a pre-provisioned QR token, the onboarding
// path for pilgrims who never set a password.
func (h *Handlers) LoginQR(w http.ResponseWriter, r *http.Request) {
	var req qrLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	authUser, err := h.db.GetAuthUserByQRToken(r.Context(), req.QRToken)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Kode QR tidak valid", nil)
		return
	}

	h.completeLogin(w, r, authUser)
}

func (h *Handlers) completeLogin(w http.ResponseWriter, r *http.Request, authUser *database.AuthUser) {
	token, err := h.jwt.GenerateToken(authUser.ID, authUser.Phone, authUser.Role, authUser.GroupID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "TOKEN_ERROR", "Failed to issue token", err)
		return
	}

	if err := h.db.SetOnline(r.Context(), authUser.ID, true); err != nil {
		logging.Warn().Err(err).Str("user_id", authUser.ID).Msg("failed to mark user online")
	}

	user, err := h.db.GetUser(r.Context(), authUser.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load user", err)
		return
	}

	logging.Info().Str("user_id", authUser.ID).Msg("user logged in")
	respondData(w, http.StatusOK, loginResponse{Token: token, User: user})
}

// Logout marks the user offline. The token itself stays valid until it
// expires; clients discard it.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	if err := h.db.SetOnline(r.Context(), claims.UserID, false); err != nil && !errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to log out", err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me returns the authenticated user's current state.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	user, err := h.db.GetUser(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "User not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load user", err)
		return
	}
	respondData(w, http.StatusOK, user)
}
