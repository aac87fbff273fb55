// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/kafilah/kafilah/internal/logging"
)

type contextKey string

// ClaimsContextKey is where Authenticate stores the verified claims.
const ClaimsContextKey contextKey = "claims"

// Middleware enforces JWT authentication on HTTP routes.
type Middleware struct {
	jwtManager *JWTManager
}

// NewMiddleware creates authentication middleware backed by the manager.
func NewMiddleware(jwtManager *JWTManager) *Middleware {
	return &Middleware{jwtManager: jwtManager}
}

// Authenticate rejects requests without a valid token and stores the
// claims in the request context for handlers downstream.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := TokenFromRequest(r)
		if tokenString == "" {
			http.Error(w, "Unauthorized: missing token", http.StatusUnauthorized)
			return
		}

		claims, err := m.jwtManager.ValidateToken(tokenString)
		if err != nil {
			logging.Debug().Err(err).Str("path", r.URL.Path).Msg("Token validation failed")
			http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TokenFromRequest extracts the bearer token from the Authorization
// header, falling back to the "token" query parameter. The query form
// exists for the WebSocket handshake, where browsers cannot set headers.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimPrefix(h, "Bearer ")
		}
		return ""
	}
	// Websocket handshakes cannot set Authorization from the browser; the
	// client passes the token as a bare header or query parameter instead.
	if t := r.Header.Get("token"); t != "" {
		return t
	}
	return r.URL.Query().Get("token")
}

// ClaimsFromContext returns the claims stored by Authenticate, or nil
// when the request was not authenticated.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(ClaimsContextKey).(*Claims)
	return claims
}

// IsAdmin reports whether the role grants administrative rights.
// Role strings come from user input paths in older data, so the check
// is case-insensitive.
func IsAdmin(role string) bool {
	return strings.EqualFold(role, "admin")
}

// IsStaff reports whether the role may manage group content: group
// guides (pembimbing) and admins.
func IsStaff(role string) bool {
	return IsAdmin(role) || strings.EqualFold(role, "pembimbing")
}
