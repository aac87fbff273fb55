// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kafilah/kafilah/internal/config"
)

// Claims are the JWT claims carried by every Kafilah token. GroupID is
// the user's group at issue time; changing groups requires a fresh token.
type Claims struct {
	UserID  string `json:"id"`
	Phone   string `json:"phone"`
	Role    string `json:"role"`
	GroupID string `json:"groupId"`
	jwt.RegisteredClaims
}

// JWTManager creates and validates tokens. HMAC-SHA256 only.
type JWTManager struct {
	secret []byte
	ttl    time.Duration
}

// NewJWTManager builds a manager from the security configuration.
//
// The secret must be non-empty (config validation already enforces a
// 32-character minimum). Tokens are valid for cfg.TokenTTL, seven days
// by default, so pilgrims stay signed in for the length of a trip.
func NewJWTManager(cfg *config.SecurityConfig) (*JWTManager, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required but was empty")
	}
	return &JWTManager{
		secret: []byte(cfg.JWTSecret),
		ttl:    cfg.TokenTTL,
	}, nil
}

// GenerateToken signs a token for an authenticated user. groupID may be
// empty for users not yet in a group.
func (m *JWTManager) GenerateToken(userID, phone, role, groupID string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:  userID,
		Phone:   phone,
		Role:    role,
		GroupID: groupID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken checks the signature, algorithm, and time claims, and
// returns the embedded claims. Tokens signed with anything other than
// HMAC are rejected to prevent algorithm confusion.
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}
