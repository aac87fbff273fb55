// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

// RateLimitConfig defines rate limit parameters for a route group.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Endpoint-specific rate limits. Location updates arrive continuously
// from every connected phone, so the realtime group is the most
// permissive; login is the strictest.
var (
	RateLimitLogin  = RateLimitConfig{Requests: 5, Window: 5 * time.Minute}
	RateLimitAuth   = RateLimitConfig{Requests: 10, Window: time.Minute}
	RateLimitWrite  = RateLimitConfig{Requests: 30, Window: time.Minute}
	RateLimitHealth = RateLimitConfig{Requests: 1000, Window: time.Minute}
)

// ChiMiddleware provides CORS and rate limiting for the router, built on
// the go-chi middleware ecosystem.
type ChiMiddleware struct {
	requests int
	window   time.Duration
	cors     func(http.Handler) http.Handler
}

// NewChiMiddleware builds the middleware set from security config.
func NewChiMiddleware(corsOrigins []string, rateLimitReqs int, rateLimitWindow time.Duration) *ChiMiddleware {
	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           86400,
	})

	return &ChiMiddleware{
		requests: rateLimitReqs,
		window:   rateLimitWindow,
		cors:     corsHandler,
	}
}

// CORS returns the CORS middleware.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimit returns the default IP-based rate limiter.
func (m *ChiMiddleware) RateLimit() func(http.Handler) http.Handler {
	return httprate.Limit(m.requests, m.window, httprate.WithKeyFuncs(httprate.KeyByIP))
}

// RateLimitCustom returns an IP-based rate limiter with its own budget.
func (m *ChiMiddleware) RateLimitCustom(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.LimitByIP(cfg.Requests, cfg.Window)
}

// SecurityHeaders adds baseline security headers to API responses.
func SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}
