// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kafilah/kafilah/internal/auth"
	"github.com/kafilah/kafilah/internal/config"
	"github.com/kafilah/kafilah/internal/database"
	"github.com/kafilah/kafilah/internal/middleware"
	"github.com/kafilah/kafilah/internal/websocket"
)

// Router assembles the HTTP surface.
type Router struct {
	handlers *Handlers
	authMW   *auth.Middleware
	chiMW    *ChiMiddleware
}

// NewRouter wires handlers and middleware from the application's
// dependencies.
func NewRouter(cfg *config.Config, db *database.DB, jwtManager *auth.JWTManager, hub *websocket.Hub, events *websocket.EventRouter) *Router {
	return &Router{
		handlers: NewHandlers(cfg, db, jwtManager, hub, events),
		authMW:   auth.NewMiddleware(jwtManager),
		chiMW: NewChiMiddleware(
			cfg.Security.CORSOrigins,
			cfg.Security.RateLimitReqs,
			cfg.Security.RateLimitWindow,
		),
	}
}

// Setup builds the chi route tree.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMW.CORS())

	// Prometheus scrape endpoint; no auth, protect at the network layer.
	r.Handle("/metrics", promhttp.Handler())

	// Health, rate limited permissively for monitors.
	r.Route("/api/health", func(r chi.Router) {
		r.Use(router.chiMW.RateLimitCustom(RateLimitHealth))
		r.Use(SecurityHeaders())
		r.Get("/", router.handlers.Health)
	})

	// Authentication, strict limits against brute force.
	r.Route("/api/auth", func(r chi.Router) {
		r.Use(SecurityHeaders())
		r.Use(middleware.PrometheusMetrics)

		r.Group(func(r chi.Router) {
			r.Use(router.chiMW.RateLimitCustom(RateLimitLogin))
			r.Post("/login", router.handlers.Login)
			r.Post("/login-qr", router.handlers.LoginQR)
		})

		r.Group(func(r chi.Router) {
			r.Use(router.chiMW.RateLimitCustom(RateLimitAuth))
			r.Use(router.authMW.Authenticate)
			r.Post("/logout", router.handlers.Logout)
			r.Get("/me", router.handlers.Me)
		})
	})

	// Authenticated application API.
	r.Route("/api", func(r chi.Router) {
		r.Use(router.chiMW.RateLimit())
		r.Use(SecurityHeaders())
		r.Use(middleware.PrometheusMetrics)
		r.Use(router.authMW.Authenticate)

		r.Get("/users", router.handlers.Users)
		r.Get("/users/{id}", router.handlers.User)
		r.Put("/users/profile", router.handlers.UpdateProfile)
		r.Post("/users/location", router.handlers.UpdateLocation)

		r.Get("/panic", router.handlers.PanicAlerts)
		r.With(router.chiMW.RateLimitCustom(RateLimitWrite)).
			Post("/panic", router.handlers.RaisePanic)
		r.Put("/panic/{id}/resolve", router.handlers.ResolvePanic)

		r.Get("/groups/current", router.handlers.CurrentGroup)
		r.Post("/groups/join", router.handlers.JoinGroup)
		r.Post("/groups/leave", router.handlers.LeaveGroup)

		r.Get("/itinerary", router.handlers.Itinerary)
		r.Post("/itinerary", router.handlers.CreateItineraryItem)
		r.Put("/itinerary/{id}", router.handlers.UpdateItineraryItem)
		r.Delete("/itinerary/{id}", router.handlers.DeleteItineraryItem)

		r.Get("/notifications", router.handlers.Notifications)
		r.Post("/notifications", router.handlers.CreateNotification)
		r.Put("/notifications/{id}/read", router.handlers.MarkNotificationRead)

		r.Get("/settings", router.handlers.Settings)
		r.Put("/settings", router.handlers.UpdateSettings)

		r.Get("/push/vapid-public-key", router.handlers.VAPIDPublicKey)
		r.Post("/push/subscribe", router.handlers.PushSubscribe)
		r.Post("/push/unsubscribe", router.handlers.PushUnsubscribe)
		r.Delete("/push/subscribe", router.handlers.PushUnsubscribe)

		// Realtime entry point. Token checked above, upgrade after.
		r.Get("/ws", router.handlers.WebSocket)
	})

	return r
}
