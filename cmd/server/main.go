// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main is the entry point for the Kafilah server.
//
// Kafilah keeps group travelers (jamaah) and their guides connected:
// live location sharing, panic alerts with web-push fan-out, group
// itineraries, and announcements, all over a JWT-authenticated REST API
// and a per-group WebSocket room.
//
// Startup order:
//
//  1. Configuration: Koanf v2 layered load (defaults, config.yaml,
//     KAFILAH_-prefixed environment variables)
//  2. Logging: zerolog, configured from the logging section
//  3. Database: SQLite with the schema applied on open
//  4. Realtime: websocket hub and event router
//  5. Push: optional VAPID web-push fan-out worker
//  6. HTTP: chi router with the REST API and websocket upgrade
//  7. Supervision: everything runs under a suture tree
//
// Graceful shutdown on SIGINT/SIGTERM: the HTTP listener drains,
// websocket clients are closed, and the push worker stops.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kafilah/kafilah/internal/api"
	"github.com/kafilah/kafilah/internal/auth"
	"github.com/kafilah/kafilah/internal/config"
	"github.com/kafilah/kafilah/internal/database"
	"github.com/kafilah/kafilah/internal/logging"
	"github.com/kafilah/kafilah/internal/push"
	"github.com/kafilah/kafilah/internal/supervisor"
	"github.com/kafilah/kafilah/internal/supervisor/services"
	ws "github.com/kafilah/kafilah/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("environment", cfg.Server.Environment).
		Bool("push_enabled", cfg.Push.Enabled).
		Msg("Starting Kafilah")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}

	if len(cfg.Security.CORSOrigins) == 1 && cfg.Security.CORSOrigins[0] == "*" {
		logging.Warn().Msg("CORS allows all origins (CORS_ORIGINS=*); set explicit origins in production")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Supervision tree; suture events are logged through the
	// zerolog-backed slog bridge.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	hub := ws.NewHub()
	tree.AddRealtimeService(services.NewHubService(hub))

	// Web push is optional. When disabled, a panic alert still reaches
	// everyone connected to the room; only the offline fan-out is lost.
	var pushService *push.Service
	if cfg.Push.Enabled {
		pushService = push.NewService(&cfg.Push, db)
		defer func() {
			if err := pushService.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing push service")
			}
		}()
		tree.AddRealtimeService(services.NewPushService(pushService))
		logging.Info().Str("subscriber", cfg.Push.Subscriber).Msg("Web push fan-out enabled")
	} else {
		logging.Info().Msg("Web push disabled (KAFILAH_PUSH_ENABLED=false)")
	}

	// The event router is the single write path shared by websocket
	// frames and REST handlers.
	var publisher ws.PanicPublisher
	if pushService != nil {
		publisher = pushService
	}
	events := ws.NewEventRouter(hub, db, publisher)

	router := api.NewRouter(cfg, db, jwtManager, hub, events)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Kafilah stopped gracefully")
}
