// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads Kafilah's configuration with Koanf v2 from layered
// sources: built-in defaults, an optional YAML file, and KAFILAH_-prefixed
// environment variables (highest priority).
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the server.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Security SecurityConfig `koanf:"security"`
	Realtime RealtimeConfig `koanf:"realtime"`
	Push     PushConfig     `koanf:"push"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"`
}

// DatabaseConfig holds the durable-store settings.
type DatabaseConfig struct {
	// Path is the SQLite database file. ":memory:" is accepted for tests.
	Path string `koanf:"path"`
}

// SecurityConfig holds authentication and rate-limit settings.
type SecurityConfig struct {
	// JWTSecret signs session tokens (HS256). Minimum 32 characters.
	JWTSecret string `koanf:"jwt_secret"`

	// TokenTTL is the session token lifetime. The product default is 7
	// days; membership changes invalidate sooner by reissuing tokens.
	TokenTTL time.Duration `koanf:"token_ttl"`

	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	CORSOrigins []string `koanf:"cors_origins"`
}

// RealtimeConfig tunes the WebSocket layer.
type RealtimeConfig struct {
	// WriteWait is the per-message write deadline.
	WriteWait time.Duration `koanf:"write_wait"`

	// PongWait is how long to wait for a pong before dropping the peer.
	PongWait time.Duration `koanf:"pong_wait"`

	// MaxMessageSize caps inbound frames in bytes.
	MaxMessageSize int64 `koanf:"max_message_size"`

	// SendBuffer is the per-connection outbound queue length. A slow
	// client whose buffer fills is evicted rather than blocking the room.
	SendBuffer int `koanf:"send_buffer"`
}

// PushConfig holds web-push (VAPID) settings. Push is optional; when
// disabled, panic fan-out is limited to the realtime broadcast.
type PushConfig struct {
	Enabled         bool   `koanf:"enabled"`
	VAPIDPublicKey  string `koanf:"vapid_public_key"`
	VAPIDPrivateKey string `koanf:"vapid_private_key"`
	Subscriber      string `koanf:"subscriber"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Defaults returns the built-in defaults, overridden by file and env.
// Exported so tests can start from a known-good baseline.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3001,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "development",
		},
		Database: DatabaseConfig{
			Path: "/data/kafilah.db",
		},
		Security: SecurityConfig{
			JWTSecret:       "",
			TokenTTL:        7 * 24 * time.Hour,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Realtime: RealtimeConfig{
			WriteWait:      10 * time.Second,
			PongWait:       60 * time.Second,
			MaxMessageSize: 64 * 1024,
			SendBuffer:     256,
		},
		Push: PushConfig{
			Enabled:    false,
			Subscriber: "mailto:admin@kafilah.app",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks the loaded configuration for values that would fail at
// runtime. Called by Load after all layers are merged.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("security.jwt_secret must be at least 32 characters")
	}
	if c.Security.TokenTTL <= 0 {
		return fmt.Errorf("security.token_ttl must be positive")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Push.Enabled && (c.Push.VAPIDPublicKey == "" || c.Push.VAPIDPrivateKey == "") {
		return fmt.Errorf("push.enabled requires VAPID keys")
	}
	if c.Realtime.SendBuffer < 1 {
		return fmt.Errorf("realtime.send_buffer must be at least 1")
	}
	return nil
}
