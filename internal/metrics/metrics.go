// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics defines the Prometheus instrumentation for the server,
// exposed at /metrics. Realtime metrics track room fan-out; panic metrics
// track the safety-critical path end to end.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	// Realtime (WebSocket) metrics
	WebSocketConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Current number of connected WebSocket clients",
		},
	)

	WebSocketRoomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_rooms_active",
			Help: "Current number of non-empty group rooms",
		},
	)

	WebSocketMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_received_total",
			Help: "Total inbound WebSocket events",
		},
		[]string{"event"},
	)

	WebSocketMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total outbound WebSocket events delivered to clients",
		},
		[]string{"event"},
	)

	WebSocketEventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_events_dropped_total",
			Help: "Inbound events dropped before broadcast",
		},
		[]string{"event", "reason"}, // "validation", "not_found", "permission", "store"
	)

	// Panic alert metrics
	PanicAlertsRaised = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "panic_alerts_raised_total",
			Help: "Total panic alerts created",
		},
	)

	PanicAlertsResolved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "panic_alerts_resolved_total",
			Help: "Total panic alerts resolved",
		},
	)

	// Web-push metrics
	PushDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_deliveries_total",
			Help: "Web-push delivery attempts by outcome",
		},
		[]string{"status"}, // "ok", "error", "gone"
	)
)
