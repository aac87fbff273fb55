// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package middleware provides HTTP middleware shared by the API router:
// request IDs for tracing and Prometheus request instrumentation.
package middleware
