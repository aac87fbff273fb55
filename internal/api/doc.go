// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api exposes the HTTP surface: authentication, group roster and
// profile endpoints, panic alert management, itinerary and announcement
// CRUD, push subscription management, and the WebSocket upgrade that
// feeds the realtime hub. All responses share the APIResponse envelope.
package api
