// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package supervisor builds the Suture supervision tree for the server.
//
// The tree has two layers: realtime (the websocket hub and the push
// fan-out worker) and api (the HTTP server). A crash in the realtime
// layer restarts those services without taking down the HTTP listener,
// and vice versa.
package supervisor
