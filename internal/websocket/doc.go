// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package websocket implements the realtime presence layer: a hub of
// authenticated connections grouped into per-group rooms, an event
// router that applies location and panic semantics, and the gorilla
// read/write pumps for each connection.
//
// Every connection is admitted with verified JWT claims before the
// upgrade completes. A connection whose claims carry a group ID is
// attached to that group's room for the lifetime of the connection;
// group membership changes require a reconnect with a fresh token.
package websocket
