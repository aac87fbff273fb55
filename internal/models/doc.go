// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package models defines the domain types shared between the database,
// realtime, and API layers.
//
// All identifiers are serialized as strings on the wire even though they
// are integer primary keys in the store; mobile clients treat them as
// opaque strings.
package models
