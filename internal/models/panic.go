// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import "time"

// DefaultPanicMessage is used when an alert is raised without a message.
const DefaultPanicMessage = "DARURAT! Butuh bantuan segera!"

// PanicAlert is a durable emergency record raised by a group member.
// Alerts are resolved exactly once (resolving an already-resolved alert is
// a no-op) and never deleted.
type PanicAlert struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	UserName   string     `json:"userName"`
	UserPhone  string     `json:"userPhone,omitempty"`
	Message    string     `json:"message"`
	Location   LatLng     `json:"location"`
	IsResolved bool       `json:"isResolved"`
	ResolvedBy string     `json:"resolvedBy,omitempty"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
	Timestamp  int64      `json:"timestamp"`
}
