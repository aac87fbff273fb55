// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import "time"

// User roles. Role values are stored lowercase; comparisons elsewhere are
// case-insensitive to tolerate legacy rows.
const (
	RoleJamaah     = "jamaah"
	RolePembimbing = "pembimbing"
	RoleAdmin      = "admin"
)

// Location is a point with a millisecond epoch timestamp, the shape every
// realtime and REST payload uses for positions.
type Location struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Timestamp int64   `json:"timestamp"`
}

// LatLng is a bare coordinate pair without a timestamp.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// User is a group member as exposed to clients. Location is the last-known
// position and is nil until the user has reported at least one fix.
type User struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Phone    string    `json:"phone"`
	Role     string    `json:"role"`
	Avatar   string    `json:"avatar,omitempty"`
	GroupID  string    `json:"groupId,omitempty"`
	IsOnline bool      `json:"isOnline"`
	IsPanic  bool      `json:"isPanic"`
	Location *Location `json:"location"`
}

// LocationSample is one row of the append-only location history.
type LocationSample struct {
	UserID     string    `json:"userId"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	RecordedAt time.Time `json:"recordedAt"`
}
