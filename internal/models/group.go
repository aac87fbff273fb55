// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

// Group is one travel group. Members are populated only on the
// current-group endpoint.
type Group struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Destination      string `json:"destination,omitempty"`
	JoinCode         string `json:"joinCode,omitempty"`
	DepartureDate    string `json:"departureDate"`
	ReturnDate       string `json:"returnDate"`
	DepartureAirport string `json:"departureAirport"`
	IsActive         bool   `json:"isActive"`
	MemberCount      int    `json:"memberCount,omitempty"`
	Members          []User `json:"members,omitempty"`
}

// GroupSettings are the per-group tracking knobs. Defaults apply until an
// admin writes a row for the group.
type GroupSettings struct {
	IsGpsActive      bool `json:"isGpsActive"`
	TrackingInterval int  `json:"trackingInterval"`
	RadiusLimit      int  `json:"radiusLimit"`
	IsAppActive      bool `json:"isAppActive"`
}

// DefaultGroupSettings mirrors the values served before a group has
// persisted settings.
func DefaultGroupSettings() GroupSettings {
	return GroupSettings{
		IsGpsActive:      true,
		TrackingInterval: 30,
		RadiusLimit:      500,
		IsAppActive:      true,
	}
}
