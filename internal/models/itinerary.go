// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import "time"

// ItineraryItem is one scheduled activity in a group's itinerary.
type ItineraryItem struct {
	ID          string `json:"id"`
	Day         int    `json:"day"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Activity    string `json:"activity"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
}

// Notification is a group-scoped announcement.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	IsRead    bool      `json:"isRead"`
	Timestamp time.Time `json:"timestamp"`
}
