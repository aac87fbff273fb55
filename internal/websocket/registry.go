// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package websocket

import (
	"sort"
	"sync"
)

// roomName is the wire-visible room identifier for a group.
func roomName(groupID string) string {
	return "group-" + groupID
}

// RoomRegistry tracks which room each client belongs to. A client is in
// at most one room at a time; attaching an already-attached client to
// the same room is a no-op, attaching to a different room moves it.
type RoomRegistry struct {
	mu       sync.RWMutex
	rooms    map[string]map[*Client]bool
	byClient map[*Client]string
}

// NewRoomRegistry creates an empty registry.
func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rooms:    make(map[string]map[*Client]bool),
		byClient: make(map[*Client]string),
	}
}

// Attach places the client in the group's room.
func (r *RoomRegistry) Attach(groupID string, c *Client) {
	room := roomName(groupID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.byClient[c]; ok {
		if current == room {
			return
		}
		r.detachLocked(current, c)
	}

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[*Client]bool)
		r.rooms[room] = members
	}
	members[c] = true
	r.byClient[c] = room
}

// Detach removes the client from its room; no-op when unattached.
func (r *RoomRegistry) Detach(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.byClient[c]
	if !ok {
		return
	}
	r.detachLocked(room, c)
}

func (r *RoomRegistry) detachLocked(room string, c *Client) {
	delete(r.byClient, c)
	if members, ok := r.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
}

// Members returns a snapshot of the group's room, sorted by client ID so
// delivery order is deterministic. exclude, when non-nil, is omitted.
func (r *RoomRegistry) Members(groupID string, exclude *Client) []*Client {
	room := roomName(groupID)

	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[room]
	out := make([]*Client, 0, len(members))
	for c := range members {
		if c == exclude {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// RoomOf returns the room the client is attached to, or "" when none.
func (r *RoomRegistry) RoomOf(c *Client) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byClient[c]
}

// RoomCount returns the number of non-empty rooms.
func (r *RoomRegistry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
