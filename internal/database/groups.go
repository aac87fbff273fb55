// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const groupColumns = `id, name, destination, join_code, departure_date,
	return_date, departure_airport, is_active`

func (db *DB) scanGroup(row *sql.Row) (*groupRow, error) {
	var (
		g           groupRow
		destination sql.NullString
		joinCode    sql.NullString
	)
	err := row.Scan(&g.ID, &g.Name, &destination, &joinCode, &g.DepartureDate,
		&g.ReturnDate, &g.DepartureAirport, &g.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan group: %w", err)
	}
	g.Destination = destination.String
	g.JoinCode = joinCode.String
	return &g, nil
}

type groupRow struct {
	ID               int64
	Name             string
	Destination      string
	JoinCode         string
	DepartureDate    string
	ReturnDate       string
	DepartureAirport string
	IsActive         bool
}

// GroupInfo is the group record with its internal ID already formatted.
type GroupInfo struct {
	ID               string
	Name             string
	Destination      string
	JoinCode         string
	DepartureDate    string
	ReturnDate       string
	DepartureAirport string
	IsActive         bool
}

func (g *groupRow) info() *GroupInfo {
	return &GroupInfo{
		ID:               formatID(g.ID),
		Name:             g.Name,
		Destination:      g.Destination,
		JoinCode:         g.JoinCode,
		DepartureDate:    g.DepartureDate,
		ReturnDate:       g.ReturnDate,
		DepartureAirport: g.DepartureAirport,
		IsActive:         g.IsActive,
	}
}

// GetGroup returns one group by ID.
func (db *DB) GetGroup(ctx context.Context, groupID string) (*GroupInfo, error) {
	id, err := parseID(groupID)
	if err != nil {
		return nil, err
	}
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+groupColumns+` FROM groups WHERE id = ?`, id)
	g, err := db.scanGroup(row)
	if err != nil {
		return nil, err
	}
	return g.info(), nil
}

// GetGroupByJoinCode returns the active group with the given join code.
// Codes are matched case-insensitively by uppercasing, matching how they
// are issued.
func (db *DB) GetGroupByJoinCode(ctx context.Context, code string) (*GroupInfo, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+groupColumns+` FROM groups WHERE join_code = ? AND is_active = 1`,
		strings.ToUpper(code))
	g, err := db.scanGroup(row)
	if err != nil {
		return nil, err
	}
	return g.info(), nil
}

// GroupMemberCount returns how many users belong to the group.
func (db *DB) GroupMemberCount(ctx context.Context, groupID string) (int, error) {
	id, err := parseID(groupID)
	if err != nil {
		return 0, err
	}
	var count int
	err = db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE group_id = ?`, id).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count group members: %w", err)
	}
	return count, nil
}

// CreateGroup inserts a group and returns its ID. Used by provisioning
// and tests; member-facing flows only read groups.
func (db *DB) CreateGroup(ctx context.Context, g *GroupInfo) (string, error) {
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO groups (name, destination, join_code, departure_date, return_date, departure_airport, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.Name, g.Destination, strings.ToUpper(g.JoinCode), g.DepartureDate,
		g.ReturnDate, g.DepartureAirport, g.IsActive)
	if err != nil {
		return "", fmt.Errorf("insert group: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("group id: %w", err)
	}
	return formatID(id), nil
}

// CreateUser inserts a user and returns its ID. Password must already be
// a bcrypt hash.
func (db *DB) CreateUser(ctx context.Context, name, phone, passwordHash, role, groupID string) (string, error) {
	var gid interface{}
	if groupID != "" {
		n, err := parseID(groupID)
		if err != nil {
			return "", err
		}
		gid = n
	}
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (name, phone, password, role, group_id) VALUES (?, ?, ?, ?, ?)`,
		name, phone, passwordHash, role, gid)
	if err != nil {
		return "", fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("user id: %w", err)
	}
	return formatID(id), nil
}
