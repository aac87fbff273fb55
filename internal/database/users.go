// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kafilah/kafilah/internal/models"
)

// AuthUser is the internal view of a user needed for authentication. It
// carries the bcrypt hash and is never serialized to clients.
type AuthUser struct {
	ID       string
	Name     string
	Phone    string
	Role     string
	Avatar   string
	GroupID  string // empty when not in a group
	Password string
}

func parseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid id %q", ErrNotFound, id)
	}
	return n, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

const userColumns = `id, name, phone, role, avatar, group_id, is_online, is_panic,
	last_latitude, last_longitude, last_location_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*models.User, error) {
	var (
		id        int64
		u         models.User
		avatar    sql.NullString
		groupID   sql.NullInt64
		online    bool
		panicked  bool
		lat, lng  sql.NullFloat64
		locatedAt sql.NullTime
	)
	err := row.Scan(&id, &u.Name, &u.Phone, &u.Role, &avatar, &groupID,
		&online, &panicked, &lat, &lng, &locatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	u.ID = formatID(id)
	u.Avatar = avatar.String
	if groupID.Valid {
		u.GroupID = formatID(groupID.Int64)
	}
	u.IsOnline = online
	u.IsPanic = panicked
	if lat.Valid && lng.Valid && locatedAt.Valid {
		u.Location = &models.Location{
			Lat:       lat.Float64,
			Lng:       lng.Float64,
			Timestamp: locatedAt.Time.UnixMilli(),
		}
	}
	return &u, nil
}

// GetUser returns one user by ID.
func (db *DB) GetUser(ctx context.Context, userID string) (*models.User, error) {
	id, err := parseID(userID)
	if err != nil {
		return nil, err
	}
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetGroupUsers returns the roster for a group ordered by name, with
// last-known locations and online/panic flags.
func (db *DB) GetGroupUsers(ctx context.Context, groupID string) ([]models.User, error) {
	id, err := parseID(groupID)
	if err != nil {
		return nil, err
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE group_id = ? ORDER BY name`, id)
	if err != nil {
		return nil, fmt.Errorf("query group users: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// GetAuthUserByPhone returns the credentials view for password login.
func (db *DB) GetAuthUserByPhone(ctx context.Context, phone string) (*AuthUser, error) {
	return db.getAuthUser(ctx, `phone = ?`, phone)
}

// GetAuthUserByQRToken returns the credentials view for QR login.
func (db *DB) GetAuthUserByQRToken(ctx context.Context, token string) (*AuthUser, error) {
	return db.getAuthUser(ctx, `qr_token = ?`, token)
}

func (db *DB) getAuthUser(ctx context.Context, where string, arg interface{}) (*AuthUser, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, name, phone, role, avatar, group_id, password FROM users WHERE `+where, arg)

	var (
		id      int64
		u       AuthUser
		avatar  sql.NullString
		groupID sql.NullInt64
	)
	err := row.Scan(&id, &u.Name, &u.Phone, &u.Role, &avatar, &groupID, &u.Password)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan auth user: %w", err)
	}
	u.ID = formatID(id)
	u.Avatar = avatar.String
	if groupID.Valid {
		u.GroupID = formatID(groupID.Int64)
	}
	return &u, nil
}

// SetOnline flips the durable online flag. Driven by login/logout only;
// socket attach and detach never call this.
func (db *DB) SetOnline(ctx context.Context, userID string, online bool) error {
	id, err := parseID(userID)
	if err != nil {
		return err
	}
	_, err = db.conn.ExecContext(ctx,
		`UPDATE users SET is_online = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, online, id)
	if err != nil {
		return fmt.Errorf("set online: %w", err)
	}
	return nil
}

// UpdateProfile stores a new display name and/or avatar. Empty fields
// are left untouched so clients can update either independently.
func (db *DB) UpdateProfile(ctx context.Context, userID, name, avatar string) error {
	id, err := parseID(userID)
	if err != nil {
		return err
	}
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET
			name = CASE WHEN ? != '' THEN ? ELSE name END,
			avatar = CASE WHEN ? != '' THEN ? ELSE avatar END,
			updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		name, name, avatar, avatar, id)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordLocation persists an accepted location update: one append-only
// history row plus an unconditional overwrite of the last-known position.
// Late or reordered updates overwrite without timestamp comparison; the
// store observes "last write wins". The user is marked online as a side
// effect, matching the REST location path.
func (db *DB) RecordLocation(ctx context.Context, userID string, lat, lng float64, at time.Time) error {
	id, err := parseID(userID)
	if err != nil {
		return err
	}
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_locations (user_id, latitude, longitude, recorded_at) VALUES (?, ?, ?, ?)`,
			id, lat, lng, at.UTC()); err != nil {
			return fmt.Errorf("insert location sample: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE users SET is_online = 1, last_latitude = ?, last_longitude = ?,
				last_location_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			lat, lng, at.UTC(), id)
		if err != nil {
			return fmt.Errorf("update last-known location: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ListLocationHistory returns the newest location samples for a user,
// up to limit rows.
func (db *DB) ListLocationHistory(ctx context.Context, userID string, limit int) ([]models.LocationSample, error) {
	id, err := parseID(userID)
	if err != nil {
		return nil, err
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT user_id, latitude, longitude, recorded_at FROM user_locations
		 WHERE user_id = ? ORDER BY recorded_at DESC, id DESC LIMIT ?`, id, limit)
	if err != nil {
		return nil, fmt.Errorf("query location history: %w", err)
	}
	defer rows.Close()

	samples := make([]models.LocationSample, 0, limit)
	for rows.Next() {
		var (
			uid int64
			s   models.LocationSample
		)
		if err := rows.Scan(&uid, &s.Lat, &s.Lng, &s.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan location sample: %w", err)
		}
		s.UserID = formatID(uid)
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// SetUserGroup moves the user into a group, or out of any group when
// groupID is empty. Callers must reissue the session token afterwards:
// membership claims are immutable per connection.
func (db *DB) SetUserGroup(ctx context.Context, userID, groupID string) error {
	id, err := parseID(userID)
	if err != nil {
		return err
	}
	var arg interface{}
	if groupID != "" {
		gid, err := parseID(groupID)
		if err != nil {
			return err
		}
		arg = gid
	}
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET group_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, arg, id)
	if err != nil {
		return fmt.Errorf("set user group: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
