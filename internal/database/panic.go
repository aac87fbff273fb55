// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kafilah/kafilah/internal/models"
)

// CreatePanicAlert inserts a new alert and sets the owner's panic flag in
// one transaction, so the flag invariant (true iff an unresolved alert
// exists) holds at commit. Returns the stored alert with the owner's name
// resolved for the broadcast payload.
func (db *DB) CreatePanicAlert(ctx context.Context, userID, message string, lat, lng float64) (*models.PanicAlert, error) {
	id, err := parseID(userID)
	if err != nil {
		return nil, err
	}
	if message == "" {
		message = models.DefaultPanicMessage
	}

	now := time.Now().UTC()
	var alertID int64
	var userName, userPhone string

	err = db.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT name, phone FROM users WHERE id = ?`, id)
		if err := row.Scan(&userName, &userPhone); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("lookup alert owner: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO panic_alerts (user_id, message, latitude, longitude, created_at)
			 VALUES (?, ?, ?, ?, ?)`, id, message, lat, lng, now)
		if err != nil {
			return fmt.Errorf("insert panic alert: %w", err)
		}
		alertID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("alert id: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET is_panic = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id); err != nil {
			return fmt.Errorf("set panic flag: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &models.PanicAlert{
		ID:        formatID(alertID),
		UserID:    userID,
		UserName:  userName,
		UserPhone: userPhone,
		Message:   message,
		Location:  models.LatLng{Lat: lat, Lng: lng},
		Timestamp: now.UnixMilli(),
	}, nil
}

const alertQuery = `
	SELECT pa.id, pa.user_id, u.name, u.phone, pa.message, pa.latitude, pa.longitude,
	       pa.is_resolved, r.name, pa.resolved_at, pa.created_at
	FROM panic_alerts pa
	JOIN users u ON pa.user_id = u.id
	LEFT JOIN users r ON pa.resolved_by = r.id`

func scanAlert(row interface{ Scan(...interface{}) error }) (*models.PanicAlert, error) {
	var (
		id, userID int64
		a          models.PanicAlert
		resolvedBy sql.NullString
		resolvedAt sql.NullTime
		createdAt  time.Time
	)
	err := row.Scan(&id, &userID, &a.UserName, &a.UserPhone, &a.Message,
		&a.Location.Lat, &a.Location.Lng, &a.IsResolved, &resolvedBy, &resolvedAt, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan panic alert: %w", err)
	}
	a.ID = formatID(id)
	a.UserID = formatID(userID)
	a.ResolvedBy = resolvedBy.String
	if resolvedAt.Valid {
		t := resolvedAt.Time
		a.ResolvedAt = &t
	}
	a.Timestamp = createdAt.UnixMilli()
	return &a, nil
}

// GetPanicAlert returns one alert by ID, or ErrNotFound.
func (db *DB) GetPanicAlert(ctx context.Context, alertID string) (*models.PanicAlert, error) {
	id, err := parseID(alertID)
	if err != nil {
		return nil, err
	}
	row := db.conn.QueryRowContext(ctx, alertQuery+` WHERE pa.id = ?`, id)
	return scanAlert(row)
}

// ListGroupAlerts returns all alerts raised by members of the group,
// newest first.
func (db *DB) ListGroupAlerts(ctx context.Context, groupID string) ([]models.PanicAlert, error) {
	id, err := parseID(groupID)
	if err != nil {
		return nil, err
	}
	rows, err := db.conn.QueryContext(ctx,
		alertQuery+` WHERE u.group_id = ? ORDER BY pa.created_at DESC`, id)
	if err != nil {
		return nil, fmt.Errorf("query group alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]models.PanicAlert, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

// ResolvePanicAlert marks the alert resolved and clears the owner's panic
// flag when no unresolved alerts remain for them. Resolving an already
// resolved alert is a no-op, not an error. Returns ErrNotFound when the
// alert does not exist.
func (db *DB) ResolvePanicAlert(ctx context.Context, alertID, resolvedBy string) error {
	id, err := parseID(alertID)
	if err != nil {
		return err
	}
	resolver, err := parseID(resolvedBy)
	if err != nil {
		return err
	}

	return db.withTx(ctx, func(tx *sql.Tx) error {
		var ownerID int64
		var resolved bool
		row := tx.QueryRowContext(ctx,
			`SELECT user_id, is_resolved FROM panic_alerts WHERE id = ?`, id)
		if err := row.Scan(&ownerID, &resolved); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("lookup alert: %w", err)
		}
		if resolved {
			return nil // idempotent
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE panic_alerts SET is_resolved = 1, resolved_by = ?, resolved_at = ?
			 WHERE id = ?`, resolver, time.Now().UTC(), id); err != nil {
			return fmt.Errorf("resolve alert: %w", err)
		}

		// Clear the derived flag only when this was the last open alert.
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET is_panic = EXISTS (
				SELECT 1 FROM panic_alerts WHERE user_id = ? AND is_resolved = 0
			 ), updated_at = CURRENT_TIMESTAMP WHERE id = ?`, ownerID, ownerID); err != nil {
			return fmt.Errorf("recompute panic flag: %w", err)
		}
		return nil
	})
}
