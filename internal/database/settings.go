// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kafilah/kafilah/internal/models"
)

// GetGroupSettings returns the group's settings, or the defaults when no
// row exists yet.
func (db *DB) GetGroupSettings(ctx context.Context, groupID string) (*models.GroupSettings, error) {
	id, err := parseID(groupID)
	if err != nil {
		return nil, err
	}
	var s models.GroupSettings
	row := db.conn.QueryRowContext(ctx,
		`SELECT is_gps_active, tracking_interval, radius_limit, is_app_active
		 FROM app_settings WHERE group_id = ?`, id)
	err = row.Scan(&s.IsGpsActive, &s.TrackingInterval, &s.RadiusLimit, &s.IsAppActive)
	if errors.Is(err, sql.ErrNoRows) {
		defaults := models.DefaultGroupSettings()
		return &defaults, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan settings: %w", err)
	}
	return &s, nil
}

// UpsertGroupSettings writes the group's settings, creating the row on
// first write.
func (db *DB) UpsertGroupSettings(ctx context.Context, groupID string, s *models.GroupSettings) error {
	id, err := parseID(groupID)
	if err != nil {
		return err
	}
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO app_settings (group_id, is_gps_active, tracking_interval, radius_limit, is_app_active)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(group_id) DO UPDATE SET
			is_gps_active = excluded.is_gps_active,
			tracking_interval = excluded.tracking_interval,
			radius_limit = excluded.radius_limit,
			is_app_active = excluded.is_app_active`,
		id, s.IsGpsActive, s.TrackingInterval, s.RadiusLimit, s.IsAppActive)
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}
