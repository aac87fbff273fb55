// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/kafilah/kafilah/internal/models"
)

// ListNotifications returns the group's announcements, newest first.
func (db *DB) ListNotifications(ctx context.Context, groupID string) ([]models.Notification, error) {
	id, err := parseID(groupID)
	if err != nil {
		return nil, err
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, title, content, type, is_read, created_at FROM notifications
		 WHERE group_id = ? ORDER BY created_at DESC`, id)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	out := make([]models.Notification, 0)
	for rows.Next() {
		var (
			nid int64
			n   models.Notification
		)
		if err := rows.Scan(&nid, &n.Title, &n.Content, &n.Type, &n.IsRead, &n.Timestamp); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.ID = formatID(nid)
		out = append(out, n)
	}
	return out, rows.Err()
}

// CreateNotification inserts an announcement and returns it with its ID.
func (db *DB) CreateNotification(ctx context.Context, groupID string, n *models.Notification) (*models.Notification, error) {
	gid, err := parseID(groupID)
	if err != nil {
		return nil, err
	}
	if n.Type == "" {
		n.Type = "info"
	}
	now := time.Now().UTC()
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO notifications (group_id, title, content, type, created_at) VALUES (?, ?, ?, ?, ?)`,
		gid, n.Title, n.Content, n.Type, now)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("notification id: %w", err)
	}
	out := *n
	out.ID = formatID(id)
	out.Timestamp = now
	return &out, nil
}

// MarkNotificationRead flags an announcement as read, scoped to the
// group. Marking an already-read notification is a no-op that succeeds.
func (db *DB) MarkNotificationRead(ctx context.Context, groupID, notificationID string) error {
	gid, err := parseID(groupID)
	if err != nil {
		return err
	}
	id, err := parseID(notificationID)
	if err != nil {
		return err
	}
	res, err := db.conn.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE id = ? AND group_id = ?`, id, gid)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
