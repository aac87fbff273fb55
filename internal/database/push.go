// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"context"
	"fmt"
)

// PushSubscription is a stored web-push subscription. Payload is the raw
// subscription JSON exactly as the browser produced it.
type PushSubscription struct {
	UserID  string
	Payload string
}

// UpsertPushSubscription stores or replaces the user's subscription.
// One subscription per user; a new browser registration replaces the old.
func (db *DB) UpsertPushSubscription(ctx context.Context, userID, payload string) error {
	id, err := parseID(userID)
	if err != nil {
		return err
	}
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO push_subscriptions (user_id, subscription)
		 VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			subscription = excluded.subscription,
			updated_at = CURRENT_TIMESTAMP`,
		id, payload)
	if err != nil {
		return fmt.Errorf("upsert push subscription: %w", err)
	}
	return nil
}

// DeletePushSubscription removes the user's subscription; no-op when none
// exists.
func (db *DB) DeletePushSubscription(ctx context.Context, userID string) error {
	id, err := parseID(userID)
	if err != nil {
		return err
	}
	if _, err := db.conn.ExecContext(ctx,
		`DELETE FROM push_subscriptions WHERE user_id = ?`, id); err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	return nil
}

// ListGroupSubscriptions returns all subscriptions for members of the
// group, optionally excluding one user (the alert raiser does not need a
// push about their own panic).
func (db *DB) ListGroupSubscriptions(ctx context.Context, groupID, excludeUserID string) ([]PushSubscription, error) {
	gid, err := parseID(groupID)
	if err != nil {
		return nil, err
	}

	query := `SELECT ps.user_id, ps.subscription
		FROM push_subscriptions ps
		JOIN users u ON ps.user_id = u.id
		WHERE u.group_id = ?`
	args := []interface{}{gid}

	if excludeUserID != "" {
		uid, err := parseID(excludeUserID)
		if err != nil {
			return nil, err
		}
		query += ` AND ps.user_id != ?`
		args = append(args, uid)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query group subscriptions: %w", err)
	}
	defer rows.Close()

	subs := make([]PushSubscription, 0)
	for rows.Next() {
		var (
			uid int64
			s   PushSubscription
		)
		if err := rows.Scan(&uid, &s.Payload); err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		s.UserID = formatID(uid)
		subs = append(subs, s)
	}
	return subs, rows.Err()
}
