// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kafilah/kafilah/internal/models"
)

const itineraryColumns = `id, day, date, time, activity, location, description, icon`

func scanItineraryItem(row interface{ Scan(...interface{}) error }) (*models.ItineraryItem, error) {
	var (
		id                        int64
		item                      models.ItineraryItem
		date, t, loc, descr, icon sql.NullString
	)
	if err := row.Scan(&id, &item.Day, &date, &t, &item.Activity, &loc, &descr, &icon); err != nil {
		return nil, fmt.Errorf("scan itinerary item: %w", err)
	}
	item.ID = formatID(id)
	item.Date = date.String
	item.Time = t.String
	item.Location = loc.String
	item.Description = descr.String
	item.Icon = icon.String
	return &item, nil
}

func (db *DB) listItinerary(ctx context.Context, where string, args ...interface{}) ([]models.ItineraryItem, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+itineraryColumns+` FROM itinerary WHERE `+where+` ORDER BY day ASC, time ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("query itinerary: %w", err)
	}
	defer rows.Close()

	items := make([]models.ItineraryItem, 0)
	for rows.Next() {
		item, err := scanItineraryItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// ListItinerary returns the full itinerary for a group.
func (db *DB) ListItinerary(ctx context.Context, groupID string) ([]models.ItineraryItem, error) {
	id, err := parseID(groupID)
	if err != nil {
		return nil, err
	}
	return db.listItinerary(ctx, `group_id = ?`, id)
}

// ListItineraryByDay returns one day's itinerary for a group.
func (db *DB) ListItineraryByDay(ctx context.Context, groupID string, day int) ([]models.ItineraryItem, error) {
	id, err := parseID(groupID)
	if err != nil {
		return nil, err
	}
	return db.listItinerary(ctx, `group_id = ? AND day = ?`, id, day)
}

// CreateItineraryItem inserts an item and returns it with its ID.
func (db *DB) CreateItineraryItem(ctx context.Context, groupID string, item *models.ItineraryItem) (*models.ItineraryItem, error) {
	gid, err := parseID(groupID)
	if err != nil {
		return nil, err
	}
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO itinerary (group_id, day, date, time, activity, location, description, icon)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		gid, item.Day, item.Date, item.Time, item.Activity, item.Location, item.Description, item.Icon)
	if err != nil {
		return nil, fmt.Errorf("insert itinerary item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("itinerary id: %w", err)
	}
	out := *item
	out.ID = formatID(id)
	return &out, nil
}

// UpdateItineraryItem replaces an item's fields, scoped to the group.
// Returns the stored item.
func (db *DB) UpdateItineraryItem(ctx context.Context, groupID, itemID string, item *models.ItineraryItem) (*models.ItineraryItem, error) {
	gid, err := parseID(groupID)
	if err != nil {
		return nil, err
	}
	id, err := parseID(itemID)
	if err != nil {
		return nil, err
	}
	res, err := db.conn.ExecContext(ctx,
		`UPDATE itinerary SET day = ?, date = ?, time = ?, activity = ?,
			location = ?, description = ?, icon = ?
		 WHERE id = ? AND group_id = ?`,
		item.Day, item.Date, item.Time, item.Activity,
		item.Location, item.Description, item.Icon, id, gid)
	if err != nil {
		return nil, fmt.Errorf("update itinerary item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	out := *item
	out.ID = itemID
	return &out, nil
}

// DeleteItineraryItem removes an item, scoped to the group so a member of
// one group cannot delete another group's entries.
func (db *DB) DeleteItineraryItem(ctx context.Context, groupID, itemID string) error {
	gid, err := parseID(groupID)
	if err != nil {
		return err
	}
	id, err := parseID(itemID)
	if err != nil {
		return err
	}
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM itinerary WHERE id = ? AND group_id = ?`, id, gid)
	if err != nil {
		return fmt.Errorf("delete itinerary item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
