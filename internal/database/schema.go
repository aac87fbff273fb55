// Kafilah - Group Travel Safety and Live Presence
// Copyright 2026 Kafilah Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

// schema is idempotent; every statement uses IF NOT EXISTS so startup can
// reapply it unconditionally.
const schema = `
CREATE TABLE IF NOT EXISTS groups (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	name              TEXT NOT NULL,
	destination       TEXT,
	join_code         TEXT UNIQUE,
	departure_date    TEXT NOT NULL DEFAULT '',
	return_date       TEXT NOT NULL DEFAULT '',
	departure_airport TEXT NOT NULL DEFAULT '',
	is_active         INTEGER NOT NULL DEFAULT 1,
	created_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS users (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	name             TEXT NOT NULL,
	phone            TEXT NOT NULL UNIQUE,
	password         TEXT NOT NULL,
	qr_token         TEXT UNIQUE,
	avatar           TEXT,
	group_id         INTEGER REFERENCES groups(id) ON DELETE SET NULL,
	role             TEXT NOT NULL DEFAULT 'jamaah',
	is_online        INTEGER NOT NULL DEFAULT 0,
	is_panic         INTEGER NOT NULL DEFAULT 0,
	last_latitude    REAL,
	last_longitude   REAL,
	last_location_at TIMESTAMP,
	created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_users_group ON users(group_id);

CREATE TABLE IF NOT EXISTS user_locations (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id     INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	latitude    REAL NOT NULL,
	longitude   REAL NOT NULL,
	recorded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_user_locations_user ON user_locations(user_id, recorded_at);

CREATE TABLE IF NOT EXISTS panic_alerts (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id     INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	message     TEXT NOT NULL,
	latitude    REAL NOT NULL DEFAULT 0,
	longitude   REAL NOT NULL DEFAULT 0,
	is_resolved INTEGER NOT NULL DEFAULT 0,
	resolved_by INTEGER REFERENCES users(id),
	resolved_at TIMESTAMP,
	created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_panic_alerts_user ON panic_alerts(user_id, is_resolved);

CREATE TABLE IF NOT EXISTS itinerary (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	group_id    INTEGER NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
	day         INTEGER NOT NULL,
	date        TEXT,
	time        TEXT,
	activity    TEXT NOT NULL,
	location    TEXT,
	description TEXT,
	icon        TEXT
);

CREATE INDEX IF NOT EXISTS idx_itinerary_group ON itinerary(group_id, day, time);

CREATE TABLE IF NOT EXISTS notifications (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	group_id   INTEGER NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
	title      TEXT NOT NULL,
	content    TEXT NOT NULL,
	type       TEXT NOT NULL DEFAULT 'info',
	is_read    INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS app_settings (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	group_id          INTEGER NOT NULL UNIQUE REFERENCES groups(id) ON DELETE CASCADE,
	is_gps_active     INTEGER NOT NULL DEFAULT 1,
	tracking_interval INTEGER NOT NULL DEFAULT 30,
	radius_limit      INTEGER NOT NULL DEFAULT 500,
	is_app_active     INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS push_subscriptions (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id      INTEGER NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
	subscription TEXT NOT NULL,
	created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
