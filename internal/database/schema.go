// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createSchema creates the tables and indexes. All columns are defined in
// the initial CREATE TABLE statements; there is no migration machinery.
func (db *DB) createSchema() error {
	ctx, cancel := schemaContext()
	defer cancel()

	queries := []string{
		// Append-only analytics event log. Rows are never updated or deleted.
		`CREATE TABLE IF NOT EXISTS analytics_events (
			event_id    UUID PRIMARY KEY,
			event_type  TEXT NOT NULL,
			user_id     TEXT,
			session_id  TEXT,
			entity_type TEXT,
			entity_id   TEXT,
			properties  TEXT NOT NULL DEFAULT '{}',
			country     TEXT,
			state       TEXT,
			city        TEXT,
			platform    TEXT,
			app_version TEXT,
			device_model TEXT,
			timestamp   TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS notifications (
			id            UUID PRIMARY KEY,
			user_id       TEXT NOT NULL,
			type          TEXT NOT NULL,
			title         TEXT NOT NULL,
			message       TEXT NOT NULL,
			data          TEXT NOT NULL DEFAULT '{}',
			priority      TEXT NOT NULL DEFAULT 'normal',
			channels      TEXT NOT NULL DEFAULT '["push"]',
			status        TEXT NOT NULL DEFAULT 'pending',
			scheduled_for TIMESTAMP,
			sent_at       TIMESTAMP,
			error         TEXT NOT NULL DEFAULT '',
			read          BOOLEAN NOT NULL DEFAULT FALSE,
			read_at       TIMESTAMP,
			created_at    TIMESTAMP NOT NULL
		)`,

		// Delivery-relevant user snapshots; the source of truth for profile
		// data lives elsewhere.
		`CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL DEFAULT '',
			phone_number  TEXT NOT NULL DEFAULT '',
			device_tokens TEXT NOT NULL DEFAULT '[]',
			settings      TEXT NOT NULL DEFAULT '{}',
			is_active     BOOLEAN NOT NULL DEFAULT TRUE,
			created_at    TIMESTAMP NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_events_timestamp ON analytics_events (timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_events_user ON analytics_events (user_id, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_events_entity ON analytics_events (entity_type, entity_id, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_events_type ON analytics_events (event_type, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications (user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_status ON notifications (status)`,
	}

	for _, query := range queries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}
	return nil
}
