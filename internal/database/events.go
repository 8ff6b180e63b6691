// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/sacredconnect/sacredconnect/internal/metrics"
	"github.com/sacredconnect/sacredconnect/internal/models"
)

// AppendEvent inserts one event into the append-only log.
func (db *DB) AppendEvent(ctx context.Context, e *models.Event) error {
	return db.AppendEvents(ctx, []*models.Event{e})
}

// AppendEvents inserts a batch of events in a single transaction.
func (db *DB) AppendEvents(ctx context.Context, events []*models.Event) error {
	if len(events) == 0 {
		return nil
	}
	start := time.Now()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO analytics_events
		(event_id, event_type, user_id, session_id, entity_type, entity_id,
		 properties, country, state, city, platform, app_version, device_model, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare append: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		if err := e.Validate(); err != nil {
			return err
		}
		props, err := e.Properties.MarshalBinary()
		if err != nil {
			return fmt.Errorf("encode properties for %s: %w", e.EventID, err)
		}

		var country, state, city string
		if e.Location != nil {
			country, state, city = e.Location.Country, e.Location.State, e.Location.City
		}
		var platform, version, model string
		if e.Device != nil {
			platform, version, model = e.Device.Platform, e.Device.Version, e.Device.Model
		}

		if _, err := stmt.ExecContext(ctx,
			e.EventID, e.EventType, e.UserID, e.SessionID, e.EntityType, e.EntityID,
			string(props), country, state, city, platform, version, model,
			e.Timestamp.UTC()); err != nil {
			return fmt.Errorf("append event %s: %w", e.EventID, err)
		}
	}

	err = tx.Commit()
	metrics.RecordDBQuery("insert", "analytics_events", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// eventFilterSQL builds the WHERE clause for an event filter. The time
// window is half-open: [Start, End).
func eventFilterSQL(f models.EventFilter) (string, []any) {
	where := " WHERE timestamp >= ? AND timestamp < ?"
	args := []any{f.Start.UTC(), f.End.UTC()}
	if f.UserID != "" {
		where += " AND user_id = ?"
		args = append(args, f.UserID)
	}
	if f.EntityType != "" {
		where += " AND entity_type = ?"
		args = append(args, f.EntityType)
	}
	if f.EntityID != "" {
		where += " AND entity_id = ?"
		args = append(args, f.EntityID)
	}
	if f.EventType != "" {
		where += " AND event_type = ?"
		args = append(args, f.EventType)
	}
	return where, args
}

// CountEvents returns the number of events matching the filter.
func (db *DB) CountEvents(ctx context.Context, f models.EventFilter) (int64, error) {
	where, args := eventFilterSQL(f)
	var n int64
	err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM analytics_events"+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// EventsByType returns per-type counts ordered by count descending.
func (db *DB) EventsByType(ctx context.Context, f models.EventFilter) ([]models.TypeCount, error) {
	where, args := eventFilterSQL(f)
	rows, err := db.conn.QueryContext(ctx,
		`SELECT event_type, COUNT(*) AS cnt FROM analytics_events`+where+
			` GROUP BY event_type ORDER BY cnt DESC, event_type`, args...)
	if err != nil {
		return nil, fmt.Errorf("query events by type: %w", err)
	}
	defer rows.Close()

	var out []models.TypeCount
	for rows.Next() {
		var tc models.TypeCount
		if err := rows.Scan(&tc.Type, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan type count: %w", err)
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// DailyActivity returns per-day event counts in chronological order.
// Days with no events are absent from the result.
func (db *DB) DailyActivity(ctx context.Context, f models.EventFilter) ([]models.DayCount, error) {
	where, args := eventFilterSQL(f)
	rows, err := db.conn.QueryContext(ctx,
		`SELECT strftime(timestamp, '%Y-%m-%d') AS day, COUNT(*) FROM analytics_events`+where+
			` GROUP BY day ORDER BY day`, args...)
	if err != nil {
		return nil, fmt.Errorf("query daily activity: %w", err)
	}
	defer rows.Close()

	var out []models.DayCount
	for rows.Next() {
		var dc models.DayCount
		if err := rows.Scan(&dc.Day, &dc.Count); err != nil {
			return nil, fmt.Errorf("scan day count: %w", err)
		}
		out = append(out, dc)
	}
	return out, rows.Err()
}

// UniqueUsers returns the count of distinct non-empty user ids.
func (db *DB) UniqueUsers(ctx context.Context, f models.EventFilter) (int64, error) {
	where, args := eventFilterSQL(f)
	var n int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT user_id) FROM analytics_events`+where+
			` AND user_id IS NOT NULL AND user_id != ''`, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unique users: %w", err)
	}
	return n, nil
}

// TopEntities returns the most referenced entity ids, highest count first.
func (db *DB) TopEntities(ctx context.Context, f models.EventFilter, limit int) ([]models.EntityCount, error) {
	where, args := eventFilterSQL(f)
	args = append(args, limit)
	rows, err := db.conn.QueryContext(ctx,
		`SELECT entity_id, COUNT(*) AS cnt FROM analytics_events`+where+
			` AND entity_id IS NOT NULL AND entity_id != ''
			  GROUP BY entity_id ORDER BY cnt DESC, entity_id LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("query top entities: %w", err)
	}
	defer rows.Close()

	var out []models.EntityCount
	for rows.Next() {
		var ec models.EntityCount
		if err := rows.Scan(&ec.EntityID, &ec.Count); err != nil {
			return nil, fmt.Errorf("scan entity count: %w", err)
		}
		out = append(out, ec)
	}
	return out, rows.Err()
}

// PlatformBreakdown returns per-platform counts for device analytics.
func (db *DB) PlatformBreakdown(ctx context.Context, f models.EventFilter) ([]models.TypeCount, error) {
	where, args := eventFilterSQL(f)
	rows, err := db.conn.QueryContext(ctx,
		`SELECT platform, COUNT(*) AS cnt FROM analytics_events`+where+
			` AND platform IS NOT NULL AND platform != ''
			  GROUP BY platform ORDER BY cnt DESC, platform`, args...)
	if err != nil {
		return nil, fmt.Errorf("query platform breakdown: %w", err)
	}
	defer rows.Close()

	var out []models.TypeCount
	for rows.Next() {
		var tc models.TypeCount
		if err := rows.Scan(&tc.Type, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan platform count: %w", err)
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// CountryBreakdown returns per-country counts for location analytics.
func (db *DB) CountryBreakdown(ctx context.Context, f models.EventFilter) ([]models.TypeCount, error) {
	where, args := eventFilterSQL(f)
	rows, err := db.conn.QueryContext(ctx,
		`SELECT country, COUNT(*) AS cnt FROM analytics_events`+where+
			` AND country IS NOT NULL AND country != ''
			  GROUP BY country ORDER BY cnt DESC, country`, args...)
	if err != nil {
		return nil, fmt.Errorf("query country breakdown: %w", err)
	}
	defer rows.Close()

	var out []models.TypeCount
	for rows.Next() {
		var tc models.TypeCount
		if err := rows.Scan(&tc.Type, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan country count: %w", err)
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// RecentEvents returns the newest matching events, most recent first.
func (db *DB) RecentEvents(ctx context.Context, f models.EventFilter, limit int) ([]*models.Event, error) {
	where, args := eventFilterSQL(f)
	args = append(args, limit)
	rows, err := db.conn.QueryContext(ctx,
		`SELECT event_id, event_type, user_id, session_id, entity_type, entity_id,
		        properties, country, state, city, platform, app_version, device_model, timestamp
		 FROM analytics_events`+where+
			` ORDER BY timestamp DESC LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer rows.Close()

	var out []*models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEvent(rows *sql.Rows) (*models.Event, error) {
	var e models.Event
	var userID, sessionID, entityType, entityID sql.NullString
	var props string
	var country, state, city sql.NullString
	var platform, appVersion, devModel sql.NullString
	if err := rows.Scan(&e.EventID, &e.EventType, &userID, &sessionID,
		&entityType, &entityID, &props,
		&country, &state, &city,
		&platform, &appVersion, &devModel, &e.Timestamp); err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}
	e.UserID = userID.String
	e.SessionID = sessionID.String
	e.EntityType = entityType.String
	e.EntityID = entityID.String
	if err := json.Unmarshal([]byte(props), &e.Properties); err != nil {
		return nil, fmt.Errorf("decode properties for %s: %w", e.EventID, err)
	}
	if country.String != "" || state.String != "" || city.String != "" {
		e.Location = &models.Location{Country: country.String, State: state.String, City: city.String}
	}
	if platform.String != "" || appVersion.String != "" || devModel.String != "" {
		e.Device = &models.Device{Platform: platform.String, Version: appVersion.String, Model: devModel.String}
	}
	e.Timestamp = e.Timestamp.UTC()
	return &e, nil
}
