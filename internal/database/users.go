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

	"github.com/sacredconnect/sacredconnect/internal/models"
)

// UpsertUser inserts or replaces a user directory snapshot.
func (db *DB) UpsertUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		return &models.ValidationError{Field: "id", Message: "required"}
	}
	tokens, err := json.Marshal(u.DeviceTokens)
	if err != nil {
		return fmt.Errorf("encode device tokens: %w", err)
	}
	settings, err := json.Marshal(u.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = db.conn.ExecContext(ctx, `INSERT INTO users
		(id, email, phone_number, device_tokens, settings, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			email = excluded.email,
			phone_number = excluded.phone_number,
			device_tokens = excluded.device_tokens,
			settings = excluded.settings,
			is_active = excluded.is_active`,
		u.ID, u.Email, u.PhoneNumber, string(tokens), string(settings),
		u.IsActive, createdAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", u.ID, err)
	}
	return nil
}

// FindUser returns a user snapshot, or ErrNotFound.
func (db *DB) FindUser(ctx context.Context, id string) (*models.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, email, phone_number, device_tokens, settings, is_active, created_at
		 FROM users WHERE id = ?`, id)

	var u models.User
	var tokens, settings string
	err := row.Scan(&u.ID, &u.Email, &u.PhoneNumber, &tokens, &settings, &u.IsActive, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(tokens), &u.DeviceTokens); err != nil {
		return nil, fmt.Errorf("decode device tokens for %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(settings), &u.Settings); err != nil {
		return nil, fmt.Errorf("decode settings for %s: %w", id, err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

// FindUsers fetches snapshots for a set of ids. Missing ids are skipped;
// callers resolve absence per-user.
func (db *DB) FindUsers(ctx context.Context, ids []string) ([]*models.User, error) {
	out := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		u, err := db.FindUser(ctx, id)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// RemoveDeviceTokens deletes the given tokens from a user's snapshot.
// Unknown tokens are ignored.
func (db *DB) RemoveDeviceTokens(ctx context.Context, userID string, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	u, err := db.FindUser(ctx, userID)
	if err != nil {
		return err
	}

	drop := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		drop[t] = true
	}
	kept := u.DeviceTokens[:0]
	for _, t := range u.DeviceTokens {
		if !drop[t] {
			kept = append(kept, t)
		}
	}

	encoded, err := json.Marshal(kept)
	if err != nil {
		return fmt.Errorf("encode device tokens: %w", err)
	}
	_, err = db.conn.ExecContext(ctx,
		`UPDATE users SET device_tokens = ? WHERE id = ?`, string(encoded), userID)
	if err != nil {
		return fmt.Errorf("remove device tokens for %s: %w", userID, err)
	}
	return nil
}

// NewUsersByDay returns per-day signup counts for [start, end), chronological.
func (db *DB) NewUsersByDay(ctx context.Context, start, end time.Time) ([]models.DayCount, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT strftime(created_at, '%Y-%m-%d') AS day, COUNT(*)
		 FROM users WHERE created_at >= ? AND created_at < ?
		 GROUP BY day ORDER BY day`, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query new users by day: %w", err)
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

// CountActiveUsers returns the number of active user snapshots.
func (db *DB) CountActiveUsers(ctx context.Context) (int64, error) {
	var n int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE is_active`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active users: %w", err)
	}
	return n, nil
}

// ActiveUserIDs returns ids of all active users, for broadcast sends.
func (db *DB) ActiveUserIDs(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id FROM users WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
