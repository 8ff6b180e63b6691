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

// InsertNotification persists a new notification record.
func (db *DB) InsertNotification(ctx context.Context, n *models.Notification) error {
	if err := n.Validate(); err != nil {
		return err
	}
	data, err := n.Data.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode notification data: %w", err)
	}
	channels, err := json.Marshal(n.Channels)
	if err != nil {
		return fmt.Errorf("encode channels: %w", err)
	}

	start := time.Now()
	_, err = db.conn.ExecContext(ctx, `INSERT INTO notifications
		(id, user_id, type, title, message, data, priority, channels, status,
		 scheduled_for, sent_at, error, read, read_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, string(n.Type), n.Title, n.Message, string(data),
		string(n.Priority), string(channels), string(n.Status),
		nullTime(n.ScheduledFor), nullTime(n.SentAt), n.Error,
		n.Read, nullTime(n.ReadAt), n.CreatedAt.UTC())
	metrics.RecordDBQuery("insert", "notifications", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("insert notification %s: %w", n.ID, err)
	}
	return nil
}

// MarkSent transitions a pending notification to sent. Notifications already
// in a terminal state are left untouched; the transition is monotonic.
func (db *DB) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE notifications SET status = ?, sent_at = ?, error = ''
		 WHERE id = ? AND status = ?`,
		string(models.StatusSent), sentAt.UTC(), id, string(models.StatusPending))
	if err != nil {
		return fmt.Errorf("mark notification %s sent: %w", id, err)
	}
	return nil
}

// MarkFailed transitions a pending notification to failed, recording the
// delivery error. Terminal records are left untouched.
func (db *DB) MarkFailed(ctx context.Context, id string, cause string) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE notifications SET status = ?, error = ?
		 WHERE id = ? AND status = ?`,
		string(models.StatusFailed), cause, id, string(models.StatusPending))
	if err != nil {
		return fmt.Errorf("mark notification %s failed: %w", id, err)
	}
	return nil
}

// MarkRead flags a notification as read by its recipient. Read state is
// independent of delivery status.
func (db *DB) MarkRead(ctx context.Context, id, userID string, readAt time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE, read_at = ?
		 WHERE id = ? AND user_id = ? AND NOT read`,
		readAt.UTC(), id, userID)
	if err != nil {
		return fmt.Errorf("mark notification %s read: %w", id, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		// Distinguish missing from already-read.
		var exists bool
		err := db.conn.QueryRowContext(ctx,
			`SELECT TRUE FROM notifications WHERE id = ? AND user_id = ?`, id, userID).Scan(&exists)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// GetNotification fetches a single notification by id.
func (db *DB) GetNotification(ctx context.Context, id string) (*models.Notification, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT
		id, user_id, type, title, message, data, priority, channels, status,
		scheduled_for, sent_at, error, read, read_at, created_at
		FROM notifications WHERE id = ?`, id)
	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get notification %s: %w", id, err)
	}
	return n, nil
}

// ListNotifications returns a user's notifications, newest first.
func (db *DB) ListNotifications(ctx context.Context, userID string, limit, offset int) ([]*models.Notification, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT
		id, user_id, type, title, message, data, priority, channels, status,
		scheduled_for, sent_at, error, read, read_at, created_at
		FROM notifications WHERE user_id = ?
		ORDER BY created_at DESC LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// NotificationStats summarizes delivery outcomes over a time window.
type NotificationStats struct {
	Total   int64            `json:"total"`
	Sent    int64            `json:"sent"`
	Failed  int64            `json:"failed"`
	Pending int64            `json:"pending"`
	Unread  int64            `json:"unread"`
	ByType  map[string]int64 `json:"by_type"`
}

// GetNotificationStats aggregates delivery outcomes for [start, end).
func (db *DB) GetNotificationStats(ctx context.Context, start, end time.Time) (*NotificationStats, error) {
	stats := &NotificationStats{ByType: map[string]int64{}}

	err := db.conn.QueryRowContext(ctx, `SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE status = 'sent'),
		COUNT(*) FILTER (WHERE status = 'failed'),
		COUNT(*) FILTER (WHERE status = 'pending'),
		COUNT(*) FILTER (WHERE NOT read)
		FROM notifications WHERE created_at >= ? AND created_at < ?`,
		start.UTC(), end.UTC()).
		Scan(&stats.Total, &stats.Sent, &stats.Failed, &stats.Pending, &stats.Unread)
	if err != nil {
		return nil, fmt.Errorf("notification stats: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT type, COUNT(*) FROM notifications
		 WHERE created_at >= ? AND created_at < ? GROUP BY type`,
		start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("notification stats by type: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var typ string
		var n int64
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}
		stats.ByType[typ] = n
	}
	return stats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (*models.Notification, error) {
	var n models.Notification
	var data, channels string
	var scheduledFor, sentAt, readAt sql.NullTime
	if err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message,
		&data, &n.Priority, &channels, &n.Status,
		&scheduledFor, &sentAt, &n.Error, &n.Read, &readAt, &n.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(data), &n.Data); err != nil {
		return nil, fmt.Errorf("decode data for %s: %w", n.ID, err)
	}
	if err := json.Unmarshal([]byte(channels), &n.Channels); err != nil {
		return nil, fmt.Errorf("decode channels for %s: %w", n.ID, err)
	}
	n.ScheduledFor = timePtr(scheduledFor)
	n.SentAt = timePtr(sentAt)
	n.ReadAt = timePtr(readAt)
	n.CreatedAt = n.CreatedAt.UTC()
	return &n, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	u := t.Time.UTC()
	return &u
}
