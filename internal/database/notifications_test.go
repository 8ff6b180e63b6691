// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

package database

import (
	"context"
	"testing"
	"time"

	"github.com/sacredconnect/sacredconnect/internal/models"
)

func insertTestNotification(t *testing.T, db *DB, userID string) *models.Notification {
	t.Helper()
	n := models.NewNotification(userID, models.NotificationDonationReceived,
		"New donation", "Someone donated to your place of worship")
	if err := db.InsertNotification(context.Background(), n); err != nil {
		t.Fatalf("InsertNotification: %v", err)
	}
	return n
}

func TestNotificationStatusTransitions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	n := insertTestNotification(t, db, "u1")

	sentAt := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	if err := db.MarkSent(ctx, n.ID, sentAt); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}

	got, err := db.GetNotification(ctx, n.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusSent {
		t.Errorf("status = %s, want sent", got.Status)
	}
	if got.SentAt == nil || !got.SentAt.Equal(sentAt) {
		t.Errorf("sent_at = %v, want %v", got.SentAt, sentAt)
	}

	// Terminal status must not regress.
	if err := db.MarkFailed(ctx, n.ID, "late failure"); err != nil {
		t.Fatalf("MarkFailed on terminal: %v", err)
	}
	got, err = db.GetNotification(ctx, n.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusSent {
		t.Errorf("status regressed to %s after MarkFailed", got.Status)
	}
	if got.Error != "" {
		t.Errorf("error overwritten on terminal record: %q", got.Error)
	}
}

func TestMarkFailedRecordsError(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	n := insertTestNotification(t, db, "u1")

	if err := db.MarkFailed(ctx, n.ID, "smtp: connection refused"); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetNotification(ctx, n.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if got.Error != "smtp: connection refused" {
		t.Errorf("error = %q", got.Error)
	}
}

func TestMarkRead(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	n := insertTestNotification(t, db, "u1")

	readAt := time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC)
	if err := db.MarkRead(ctx, n.ID, "u1", readAt); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	got, err := db.GetNotification(ctx, n.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Read || got.ReadAt == nil {
		t.Errorf("read = %v read_at = %v, want read with timestamp", got.Read, got.ReadAt)
	}

	// Repeat reads are no-ops, not errors.
	if err := db.MarkRead(ctx, n.ID, "u1", readAt.Add(time.Hour)); err != nil {
		t.Errorf("second MarkRead: %v", err)
	}

	// Wrong user cannot mark someone else's notification.
	other := insertTestNotification(t, db, "u2")
	if err := db.MarkRead(ctx, other.ID, "u1", readAt); err != ErrNotFound {
		t.Errorf("cross-user MarkRead err = %v, want ErrNotFound", err)
	}
}

func TestGetNotificationNotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetNotification(context.Background(), "00000000-0000-0000-0000-000000000000")
	if err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListNotificationsNewestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		n := models.NewNotification("u1", models.NotificationSystem, "Update", "System notice")
		n.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := db.InsertNotification(ctx, n); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, n.ID)
	}

	got, err := db.ListNotifications(ctx, "u1", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d notifications, want 3", len(got))
	}
	if got[0].ID != ids[2] {
		t.Errorf("first result = %s, want newest %s", got[0].ID, ids[2])
	}
}

func TestNotificationStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a := insertTestNotification(t, db, "u1")
	insertTestNotification(t, db, "u2")
	b := models.NewNotification("u3", models.NotificationLiveEvent, "Live now", "A service is starting")
	if err := db.InsertNotification(ctx, b); err != nil {
		t.Fatal(err)
	}

	if err := db.MarkSent(ctx, a.ID, time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkFailed(ctx, b.ID, "no device tokens"); err != nil {
		t.Fatal(err)
	}

	stats, err := db.GetNotificationStats(ctx, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 3 || stats.Sent != 1 || stats.Failed != 1 || stats.Pending != 1 {
		t.Errorf("stats = %+v, want total 3 sent 1 failed 1 pending 1", stats)
	}
	if stats.ByType[string(models.NotificationDonationReceived)] != 2 {
		t.Errorf("by_type = %v", stats.ByType)
	}
}
