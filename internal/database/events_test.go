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

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewMemory()
	if err != nil {
		t.Fatalf("open in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func makeEvent(t *testing.T, eventType, userID string, ts time.Time) *models.Event {
	t.Helper()
	e := models.NewEvent(eventType)
	e.UserID = userID
	e.Timestamp = ts
	return e
}

func TestAppendAndCountEvents(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	events := []*models.Event{
		makeEvent(t, models.EventTypePlaceView, "u1", base),
		makeEvent(t, models.EventTypePlaceView, "u2", base.Add(time.Hour)),
		makeEvent(t, models.EventTypeDonationMade, "u1", base.Add(2*time.Hour)),
	}
	if err := db.AppendEvents(ctx, events); err != nil {
		t.Fatalf("AppendEvents: %v", err)
	}

	n, err := db.CountEvents(ctx, models.EventFilter{Start: base, End: base.Add(24 * time.Hour)})
	if err != nil {
		t.Fatalf("CountEvents: %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}

	n, err = db.CountEvents(ctx, models.EventFilter{
		Start: base, End: base.Add(24 * time.Hour),
		EventType: models.EventTypePlaceView,
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("place_view count = %d, want 2", n)
	}
}

func TestWindowIsHalfOpen(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	if err := db.AppendEvents(ctx, []*models.Event{
		makeEvent(t, models.EventTypePlaceView, "u1", start),               // included
		makeEvent(t, models.EventTypePlaceView, "u2", end.Add(-time.Nanosecond)), // included
		makeEvent(t, models.EventTypePlaceView, "u3", end),                 // excluded
		makeEvent(t, models.EventTypePlaceView, "u4", start.Add(-time.Second)),   // excluded
	}); err != nil {
		t.Fatal(err)
	}

	n, err := db.CountEvents(ctx, models.EventFilter{Start: start, End: end})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2 (window must be [start, end))", n)
	}
}

func TestEventsByTypeOrdering(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	var events []*models.Event
	for i := 0; i < 3; i++ {
		events = append(events, makeEvent(t, models.EventTypeLiveStreamView, "u1", base))
	}
	events = append(events, makeEvent(t, models.EventTypeDonationMade, "u1", base))
	if err := db.AppendEvents(ctx, events); err != nil {
		t.Fatal(err)
	}

	byType, err := db.EventsByType(ctx, models.EventFilter{Start: base.Add(-time.Hour), End: base.Add(time.Hour)})
	if err != nil {
		t.Fatal(err)
	}
	if len(byType) != 2 {
		t.Fatalf("got %d types, want 2", len(byType))
	}
	if byType[0].Type != models.EventTypeLiveStreamView || byType[0].Count != 3 {
		t.Errorf("top type = %+v, want live_stream_view/3", byType[0])
	}
}

func TestDailyActivitySkipsEmptyDays(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	dayOne := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	dayThree := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)

	if err := db.AppendEvents(ctx, []*models.Event{
		makeEvent(t, models.EventTypePlaceView, "u1", dayOne),
		makeEvent(t, models.EventTypePlaceView, "u1", dayOne.Add(time.Hour)),
		makeEvent(t, models.EventTypePlaceView, "u1", dayThree),
	}); err != nil {
		t.Fatal(err)
	}

	days, err := db.DailyActivity(ctx, models.EventFilter{
		Start: dayOne.Add(-12 * time.Hour), End: dayThree.Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []models.DayCount{{Day: "2026-03-10", Count: 2}, {Day: "2026-03-12", Count: 1}}
	if len(days) != len(want) {
		t.Fatalf("got %d days, want %d: %v", len(days), len(want), days)
	}
	for i := range want {
		if days[i] != want[i] {
			t.Errorf("day[%d] = %+v, want %+v", i, days[i], want[i])
		}
	}
}

func TestUniqueUsersIgnoresAnonymous(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	if err := db.AppendEvents(ctx, []*models.Event{
		makeEvent(t, models.EventTypePlaceView, "u1", base),
		makeEvent(t, models.EventTypePlaceView, "u1", base),
		makeEvent(t, models.EventTypePlaceView, "u2", base),
		makeEvent(t, models.EventTypePlaceView, "", base), // anonymous
	}); err != nil {
		t.Fatal(err)
	}

	n, err := db.UniqueUsers(ctx, models.EventFilter{Start: base.Add(-time.Hour), End: base.Add(time.Hour)})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("unique users = %d, want 2", n)
	}
}

func TestTopEntities(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	var events []*models.Event
	for i := 0; i < 5; i++ {
		e := makeEvent(t, models.EventTypePlaceView, "u1", base)
		e.EntityType = models.EntityTypePlace
		e.EntityID = "place-a"
		events = append(events, e)
	}
	for i := 0; i < 2; i++ {
		e := makeEvent(t, models.EventTypePlaceView, "u1", base)
		e.EntityType = models.EntityTypePlace
		e.EntityID = "place-b"
		events = append(events, e)
	}
	if err := db.AppendEvents(ctx, events); err != nil {
		t.Fatal(err)
	}

	top, err := db.TopEntities(ctx, models.EventFilter{
		Start: base.Add(-time.Hour), End: base.Add(time.Hour),
		EntityType: models.EntityTypePlace,
	}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 || top[0].EntityID != "place-a" || top[0].Count != 5 {
		t.Errorf("top entities = %+v, want place-a/5 first", top)
	}
}

func TestRecentEventsRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	e := makeEvent(t, models.EventTypeDonationMade, "u1", base)
	e.SessionID = "sess-1"
	e.EntityType = models.EntityTypePlace
	e.EntityID = "place-a"
	e.Properties = models.Properties{"amount": 25.5, "currency": "USD"}
	e.Location = &models.Location{Country: "US", City: "Austin"}
	e.Device = &models.Device{Platform: "ios", Version: "3.2.0"}
	if err := db.AppendEvent(ctx, e); err != nil {
		t.Fatal(err)
	}

	got, err := db.RecentEvents(ctx, models.EventFilter{Start: base.Add(-time.Hour), End: base.Add(time.Hour)}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	r := got[0]
	if r.EventID != e.EventID || r.SessionID != "sess-1" || r.EntityID != "place-a" {
		t.Errorf("round trip mismatch: %+v", r)
	}
	if amount, ok := r.Properties.Float("amount"); !ok || amount != 25.5 {
		t.Errorf("amount = %v, want 25.5", r.Properties["amount"])
	}
	if r.Location == nil || r.Location.Country != "US" {
		t.Errorf("location = %+v, want US", r.Location)
	}
	if r.Device == nil || r.Device.Platform != "ios" {
		t.Errorf("device = %+v, want ios", r.Device)
	}
}

func TestAppendRejectsInvalidEvent(t *testing.T) {
	db := newTestDB(t)
	e := &models.Event{} // no id, type, or timestamp
	if err := db.AppendEvent(context.Background(), e); err == nil {
		t.Error("expected validation error, got nil")
	}
}
