// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sacredconnect/sacredconnect/internal/counters"
	"github.com/sacredconnect/sacredconnect/internal/models"
)

type fakeAppender struct {
	events []*models.Event
	err    error
}

func (f *fakeAppender) AppendEvent(_ context.Context, e *models.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

func (f *fakeAppender) AppendEvents(_ context.Context, es []*models.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, es...)
	return nil
}

func newTestCounters(t *testing.T) *counters.Store {
	t.Helper()
	s, err := counters.NewInMemory(7*24*time.Hour, 30*24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordWritesLogAndCounters(t *testing.T) {
	store := &fakeAppender{}
	cs := newTestCounters(t)
	r := New(store, cs)

	e := models.NewEvent(models.EventTypePlaceView)
	e.UserID = "u1"
	e.EntityType = models.EntityTypePlace
	e.EntityID = "place-1"
	r.Record(context.Background(), e)

	if len(store.events) != 1 {
		t.Fatalf("stored %d events, want 1", len(store.events))
	}

	day := counters.DayBucket(e.Timestamp)
	snap, err := cs.Snapshot("events", day)
	if err != nil {
		t.Fatal(err)
	}
	if snap[models.EventTypePlaceView] != 1 {
		t.Errorf("events counter = %v", snap)
	}

	places, err := cs.Snapshot("places", day)
	if err != nil {
		t.Fatal(err)
	}
	if places["place-1:views"] != 1 {
		t.Errorf("places counter = %v", places)
	}

	n, err := cs.Cardinality("users", day)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("unique users = %d, want 1", n)
	}
}

func TestRecordNeverPropagatesStoreFailure(t *testing.T) {
	store := &fakeAppender{err: errors.New("disk full")}
	cs := newTestCounters(t)
	r := New(store, cs)

	e := models.NewEvent(models.EventTypeDonationMade)
	e.UserID = "u1"
	e.Properties = models.Properties{"amount": 50.0}

	// Must return normally despite the store being down.
	r.Record(context.Background(), e)

	// Counters are still updated.
	day := counters.DayBucket(e.Timestamp)
	donations, err := cs.Snapshot("donations", day)
	if err != nil {
		t.Fatal(err)
	}
	if donations["count"] != 1 {
		t.Errorf("donations = %v", donations)
	}
	amounts, err := cs.SnapshotFloat("donations", day)
	if err != nil {
		t.Fatal(err)
	}
	if amounts["amount"] != 50.0 {
		t.Errorf("amounts = %v", amounts)
	}
}

func TestRecordDropsInvalidEvent(t *testing.T) {
	store := &fakeAppender{}
	r := New(store, newTestCounters(t))

	r.Record(context.Background(), &models.Event{}) // missing type and id

	if len(store.events) != 0 {
		t.Errorf("invalid event stored: %+v", store.events)
	}
}

func TestRecordBatchSingleDurableWrite(t *testing.T) {
	store := &fakeAppender{}
	cs := newTestCounters(t)
	r := New(store, cs)

	var batch []*models.Event
	for i := 0; i < 3; i++ {
		e := models.NewEvent(models.EventTypeLiveStreamView)
		e.UserID = "u1"
		e.EntityID = "stream-1"
		batch = append(batch, e)
	}
	batch = append(batch, &models.Event{}) // invalid, skipped

	r.RecordBatch(context.Background(), batch)

	if len(store.events) != 3 {
		t.Errorf("stored %d events, want 3", len(store.events))
	}

	day := counters.DayBucket(batch[0].Timestamp)
	streams, err := cs.Snapshot("live_streams", day)
	if err != nil {
		t.Fatal(err)
	}
	if streams["stream-1"] != 3 {
		t.Errorf("stream counter = %v", streams)
	}
}

func TestRecordFollowCounter(t *testing.T) {
	cs := newTestCounters(t)
	r := New(&fakeAppender{}, cs)

	e := models.NewEvent(models.EventTypePlaceFollow)
	e.EntityID = "place-2"
	r.Record(context.Background(), e)

	snap, err := cs.Snapshot("places", counters.HourBucket(e.Timestamp))
	if err != nil {
		t.Fatal(err)
	}
	if snap["place-2:followers"] != 1 {
		t.Errorf("followers counter = %v", snap)
	}
}
