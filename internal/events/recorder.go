// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

// Package events implements the analytics event recorder. Recording is
// fire-and-forget: failures are logged and counted but never surfaced to
// the caller, because analytics must not break the user-facing action
// that produced the event.
package events

import (
	"context"
	"time"

	"github.com/sacredconnect/sacredconnect/internal/logging"
	"github.com/sacredconnect/sacredconnect/internal/metrics"
	"github.com/sacredconnect/sacredconnect/internal/models"
)

// Appender is the durable event log the recorder writes to.
type Appender interface {
	AppendEvent(ctx context.Context, e *models.Event) error
	AppendEvents(ctx context.Context, events []*models.Event) error
}

// CounterStore is the rolling-counter sink for real-time aggregates.
type CounterStore interface {
	Increment(ns string, t time.Time, field string, delta int64) error
	IncrementFloat(ns string, t time.Time, field string, delta float64) error
	AddMember(ns string, t time.Time, member string) error
}

// Recorder writes events to the durable log and the rolling counters.
type Recorder struct {
	store    Appender
	counters CounterStore
}

// New creates a recorder over the given sinks.
func New(store Appender, counters CounterStore) *Recorder {
	return &Recorder{store: store, counters: counters}
}

// Record durably records one event and updates its rolling counters.
// Invalid events and storage failures are logged, never returned.
func (r *Recorder) Record(ctx context.Context, e *models.Event) {
	if err := e.Validate(); err != nil {
		logging.Warn().Err(err).Str("event_type", e.EventType).Msg("Dropping invalid analytics event")
		return
	}

	if err := r.store.AppendEvent(ctx, e); err != nil {
		metrics.EventRecordErrors.WithLabelValues("store").Inc()
		logging.Error().Err(err).
			Str("event_id", e.EventID).
			Str("event_type", e.EventType).
			Msg("Failed to append analytics event")
	}

	r.updateCounters(e)
	metrics.EventsRecorded.WithLabelValues(e.EventType).Inc()
}

// RecordBatch records a batch: one durable write for the whole batch, then
// per-event counter updates. Like Record, it never surfaces errors.
func (r *Recorder) RecordBatch(ctx context.Context, batch []*models.Event) {
	if len(batch) == 0 {
		return
	}

	valid := batch[:0:0]
	for _, e := range batch {
		if err := e.Validate(); err != nil {
			logging.Warn().Err(err).Str("event_type", e.EventType).Msg("Dropping invalid analytics event")
			continue
		}
		valid = append(valid, e)
	}
	if len(valid) == 0 {
		return
	}

	if err := r.store.AppendEvents(ctx, valid); err != nil {
		metrics.EventRecordErrors.WithLabelValues("store").Inc()
		logging.Error().Err(err).Int("batch_size", len(valid)).Msg("Failed to append analytics batch")
	}

	for _, e := range valid {
		r.updateCounters(e)
		metrics.EventsRecorded.WithLabelValues(e.EventType).Inc()
	}
}

// Counter namespaces.
const (
	nsEvents      = "events"
	nsUsers       = "users"
	nsLiveStreams = "live_streams"
	nsPlaces      = "places"
	nsDonations   = "donations"
)

// updateCounters maintains the per-type counters, the unique-user sets,
// and the feature-specific side counters.
func (r *Recorder) updateCounters(e *models.Event) {
	ts := e.Timestamp

	r.count(e, nsEvents, e.EventType, 1)

	if e.UserID != "" {
		if err := r.counters.AddMember(nsUsers, ts, e.UserID); err != nil {
			r.countErr(e, err)
		}
	}

	switch e.EventType {
	case models.EventTypeLiveStreamView:
		if e.EntityID != "" {
			r.count(e, nsLiveStreams, e.EntityID, 1)
		}
	case models.EventTypePlaceView:
		if e.EntityID != "" {
			r.count(e, nsPlaces, e.EntityID+":views", 1)
		}
	case models.EventTypePlaceFollow:
		if e.EntityID != "" {
			r.count(e, nsPlaces, e.EntityID+":followers", 1)
		}
	case models.EventTypeDonationMade:
		r.count(e, nsDonations, "count", 1)
		if amount, ok := e.Properties.Float("amount"); ok {
			if err := r.counters.IncrementFloat(nsDonations, ts, "amount", amount); err != nil {
				r.countErr(e, err)
			}
		}
	}
}

func (r *Recorder) count(e *models.Event, ns, field string, delta int64) {
	if err := r.counters.Increment(ns, e.Timestamp, field, delta); err != nil {
		r.countErr(e, err)
	}
}

func (r *Recorder) countErr(e *models.Event, err error) {
	metrics.EventRecordErrors.WithLabelValues("counters").Inc()
	logging.Error().Err(err).
		Str("event_id", e.EventID).
		Str("event_type", e.EventType).
		Msg("Failed to update rolling counters")
}
