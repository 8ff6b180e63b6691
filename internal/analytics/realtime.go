// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

package analytics

import (
	"time"

	"github.com/sacredconnect/sacredconnect/internal/counters"
	"github.com/sacredconnect/sacredconnect/internal/logging"
)

// RealtimeSnapshot is the current-hour view served to dashboards. It reads
// the rolling counters only, never the durable log, so it is fresh to the
// last write but may undercount if a bucket expired or was never written.
type RealtimeSnapshot struct {
	CurrentHour    string             `json:"current_hour"`
	Events         map[string]int64   `json:"events"`
	ActiveUsers    int64              `json:"active_users"`
	LiveStreams    map[string]int64   `json:"live_streams"`
	Places         map[string]int64   `json:"places"`
	Donations      map[string]int64   `json:"donations"`
	DonationAmount float64            `json:"donation_amount"`
	GeneratedAt    time.Time          `json:"generated_at"`
}

// Realtime reads the current hour bucket from the counter store. Missing
// or expired buckets yield zero values, never errors.
func (a *Aggregator) Realtime(now time.Time) *RealtimeSnapshot {
	bucket := counters.HourBucket(now)
	snap := &RealtimeSnapshot{
		CurrentHour: bucket,
		GeneratedAt: now.UTC(),
	}

	snap.Events = a.readCounters("events", bucket)
	snap.LiveStreams = a.readCounters("live_streams", bucket)
	snap.Places = a.readCounters("places", bucket)
	snap.Donations = a.readCounters("donations", bucket)

	users, err := a.counters.Cardinality("users", bucket)
	if err != nil {
		logging.Warn().Err(err).Str("bucket", bucket).Msg("Failed to read active-user counter")
	}
	snap.ActiveUsers = users

	amounts, err := a.counters.SnapshotFloat("donations", bucket)
	if err != nil {
		logging.Warn().Err(err).Str("bucket", bucket).Msg("Failed to read donation amounts")
	}
	snap.DonationAmount = amounts["amount"]

	return snap
}

func (a *Aggregator) readCounters(ns, bucket string) map[string]int64 {
	snap, err := a.counters.Snapshot(ns, bucket)
	if err != nil {
		logging.Warn().Err(err).Str("namespace", ns).Str("bucket", bucket).Msg("Failed to read counters")
		return map[string]int64{}
	}
	return snap
}
