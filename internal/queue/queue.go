// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

// Package queue implements the delivery work queue on top of Watermill.
// Jobs are JSON payloads published to per-priority topics; consumers
// register processors that receive the raw payload. The transport is
// either the in-process gochannel pubsub or NATS JetStream.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/sacredconnect/sacredconnect/internal/metrics"
	"github.com/sacredconnect/sacredconnect/internal/models"
)

// Metadata keys attached to every job message.
const (
	MetaJob      = "job"
	MetaPriority = "priority"
)

// JobOptions control scheduling of an enqueued job.
type JobOptions struct {
	// Priority selects the per-priority topic. Priority is a scheduling
	// hint; ordering across priorities is not guaranteed. Defaults to
	// normal.
	Priority models.Priority

	// At defers delivery until the given instant. Zero means immediate.
	At time.Time
}

// Topic returns the topic name for a job at a given priority.
func Topic(job string, p models.Priority) string {
	return "jobs." + job + "." + string(p)
}

// Queue publishes jobs for asynchronous processing.
type Queue struct {
	pub   message.Publisher
	sched *Scheduler
}

// New creates a queue over the given publisher. The returned queue owns a
// delay scheduler whose Run method must be driven by the caller for
// deferred jobs to fire.
func New(pub message.Publisher) *Queue {
	q := &Queue{pub: pub}
	q.sched = newScheduler(pub)
	return q
}

// Scheduler returns the delay scheduler for supervision.
func (q *Queue) Scheduler() *Scheduler {
	return q.sched
}

// Enqueue serializes payload and publishes it as a job. Jobs with a future
// At time are held by the scheduler until due; everything else is published
// immediately. The error covers serialization and publishing, so callers
// can propagate enqueue failures.
func (q *Queue) Enqueue(ctx context.Context, job string, payload any, opts JobOptions) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s job: %w", job, err)
	}

	pri := opts.Priority
	if !pri.Valid() {
		pri = models.PriorityNormal
	}

	msg := message.NewMessage(watermill.NewUUID(), body)
	msg.Metadata.Set(MetaJob, job)
	msg.Metadata.Set(MetaPriority, string(pri))
	topic := Topic(job, pri)

	if !opts.At.IsZero() && opts.At.After(time.Now()) {
		q.sched.schedule(topic, msg, opts.At)
	} else if err := q.pub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s job: %w", job, err)
	}

	metrics.JobsEnqueued.WithLabelValues(job, string(pri)).Inc()
	return nil
}
