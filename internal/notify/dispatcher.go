// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

// Package notify implements the notification dispatcher: persist a
// notification, then enqueue its delivery job. Unlike the analytics
// recorder, dispatch errors propagate to the caller, who needs to know
// the notification was not scheduled.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/sacredconnect/sacredconnect/internal/logging"
	"github.com/sacredconnect/sacredconnect/internal/metrics"
	"github.com/sacredconnect/sacredconnect/internal/models"
	"github.com/sacredconnect/sacredconnect/internal/queue"
)

// Store persists notification records.
type Store interface {
	InsertNotification(ctx context.Context, n *models.Notification) error
}

// Enqueuer publishes delivery jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, job string, payload any, opts queue.JobOptions) error
}

// BulkChunkSize is the user-id partition size for bulk sends. Bounding the
// chunk keeps one oversized job from blocking the queue.
const BulkChunkSize = 100

// Dispatcher schedules notifications for asynchronous delivery.
type Dispatcher struct {
	store     Store
	queue     Enqueuer
	chunkSize int
}

// NewDispatcher creates a dispatcher. chunkSize <= 0 uses BulkChunkSize.
func NewDispatcher(store Store, q Enqueuer, chunkSize int) *Dispatcher {
	if chunkSize <= 0 {
		chunkSize = BulkChunkSize
	}
	return &Dispatcher{store: store, queue: q, chunkSize: chunkSize}
}

// SendRequest describes a single-user notification.
type SendRequest struct {
	UserID       string
	Type         models.NotificationType
	Title        string
	Message      string
	Data         models.Properties
	Priority     models.Priority
	Channels     []models.Channel
	ScheduledFor *time.Time
}

// Send persists a pending notification and enqueues its delivery job.
// It returns once both steps succeed; delivery happens out of band. A
// future ScheduledFor defers processing until that instant.
func (d *Dispatcher) Send(ctx context.Context, req SendRequest) (*models.Notification, error) {
	n := models.NewNotification(req.UserID, req.Type, req.Title, req.Message)
	n.Data = req.Data
	if req.Priority.Valid() {
		n.Priority = req.Priority
	}
	if len(req.Channels) > 0 {
		n.Channels = req.Channels
	}
	if req.ScheduledFor != nil {
		t := req.ScheduledFor.UTC()
		n.ScheduledFor = &t
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}

	if err := d.store.InsertNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("persist notification: %w", err)
	}

	opts := queue.JobOptions{Priority: n.Priority}
	if n.ScheduledFor != nil {
		opts.At = *n.ScheduledFor
	}
	job := SendJob{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Type:           n.Type,
		Title:          n.Title,
		Message:        n.Message,
		Data:           n.Data,
		Channels:       n.Channels,
	}
	if err := d.queue.Enqueue(ctx, JobSend, job, opts); err != nil {
		return nil, fmt.Errorf("enqueue notification %s: %w", n.ID, err)
	}

	metrics.NotificationsDispatched.WithLabelValues(string(n.Type), string(n.Priority)).Inc()
	logging.Debug().
		Str("notification_id", n.ID).
		Str("user_id", n.UserID).
		Str("type", string(n.Type)).
		Msg("Notification dispatched")
	return n, nil
}

// SendBulk partitions userIDs into fixed-size chunks and enqueues one bulk
// job per chunk, all at normal priority. Per-user records are created by
// the bulk worker at delivery time.
func (d *Dispatcher) SendBulk(ctx context.Context, userIDs []string, typ models.NotificationType, title, message string, data models.Properties, channels []models.Channel) error {
	if len(userIDs) == 0 {
		return nil
	}
	if !typ.Valid() {
		return &models.ValidationError{Field: "type", Message: "unknown notification type"}
	}
	if len(channels) == 0 {
		channels = []models.Channel{models.ChannelPush}
	}

	chunks := 0
	for start := 0; start < len(userIDs); start += d.chunkSize {
		end := start + d.chunkSize
		if end > len(userIDs) {
			end = len(userIDs)
		}
		job := BulkJob{
			UserIDs:  userIDs[start:end],
			Type:     typ,
			Title:    title,
			Message:  message,
			Data:     data,
			Channels: channels,
		}
		if err := d.queue.Enqueue(ctx, JobBulk, job, queue.JobOptions{}); err != nil {
			return fmt.Errorf("enqueue bulk chunk %d: %w", chunks, err)
		}
		chunks++
	}

	logging.Info().
		Int("users", len(userIDs)).
		Int("chunks", chunks).
		Str("type", string(typ)).
		Msg("Bulk notification dispatched")
	return nil
}
