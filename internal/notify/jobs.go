// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

package notify

import "github.com/sacredconnect/sacredconnect/internal/models"

// Job names on the delivery queue.
const (
	// JobSend delivers one persisted notification to one user.
	JobSend = "notification.send"
	// JobBulk delivers one chunk of a bulk send.
	JobBulk = "notification.bulk"
	// JobEmail delivers one email, retried at the queue level.
	JobEmail = "notification.email"
)

// SendJob is the payload for JobSend. The notification itself is persisted;
// the job carries the id plus a copy of the fields the worker needs, so a
// worker can proceed without re-reading the record.
type SendJob struct {
	NotificationID string                  `json:"notification_id"`
	UserID         string                  `json:"user_id"`
	Type           models.NotificationType `json:"type"`
	Title          string                  `json:"title"`
	Message        string                  `json:"message"`
	Data           models.Properties       `json:"data,omitempty"`
	Channels       []models.Channel        `json:"channels"`
}

// BulkJob is the payload for JobBulk: one fixed-size chunk of user ids
// sharing the same notification content.
type BulkJob struct {
	UserIDs  []string                `json:"user_ids"`
	Type     models.NotificationType `json:"type"`
	Title    string                  `json:"title"`
	Message  string                  `json:"message"`
	Data     models.Properties       `json:"data,omitempty"`
	Channels []models.Channel        `json:"channels"`
}

// EmailJob is the payload for JobEmail. Email delivery is split into its
// own job so the queue-level retry applies to email alone; push and SMS
// are never re-attempted by the queue.
type EmailJob struct {
	NotificationID string                  `json:"notification_id"`
	To             string                  `json:"to"`
	Type           models.NotificationType `json:"type"`
	Title          string                  `json:"title"`
	Message        string                  `json:"message"`
	Data           models.Properties       `json:"data,omitempty"`
}
