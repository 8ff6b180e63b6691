// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType is the closed set of notification categories.
type NotificationType string

// Notification categories.
const (
	NotificationLiveEvent           NotificationType = "live_event"
	NotificationBookingConfirmation NotificationType = "booking_confirmation"
	NotificationDonationReceived    NotificationType = "donation_received"
	NotificationNewFollower         NotificationType = "new_follower"
	NotificationCommunityPost       NotificationType = "community_post"
	NotificationMarketplaceOffer    NotificationType = "marketplace_offer"
	NotificationSystem              NotificationType = "system"
	NotificationReminder            NotificationType = "reminder"
)

// Valid reports whether t is one of the known categories.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationLiveEvent, NotificationBookingConfirmation,
		NotificationDonationReceived, NotificationNewFollower,
		NotificationCommunityPost, NotificationMarketplaceOffer,
		NotificationSystem, NotificationReminder:
		return true
	}
	return false
}

// Priority determines processing order in the dispatch queue. It is a
// scheduling hint, not a strict ordering guarantee.
type Priority string

// Priority levels.
const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityNormal || p == PriorityHigh
}

// Weight maps the symbolic priority to a scheduler weight.
// Higher weight is processed preferentially.
func (p Priority) Weight() int {
	switch p {
	case PriorityHigh:
		return 10
	case PriorityLow:
		return 1
	default:
		return 5
	}
}

// Channel is a delivery medium for a notification.
type Channel string

// Delivery channels.
const (
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	return c == ChannelPush || c == ChannelEmail || c == ChannelSMS
}

// NotificationStatus is the delivery state of a notification.
// Transitions are monotonic: pending -> sent | failed, both terminal.
type NotificationStatus string

// Notification statuses.
const (
	StatusPending NotificationStatus = "pending"
	StatusSent    NotificationStatus = "sent"
	StatusFailed  NotificationStatus = "failed"
)

// Terminal reports whether the status has no outgoing transitions.
func (s NotificationStatus) Terminal() bool {
	return s == StatusSent || s == StatusFailed
}

// CanTransition reports whether a transition from s to next is legal.
func (s NotificationStatus) CanTransition(next NotificationStatus) bool {
	return s == StatusPending && next.Terminal()
}

// Field bounds for user-facing strings.
const (
	MaxTitleLength   = 100
	MaxMessageLength = 500
)

// Notification is a persisted delivery request for a single user.
// The read flag is tracked independently of delivery status.
type Notification struct {
	ID       string             `json:"id"`
	UserID   string             `json:"user_id"`
	Type     NotificationType   `json:"type"`
	Title    string             `json:"title"`
	Message  string             `json:"message"`
	Data     Properties         `json:"data,omitempty"`
	Priority Priority           `json:"priority"`
	Channels []Channel          `json:"channels"`
	Status   NotificationStatus `json:"status"`

	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	Error        string     `json:"error,omitempty"`

	Read   bool       `json:"read"`
	ReadAt *time.Time `json:"read_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewNotification creates a pending notification with a unique ID.
func NewNotification(userID string, typ NotificationType, title, message string) *Notification {
	return &Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      typ,
		Title:     title,
		Message:   message,
		Priority:  PriorityNormal,
		Channels:  []Channel{ChannelPush},
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// Validate checks required fields and bounds.
func (n *Notification) Validate() error {
	if n.UserID == "" {
		return &ValidationError{Field: "user_id", Message: "required"}
	}
	if !n.Type.Valid() {
		return &ValidationError{Field: "type", Message: "unknown notification type"}
	}
	if n.Title == "" {
		return &ValidationError{Field: "title", Message: "required"}
	}
	if len(n.Title) > MaxTitleLength {
		return &ValidationError{Field: "title", Message: "exceeds maximum length"}
	}
	if n.Message == "" {
		return &ValidationError{Field: "message", Message: "required"}
	}
	if len(n.Message) > MaxMessageLength {
		return &ValidationError{Field: "message", Message: "exceeds maximum length"}
	}
	if !n.Priority.Valid() {
		return &ValidationError{Field: "priority", Message: "unknown priority"}
	}
	for _, c := range n.Channels {
		if !c.Valid() {
			return &ValidationError{Field: "channels", Message: "unknown channel"}
		}
	}
	return nil
}

// DueNow reports whether the notification is eligible for immediate
// processing at the given instant. Notifications scheduled in the past
// or not scheduled at all are immediately eligible.
func (n *Notification) DueNow(now time.Time) bool {
	return n.ScheduledFor == nil || !n.ScheduledFor.After(now)
}
