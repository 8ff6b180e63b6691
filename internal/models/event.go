// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

// Package models defines the canonical domain types shared across the
// analytics and notification pipelines.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Event is a single analytics event in the durable, append-only log.
// Events are written once and never mutated or deleted.
type Event struct {
	// Identification
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`

	// Actor and correlation (both optional)
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	// Subject entity (place, live event, user)
	EntityType string `json:"entity_type,omitempty"`
	EntityID   string `json:"entity_id,omitempty"`

	// Event-specific payload
	Properties Properties `json:"properties,omitempty"`

	// Context
	Location *Location `json:"location,omitempty"`
	Device   *Device   `json:"device,omitempty"`

	// Occurrence time; defaults to record-creation time
	Timestamp time.Time `json:"timestamp"`
}

// Location describes where an event originated.
type Location struct {
	Country string `json:"country,omitempty"`
	State   string `json:"state,omitempty"`
	City    string `json:"city,omitempty"`
}

// Device describes the client device that produced an event.
type Device struct {
	Platform string `json:"platform,omitempty"`
	Version  string `json:"version,omitempty"`
	Model    string `json:"model,omitempty"`
}

// NewEvent creates an event with a unique ID and the current UTC timestamp.
func NewEvent(eventType string) *Event {
	return &Event{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// Validate checks required fields and returns an error if validation fails.
func (e *Event) Validate() error {
	if e.EventID == "" {
		return &ValidationError{Field: "event_id", Message: "required"}
	}
	if e.EventType == "" {
		return &ValidationError{Field: "event_type", Message: "required"}
	}
	if e.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Message: "required"}
	}
	return nil
}

// ValidationError represents a field validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Well-known event types produced by the domain layer. The recorder accepts
// arbitrary type strings; these are the ones the side counters key off.
const (
	EventTypeProfileView         = "profile_view"
	EventTypePlaceView           = "place_view"
	EventTypePlaceFollow         = "place_follow"
	EventTypeLiveStreamView      = "live_stream_view"
	EventTypeBookingMade         = "booking_made"
	EventTypeDonationMade        = "donation_made"
	EventTypeCommunityPost       = "community_post"
	EventTypeMarketplacePurchase = "marketplace_purchase"
	EventTypeUserFollow          = "user_follow"
)

// EntityType constants for the subject of an event.
const (
	EntityTypePlace = "place"
	EntityTypeEvent = "event"
	EntityTypeUser  = "user"
)

// EventFilter narrows analytics queries to a time window and optional
// actor/entity/type dimensions. The window is half-open: [Start, End).
type EventFilter struct {
	Start      time.Time
	End        time.Time
	UserID     string
	EntityType string
	EntityID   string
	EventType  string
}

// TypeCount is a (key, count) pair for breakdown queries, ordered by count.
type TypeCount struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

// DayCount is a (day, count) pair for daily series, day formatted YYYY-MM-DD.
type DayCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

// EntityCount is a ranked entity with its event count.
type EntityCount struct {
	EntityID string `json:"entity_id"`
	Count    int64  `json:"count"`
}
