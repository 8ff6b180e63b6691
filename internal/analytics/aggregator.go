// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

// Package analytics answers historical and near-real-time queries by
// combining the durable event log with the rolling counter store. All
// queries are read-only; time windows are half-open [start, end).
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/sacredconnect/sacredconnect/internal/models"
)

// EventStore is the durable event log the aggregator queries.
type EventStore interface {
	CountEvents(ctx context.Context, f models.EventFilter) (int64, error)
	EventsByType(ctx context.Context, f models.EventFilter) ([]models.TypeCount, error)
	DailyActivity(ctx context.Context, f models.EventFilter) ([]models.DayCount, error)
	UniqueUsers(ctx context.Context, f models.EventFilter) (int64, error)
	TopEntities(ctx context.Context, f models.EventFilter, limit int) ([]models.EntityCount, error)
	PlatformBreakdown(ctx context.Context, f models.EventFilter) ([]models.TypeCount, error)
	CountryBreakdown(ctx context.Context, f models.EventFilter) ([]models.TypeCount, error)
	RecentEvents(ctx context.Context, f models.EventFilter, limit int) ([]*models.Event, error)
}

// Directory exposes user-creation data for growth queries.
type Directory interface {
	NewUsersByDay(ctx context.Context, start, end time.Time) ([]models.DayCount, error)
	CountActiveUsers(ctx context.Context) (int64, error)
}

// Counters is the rolling counter store read by the real-time path.
type Counters interface {
	Snapshot(ns, bucket string) (map[string]int64, error)
	SnapshotFloat(ns, bucket string) (map[string]float64, error)
	Cardinality(ns, bucket string) (int64, error)
}

// Aggregator composes the read-side analytics queries.
type Aggregator struct {
	store    EventStore
	users    Directory
	counters Counters
}

// New creates an aggregator over the given stores.
func New(store EventStore, users Directory, counters Counters) *Aggregator {
	return &Aggregator{store: store, users: users, counters: counters}
}

// DefaultTypeLimit caps eventsByType breakdowns.
const DefaultTypeLimit = 20

// TotalEvents returns the number of events matching the filter.
func (a *Aggregator) TotalEvents(ctx context.Context, f models.EventFilter) (int64, error) {
	return a.store.CountEvents(ctx, f)
}

// EventsByType returns per-type counts, descending, capped at limit
// (DefaultTypeLimit when limit <= 0).
func (a *Aggregator) EventsByType(ctx context.Context, f models.EventFilter, limit int) ([]models.TypeCount, error) {
	if limit <= 0 {
		limit = DefaultTypeLimit
	}
	out, err := a.store.EventsByType(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DailyActivity returns per-day counts, ascending by day.
func (a *Aggregator) DailyActivity(ctx context.Context, f models.EventFilter) ([]models.DayCount, error) {
	return a.store.DailyActivity(ctx, f)
}

// UniqueUsers returns the count of distinct users among matching events.
func (a *Aggregator) UniqueUsers(ctx context.Context, f models.EventFilter) (int64, error) {
	return a.store.UniqueUsers(ctx, f)
}

// TopEntities returns the most referenced entities of a type.
func (a *Aggregator) TopEntities(ctx context.Context, entityType string, f models.EventFilter, limit int) ([]models.EntityCount, error) {
	f.EntityType = entityType
	if limit <= 0 {
		limit = 10
	}
	return a.store.TopEntities(ctx, f, limit)
}

// UserGrowth returns per-day new-user counts computed from user-creation
// timestamps, not from the event log.
func (a *Aggregator) UserGrowth(ctx context.Context, start, end time.Time) ([]models.DayCount, error) {
	return a.users.NewUsersByDay(ctx, start, end)
}

// Activity is a recent event annotated with a human-readable description.
type Activity struct {
	EventType   string            `json:"event_type"`
	EntityType  string            `json:"entity_type,omitempty"`
	EntityID    string            `json:"entity_id,omitempty"`
	Properties  models.Properties `json:"properties,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	Description string            `json:"description"`
}

var activityDescriptions = map[string]string{
	models.EventTypeProfileView:         "Viewed a profile",
	models.EventTypePlaceView:           "Visited a place of worship",
	models.EventTypeLiveStreamView:      "Watched a live stream",
	models.EventTypeBookingMade:         "Made a service booking",
	models.EventTypeDonationMade:        "Made a donation",
	models.EventTypeCommunityPost:       "Posted in community",
	models.EventTypeMarketplacePurchase: "Purchased from marketplace",
	models.EventTypeUserFollow:          "Followed a user",
	models.EventTypePlaceFollow:         "Followed a place",
}

// describeActivity maps an event type to its description, falling back to
// the raw type string.
func describeActivity(eventType string) string {
	if d, ok := activityDescriptions[eventType]; ok {
		return d
	}
	return eventType
}

// RecentActivities returns a user's newest events with descriptions.
func (a *Aggregator) RecentActivities(ctx context.Context, userID string, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = 20
	}
	now := time.Now().UTC()
	events, err := a.store.RecentEvents(ctx, models.EventFilter{
		Start:  now.Add(-DefaultPeriod),
		End:    now,
		UserID: userID,
	}, limit)
	if err != nil {
		return nil, fmt.Errorf("recent activities for %s: %w", userID, err)
	}

	out := make([]Activity, 0, len(events))
	for _, e := range events {
		out = append(out, Activity{
			EventType:   e.EventType,
			EntityType:  e.EntityType,
			EntityID:    e.EntityID,
			Properties:  e.Properties,
			Timestamp:   e.Timestamp,
			Description: describeActivity(e.EventType),
		})
	}
	return out, nil
}

// UserAnalytics is the per-user engagement report.
type UserAnalytics struct {
	UserID        string             `json:"user_id"`
	Period        string             `json:"period"`
	TotalEvents   int64              `json:"total_events"`
	EventsByType  []models.TypeCount `json:"events_by_type"`
	DailyActivity []models.DayCount  `json:"daily_activity"`
	Insights      []Insight          `json:"insights"`
}

// GetUserAnalytics builds the engagement report for one user.
func (a *Aggregator) GetUserAnalytics(ctx context.Context, userID, period string) (*UserAnalytics, error) {
	start, end := PeriodWindow(period, time.Now())
	f := models.EventFilter{Start: start, End: end, UserID: userID}

	total, err := a.store.CountEvents(ctx, f)
	if err != nil {
		return nil, err
	}
	byType, err := a.EventsByType(ctx, f, DefaultTypeLimit)
	if err != nil {
		return nil, err
	}
	daily, err := a.store.DailyActivity(ctx, f)
	if err != nil {
		return nil, err
	}

	return &UserAnalytics{
		UserID:        userID,
		Period:        period,
		TotalEvents:   total,
		EventsByType:  byType,
		DailyActivity: daily,
		Insights:      userInsights(daily, byType),
	}, nil
}

// EntityAnalytics is the per-entity engagement report.
type EntityAnalytics struct {
	EntityType    string             `json:"entity_type"`
	EntityID      string             `json:"entity_id"`
	Period        string             `json:"period"`
	TotalEvents   int64              `json:"total_events"`
	UniqueUsers   int64              `json:"unique_users"`
	EventsByType  []models.TypeCount `json:"events_by_type"`
	DailyActivity []models.DayCount  `json:"daily_activity"`
}

// GetEntityAnalytics builds the engagement report for one entity.
func (a *Aggregator) GetEntityAnalytics(ctx context.Context, entityType, entityID, period string) (*EntityAnalytics, error) {
	start, end := PeriodWindow(period, time.Now())
	f := models.EventFilter{Start: start, End: end, EntityType: entityType, EntityID: entityID}

	total, err := a.store.CountEvents(ctx, f)
	if err != nil {
		return nil, err
	}
	unique, err := a.store.UniqueUsers(ctx, f)
	if err != nil {
		return nil, err
	}
	byType, err := a.EventsByType(ctx, f, DefaultTypeLimit)
	if err != nil {
		return nil, err
	}
	daily, err := a.store.DailyActivity(ctx, f)
	if err != nil {
		return nil, err
	}

	return &EntityAnalytics{
		EntityType:    entityType,
		EntityID:      entityID,
		Period:        period,
		TotalEvents:   total,
		UniqueUsers:   unique,
		EventsByType:  byType,
		DailyActivity: daily,
	}, nil
}

// AppAnalytics is the platform-wide report.
type AppAnalytics struct {
	Period        string             `json:"period"`
	TotalEvents   int64              `json:"total_events"`
	UniqueUsers   int64              `json:"unique_users"`
	EventsByType  []models.TypeCount `json:"events_by_type"`
	DailyActivity []models.DayCount  `json:"daily_activity"`
	UserGrowth    []models.DayCount  `json:"user_growth"`
	Platforms     []models.TypeCount `json:"platforms"`
	Countries     []models.TypeCount `json:"countries"`
	Insights      []Insight          `json:"insights"`
}

// GetAppAnalytics builds the platform-wide report over a period.
func (a *Aggregator) GetAppAnalytics(ctx context.Context, period string) (*AppAnalytics, error) {
	start, end := PeriodWindow(period, time.Now())
	f := models.EventFilter{Start: start, End: end}

	total, err := a.store.CountEvents(ctx, f)
	if err != nil {
		return nil, err
	}
	unique, err := a.store.UniqueUsers(ctx, f)
	if err != nil {
		return nil, err
	}
	byType, err := a.EventsByType(ctx, f, DefaultTypeLimit)
	if err != nil {
		return nil, err
	}
	daily, err := a.store.DailyActivity(ctx, f)
	if err != nil {
		return nil, err
	}
	growth, err := a.users.NewUsersByDay(ctx, start, end)
	if err != nil {
		return nil, err
	}
	platforms, err := a.store.PlatformBreakdown(ctx, f)
	if err != nil {
		return nil, err
	}
	countries, err := a.store.CountryBreakdown(ctx, f)
	if err != nil {
		return nil, err
	}

	return &AppAnalytics{
		Period:        period,
		TotalEvents:   total,
		UniqueUsers:   unique,
		EventsByType:  byType,
		DailyActivity: daily,
		UserGrowth:    growth,
		Platforms:     platforms,
		Countries:     countries,
		Insights:      appInsights(byType, growth),
	}, nil
}
