// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

// Package metrics exposes Prometheus instrumentation for the event and
// notification pipelines. All collectors are registered on the default
// registry via promauto and served at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Event pipeline
	EventsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_events_recorded_total",
			Help: "Total number of analytics events recorded",
		},
		[]string{"event_type"},
	)

	EventRecordErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_event_record_errors_total",
			Help: "Total number of event recording failures by stage",
		},
		[]string{"stage"}, // "store", "counters"
	)

	CounterWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "counter_writes_total",
			Help: "Total number of rolling-counter writes",
		},
		[]string{"granularity"}, // "hour", "day"
	)

	CounterConflictRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "counter_conflict_retries_total",
			Help: "Total number of counter transaction conflict retries",
		},
	)

	// Database
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// Queue
	JobsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_jobs_enqueued_total",
			Help: "Total number of jobs enqueued",
		},
		[]string{"job", "priority"},
	)

	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_jobs_processed_total",
			Help: "Total number of jobs processed by outcome",
		},
		[]string{"job", "outcome"}, // "ok", "error"
	)

	JobProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "queue_job_duration_seconds",
			Help:    "Job handler duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"job"},
	)

	JobsScheduled = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "queue_jobs_scheduled",
			Help: "Current number of jobs waiting on a future delivery time",
		},
	)

	JobsPoisoned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_jobs_poisoned_total",
			Help: "Total number of jobs moved to the poison topic",
		},
		[]string{"job"},
	)

	// Notification delivery
	NotificationsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_dispatched_total",
			Help: "Total number of notifications persisted and enqueued",
		},
		[]string{"type", "priority"},
	)

	DeliveryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_delivery_attempts_total",
			Help: "Total number of channel delivery attempts by outcome",
		},
		[]string{"channel", "outcome"}, // "ok", "error", "skipped"
	)

	InvalidTokensRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "push_invalid_tokens_removed_total",
			Help: "Total number of device tokens removed after rejection",
		},
	)

	EmailRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "email_delivery_retries_total",
			Help: "Total number of email delivery retry attempts",
		},
	)

	// HTTP API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// Circuit breaker
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"name"},
	)
)

// RecordDBQuery observes a query duration and counts errors.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest counts a finished API request and observes its latency.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordJob counts a processed job and observes its handler duration.
func RecordJob(job string, duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	JobsProcessed.WithLabelValues(job, outcome).Inc()
	JobProcessingDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// RecordDelivery counts a channel delivery attempt.
func RecordDelivery(channel string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	DeliveryAttempts.WithLabelValues(channel, outcome).Inc()
}
