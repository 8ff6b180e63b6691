// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sacredconnect/sacredconnect/internal/analytics"
	"github.com/sacredconnect/sacredconnect/internal/config"
	"github.com/sacredconnect/sacredconnect/internal/database"
	"github.com/sacredconnect/sacredconnect/internal/metrics"
	"github.com/sacredconnect/sacredconnect/internal/models"
	"github.com/sacredconnect/sacredconnect/internal/notify"
)

// EventRecorder accepts analytics events, fire-and-forget.
type EventRecorder interface {
	Record(ctx context.Context, e *models.Event)
	RecordBatch(ctx context.Context, batch []*models.Event)
}

// Reporter produces analytics reports.
type Reporter interface {
	GetUserAnalytics(ctx context.Context, userID, period string) (*analytics.UserAnalytics, error)
	GetEntityAnalytics(ctx context.Context, entityType, entityID, period string) (*analytics.EntityAnalytics, error)
	GetAppAnalytics(ctx context.Context, period string) (*analytics.AppAnalytics, error)
	Realtime(now time.Time) *analytics.RealtimeSnapshot
	RecentActivities(ctx context.Context, userID string, limit int) ([]analytics.Activity, error)
}

// Notifier dispatches notifications.
type Notifier interface {
	Send(ctx context.Context, req notify.SendRequest) (*models.Notification, error)
	SendBulk(ctx context.Context, userIDs []string, typ models.NotificationType, title, message string, data models.Properties, channels []models.Channel) error
}

// NotificationReader reads persisted notification records.
type NotificationReader interface {
	GetNotification(ctx context.Context, id string) (*models.Notification, error)
	ListNotifications(ctx context.Context, userID string, limit, offset int) ([]*models.Notification, error)
	MarkRead(ctx context.Context, id, userID string, readAt time.Time) error
	GetNotificationStats(ctx context.Context, start, end time.Time) (*database.NotificationStats, error)
}

// Server holds the HTTP handlers and their collaborators.
type Server struct {
	cfg      config.APIConfig
	recorder EventRecorder
	reports  Reporter
	notifier Notifier
	store    NotificationReader

	// ready reports whether downstream dependencies are reachable.
	// nil means always ready.
	ready func(ctx context.Context) error
}

// NewServer creates the API server.
func NewServer(cfg config.APIConfig, recorder EventRecorder, reports Reporter, notifier Notifier, store NotificationReader, ready func(ctx context.Context) error) *Server {
	return &Server{
		cfg:      cfg,
		recorder: recorder,
		reports:  reports,
		notifier: notifier,
		store:    store,
		ready:    ready,
	}
}

// Routes builds the full route tree.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", s.Health)
	r.Get("/health/live", s.HealthLive)
	r.Get("/health/ready", s.HealthReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if s.cfg.RateLimitReqs > 0 {
			r.Use(httprate.LimitByIP(s.cfg.RateLimitReqs, s.cfg.RateLimitWindow))
		}
		r.Use(s.metricsMiddleware)

		r.Route("/events", func(r chi.Router) {
			r.Post("/", s.RecordEvent)
			r.Post("/batch", s.RecordEventBatch)
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/app", s.AppAnalytics)
			r.Get("/realtime", s.RealtimeAnalytics)
			r.Get("/activities", s.RecentActivities)
			r.Get("/users/{id}", s.UserAnalytics)
			r.Get("/entities/{type}/{id}", s.EntityAnalytics)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Post("/", s.SendNotification)
			r.Post("/bulk", s.SendBulkNotification)
			r.Get("/", s.ListNotifications)
			r.Get("/stats", s.NotificationStats)
			r.Get("/{id}", s.GetNotification)
			r.Post("/{id}/read", s.MarkNotificationRead)
		})
	})

	return r
}

// metricsMiddleware records request counts and latency per route pattern.
// The pattern, not the raw path, keeps metric cardinality bounded.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}
		metrics.RecordAPIRequest(r.Method, pattern, ww.Status(), time.Since(start))
	})
}
