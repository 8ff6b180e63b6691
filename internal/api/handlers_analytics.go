// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// AppAnalytics returns the application-wide report for the requested
// period (1h, 24h, 7d, 30d, 90d).
func (s *Server) AppAnalytics(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	report, err := s.reports.GetAppAnalytics(r.Context(), r.URL.Query().Get("period"))
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(report)
}

// UserAnalytics returns the per-user report.
func (s *Server) UserAnalytics(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	userID := chi.URLParam(r, "id")
	if userID == "" {
		rw.BadRequest("user id required")
		return
	}

	report, err := s.reports.GetUserAnalytics(r.Context(), userID, r.URL.Query().Get("period"))
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(report)
}

// EntityAnalytics returns the per-entity report (place, event, user).
func (s *Server) EntityAnalytics(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	entityType := chi.URLParam(r, "type")
	entityID := chi.URLParam(r, "id")
	if entityType == "" || entityID == "" {
		rw.BadRequest("entity type and id required")
		return
	}

	report, err := s.reports.GetEntityAnalytics(r.Context(), entityType, entityID, r.URL.Query().Get("period"))
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(report)
}

// RealtimeAnalytics returns the current-hour counter snapshot. It reads
// only the rolling counters, never the durable log.
func (s *Server) RealtimeAnalytics(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(s.reports.Realtime(time.Now().UTC()))
}

// RecentActivities returns a user's latest activities, newest first.
func (s *Server) RecentActivities(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		rw.BadRequest("user_id query parameter required")
		return
	}
	limit, _ := s.pagination(r)

	activities, err := s.reports.RecentActivities(r.Context(), userID, limit)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.SuccessWithPagination(activities, &PaginationMeta{
		Count:   len(activities),
		Limit:   limit,
		HasMore: len(activities) == limit,
	})
}
