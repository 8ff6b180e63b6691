// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sacredconnect/sacredconnect/internal/analytics"
	"github.com/sacredconnect/sacredconnect/internal/database"
	"github.com/sacredconnect/sacredconnect/internal/models"
	"github.com/sacredconnect/sacredconnect/internal/notify"
)

// sendNotificationRequest is the single-user send payload.
type sendNotificationRequest struct {
	UserID       string                  `json:"user_id"`
	Type         models.NotificationType `json:"type"`
	Title        string                  `json:"title"`
	Message      string                  `json:"message"`
	Data         models.Properties       `json:"data,omitempty"`
	Priority     models.Priority         `json:"priority,omitempty"`
	Channels     []models.Channel        `json:"channels,omitempty"`
	ScheduledFor *time.Time              `json:"scheduled_for,omitempty"`
}

// bulkNotificationRequest is the bulk send payload.
type bulkNotificationRequest struct {
	UserIDs  []string                `json:"user_ids"`
	Type     models.NotificationType `json:"type"`
	Title    string                  `json:"title"`
	Message  string                  `json:"message"`
	Data     models.Properties       `json:"data,omitempty"`
	Channels []models.Channel        `json:"channels,omitempty"`
}

// SendNotification persists one notification and schedules its delivery.
func (s *Server) SendNotification(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req sendNotificationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}

	n, err := s.notifier.Send(r.Context(), notify.SendRequest{
		UserID:       req.UserID,
		Type:         req.Type,
		Title:        req.Title,
		Message:      req.Message,
		Data:         req.Data,
		Priority:     req.Priority,
		Channels:     req.Channels,
		ScheduledFor: req.ScheduledFor,
	})
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			rw.ValidationError("invalid notification", verr.Error())
			return
		}
		rw.DatabaseError(err)
		return
	}
	rw.Created(n)
}

// SendBulkNotification schedules delivery of one notification to many
// users. Per-user records are created at delivery time; the response
// acknowledges scheduling only.
func (s *Server) SendBulkNotification(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req bulkNotificationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if len(req.UserIDs) == 0 {
		rw.BadRequest("user_ids must not be empty")
		return
	}

	err := s.notifier.SendBulk(r.Context(), req.UserIDs, req.Type, req.Title, req.Message, req.Data, req.Channels)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			rw.ValidationError("invalid notification", verr.Error())
			return
		}
		rw.DatabaseError(err)
		return
	}
	rw.Accepted(map[string]int{"scheduled": len(req.UserIDs)})
}

// ListNotifications returns a user's notifications, newest first.
func (s *Server) ListNotifications(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		rw.BadRequest("user_id query parameter required")
		return
	}
	limit, offset := s.pagination(r)

	list, err := s.store.ListNotifications(r.Context(), userID, limit, offset)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.SuccessWithPagination(list, &PaginationMeta{
		Count:   len(list),
		Offset:  offset,
		Limit:   limit,
		HasMore: len(list) == limit,
	})
}

// GetNotification returns a single notification by id.
func (s *Server) GetNotification(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	n, err := s.store.GetNotification(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("notification not found")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(n)
}

// MarkNotificationRead marks a notification as read by its owner.
// Re-reading an already-read notification is a no-op success.
func (s *Server) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req struct {
		UserID string `json:"user_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if req.UserID == "" {
		rw.BadRequest("user_id required")
		return
	}

	err := s.store.MarkRead(r.Context(), chi.URLParam(r, "id"), req.UserID, time.Now().UTC())
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("notification not found")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(map[string]bool{"read": true})
}

// NotificationStats returns delivery and read statistics for the
// requested period.
func (s *Server) NotificationStats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	start, end := analytics.PeriodWindow(r.URL.Query().Get("period"), time.Now().UTC())
	stats, err := s.store.GetNotificationStats(r.Context(), start, end)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(stats)
}
