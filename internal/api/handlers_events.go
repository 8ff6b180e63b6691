// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sacredconnect/sacredconnect/internal/models"
)

// maxBatchEvents caps one batch ingestion call.
const maxBatchEvents = 1000

// eventRequest is the ingestion payload. Identification fields are
// optional; the server fills them in.
type eventRequest struct {
	EventID    string            `json:"event_id,omitempty"`
	EventType  string            `json:"event_type"`
	UserID     string            `json:"user_id,omitempty"`
	SessionID  string            `json:"session_id,omitempty"`
	EntityType string            `json:"entity_type,omitempty"`
	EntityID   string            `json:"entity_id,omitempty"`
	Properties models.Properties `json:"properties,omitempty"`
	Location   *models.Location  `json:"location,omitempty"`
	Device     *models.Device    `json:"device,omitempty"`
	Timestamp  time.Time         `json:"timestamp,omitempty"`
}

func (req *eventRequest) toEvent() *models.Event {
	e := &models.Event{
		EventID:    req.EventID,
		EventType:  req.EventType,
		UserID:     req.UserID,
		SessionID:  req.SessionID,
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		Properties: req.Properties,
		Location:   req.Location,
		Device:     req.Device,
		Timestamp:  req.Timestamp,
	}
	if e.EventID == "" {
		e.EventID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	return e
}

// RecordEvent ingests one analytics event. The response acknowledges
// acceptance, not durability; recording is fire-and-forget.
func (s *Server) RecordEvent(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req eventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	e := req.toEvent()
	if err := e.Validate(); err != nil {
		rw.ValidationError("invalid event", err.Error())
		return
	}

	s.recorder.Record(r.Context(), e)
	rw.Accepted(map[string]string{"event_id": e.EventID})
}

// RecordEventBatch ingests a batch of analytics events in one durable
// write.
func (s *Server) RecordEventBatch(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req struct {
		Events []eventRequest `json:"events"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if len(req.Events) == 0 {
		rw.BadRequest("events must not be empty")
		return
	}
	if len(req.Events) > maxBatchEvents {
		rw.BadRequest("batch exceeds maximum size")
		return
	}

	batch := make([]*models.Event, 0, len(req.Events))
	for _, er := range req.Events {
		batch = append(batch, er.toEvent())
	}

	s.recorder.RecordBatch(r.Context(), batch)
	rw.Accepted(map[string]int{"accepted": len(batch)})
}
