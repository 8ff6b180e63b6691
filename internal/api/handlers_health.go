// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

package api

import (
	"net/http"
	"time"
)

// healthStatus is the health endpoint payload.
type healthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Health reports overall service health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			rw.Error(http.StatusServiceUnavailable, ErrCodeInternalError, "service degraded: "+err.Error())
			return
		}
	}
	rw.Success(healthStatus{Status: "ok", Timestamp: time.Now().UTC()})
}

// HealthLive is the liveness probe; it succeeds as long as the process
// serves requests.
func (s *Server) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(healthStatus{Status: "alive", Timestamp: time.Now().UTC()})
}

// HealthReady is the readiness probe; it checks downstream dependencies.
func (s *Server) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			rw.Error(http.StatusServiceUnavailable, ErrCodeInternalError, "not ready: "+err.Error())
			return
		}
	}
	rw.Success(healthStatus{Status: "ready", Timestamp: time.Now().UTC()})
}
