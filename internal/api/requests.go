// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
)

// maxBodyBytes caps request body size; batch ingestion is the largest
// expected payload.
const maxBodyBytes = 4 << 20

// decodeJSON decodes a request body into dst, rejecting unknown fields and
// oversized bodies.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	// Trailing garbage after the JSON document is a malformed request.
	if dec.More() {
		return fmt.Errorf("request body must contain a single JSON document")
	}
	_, _ = io.Copy(io.Discard, r.Body)
	return nil
}

// queryInt parses an integer query parameter, returning def when absent
// or unparsable.
func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// pagination resolves limit/offset query parameters against the configured
// page-size bounds.
func (s *Server) pagination(r *http.Request) (limit, offset int) {
	limit = queryInt(r, "limit", s.cfg.DefaultPageSize)
	if limit <= 0 {
		limit = s.cfg.DefaultPageSize
	}
	if limit > s.cfg.MaxPageSize {
		limit = s.cfg.MaxPageSize
	}
	offset = queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
