// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

package delivery

import (
	"context"

	"github.com/sacredconnect/sacredconnect/internal/logging"
)

// LogSMS is a placeholder SMS adapter that records the send without
// delivering anything. SMS is best-effort; wiring a real provider only
// requires a new SMSSender implementation.
type LogSMS struct{}

// NewLogSMS creates the logging SMS adapter.
func NewLogSMS() *LogSMS {
	return &LogSMS{}
}

// Send logs the message and reports success.
func (s *LogSMS) Send(_ context.Context, phoneNumber, message string) error {
	logging.Info().
		Str("phone", phoneNumber).
		Int("length", len(message)).
		Msg("SMS delivery requested (no provider configured)")
	return nil
}
