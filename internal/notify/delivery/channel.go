// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

// Package delivery holds the channel adapters the worker pool calls:
// push (HTTP multicast gateway), email (SMTP), and SMS (best-effort).
// Adapters report per-call outcomes; retry policy lives in the queue,
// not here.
package delivery

import (
	"context"
	"errors"
	"strings"
)

// PushResult summarizes one multicast push call.
type PushResult struct {
	SuccessCount int
	FailureCount int
	// InvalidTokens are tokens the provider reported as permanently
	// unregistered. Callers should remove them from the user's record.
	InvalidTokens []string
}

// Merge folds another result into r.
func (r *PushResult) Merge(other *PushResult) {
	if other == nil {
		return
	}
	r.SuccessCount += other.SuccessCount
	r.FailureCount += other.FailureCount
	r.InvalidTokens = append(r.InvalidTokens, other.InvalidTokens...)
}

// PushSender delivers one notification to many device tokens.
type PushSender interface {
	SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) (*PushResult, error)
}

// EmailSender delivers one HTML email.
type EmailSender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// SMSSender delivers one text message. Implementations may be best-effort.
type SMSSender interface {
	Send(ctx context.Context, phoneNumber, message string) error
}

// ErrPermanent marks a delivery failure that retrying cannot fix.
var ErrPermanent = errors.New("permanent delivery failure")

// IsTransient reports whether an email delivery error is worth retrying.
// Connection, timeout, and rate-limit failures are transient; addressing
// and authentication failures are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPermanent) {
		return false
	}
	msg := err.Error()
	for _, s := range []string{"connect", "connection", "timeout", "deadline", "rate", "limit", "temporar"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	// Unknown failures default to transient so the retry budget applies.
	return true
}
