// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

package analytics

import "time"

// DefaultPeriod is the lookback used when a period string is missing or
// unrecognized.
const DefaultPeriod = 30 * 24 * time.Hour

// ParsePeriod resolves a period shorthand to a lookback duration.
// Unrecognized strings fall back to the 30-day default.
func ParsePeriod(period string) time.Duration {
	switch period {
	case "1h":
		return time.Hour
	case "24h":
		return 24 * time.Hour
	case "7d":
		return 7 * 24 * time.Hour
	case "30d":
		return 30 * 24 * time.Hour
	case "90d":
		return 90 * 24 * time.Hour
	default:
		return DefaultPeriod
	}
}

// PeriodWindow returns the half-open window [now-lookback, now) for a
// period string.
func PeriodWindow(period string, now time.Time) (start, end time.Time) {
	end = now.UTC()
	return end.Add(-ParsePeriod(period)), end
}
