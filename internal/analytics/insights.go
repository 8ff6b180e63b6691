// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

package analytics

import (
	"fmt"

	"github.com/sacredconnect/sacredconnect/internal/models"
)

// Insight is a derived, human-readable observation over a report period.
type Insight struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// userInsights derives per-user observations from the report primitives.
func userInsights(daily []models.DayCount, byType []models.TypeCount) []Insight {
	var insights []Insight

	if len(daily) > 0 {
		mostActive := daily[0]
		for _, d := range daily[1:] {
			if d.Count > mostActive.Count {
				mostActive = d
			}
		}
		insights = append(insights, Insight{
			Type:  "most_active_day",
			Title: "Most Active Day",
			Description: fmt.Sprintf("You were most active on %s with %d activities",
				mostActive.Day, mostActive.Count),
		})
	}

	if len(byType) > 0 {
		insights = append(insights, Insight{
			Type:  "favorite_activity",
			Title: "Favorite Activity",
			Description: fmt.Sprintf("Your most common activity is %s (%d times)",
				byType[0].Type, byType[0].Count),
		})
	}

	return insights
}

// appInsights derives platform-wide observations. The growth-rate insight
// is omitted when the first day's count is zero or there are fewer than
// two days, since the rate would be undefined.
func appInsights(byType []models.TypeCount, growth []models.DayCount) []Insight {
	var insights []Insight

	if len(byType) > 0 {
		insights = append(insights, Insight{
			Type:  "popular_feature",
			Title: "Most Popular Feature",
			Description: fmt.Sprintf("%s is the most used feature with %d uses",
				byType[0].Type, byType[0].Count),
		})
	}

	if len(growth) > 1 && growth[0].Count > 0 {
		first := float64(growth[0].Count)
		last := float64(growth[len(growth)-1].Count)
		rate := (last - first) / first * 100
		insights = append(insights, Insight{
			Type:        "user_growth",
			Title:       "User Growth",
			Description: fmt.Sprintf("User growth rate: %.1f%% over the period", rate),
		})
	}

	return insights
}
