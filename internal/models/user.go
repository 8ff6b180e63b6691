// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

package models

import "time"

// NotificationSettings is the fixed set of per-user opt-in flags.
// The zero value disables everything; DefaultNotificationSettings matches
// the signup defaults.
type NotificationSettings struct {
	// Global per-channel opt-ins
	Push  bool `json:"push"`
	Email bool `json:"email"`
	SMS   bool `json:"sms"`

	// Category opt-ins
	LiveEvents        bool `json:"live_events"`
	BookingReminders  bool `json:"booking_reminders"`
	CommunityUpdates  bool `json:"community_updates"`
	MarketplaceOffers bool `json:"marketplace_offers"`
	DonationUpdates   bool `json:"donation_updates"`
}

// DefaultNotificationSettings returns the opt-in defaults applied at signup.
func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{
		Push:              true,
		Email:             true,
		SMS:               false,
		LiveEvents:        true,
		BookingReminders:  true,
		CommunityUpdates:  true,
		MarketplaceOffers: true,
		DonationUpdates:   true,
	}
}

// categoryOptIn maps a notification type to its category flag. Types with
// no mapping entry default to "send".
func (s NotificationSettings) categoryOptIn(typ NotificationType) bool {
	switch typ {
	case NotificationLiveEvent:
		return s.LiveEvents
	case NotificationBookingConfirmation, NotificationReminder:
		return s.BookingReminders
	case NotificationCommunityPost, NotificationNewFollower:
		return s.CommunityUpdates
	case NotificationMarketplaceOffer:
		return s.MarketplaceOffers
	case NotificationDonationReceived:
		return s.DonationUpdates
	default:
		return true
	}
}

// AllowsType reports whether the category-specific opt-in permits
// notifications of the given type.
func (s NotificationSettings) AllowsType(typ NotificationType) bool {
	return s.categoryOptIn(typ)
}

// AllowsChannel reports whether the global per-channel opt-in permits the
// given channel.
func (s NotificationSettings) AllowsChannel(c Channel) bool {
	switch c {
	case ChannelPush:
		return s.Push
	case ChannelEmail:
		return s.Email
	case ChannelSMS:
		return s.SMS
	default:
		return false
	}
}

// User is the delivery-relevant snapshot of a user directory record.
// The notification core reads it at dispatch time with no locking; it may
// be stale by the time delivery happens, which is acceptable.
type User struct {
	ID           string               `json:"id"`
	Email        string               `json:"email,omitempty"`
	PhoneNumber  string               `json:"phone_number,omitempty"`
	DeviceTokens []string             `json:"device_tokens"`
	Settings     NotificationSettings `json:"notification_settings"`
	IsActive     bool                 `json:"is_active"`
	CreatedAt    time.Time            `json:"created_at"`
}

// EligibleChannels filters the requested channels down to those enabled by
// both the global per-channel opt-in and the category opt-in for typ, and
// for which the user has usable contact info.
func (u *User) EligibleChannels(typ NotificationType, requested []Channel) []Channel {
	if !u.Settings.AllowsType(typ) {
		return nil
	}

	var out []Channel
	for _, c := range requested {
		if !u.Settings.AllowsChannel(c) {
			continue
		}
		switch c {
		case ChannelPush:
			if len(u.DeviceTokens) > 0 {
				out = append(out, c)
			}
		case ChannelEmail:
			if u.Email != "" {
				out = append(out, c)
			}
		case ChannelSMS:
			if u.PhoneNumber != "" {
				out = append(out, c)
			}
		}
	}
	return out
}
