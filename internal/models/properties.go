// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

package models

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Properties is an open mapping of string keys to event- or
// notification-specific payload values. Values are restricted to a small
// union (string, number, bool, nested mapping, or a list of those) so that
// serialization stays deterministic and test assertions stay precise.
type Properties map[string]any

// Validate rejects values outside the allowed union.
func (p Properties) Validate() error {
	for k, v := range p {
		if err := validateValue(k, v); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(key string, v any) error {
	switch val := v.(type) {
	case nil, string, bool,
		int, int32, int64, float32, float64:
		return nil
	case []any:
		for _, item := range val {
			if err := validateValue(key, item); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		return Properties(val).Validate()
	case Properties:
		return val.Validate()
	default:
		return fmt.Errorf("property %q: unsupported value type %T", key, v)
	}
}

// Float returns the named property as a float64 when it holds any numeric
// type, with ok reporting whether the conversion applied. JSON round-trips
// turn numbers into float64, so callers must not rely on the original width.
func (p Properties) Float(key string) (float64, bool) {
	switch val := p[key].(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	default:
		return 0, false
	}
}

// String returns the named property as a string, with ok reporting presence.
func (p Properties) String(key string) (string, bool) {
	s, ok := p[key].(string)
	return s, ok
}

// MarshalBinary implements encoding for storage as a JSON column.
func (p Properties) MarshalBinary() ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(p))
}

// UnmarshalBinary implements decoding from a JSON column.
func (p *Properties) UnmarshalBinary(data []byte) error {
	if len(data) == 0 {
		*p = Properties{}
		return nil
	}
	m := map[string]any{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*p = m
	return nil
}
