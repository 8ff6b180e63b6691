// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}
	if cfg.Counters.HourTTL != 7*24*time.Hour {
		t.Errorf("hour TTL = %v, want 168h", cfg.Counters.HourTTL)
	}
	if cfg.Counters.DayTTL != 30*24*time.Hour {
		t.Errorf("day TTL = %v, want 720h", cfg.Counters.DayTTL)
	}
	if cfg.Notify.BulkChunkSize != 100 {
		t.Errorf("bulk chunk size = %d, want 100", cfg.Notify.BulkChunkSize)
	}
	if cfg.Notify.PushTokensPerCall != 500 {
		t.Errorf("push tokens per call = %d, want 500", cfg.Notify.PushTokensPerCall)
	}
	if cfg.Notify.EmailAttempts != 3 {
		t.Errorf("email attempts = %d, want 3", cfg.Notify.EmailAttempts)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad transport", func(c *Config) { c.Queue.Transport = "kafka" }},
		{"zero hour ttl", func(c *Config) { c.Counters.HourTTL = 0 }},
		{"zero chunk size", func(c *Config) { c.Notify.BulkChunkSize = 0 }},
		{"zero email attempts", func(c *Config) { c.Notify.EmailAttempts = 0 }},
		{"page size inversion", func(c *Config) {
			c.API.DefaultPageSize = 200
			c.API.MaxPageSize = 100
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestLoadAppliesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: 9000\nlogging:\n  level: debug\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("SC_SERVER__PORT", "9100")
	t.Setenv("SC_COUNTERS__HOUR_TTL", "48h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q, want debug (from file)", cfg.Logging.Level)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d, want 9100 (env overrides file)", cfg.Server.Port)
	}
	if cfg.Counters.HourTTL != 48*time.Hour {
		t.Errorf("hour TTL = %v, want 48h (from env)", cfg.Counters.HourTTL)
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"SC_SERVER__PORT", "server.port"},
		{"SC_NOTIFY__SMTP__FROM_NAME", "notify.smtp.from_name"},
		{"SC_QUEUE__NATS__URL", "queue.nats.url"},
		{"SC_CONFIG_PATH", ""},
	}
	for _, tt := range tests {
		if got := envTransform(tt.in); got != tt.want {
			t.Errorf("envTransform(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
