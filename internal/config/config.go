// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

// Package config loads and validates service configuration.
//
// Configuration is resolved in three layers, later layers overriding
// earlier ones:
//
//  1. struct defaults (DefaultConfig)
//  2. YAML config file (CONFIG_PATH or the default search paths)
//  3. environment variables prefixed SC_, with __ as the section
//     delimiter (SC_SERVER__PORT -> server.port)
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the service.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
	Database DatabaseConfig `koanf:"database"`
	Counters CountersConfig `koanf:"counters"`
	Queue    QueueConfig    `koanf:"queue"`
	Notify   NotifyConfig   `koanf:"notify"`
	API      APIConfig      `koanf:"api"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gte=1,lte=65535"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig configures the zerolog global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// DatabaseConfig configures the DuckDB durable store.
type DatabaseConfig struct {
	// Path is the DuckDB database file; ":memory:" runs fully in-process.
	Path string `koanf:"path" validate:"required"`
	// Threads is the DuckDB thread count; 0 uses runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// CountersConfig configures the Badger rolling-counter store.
type CountersConfig struct {
	// Dir is the Badger data directory; empty runs in-memory (tests/dev).
	Dir string `koanf:"dir"`
	// HourTTL is the retention for hour buckets, refreshed on every write.
	HourTTL time.Duration `koanf:"hour_ttl" validate:"gt=0"`
	// DayTTL is the retention for day buckets, refreshed on every write.
	DayTTL time.Duration `koanf:"day_ttl" validate:"gt=0"`
}

// QueueConfig configures the delivery work queue.
type QueueConfig struct {
	// Transport selects the pubsub backing: "inproc" (gochannel) or "nats".
	Transport string `koanf:"transport" validate:"oneof=inproc nats"`

	NATS NATSConfig `koanf:"nats"`

	// Router middleware settings
	CloseTimeout         time.Duration `koanf:"close_timeout"`
	RetryMaxRetries      int           `koanf:"retry_max_retries"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `koanf:"retry_max_interval"`
	PoisonTopic          string        `koanf:"poison_topic"`
}

// NATSConfig configures the NATS JetStream transport.
type NATSConfig struct {
	URL            string        `koanf:"url"`
	EmbeddedServer bool          `koanf:"embedded_server"`
	StoreDir       string        `koanf:"store_dir"`
	MaxReconnects  int           `koanf:"max_reconnects"`
	ReconnectWait  time.Duration `koanf:"reconnect_wait"`
	QueueGroup     string        `koanf:"queue_group"`
}

// NotifyConfig configures the notification dispatcher and delivery workers.
type NotifyConfig struct {
	SMTP SMTPConfig `koanf:"smtp"`

	// PushGatewayURL is the multicast endpoint of the push collaborator.
	PushGatewayURL string        `koanf:"push_gateway_url"`
	PushTimeout    time.Duration `koanf:"push_timeout"`

	// BulkChunkSize is the user-id partition size for bulk jobs.
	BulkChunkSize int `koanf:"bulk_chunk_size" validate:"gt=0"`
	// PushTokensPerCall is the per-multicast-call token ceiling.
	PushTokensPerCall int `koanf:"push_tokens_per_call" validate:"gt=0"`
	// EmailBatchSize is the sub-batch size for bulk email sends.
	EmailBatchSize int `koanf:"email_batch_size" validate:"gt=0"`
	// EmailBatchInterval is the pause between bulk email sub-batches.
	EmailBatchInterval time.Duration `koanf:"email_batch_interval"`

	// EmailAttempts is the queue-level retry cap for email delivery jobs.
	EmailAttempts int `koanf:"email_attempts" validate:"gte=1"`
	// EmailBackoff is the initial backoff between email attempts.
	EmailBackoff time.Duration `koanf:"email_backoff"`
}

// SMTPConfig configures the outbound email relay.
type SMTPConfig struct {
	Host     string        `koanf:"host"`
	Port     int           `koanf:"port"`
	Username string        `koanf:"username"`
	Password string        `koanf:"password"`
	From     string        `koanf:"from"`
	FromName string        `koanf:"from_name"`
	Timeout  time.Duration `koanf:"timeout"`
}

// Address returns host:port for the SMTP relay.
func (c SMTPConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// APIConfig configures pagination and rate limiting for the HTTP API.
type APIConfig struct {
	DefaultPageSize int           `koanf:"default_page_size" validate:"gt=0"`
	MaxPageSize     int           `koanf:"max_page_size" validate:"gt=0"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// DefaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and environment.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8420,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Database: DatabaseConfig{
			Path:    "/data/sacredconnect.duckdb",
			Threads: 0,
		},
		Counters: CountersConfig{
			Dir:     "/data/counters",
			HourTTL: 7 * 24 * time.Hour,
			DayTTL:  30 * 24 * time.Hour,
		},
		Queue: QueueConfig{
			Transport: "inproc",
			NATS: NATSConfig{
				URL:            "nats://127.0.0.1:4222",
				EmbeddedServer: true,
				StoreDir:       "/data/nats/jetstream",
				MaxReconnects:  -1,
				ReconnectWait:  2 * time.Second,
				QueueGroup:     "delivery-workers",
			},
			CloseTimeout:         30 * time.Second,
			RetryMaxRetries:      0,
			RetryInitialInterval: time.Second,
			RetryMaxInterval:     time.Minute,
			PoisonTopic:          "jobs.poison",
		},
		Notify: NotifyConfig{
			SMTP: SMTPConfig{
				Port:     587,
				FromName: "SacredConnect",
				Timeout:  30 * time.Second,
			},
			PushTimeout:        10 * time.Second,
			BulkChunkSize:      100,
			PushTokensPerCall:  500,
			EmailBatchSize:     50,
			EmailBatchInterval: time.Second,
			EmailAttempts:      3,
			EmailBackoff:       2 * time.Second,
		},
		API: APIConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
	}
}

// Validate checks the configuration for inconsistencies. It is called by
// Load; call it directly when constructing configs by hand.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.API.DefaultPageSize > c.API.MaxPageSize {
		return fmt.Errorf("invalid configuration: default_page_size %d exceeds max_page_size %d",
			c.API.DefaultPageSize, c.API.MaxPageSize)
	}
	if c.Queue.Transport == "nats" && c.Queue.NATS.URL == "" {
		return fmt.Errorf("invalid configuration: queue.nats.url required for nats transport")
	}
	return nil
}
