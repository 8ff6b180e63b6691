// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

// Package main is the entry point for the SacredConnect backend server.
//
// The server initializes components in the following order:
//
//  1. Configuration: defaults, config file, then SC_-prefixed environment
//     variables (Koanf v2)
//  2. Logging: zerolog global logger
//  3. Database: DuckDB event and notification store
//  4. Counters: Badger rolling-counter store for realtime analytics
//  5. Queue: Watermill router over an in-process channel or NATS JetStream
//  6. Delivery: push, email, and SMS channel adapters
//  7. HTTP API: chi router with events, analytics, and notification routes
//
// Everything runs under a suture supervision tree; the queue side and the
// HTTP side sit in separate child supervisors so one crashing does not
// restart the other.
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP server drains
// in-flight requests, the job router stops consuming, and the stores are
// closed last.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/sacredconnect/sacredconnect/internal/analytics"
	"github.com/sacredconnect/sacredconnect/internal/api"
	"github.com/sacredconnect/sacredconnect/internal/config"
	"github.com/sacredconnect/sacredconnect/internal/counters"
	"github.com/sacredconnect/sacredconnect/internal/database"
	"github.com/sacredconnect/sacredconnect/internal/events"
	"github.com/sacredconnect/sacredconnect/internal/logging"
	"github.com/sacredconnect/sacredconnect/internal/notify"
	"github.com/sacredconnect/sacredconnect/internal/notify/delivery"
	"github.com/sacredconnect/sacredconnect/internal/queue"
	"github.com/sacredconnect/sacredconnect/internal/supervisor"
	"github.com/sacredconnect/sacredconnect/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Config errors go through the default logger; Init has not run yet.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("queue_transport", cfg.Queue.Transport).
		Int("port", cfg.Server.Port).
		Msg("Starting SacredConnect")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	counterStore, err := counters.Open(cfg.Counters)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open counter store")
	}
	defer func() {
		if err := counterStore.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing counter store")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tree := supervisor.NewTree(supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	// Queue transport. The embedded NATS server, when enabled, lives in
	// the delivery layer so it outlasts every consumer.
	wmLogger := queue.NewLoggerAdapter()
	var pub message.Publisher
	var sub message.Subscriber
	switch cfg.Queue.Transport {
	case "nats":
		natsOpts := queue.NATSOptions{
			URL:           cfg.Queue.NATS.URL,
			MaxReconnects: cfg.Queue.NATS.MaxReconnects,
			ReconnectWait: cfg.Queue.NATS.ReconnectWait,
			QueueGroup:    cfg.Queue.NATS.QueueGroup,
		}
		if cfg.Queue.NATS.EmbeddedServer {
			embedded, err := queue.NewEmbeddedServer(cfg.Queue.NATS.StoreDir)
			if err != nil {
				logging.Fatal().Err(err).Msg("Failed to start embedded NATS server")
			}
			natsOpts.URL = embedded.ClientURL()
			tree.AddDeliveryService(services.NewCloserService("nats-server", embedded))
			logging.Info().Str("url", natsOpts.URL).Msg("Embedded NATS server started")
		}
		pub, err = queue.NewNATSPublisher(natsOpts, wmLogger)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create NATS publisher")
		}
		sub, err = queue.NewNATSSubscriber(natsOpts, wmLogger)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create NATS subscriber")
		}
	default:
		pubsub := queue.NewInProcPubSub(wmLogger)
		pub, sub = pubsub, pubsub
	}

	q := queue.New(pub)
	router, err := queue.NewRouter(cfg.Queue, sub, pub, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create job router")
	}

	// Pipeline components.
	recorder := events.New(db, counterStore)
	reports := analytics.New(db, db, counterStore)
	dispatcher := notify.NewDispatcher(db, q, cfg.Notify.BulkChunkSize)

	var email delivery.EmailSender
	if cfg.Notify.SMTP.Host != "" {
		email = delivery.NewSMTPEmail(cfg.Notify.SMTP)
	}
	var push delivery.PushSender
	if cfg.Notify.PushGatewayURL != "" {
		push = delivery.NewPushGateway(cfg.Notify.PushGatewayURL, cfg.Notify.PushTimeout)
	}
	worker := notify.NewWorker(cfg.Notify, db, db, q, push, email, delivery.NewLogSMS())
	worker.Register(router)

	tree.AddDeliveryService(services.NewRouterService(router))
	tree.AddDeliveryService(services.NewSchedulerService(q.Scheduler()))

	// HTTP API.
	apiServer := api.NewServer(cfg.API, recorder, reports, dispatcher, db,
		func(ctx context.Context) error {
			return db.Conn().PingContext(ctx)
		})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           apiServer.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       2 * cfg.Server.Timeout,
	}
	tree.AddAPIService(services.NewHTTPService(httpServer, cfg.Server.ShutdownTimeout))

	logging.Info().Str("addr", httpServer.Addr).Msg("SacredConnect ready")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree exited with error")
	}

	if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within timeout")
		}
	}

	logging.Info().Msg("SacredConnect stopped")
}
