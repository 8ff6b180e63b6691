// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/sacredconnect/sacredconnect/internal/config"
	"github.com/sacredconnect/sacredconnect/internal/metrics"
	"github.com/sacredconnect/sacredconnect/internal/models"
)

// ProcessorFunc handles a single job payload. Returning an error triggers
// the processor's retry policy; exhausted jobs go to the poison topic.
type ProcessorFunc func(ctx context.Context, payload []byte) error

// RetryPolicy controls per-processor queue-level retries. Attempts is the
// total number of tries including the first; Attempts <= 1 disables retry.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// NoRetry is the policy for jobs where a failure is terminal.
var NoRetry = RetryPolicy{Attempts: 1}

// FallbackFunc runs after a job's retry budget is spent, just before the
// message is handed to the poison queue. It must not block for long.
type FallbackFunc func(ctx context.Context, payload []byte, err error)

// Router consumes jobs and dispatches them to registered processors.
// Each processor is subscribed on all three priority topics of its job.
type Router struct {
	router *message.Router
	sub    message.Subscriber
	logger watermill.LoggerAdapter
}

// NewRouter creates a job router with panic recovery and poison-queue
// routing. Per-processor retry is attached at registration time.
func NewRouter(cfg config.QueueConfig, sub message.Subscriber, poisonPub message.Publisher, logger watermill.LoggerAdapter) (*Router, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	wmRouter, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: cfg.CloseTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}

	wmRouter.AddMiddleware(middleware.Recoverer)

	if poisonPub != nil && cfg.PoisonTopic != "" {
		poison, err := middleware.PoisonQueue(poisonPub, cfg.PoisonTopic)
		if err != nil {
			return nil, fmt.Errorf("create poison queue middleware: %w", err)
		}
		wmRouter.AddMiddleware(poison)
	}

	return &Router{router: wmRouter, sub: sub, logger: logger}, nil
}

// RegisterProcessor subscribes fn to every priority topic of the job.
// The retry policy applies per message before the poison queue takes over.
func (r *Router) RegisterProcessor(job string, retry RetryPolicy, fn ProcessorFunc) {
	r.RegisterProcessorWithFallback(job, retry, fn, nil)
}

// RegisterProcessorWithFallback is RegisterProcessor plus a fallback that
// observes the terminal error once retries are exhausted. The error still
// propagates afterwards so the poison queue receives the message.
func (r *Router) RegisterProcessorWithFallback(job string, retry RetryPolicy, fn ProcessorFunc, fallback FallbackFunc) {
	var handler message.HandlerFunc = func(msg *message.Message) ([]*message.Message, error) {
		start := time.Now()
		err := fn(msg.Context(), msg.Payload)
		metrics.RecordJob(job, time.Since(start), err)
		return nil, err
	}

	// Explicit composition, innermost first: handler, retry, fallback.
	// The fallback must see only the post-retry error, never the
	// per-attempt ones.
	if retry.Attempts > 1 {
		retryMW := middleware.Retry{
			MaxRetries:      retry.Attempts - 1,
			InitialInterval: retry.Backoff,
			MaxInterval:     time.Minute,
			Multiplier:      2.0,
			Logger:          r.logger,
		}
		handler = retryMW.Middleware(handler)
	}
	if fallback != nil {
		inner := handler
		handler = func(msg *message.Message) ([]*message.Message, error) {
			msgs, err := inner(msg)
			if err != nil {
				fallback(msg.Context(), msg.Payload, err)
			}
			return msgs, err
		}
	}

	composed := handler
	for _, pri := range []models.Priority{models.PriorityHigh, models.PriorityNormal, models.PriorityLow} {
		r.router.AddConsumerHandler(
			job+"."+string(pri),
			Topic(job, pri),
			r.sub,
			func(msg *message.Message) error {
				_, err := composed(msg)
				return err
			},
		)
	}
}

// Run starts the router and blocks until the context is cancelled.
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Running returns a channel that closes once all handlers are started.
// Tests use it to avoid publishing before subscriptions exist.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// Close shuts the router down, waiting up to CloseTimeout for in-flight
// handlers.
func (r *Router) Close() error {
	return r.router.Close()
}
