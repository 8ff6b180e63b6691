// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

package services

import (
	"context"
	"errors"

	"github.com/sacredconnect/sacredconnect/internal/logging"
	"github.com/sacredconnect/sacredconnect/internal/queue"
)

// RouterService runs the job router under supervision.
type RouterService struct {
	router *queue.Router
}

// NewRouterService wraps a job router as a supervised service.
func NewRouterService(router *queue.Router) *RouterService {
	return &RouterService{router: router}
}

// Serve implements suture.Service. Router.Run blocks until the context is
// cancelled; cancellation is a normal stop, not a failure.
func (s *RouterService) Serve(ctx context.Context) error {
	err := s.router.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return ctx.Err()
}

func (s *RouterService) String() string { return "job-router" }

// SchedulerService runs the delayed-job scheduler under supervision.
type SchedulerService struct {
	sched *queue.Scheduler
}

// NewSchedulerService wraps the delay scheduler as a supervised service.
func NewSchedulerService(sched *queue.Scheduler) *SchedulerService {
	return &SchedulerService{sched: sched}
}

// Serve implements suture.Service.
func (s *SchedulerService) Serve(ctx context.Context) error {
	return s.sched.Run(ctx)
}

func (s *SchedulerService) String() string { return "delay-scheduler" }

// Closer is anything with a blocking Close, e.g. the embedded NATS server
// wrapper or a pubsub connection.
type Closer interface {
	Close() error
}

// CloserService holds a component open for the life of the tree and closes
// it on shutdown. It does no work itself.
type CloserService struct {
	name   string
	closer Closer
}

// NewCloserService wraps a closable component as a supervised service.
func NewCloserService(name string, closer Closer) *CloserService {
	return &CloserService{name: name, closer: closer}
}

// Serve implements suture.Service.
func (s *CloserService) Serve(ctx context.Context) error {
	<-ctx.Done()
	if err := s.closer.Close(); err != nil {
		logging.Warn().Err(err).Str("component", s.name).Msg("Close failed during shutdown")
	}
	return ctx.Err()
}

func (s *CloserService) String() string { return s.name }
