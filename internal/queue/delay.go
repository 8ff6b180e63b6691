// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/sacredconnect/sacredconnect/internal/logging"
	"github.com/sacredconnect/sacredconnect/internal/metrics"
)

// scheduledJob is a message held until its due time.
type scheduledJob struct {
	topic string
	msg   *message.Message
	due   time.Time
}

// jobHeap is a min-heap ordered by due time.
type jobHeap []*scheduledJob

func (h jobHeap) Len() int           { return len(h) }
func (h jobHeap) Less(i, j int) bool { return h[i].due.Before(h[j].due) }
func (h jobHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *jobHeap) Push(x any)        { *h = append(*h, x.(*scheduledJob)) }
func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Scheduler holds deferred jobs in a min-heap and publishes each when its
// due time arrives. The transport has no native delayed delivery, so the
// delay is implemented at the producer side; deferred jobs are lost if the
// process dies before they fire.
type Scheduler struct {
	pub message.Publisher

	mu   sync.Mutex
	jobs jobHeap
	wake chan struct{}
}

func newScheduler(pub message.Publisher) *Scheduler {
	return &Scheduler{
		pub:  pub,
		wake: make(chan struct{}, 1),
	}
}

// schedule queues a message for publication at the due time.
func (s *Scheduler) schedule(topic string, msg *message.Message, due time.Time) {
	s.mu.Lock()
	heap.Push(&s.jobs, &scheduledJob{topic: topic, msg: msg, due: due})
	s.mu.Unlock()
	metrics.JobsScheduled.Inc()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of jobs waiting on a future due time.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs.Len()
}

// Run drives the scheduler until the context is cancelled. It sleeps until
// the earliest due time, publishes everything due, and re-arms.
func (s *Scheduler) Run(ctx context.Context) error {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		s.publishDue()

		s.mu.Lock()
		var wait time.Duration
		if s.jobs.Len() > 0 {
			wait = time.Until(s.jobs[0].due)
		} else {
			wait = time.Hour
		}
		s.mu.Unlock()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		case <-s.wake:
		}
	}
}

// publishDue publishes every job whose due time has passed.
func (s *Scheduler) publishDue() {
	now := time.Now()
	for {
		s.mu.Lock()
		if s.jobs.Len() == 0 || s.jobs[0].due.After(now) {
			s.mu.Unlock()
			return
		}
		job := heap.Pop(&s.jobs).(*scheduledJob)
		s.mu.Unlock()

		metrics.JobsScheduled.Dec()
		if err := s.pub.Publish(job.topic, job.msg); err != nil {
			logging.Error().Err(err).
				Str("topic", job.topic).
				Str("message_id", job.msg.UUID).
				Msg("Failed to publish scheduled job")
		}
	}
}
