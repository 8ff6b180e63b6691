// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/goccy/go-json"

	"github.com/sacredconnect/sacredconnect/internal/config"
	"github.com/sacredconnect/sacredconnect/internal/models"
)

type testJob struct {
	Name string `json:"name"`
}

func testQueueConfig() config.QueueConfig {
	return config.QueueConfig{
		Transport:    "inproc",
		CloseTimeout: 5 * time.Second,
	}
}

func startRouter(t *testing.T, r *Router) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			t.Logf("router stopped: %v", err)
		}
	}()
	select {
	case <-r.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}
	t.Cleanup(func() {
		cancel()
		r.Close()
	})
	return cancel
}

func TestEnqueueAndProcess(t *testing.T) {
	logger := watermill.NopLogger{}
	pubsub := NewInProcPubSub(logger)
	q := New(pubsub)

	r, err := NewRouter(testQueueConfig(), pubsub, nil, logger)
	if err != nil {
		t.Fatal(err)
	}

	got := make(chan testJob, 1)
	r.RegisterProcessor("test.echo", NoRetry, func(ctx context.Context, payload []byte) error {
		var j testJob
		if err := json.Unmarshal(payload, &j); err != nil {
			return err
		}
		got <- j
		return nil
	})
	startRouter(t, r)

	if err := q.Enqueue(context.Background(), "test.echo", testJob{Name: "hello"}, JobOptions{}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	select {
	case j := <-got:
		if j.Name != "hello" {
			t.Errorf("payload = %+v", j)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("job never processed")
	}
}

func TestPriorityTopicsAllConsumed(t *testing.T) {
	logger := watermill.NopLogger{}
	pubsub := NewInProcPubSub(logger)
	q := New(pubsub)

	r, err := NewRouter(testQueueConfig(), pubsub, nil, logger)
	if err != nil {
		t.Fatal(err)
	}

	var count atomic.Int32
	done := make(chan struct{}, 3)
	r.RegisterProcessor("test.pri", NoRetry, func(ctx context.Context, payload []byte) error {
		count.Add(1)
		done <- struct{}{}
		return nil
	})
	startRouter(t, r)

	for _, pri := range []models.Priority{models.PriorityLow, models.PriorityNormal, models.PriorityHigh} {
		if err := q.Enqueue(context.Background(), "test.pri", testJob{}, JobOptions{Priority: pri}); err != nil {
			t.Fatal(err)
		}
	}

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d of 3 jobs processed", count.Load())
		}
	}
}

func TestRetryPolicyRetriesUntilSuccess(t *testing.T) {
	logger := watermill.NopLogger{}
	pubsub := NewInProcPubSub(logger)
	q := New(pubsub)

	r, err := NewRouter(testQueueConfig(), pubsub, nil, logger)
	if err != nil {
		t.Fatal(err)
	}

	var attempts atomic.Int32
	done := make(chan struct{})
	r.RegisterProcessor("test.retry", RetryPolicy{Attempts: 3, Backoff: 10 * time.Millisecond},
		func(ctx context.Context, payload []byte) error {
			if attempts.Add(1) < 3 {
				return errors.New("transient failure")
			}
			close(done)
			return nil
		})
	startRouter(t, r)

	if err := q.Enqueue(context.Background(), "test.retry", testJob{}, JobOptions{}); err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("job not retried to success, attempts = %d", attempts.Load())
	}
	if attempts.Load() != 3 {
		t.Errorf("attempts = %d, want 3", attempts.Load())
	}
}

func TestFallbackRunsOnceAfterRetriesExhausted(t *testing.T) {
	logger := watermill.NopLogger{}
	pubsub := NewInProcPubSub(logger)
	q := New(pubsub)

	// Poison routing must be on, otherwise the exhausted message is
	// redelivered forever.
	cfg := testQueueConfig()
	cfg.PoisonTopic = "test.poison"
	r, err := NewRouter(cfg, pubsub, pubsub, logger)
	if err != nil {
		t.Fatal(err)
	}

	var attempts, fallbacks atomic.Int32
	done := make(chan error, 1)
	r.RegisterProcessorWithFallback("test.exhaust",
		RetryPolicy{Attempts: 3, Backoff: 10 * time.Millisecond},
		func(ctx context.Context, payload []byte) error {
			attempts.Add(1)
			return errors.New("still down")
		},
		func(ctx context.Context, payload []byte, err error) {
			fallbacks.Add(1)
			done <- err
		})
	startRouter(t, r)

	if err := q.Enqueue(context.Background(), "test.exhaust", testJob{}, JobOptions{}); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-done:
		if err == nil {
			t.Error("fallback received nil error")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("fallback never ran, attempts = %d", attempts.Load())
	}
	if attempts.Load() != 3 {
		t.Errorf("attempts = %d, want 3", attempts.Load())
	}
	if fallbacks.Load() != 1 {
		t.Errorf("fallbacks = %d, want 1", fallbacks.Load())
	}
}

func TestScheduledJobFiresAtDueTime(t *testing.T) {
	logger := watermill.NopLogger{}
	pubsub := NewInProcPubSub(logger)
	q := New(pubsub)

	r, err := NewRouter(testQueueConfig(), pubsub, nil, logger)
	if err != nil {
		t.Fatal(err)
	}

	processed := make(chan time.Time, 1)
	r.RegisterProcessor("test.delayed", NoRetry, func(ctx context.Context, payload []byte) error {
		processed <- time.Now()
		return nil
	})
	startRouter(t, r)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = q.Scheduler().Run(ctx) }()

	enqueuedAt := time.Now()
	due := enqueuedAt.Add(300 * time.Millisecond)
	if err := q.Enqueue(context.Background(), "test.delayed", testJob{}, JobOptions{At: due}); err != nil {
		t.Fatal(err)
	}

	if q.Scheduler().Pending() != 1 {
		t.Errorf("pending = %d, want 1", q.Scheduler().Pending())
	}

	select {
	case at := <-processed:
		if at.Before(due) {
			t.Errorf("job fired %v early", due.Sub(at))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled job never fired")
	}
}

func TestPastDueTimePublishesImmediately(t *testing.T) {
	logger := watermill.NopLogger{}
	pubsub := NewInProcPubSub(logger)
	q := New(pubsub)

	r, err := NewRouter(testQueueConfig(), pubsub, nil, logger)
	if err != nil {
		t.Fatal(err)
	}

	processed := make(chan struct{}, 1)
	r.RegisterProcessor("test.past", NoRetry, func(ctx context.Context, payload []byte) error {
		processed <- struct{}{}
		return nil
	})
	startRouter(t, r)

	// A due time in the past must not wait on the scheduler.
	opts := JobOptions{At: time.Now().Add(-time.Minute)}
	if err := q.Enqueue(context.Background(), "test.past", testJob{}, opts); err != nil {
		t.Fatal(err)
	}
	if q.Scheduler().Pending() != 0 {
		t.Errorf("past-due job went to scheduler")
	}

	select {
	case <-processed:
	case <-time.After(5 * time.Second):
		t.Fatal("past-due job never processed")
	}
}

func TestEnqueueRejectsUnserializablePayload(t *testing.T) {
	pubsub := NewInProcPubSub(watermill.NopLogger{})
	q := New(pubsub)

	if err := q.Enqueue(context.Background(), "test.bad", func() {}, JobOptions{}); err == nil {
		t.Error("expected serialization error, got nil")
	}
}
