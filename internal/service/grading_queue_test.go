package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"elevate_backend/internal/config"
	"elevate_backend/internal/model"
)

func queueConfig() *config.GradingConfig {
	return &config.GradingConfig{
		Workers:      2,
		QueueSize:    8,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within deadline")
}

func TestQueueRetriesThenSucceeds(t *testing.T) {
	var calls int64
	var done int64
	q := NewGradingQueue(queueConfig(), func(ctx context.Context, job *GradeJob) error {
		if atomic.AddInt64(&calls, 1) < 3 {
			return errors.New("transient failure")
		}
		atomic.AddInt64(&done, 1)
		return nil
	})
	q.Start()
	defer q.Stop()

	if err := q.Enqueue("resp-1", "att-1"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	waitFor(t, func() bool { return atomic.LoadInt64(&done) == 1 })
	if got := atomic.LoadInt64(&calls); got != 3 {
		t.Fatalf("expected 3 executor calls, got %d", got)
	}
	if failed := q.FailedJobs(); len(failed) != 0 {
		t.Fatalf("recovered job must not be recorded as failed: %+v", failed)
	}
}

func TestQueueExhaustsRetries(t *testing.T) {
	var calls int64
	q := NewGradingQueue(queueConfig(), func(ctx context.Context, job *GradeJob) error {
		atomic.AddInt64(&calls, 1)
		return errors.New("always failing")
	})
	q.Start()
	defer q.Stop()

	if err := q.Enqueue("resp-2", "att-2"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	waitFor(t, func() bool { return len(q.FailedJobs()) == 1 })

	// first attempt plus MaxRetries retries
	if got := atomic.LoadInt64(&calls); got != 3 {
		t.Fatalf("expected 3 executor calls, got %d", got)
	}
	failed := q.FailedJobs()[0]
	if failed.ResponseID != "resp-2" || failed.LastError != "always failing" {
		t.Fatalf("failed job missing detail: %+v", failed)
	}
	if failed.FailedAt.IsZero() {
		t.Fatalf("failed job must record when it failed")
	}
}

func TestQueuePermanentErrorSkipsRetries(t *testing.T) {
	var calls int64
	q := NewGradingQueue(queueConfig(), func(ctx context.Context, job *GradeJob) error {
		atomic.AddInt64(&calls, 1)
		return Permanent(model.DataIntegrityf("no test cases"))
	})
	q.Start()
	defer q.Stop()

	if err := q.Enqueue("resp-3", "att-3"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	waitFor(t, func() bool { return len(q.FailedJobs()) == 1 })
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Fatalf("permanent errors must not retry, got %d calls", got)
	}
}

func TestQueueFullRejectsEnqueue(t *testing.T) {
	cfg := &config.GradingConfig{Workers: 1, QueueSize: 1, MaxRetries: 0, RetryBackoff: time.Millisecond}
	block := make(chan struct{})
	q := NewGradingQueue(cfg, func(ctx context.Context, job *GradeJob) error {
		<-block
		return nil
	})
	q.Start()
	defer func() {
		close(block)
		q.Stop()
	}()

	// first job occupies the worker, second fills the buffer
	if err := q.Enqueue("resp-a", "att-a"); err != nil {
		t.Fatalf("enqueue 1: %v", err)
	}
	waitFor(t, func() bool {
		return q.Enqueue("resp-b", "att-b") == nil
	})

	err := q.Enqueue("resp-c", "att-c")
	if model.KindOf(err) != model.KindServiceUnavailable {
		t.Fatalf("expected service unavailable on full queue, got %v", err)
	}
}
