package persistence

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync/atomic"
	"testing"
	"time"
)

func TestAsyncWriterRunsJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewAsyncWriter(slog.Default(), 4)
	w.Start(ctx)

	done := make(chan struct{})
	w.Enqueue("probe", func(context.Context) error {
		close(done)

		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never ran")
	}
}

func TestAsyncWriterRetriesUntilSuccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewAsyncWriter(slog.Default(), 4)
	w.Start(ctx)

	var attempts atomic.Int32
	done := make(chan struct{})
	w.Enqueue("flaky", func(context.Context) error {
		if attempts.Add(1) < 3 {
			return errors.New("disk hiccup")
		}
		close(done)

		return nil
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job never succeeded")
	}
	if got := attempts.Load(); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
}

func TestAsyncWriterGivesUpAfterMaxAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewAsyncWriter(slog.Default(), 4)
	w.Start(ctx)

	var attempts atomic.Int32
	w.Enqueue("doomed", func(context.Context) error {
		attempts.Add(1)

		return errors.New("persistent failure")
	})

	deadline := time.After(5 * time.Second)
	for attempts.Load() < writeAttempts {
		select {
		case <-deadline:
			t.Fatalf("attempts = %d before deadline", attempts.Load())
		case <-time.After(20 * time.Millisecond):
		}
	}

	time.Sleep(100 * time.Millisecond)
	if got := attempts.Load(); got != writeAttempts {
		t.Fatalf("attempts = %d, want %d", got, writeAttempts)
	}
}

func TestAsyncWriterSpillsInsteadOfBlocking(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewAsyncWriter(slog.Default(), 1)
	w.Start(ctx)

	release := make(chan struct{})
	var completed atomic.Int32

	w.Enqueue("blocker", func(context.Context) error {
		<-release
		completed.Add(1)

		return nil
	})

	enqueued := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			w.Enqueue("follow-up", func(context.Context) error {
				completed.Add(1)

				return nil
			})
		}
		close(enqueued)
	}()

	select {
	case <-enqueued:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}

	close(release)

	deadline := time.After(2 * time.Second)
	for completed.Load() < 4 {
		select {
		case <-deadline:
			t.Fatalf("completed = %d, want 4", completed.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Spilled writes that arrive after the worker has stopped must give up
// instead of parking on the queue forever.
func TestAsyncWriterSpillReleasedAfterShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := NewAsyncWriter(slog.Default(), 1)
	w.Start(ctx)

	cancel()
	select {
	case <-w.done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never stopped")
	}

	baseline := runtime.NumGoroutine()
	// First job fills the buffered queue, the rest take the spill path.
	for i := 0; i < 8; i++ {
		w.Enqueue("late", func(context.Context) error { return nil })
	}

	deadline := time.After(2 * time.Second)
	for runtime.NumGoroutine() > baseline {
		select {
		case <-deadline:
			t.Fatalf("spill goroutines still parked: %d > %d", runtime.NumGoroutine(), baseline)
		case <-time.After(20 * time.Millisecond):
		}
	}
}
