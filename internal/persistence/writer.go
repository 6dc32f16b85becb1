package persistence

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultQueueCapacity = 64
	writeAttempts        = 3
	retryBackoffStep     = 300 * time.Millisecond
)

type writeJob struct {
	name string
	fn   func(context.Context) error
}

// AsyncWriter decouples the event loop from disk: jobs are queued and run
// by a single worker with retries. When the queue is full the job spills
// to a goroutine instead of blocking the caller; spilled jobs may land out
// of order, which is fine for a last-write-wins snapshot.
type AsyncWriter struct {
	logger *slog.Logger
	queue  chan writeJob
	done   chan struct{}
}

func NewAsyncWriter(logger *slog.Logger, capacity int) *AsyncWriter {
	if logger == nil {
		logger = slog.Default().With("component", "persistence")
	}
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}

	return &AsyncWriter{
		logger: logger,
		queue:  make(chan writeJob, capacity),
		done:   make(chan struct{}),
	}
}

// Enqueue never blocks and never reports failure to the caller; a write
// that exhausts its retries is logged and dropped.
func (w *AsyncWriter) Enqueue(name string, fn func(context.Context) error) {
	job := writeJob{name: name, fn: fn}
	select {
	case w.queue <- job:
	default:
		w.logger.Debug("write queue full, spilling", "job", name)
		// The spill must not outlive the worker or it parks on the queue
		// forever once the worker has stopped draining.
		go func() {
			select {
			case w.queue <- job:
			case <-w.done:
				w.logger.Debug("worker stopped, dropping spilled write", "job", name)
			}
		}()
	}
}

// Start runs the worker until ctx is cancelled.
func (w *AsyncWriter) Start(ctx context.Context) {
	go func() {
		defer close(w.done)
		for {
			select {
			case <-ctx.Done():
				return
			case job := <-w.queue:
				w.runWithRetry(ctx, job)
			}
		}
	}()
}

func (w *AsyncWriter) runWithRetry(ctx context.Context, job writeJob) {
	for attempt := 1; attempt <= writeAttempts; attempt++ {
		err := job.fn(ctx)
		if err == nil {
			return
		}
		w.logger.Error("db write failed", "job", job.name, "attempt", attempt, "error", err)
		if attempt == writeAttempts {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * retryBackoffStep):
		}
	}
}
