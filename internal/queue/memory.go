package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haris936hk/EchoNote-sub001/internal/common"
)

// MemoryQueue is the in-process queue. Pending entries and retry timers
// live only in memory: a restart loses them even though the persisted
// meeting statuses survive. The Redis-backed queue narrows that gap.
type MemoryQueue struct {
	runner Runner
	store  Store
	opts   Options

	mu         sync.Mutex
	entries    []Entry
	processing *Entry
	retries    map[uuid.UUID]*time.Timer

	closing   chan struct{}
	closeOnce sync.Once
}

func NewMemoryQueue(runner Runner, store Store, opts Options) *MemoryQueue {
	return &MemoryQueue{
		runner:  runner,
		store:   store,
		opts:    opts.withDefaults(),
		retries: make(map[uuid.UUID]*time.Timer),
		closing: make(chan struct{}),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, e Entry) (int, error) {
	if e.EnqueuedAt.IsZero() {
		e.EnqueuedAt = time.Now()
	}

	q.mu.Lock()
	q.entries = append(q.entries, e)
	position := len(q.entries)
	q.mu.Unlock()

	// The entry stays queued even when the status write fails; the caller
	// decides what to do with the error.
	if err := q.store.MarkQueued(ctx, e.MeetingID); err != nil {
		slog.Error("failed to mark meeting queued", "meeting_id", e.MeetingID, "error", err)
		return position, err
	}

	slog.Info("meeting enqueued", "meeting_id", e.MeetingID, "position", position, "attempt", e.Attempt)
	return position, nil
}

func (q *MemoryQueue) ProcessNext(ctx context.Context) {
	q.mu.Lock()
	if q.processing != nil || len(q.entries) == 0 {
		q.mu.Unlock()
		return
	}
	e := q.entries[0]
	q.entries = q.entries[1:]
	q.processing = &e
	q.mu.Unlock()

	slog.Info("processing meeting", "meeting_id", e.MeetingID, "attempt", e.Attempt)
	err := q.runner.Run(ctx, e)

	if err != nil {
		// The slot stays occupied until the retry timer (or terminal
		// failure) is registered, so a concurrent Cancel never sees the
		// entry as gone while it is about to be re-queued.
		q.scheduleRetry(ctx, e, err)
	}

	q.mu.Lock()
	q.processing = nil
	q.mu.Unlock()

	if err == nil {
		slog.Info("meeting processed", "meeting_id", e.MeetingID, "attempt", e.Attempt)
	}
}

// scheduleRetry converts a failed attempt into either a delayed
// re-enqueue with exponential backoff or a terminal failure. Attempt k
// retries after RetryBase * 2^k; permanent failures and exhausted
// attempts go straight to FAILED.
func (q *MemoryQueue) scheduleRetry(ctx context.Context, e Entry, runErr error) {
	reason := runErr.Error()

	var p permanenter
	permanent := errors.As(runErr, &p) && p.Permanent()

	if permanent || e.Attempt >= q.opts.MaxRetries {
		if err := q.store.MarkFailed(ctx, e.MeetingID, reason); err != nil {
			slog.Error("failed to mark meeting failed", "meeting_id", e.MeetingID, "error", err)
		}
		slog.Error("meeting failed permanently",
			"meeting_id", e.MeetingID,
			"attempt", e.Attempt,
			"permanent", permanent,
			"reason", reason)
		if q.opts.OnTerminalFailure != nil {
			q.opts.OnTerminalFailure(ctx, e, reason)
		}
		return
	}

	delay := q.opts.RetryBase << e.Attempt
	next := e
	next.Attempt++

	if err := q.store.MarkRetryScheduled(ctx, e.MeetingID, next.Attempt, reason); err != nil {
		slog.Error("failed to mark retry scheduled", "meeting_id", e.MeetingID, "error", err)
	}

	slog.Warn("meeting retry scheduled",
		"meeting_id", e.MeetingID,
		"attempt", next.Attempt,
		"delay", delay,
		"reason", reason)

	q.mu.Lock()
	q.retries[e.MeetingID] = time.AfterFunc(delay, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		// Cancel may have removed the handle between firing and locking.
		if _, ok := q.retries[next.MeetingID]; !ok {
			return
		}
		delete(q.retries, next.MeetingID)
		next.EnqueuedAt = time.Now()
		q.entries = append(q.entries, next)
	})
	q.mu.Unlock()
}

func (q *MemoryQueue) Cancel(ctx context.Context, meetingID uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.entries {
		if e.MeetingID == meetingID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			slog.Info("meeting removed from queue", "meeting_id", meetingID)
			return nil
		}
	}

	if timer, ok := q.retries[meetingID]; ok {
		timer.Stop()
		delete(q.retries, meetingID)
		slog.Info("meeting retry canceled", "meeting_id", meetingID)
		return nil
	}

	return common.ErrNotInQueue
}

func (q *MemoryQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		QueueLength:   len(q.entries),
		Processing:    q.processing != nil,
		RetryingCount: len(q.retries),
	}
}

func (q *MemoryQueue) Start(ctx context.Context) {
	go func() {
		// First entry should not wait a full tick.
		q.ProcessNext(ctx)

		ticker := time.NewTicker(q.opts.Tick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-q.closing:
				return
			case <-ticker.C:
				q.ProcessNext(ctx)
			}
		}
	}()
	slog.Info("queue worker started", "tick", q.opts.Tick, "max_retries", q.opts.MaxRetries)
}

func (q *MemoryQueue) Close() error {
	q.closeOnce.Do(func() {
		close(q.closing)
		q.mu.Lock()
		for id, timer := range q.retries {
			timer.Stop()
			delete(q.retries, id)
		}
		q.mu.Unlock()
	})
	return nil
}
