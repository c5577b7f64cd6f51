package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry is one pending processing request. It only exists between
// Enqueue and the moment the runner takes ownership of the meeting.
type Entry struct {
	MeetingID  uuid.UUID `json:"meeting_id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	AudioKey   string    `json:"audio_key"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Stats is a point-in-time snapshot for observability.
type Stats struct {
	QueueLength   int  `json:"queue_length"`
	Processing    bool `json:"processing"`
	RetryingCount int  `json:"retrying_count"`
}

// Runner executes the full processing pipeline for one dequeued entry.
// A nil return means the meeting reached COMPLETED; a non-nil error is
// handed to the retry scheduler.
type Runner interface {
	Run(ctx context.Context, e Entry) error
}

// Store is the slice of meeting persistence the queue needs for its own
// transitions. Satisfied by *repository.Repository.
type Store interface {
	MarkQueued(ctx context.Context, id uuid.UUID) error
	MarkRetryScheduled(ctx context.Context, id uuid.UUID, attempt int, reason string) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// Queue holds pending meetings in FIFO order and guarantees at most one
// is processing at a time. The in-memory implementation is the default;
// the Redis implementation keeps pending and delayed entries across
// restarts.
type Queue interface {
	// Enqueue appends the entry and marks the meeting PENDING. It returns
	// the 1-based queue position. A persistence failure is returned to the
	// caller but the in-memory append still happened.
	Enqueue(ctx context.Context, e Entry) (int, error)

	// ProcessNext pops the head entry and runs it. No-op when something is
	// already processing or the queue is empty.
	ProcessNext(ctx context.Context)

	// Cancel removes a queued entry or stops a pending retry timer.
	// Returns common.ErrNotInQueue when the meeting is neither queued nor
	// waiting on a retry; a meeting that is actively processing cannot be
	// canceled.
	Cancel(ctx context.Context, meetingID uuid.UUID) error

	Stats() Stats

	// Start launches the worker: one immediate ProcessNext, then one per
	// tick until ctx is done or Close is called.
	Start(ctx context.Context)

	Close() error
}

// Options tune worker cadence and the retry schedule. Delays are
// injectable so tests do not wait minutes for backoff timers.
type Options struct {
	Tick       time.Duration
	RetryBase  time.Duration
	MaxRetries int

	// OnTerminalFailure runs after a meeting is marked FAILED for good,
	// e.g. to send the failure notification. Best-effort.
	OnTerminalFailure func(ctx context.Context, e Entry, reason string)
}

func (o Options) withDefaults() Options {
	if o.Tick <= 0 {
		o.Tick = 5 * time.Second
	}
	if o.RetryBase <= 0 {
		o.RetryBase = time.Minute
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	return o
}

// permanenter is implemented by stage errors that will never succeed on
// retry; the scheduler fails those immediately instead of burning
// attempts.
type permanenter interface {
	error
	Permanent() bool
}
