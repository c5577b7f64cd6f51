package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/haris936hk/EchoNote-sub001/internal/common"
)

const (
	defaultListKey  = "echonote:queue"
	defaultDelayKey = "echonote:retry"
)

// RedisQueue keeps pending entries in a Redis list and retry-delayed
// entries in a sorted set scored by their due time. Pending and delayed
// entries survive a restart; the single in-flight slot does not, because
// processing is still a single-process concern.
type RedisQueue struct {
	client *redis.Client
	runner Runner
	store  Store
	opts   Options

	listKey  string
	delayKey string

	mu         sync.Mutex
	processing *Entry

	closing   chan struct{}
	closeOnce sync.Once
}

func NewRedisQueue(client *redis.Client, runner Runner, store Store, opts Options) *RedisQueue {
	return &RedisQueue{
		client:   client,
		runner:   runner,
		store:    store,
		opts:     opts.withDefaults(),
		listKey:  defaultListKey,
		delayKey: defaultDelayKey,
		closing:  make(chan struct{}),
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, e Entry) (int, error) {
	if e.EnqueuedAt.IsZero() {
		e.EnqueuedAt = time.Now()
	}

	data, err := json.Marshal(e)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal queue entry: %w", err)
	}

	length, err := q.client.RPush(ctx, q.listKey, data).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to push queue entry: %w", err)
	}
	position := int(length)

	if err := q.store.MarkQueued(ctx, e.MeetingID); err != nil {
		slog.Error("failed to mark meeting queued", "meeting_id", e.MeetingID, "error", err)
		return position, err
	}

	slog.Info("meeting enqueued", "meeting_id", e.MeetingID, "position", position, "attempt", e.Attempt)
	return position, nil
}

func (q *RedisQueue) ProcessNext(ctx context.Context) {
	q.mu.Lock()
	if q.processing != nil {
		q.mu.Unlock()
		return
	}

	data, err := q.client.LPop(ctx, q.listKey).Result()
	if err != nil {
		q.mu.Unlock()
		if !errors.Is(err, redis.Nil) {
			slog.Error("failed to pop queue entry", "error", err)
		}
		return
	}

	var e Entry
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		q.mu.Unlock()
		slog.Error("dropping malformed queue entry", "error", err)
		return
	}
	q.processing = &e
	q.mu.Unlock()

	slog.Info("processing meeting", "meeting_id", e.MeetingID, "attempt", e.Attempt)
	runErr := q.runner.Run(ctx, e)

	q.mu.Lock()
	q.processing = nil
	q.mu.Unlock()

	if runErr == nil {
		slog.Info("meeting processed", "meeting_id", e.MeetingID, "attempt", e.Attempt)
		return
	}
	q.scheduleRetry(ctx, e, runErr)
}

func (q *RedisQueue) scheduleRetry(ctx context.Context, e Entry, runErr error) {
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

	data, err := json.Marshal(next)
	if err != nil {
		slog.Error("failed to marshal retry entry", "meeting_id", e.MeetingID, "error", err)
		return
	}

	due := time.Now().Add(delay)
	if err := q.client.ZAdd(ctx, q.delayKey, redis.Z{
		Score:  float64(due.Unix()),
		Member: string(data),
	}).Err(); err != nil {
		slog.Error("failed to schedule retry", "meeting_id", e.MeetingID, "error", err)
		return
	}

	slog.Warn("meeting retry scheduled",
		"meeting_id", e.MeetingID,
		"attempt", next.Attempt,
		"delay", delay,
		"reason", reason)
}

// moveDue shifts retry entries whose backoff elapsed back to the tail of
// the pending list.
func (q *RedisQueue) moveDue(ctx context.Context) {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	members, err := q.client.ZRangeByScore(ctx, q.delayKey, &redis.ZRangeBy{
		Min: "-inf", Max: now, Offset: 0, Count: 100,
	}).Result()
	if err != nil || len(members) == 0 {
		if err != nil && !errors.Is(err, redis.Nil) {
			slog.Error("failed to read due retries", "error", err)
		}
		return
	}

	pipe := q.client.TxPipeline()
	for _, m := range members {
		pipe.RPush(ctx, q.listKey, m)
		pipe.ZRem(ctx, q.delayKey, m)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Error("failed to move due retries", "error", err)
	}
}

func (q *RedisQueue) Cancel(ctx context.Context, meetingID uuid.UUID) error {
	if removed, err := q.removeByMeetingID(ctx, q.listKey, meetingID, false); err != nil {
		return err
	} else if removed {
		slog.Info("meeting removed from queue", "meeting_id", meetingID)
		return nil
	}

	if removed, err := q.removeByMeetingID(ctx, q.delayKey, meetingID, true); err != nil {
		return err
	} else if removed {
		slog.Info("meeting retry canceled", "meeting_id", meetingID)
		return nil
	}

	return common.ErrNotInQueue
}

func (q *RedisQueue) removeByMeetingID(ctx context.Context, key string, meetingID uuid.UUID, sorted bool) (bool, error) {
	var members []string
	var err error
	if sorted {
		members, err = q.client.ZRange(ctx, key, 0, -1).Result()
	} else {
		members, err = q.client.LRange(ctx, key, 0, -1).Result()
	}
	if err != nil {
		return false, fmt.Errorf("failed to scan %s: %w", key, err)
	}

	for _, m := range members {
		var e Entry
		if err := json.Unmarshal([]byte(m), &e); err != nil {
			continue
		}
		if e.MeetingID != meetingID {
			continue
		}
		if sorted {
			err = q.client.ZRem(ctx, key, m).Err()
		} else {
			err = q.client.LRem(ctx, key, 1, m).Err()
		}
		if err != nil {
			return false, fmt.Errorf("failed to remove entry: %w", err)
		}
		return true, nil
	}
	return false, nil
}

func (q *RedisQueue) Stats() Stats {
	ctx := context.Background()
	length, err := q.client.LLen(ctx, q.listKey).Result()
	if err != nil {
		slog.Error("failed to read queue length", "error", err)
	}
	retrying, err := q.client.ZCard(ctx, q.delayKey).Result()
	if err != nil {
		slog.Error("failed to read retry count", "error", err)
	}

	q.mu.Lock()
	processing := q.processing != nil
	q.mu.Unlock()

	return Stats{
		QueueLength:   int(length),
		Processing:    processing,
		RetryingCount: int(retrying),
	}
}

func (q *RedisQueue) Start(ctx context.Context) {
	go func() {
		q.moveDue(ctx)
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
				q.moveDue(ctx)
				q.ProcessNext(ctx)
			}
		}
	}()
	slog.Info("redis queue worker started", "tick", q.opts.Tick, "max_retries", q.opts.MaxRetries)
}

func (q *RedisQueue) Close() error {
	q.closeOnce.Do(func() {
		close(q.closing)
	})
	return nil
}
