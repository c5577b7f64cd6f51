package queue

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/haris936hk/EchoNote-sub001/internal/common"
)

func getTestRedisClient(t *testing.T) *redis.Client {
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Skipf("Skipping Redis queue test: invalid Redis URL: %v", err)
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Skipping Redis queue test: Redis not available: %v", err)
	}

	return client
}

// newTestRedisQueue builds a queue on per-test key names so concurrent
// test runs cannot see each other's entries.
func newTestRedisQueue(t *testing.T, client *redis.Client, runner Runner, store Store, opts Options) *RedisQueue {
	t.Helper()
	q := NewRedisQueue(client, runner, store, opts)
	suffix := uuid.New().String()[:8]
	q.listKey = "test:echonote:queue:" + suffix
	q.delayKey = "test:echonote:retry:" + suffix

	cleanup := func() {
		client.Del(context.Background(), q.listKey, q.delayKey)
	}
	cleanup()
	t.Cleanup(cleanup)
	t.Cleanup(func() { q.Close() })
	return q
}

func TestRedisQueue_EnqueueFIFO(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	client := getTestRedisClient(t)
	defer client.Close()

	runner := &fakeRunner{}
	q := newTestRedisQueue(t, client, runner, &fakeStore{}, testOpts())

	ctx := context.Background()
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	for i, id := range []uuid.UUID{a, b, c} {
		pos, err := q.Enqueue(ctx, Entry{MeetingID: id})
		if err != nil {
			t.Fatalf("Enqueue error: %v", err)
		}
		if pos != i+1 {
			t.Fatalf("expected position %d, got %d", i+1, pos)
		}
	}
	if q.Stats().QueueLength != 3 {
		t.Fatalf("expected 3 pending, got %d", q.Stats().QueueLength)
	}

	q.ProcessNext(ctx)
	q.ProcessNext(ctx)
	q.ProcessNext(ctx)

	got := runner.ranIDs()
	want := []uuid.UUID{a, b, c}
	if len(got) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("run %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	if q.Stats().QueueLength != 0 {
		t.Fatalf("expected drained queue")
	}
}

func TestRedisQueue_RetryRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	client := getTestRedisClient(t)
	defer client.Close()

	store := &fakeStore{}
	var calls int
	runner := &fakeRunner{}
	runner.fn = func(e Entry) error {
		calls++
		if calls == 1 {
			return errors.New("flaky downstream")
		}
		return nil
	}

	opts := testOpts()
	opts.RetryBase = time.Millisecond // due within the current second
	q := newTestRedisQueue(t, client, runner, store, opts)

	ctx := context.Background()
	id := uuid.New()
	q.Enqueue(ctx, Entry{MeetingID: id})
	q.ProcessNext(ctx) // fails, entry lands in the delay bucket

	if q.Stats().RetryingCount != 1 {
		t.Fatalf("expected 1 delayed entry, got %d", q.Stats().RetryingCount)
	}
	attempts := store.retryAttempts()
	if len(attempts) != 1 || attempts[0] != 1 {
		t.Fatalf("expected retry attempt 1 recorded, got %v", attempts)
	}

	// The delay score has second granularity; poll moveDue until the
	// entry is back on the pending list.
	waitFor(t, func() bool {
		q.moveDue(ctx)
		return q.Stats().QueueLength == 1
	})
	if q.Stats().RetryingCount != 0 {
		t.Fatalf("expected delay bucket emptied by moveDue")
	}

	q.ProcessNext(ctx)
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
	if len(store.failedReasons()) != 0 {
		t.Fatalf("meeting must not be failed after eventual success")
	}
}

func TestRedisQueue_CancelQueued(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	client := getTestRedisClient(t)
	defer client.Close()

	q := newTestRedisQueue(t, client, &fakeRunner{}, &fakeStore{}, testOpts())

	ctx := context.Background()
	id := uuid.New()
	q.Enqueue(ctx, Entry{MeetingID: id})

	if err := q.Cancel(ctx, id); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if q.Stats().QueueLength != 0 {
		t.Fatalf("expected entry removed from pending list")
	}
	if err := q.Cancel(ctx, id); !errors.Is(err, common.ErrNotInQueue) {
		t.Fatalf("expected ErrNotInQueue on second cancel, got %v", err)
	}
}

func TestRedisQueue_CancelDelayed(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	client := getTestRedisClient(t)
	defer client.Close()

	store := &fakeStore{}
	runner := &fakeRunner{fn: func(e Entry) error { return errors.New("boom") }}
	opts := testOpts()
	opts.RetryBase = time.Hour // keep the entry in the delay bucket
	q := newTestRedisQueue(t, client, runner, store, opts)

	ctx := context.Background()
	id := uuid.New()
	q.Enqueue(ctx, Entry{MeetingID: id})
	q.ProcessNext(ctx)

	if q.Stats().RetryingCount != 1 {
		t.Fatalf("expected delayed entry, got %+v", q.Stats())
	}
	if err := q.Cancel(ctx, id); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if q.Stats().RetryingCount != 0 {
		t.Fatalf("expected delay bucket emptied by cancel")
	}
	if err := q.Cancel(ctx, id); !errors.Is(err, common.ErrNotInQueue) {
		t.Fatalf("expected ErrNotInQueue, got %v", err)
	}
}

func TestRedisQueue_PermanentFailure(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	client := getTestRedisClient(t)
	defer client.Close()

	store := &fakeStore{}
	runner := &fakeRunner{fn: func(e Entry) error {
		return &permErr{msg: "no speech detected"}
	}}
	q := newTestRedisQueue(t, client, runner, store, testOpts())

	ctx := context.Background()
	q.Enqueue(ctx, Entry{MeetingID: uuid.New()})
	q.ProcessNext(ctx)

	if q.Stats().RetryingCount != 0 {
		t.Fatalf("permanent error must not schedule retries")
	}
	failed := store.failedReasons()
	if len(failed) != 1 || failed[0] != "no speech detected" {
		t.Fatalf("expected immediate failure, got %v", failed)
	}
}
