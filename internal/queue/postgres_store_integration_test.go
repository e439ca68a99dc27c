package queue_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"

	"github.com/mentionflow/harness/internal/config"
	"github.com/mentionflow/harness/internal/queue"
)

const (
	testMaxAttempts   = 3
	testLeaseDuration = 10 * time.Minute
	testMaxAge        = 60 * time.Minute
)

func mentionPayload(t *testing.T, occurredAt time.Time) json.RawMessage {
	t.Helper()

	payload, err := json.Marshal(map[string]interface{}{
		"occurred_at": queue.FromAbsoluteTime(occurredAt),
		"text":        "@bot hello",
	})
	require.NoError(t, err)

	return payload
}

func newTestStore(t *testing.T, clock *testClock) (*queue.PostgresStore, *config.TestDatabase) {
	t.Helper()

	ctx := context.Background()
	testDB := config.SetupTestDatabase(ctx, t)

	t.Cleanup(func() {
		_ = testDB.Connection.Close()
		_ = testcontainers.TerminateContainer(testDB.Container)
	})

	store := queue.NewPostgresStore(testDB.Connection, clock)

	return store, testDB
}

// testClock is the exported-package-test analogue of the internal mockClock,
// since external test files in package queue_test cannot reach unexported
// types.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) advance(d time.Duration) { c.now = c.now.Add(d) }

// TestQueueStore_S1_HappyPath mirrors scenario S1: enqueue one event,
// processor succeeds on first attempt, final state is history with
// attempts=1, processed=true.
func TestQueueStore_S1_HappyPath(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	clock := &testClock{now: time.Now().UTC()}
	store, _ := newTestStore(t, clock)
	ctx := context.Background()

	require.NoError(t, store.Enqueue(ctx, "mention", mentionPayload(t, clock.now)))

	event, err := store.Claim(ctx, testMaxAttempts, testLeaseDuration)
	require.NoError(t, err)
	require.NotNil(t, event)
	require.Equal(t, 1, event.Attempts)
	require.Len(t, event.ClaimedAt, 1)

	require.NoError(t, store.Complete(ctx, event.ID, true))

	depth, err := store.Depth(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, depth)
}

// TestQueueStore_S2_TransientFailureRecovery mirrors scenario S2: the
// processor fails on the first claim, the lease expires, and the event is
// claimed again and completed successfully.
func TestQueueStore_S2_TransientFailureRecovery(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	clock := &testClock{now: time.Now().UTC()}
	store, _ := newTestStore(t, clock)
	ctx := context.Background()

	require.NoError(t, store.Enqueue(ctx, "mention", mentionPayload(t, clock.now)))

	first, err := store.Claim(ctx, testMaxAttempts, testLeaseDuration)
	require.NoError(t, err)
	require.NotNil(t, first)
	require.Equal(t, 1, first.Attempts)

	// Processor fails: do not complete. Advance past the lease so the row
	// becomes eligible again.
	clock.advance(testLeaseDuration + time.Second)

	second, err := store.Claim(ctx, testMaxAttempts, testLeaseDuration)
	require.NoError(t, err)
	require.NotNil(t, second)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 2, second.Attempts)
	require.Len(t, second.ClaimedAt, 2)

	require.NoError(t, store.Complete(ctx, second.ID, true))
}

// TestQueueStore_S3_PoisonPillExhaustion mirrors scenario S3: the processor
// always fails; after max_attempts claims, sweep archives the row with
// processed=false.
func TestQueueStore_S3_PoisonPillExhaustion(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	clock := &testClock{now: time.Now().UTC()}
	store, _ := newTestStore(t, clock)
	ctx := context.Background()

	require.NoError(t, store.Enqueue(ctx, "mention", mentionPayload(t, clock.now)))

	var last *queue.Event

	for i := 0; i < testMaxAttempts; i++ {
		event, err := store.Claim(ctx, testMaxAttempts, testLeaseDuration)
		require.NoError(t, err)
		require.NotNil(t, event)

		last = event

		clock.advance(testLeaseDuration + time.Second)
	}

	require.Equal(t, testMaxAttempts, last.Attempts)

	// Now at attempts == max_attempts, the row is no longer eligible for
	// claim (I4) — it must be swept instead.
	noMore, err := store.Claim(ctx, testMaxAttempts, testLeaseDuration)
	require.NoError(t, err)
	require.Nil(t, noMore)

	swept, err := store.Sweep(ctx, testMaxAttempts, testMaxAge)
	require.NoError(t, err)
	require.Equal(t, 1, swept)

	depth, err := store.Depth(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, depth)
}

// TestQueueStore_S4_ExpiryWithoutAttempts mirrors scenario S4: a row that
// was never claimed ages past max_age and is archived by sweep as
// processed=false.
func TestQueueStore_S4_ExpiryWithoutAttempts(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	clock := &testClock{now: time.Now().UTC()}
	store, _ := newTestStore(t, clock)
	ctx := context.Background()

	require.NoError(t, store.Enqueue(ctx, "mention", mentionPayload(t, clock.now)))

	clock.advance(testMaxAge + time.Minute)

	swept, err := store.Sweep(ctx, testMaxAttempts, testMaxAge)
	require.NoError(t, err)
	require.Equal(t, 1, swept)

	depth, err := store.Depth(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, depth)
}

// TestQueueStore_ClaimIsExclusive exercises invariant I1: concurrent claim
// attempts against a single eligible row never both succeed.
func TestQueueStore_ClaimIsExclusive(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	clock := &testClock{now: time.Now().UTC()}
	store, _ := newTestStore(t, clock)
	ctx := context.Background()

	require.NoError(t, store.Enqueue(ctx, "mention", mentionPayload(t, clock.now)))

	results := make(chan *queue.Event, 2)
	errs := make(chan error, 2)

	for i := 0; i < 2; i++ {
		go func() {
			event, err := store.Claim(ctx, testMaxAttempts, testLeaseDuration)
			results <- event
			errs <- err
		}()
	}

	var claimed int

	for i := 0; i < 2; i++ {
		require.NoError(t, <-errs)

		if event := <-results; event != nil {
			claimed++
		}
	}

	require.Equal(t, 1, claimed)
}
