// Package queuetest holds behavioural tests every queue.Backend must pass.
package queuetest

import (
	"context"
	"errors"
	"github.com/RezaEskandarii/userfire/internal/queue"
	"github.com/RezaEskandarii/userfire/internal/state"
	"github.com/RezaEskandarii/userfire/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync"
	"testing"
	"time"
)

// Factory returns an empty backend configured with cfg.
type Factory func(t *testing.T, cfg queue.Config) queue.Backend

// TestConfig is tuned for fast tests: short backoff and lease.
func TestConfig() queue.Config {
	return queue.Config{
		RetryLimit:   3,
		BackoffBase:  10 * time.Millisecond,
		BackoffMax:   40 * time.Millisecond,
		LeaseTimeout: 200 * time.Millisecond,
		PollInterval: 20 * time.Millisecond,
	}
}

func Run(t *testing.T, factory Factory) {
	t.Run("FIFO", func(t *testing.T) { testFIFO(t, factory) })
	t.Run("EnqueueValidation", func(t *testing.T) { testEnqueueValidation(t, factory) })
	t.Run("CategoryIsolation", func(t *testing.T) { testCategoryIsolation(t, factory) })
	t.Run("DequeueBlocksUntilEnqueue", func(t *testing.T) { testDequeueBlocks(t, factory) })
	t.Run("DequeueHonoursCancellation", func(t *testing.T) { testDequeueCancel(t, factory) })
	t.Run("AckIsIdempotent", func(t *testing.T) { testAckIdempotent(t, factory) })
	t.Run("AckUnknown", func(t *testing.T) { testAckUnknown(t, factory) })
	t.Run("RetryThenDeadLetter", func(t *testing.T) { testRetryThenDeadLetter(t, factory) })
	t.Run("ExclusiveDelivery", func(t *testing.T) { testExclusiveDelivery(t, factory) })
	t.Run("ExpiredLeaseRedelivers", func(t *testing.T) { testExpiredLease(t, factory) })
	t.Run("PurgeCompleted", func(t *testing.T) { testPurgeCompleted(t, factory) })
	t.Run("StaleLeaseCannotSettle", func(t *testing.T) { testStaleLease(t, factory) })
	t.Run("RetryHonoursBackoff", func(t *testing.T) { testRetryBackoff(t, factory) })
}

func dequeue(t *testing.T, q queue.JobQueue, category types.Category, timeout time.Duration) *types.Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	env, err := q.Dequeue(ctx, category)
	require.NoError(t, err)
	require.NotNil(t, env)
	return env
}

func testFIFO(t *testing.T, factory Factory) {
	q := factory(t, TestConfig())
	ctx := context.Background()

	var ids []string
	for _, name := range []string{"first", "second", "third"} {
		id, err := q.Enqueue(ctx, types.CategoryEmail, name, map[string]string{"job": name})
		require.NoError(t, err)
		require.NotEmpty(t, id)
		ids = append(ids, id)
	}

	for i, name := range []string{"first", "second", "third"} {
		env := dequeue(t, q, types.CategoryEmail, time.Second)
		assert.Equal(t, ids[i], env.ID)
		assert.Equal(t, name, env.Name)
		assert.Equal(t, types.CategoryEmail, env.Category)
		assert.Equal(t, state.StatusInFlight, env.Status)
		assert.Equal(t, 1, env.Attempt)
		assert.JSONEq(t, `{"job":"`+name+`"}`, string(env.Payload))
		require.NotNil(t, env.LeaseExpiresAt)
		require.NoError(t, q.Ack(ctx, env.ID, env.Attempt))
	}
}

func testEnqueueValidation(t *testing.T, factory Factory) {
	q := factory(t, TestConfig())
	ctx := context.Background()

	_, err := q.Enqueue(ctx, types.Category("sms"), "welcome", nil)
	assert.ErrorIs(t, err, queue.ErrUnknownCategory)

	_, err = q.Enqueue(ctx, types.CategoryEmail, "", nil)
	assert.ErrorIs(t, err, queue.ErrEmptyJobName)
}

func testCategoryIsolation(t *testing.T, factory Factory) {
	q := factory(t, TestConfig())
	ctx := context.Background()

	_, err := q.Enqueue(ctx, types.CategoryEmail, "welcome", nil)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 80*time.Millisecond)
	defer cancel()
	env, err := q.Dequeue(short, types.CategoryAudit)
	assert.Nil(t, env)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	env = dequeue(t, q, types.CategoryEmail, time.Second)
	assert.Equal(t, "welcome", env.Name)
}

func testDequeueBlocks(t *testing.T, factory Factory) {
	q := factory(t, TestConfig())
	ctx := context.Background()

	got := make(chan *types.Envelope, 1)
	go func() {
		wctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		env, err := q.Dequeue(wctx, types.CategoryReport)
		if err == nil {
			got <- env
		}
		close(got)
	}()

	time.Sleep(50 * time.Millisecond)
	id, err := q.Enqueue(ctx, types.CategoryReport, types.JobDeletionReport, map[string]int{"userId": 1})
	require.NoError(t, err)

	select {
	case env, ok := <-got:
		require.True(t, ok, "dequeue returned without an envelope")
		assert.Equal(t, id, env.ID)
	case <-time.After(4 * time.Second):
		t.Fatal("blocked dequeue never returned")
	}
}

func testDequeueCancel(t *testing.T, factory Factory) {
	q := factory(t, TestConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		env, err := q.Dequeue(ctx, types.CategoryAudit)
		if env != nil {
			err = errors.New("unexpected envelope")
		}
		done <- err
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("dequeue ignored cancellation")
	}
}

func testAckIdempotent(t *testing.T, factory Factory) {
	q := factory(t, TestConfig())
	ctx := context.Background()

	_, err := q.Enqueue(ctx, types.CategoryAudit, types.JobAuditLog, nil)
	require.NoError(t, err)
	env := dequeue(t, q, types.CategoryAudit, time.Second)

	require.NoError(t, q.Ack(ctx, env.ID, env.Attempt))
	require.NoError(t, q.Ack(ctx, env.ID, env.Attempt))

	stats, err := q.Stats(ctx, types.CategoryAudit)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Completed)
	assert.EqualValues(t, 0, stats.InFlight)
	assert.EqualValues(t, 0, stats.Pending)

	status, err := q.Nack(ctx, env.ID, env.Attempt, errors.New("late failure"))
	require.NoError(t, err)
	assert.Equal(t, state.StatusCompleted, status)
}

func testAckUnknown(t *testing.T, factory Factory) {
	q := factory(t, TestConfig())
	err := q.Ack(context.Background(), "00000000-0000-0000-0000-000000000000", 1)
	assert.ErrorIs(t, err, queue.ErrJobNotFound)
}

func testRetryThenDeadLetter(t *testing.T, factory Factory) {
	cfg := TestConfig()
	q := factory(t, cfg)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, types.CategoryEmail, types.JobWelcomeEmail, map[string]string{"email": "a@x"})
	require.NoError(t, err)

	for attempt := 1; attempt <= cfg.RetryLimit; attempt++ {
		env := dequeue(t, q, types.CategoryEmail, 2*time.Second)
		require.Equal(t, id, env.ID)
		require.Equal(t, attempt, env.Attempt)

		status, err := q.Nack(ctx, env.ID, env.Attempt, errors.New("smtp timeout"))
		require.NoError(t, err)
		if attempt < cfg.RetryLimit {
			assert.Equal(t, state.StatusFailedRetryable, status)
		} else {
			assert.Equal(t, state.StatusFailedTerminal, status)
		}
	}

	short, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
	defer cancel()
	env, err := q.Dequeue(short, types.CategoryEmail)
	assert.Nil(t, env, "dead-lettered envelope must not be redelivered")
	assert.Error(t, err)

	letters, total, err := q.DeadLetters(ctx, types.CategoryEmail, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, letters, 1)
	assert.Equal(t, id, letters[0].ID)
	assert.Equal(t, cfg.RetryLimit, letters[0].Attempts)
	assert.Equal(t, "smtp timeout", letters[0].LastError)
	assert.JSONEq(t, `{"email":"a@x"}`, string(letters[0].Payload))

	stats, err := q.Stats(ctx, types.CategoryEmail)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Dead)
}

func testExclusiveDelivery(t *testing.T, factory Factory) {
	q := factory(t, TestConfig())
	ctx := context.Background()

	const jobs = 30
	for i := 0; i < jobs; i++ {
		_, err := q.Enqueue(ctx, types.CategoryAudit, types.JobAuditLog, map[string]int{"n": i})
		require.NoError(t, err)
	}

	var (
		mu   sync.Mutex
		seen = make(map[string]int)
		wg   sync.WaitGroup
	)
	for w := 0; w < 5; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				wctx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
				env, err := q.Dequeue(wctx, types.CategoryAudit)
				cancel()
				if err != nil {
					return
				}
				mu.Lock()
				seen[env.ID]++
				mu.Unlock()
				_ = q.Ack(ctx, env.ID, env.Attempt)
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, jobs)
	for id, n := range seen {
		assert.Equal(t, 1, n, "envelope %s delivered %d times", id, n)
	}
}

func testExpiredLease(t *testing.T, factory Factory) {
	cfg := TestConfig()
	cfg.LeaseTimeout = 50 * time.Millisecond
	q := factory(t, cfg)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, types.CategoryReport, types.JobDeletionReport, nil)
	require.NoError(t, err)

	first := dequeue(t, q, types.CategoryReport, time.Second)
	require.Equal(t, 1, first.Attempt)

	time.Sleep(120 * time.Millisecond)
	recovered, err := q.RecoverExpiredLeases(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	stats, err := q.Stats(ctx, types.CategoryReport)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Pending)

	second := dequeue(t, q, types.CategoryReport, time.Second)
	assert.Equal(t, id, second.ID)
	assert.Equal(t, 2, second.Attempt)
}

func testPurgeCompleted(t *testing.T, factory Factory) {
	q := factory(t, TestConfig())
	ctx := context.Background()

	_, err := q.Enqueue(ctx, types.CategoryAudit, types.JobAuditLog, nil)
	require.NoError(t, err)
	env := dequeue(t, q, types.CategoryAudit, time.Second)
	require.NoError(t, q.Ack(ctx, env.ID, env.Attempt))

	n, err := q.PurgeCompleted(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = q.PurgeCompleted(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.ErrorIs(t, q.Ack(ctx, env.ID, env.Attempt), queue.ErrJobNotFound)
}

func testStaleLease(t *testing.T, factory Factory) {
	cfg := TestConfig()
	cfg.LeaseTimeout = 100 * time.Millisecond
	q := factory(t, cfg)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, types.CategoryEmail, types.JobWelcomeEmail, nil)
	require.NoError(t, err)

	first := dequeue(t, q, types.CategoryEmail, time.Second)
	require.Equal(t, 1, first.Attempt)

	time.Sleep(150 * time.Millisecond)
	_, err = q.RecoverExpiredLeases(ctx)
	require.NoError(t, err)

	second := dequeue(t, q, types.CategoryEmail, time.Second)
	require.Equal(t, id, second.ID)
	require.Equal(t, 2, second.Attempt)

	status, err := q.Nack(ctx, first.ID, first.Attempt, errors.New("smtp timeout"))
	assert.ErrorIs(t, err, queue.ErrLeaseLost)
	assert.Equal(t, state.StatusInFlight, status)
	assert.ErrorIs(t, q.Ack(ctx, first.ID, first.Attempt), queue.ErrLeaseLost)

	stats, err := q.Stats(ctx, types.CategoryEmail)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.InFlight)
	assert.EqualValues(t, 0, stats.Pending)
	assert.EqualValues(t, 0, stats.Retrying)

	require.NoError(t, q.Ack(ctx, second.ID, second.Attempt))
	require.NoError(t, q.Ack(ctx, first.ID, first.Attempt), "acking a completed envelope stays a no-op")

	stats, err = q.Stats(ctx, types.CategoryEmail)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Completed)
	assert.EqualValues(t, 0, stats.InFlight)
}

func testRetryBackoff(t *testing.T, factory Factory) {
	cfg := TestConfig()
	cfg.BackoffBase = 100 * time.Millisecond
	cfg.BackoffMax = time.Second
	q := factory(t, cfg)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, types.CategoryAudit, types.JobAuditLog, nil)
	require.NoError(t, err)
	env := dequeue(t, q, types.CategoryAudit, time.Second)
	require.Equal(t, 1, env.Attempt)

	nackedAt := time.Now()
	status, err := q.Nack(ctx, env.ID, env.Attempt, errors.New("db down"))
	require.NoError(t, err)
	require.Equal(t, state.StatusFailedRetryable, status)

	short, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
	defer cancel()
	early, err := q.Dequeue(short, types.CategoryAudit)
	assert.Nil(t, early, "envelope redelivered inside its backoff window")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	again := dequeue(t, q, types.CategoryAudit, 3*time.Second)
	assert.Equal(t, id, again.ID)
	assert.Equal(t, 2, again.Attempt)
	assert.GreaterOrEqual(t, time.Since(nackedAt), cfg.Backoff(1))
}
