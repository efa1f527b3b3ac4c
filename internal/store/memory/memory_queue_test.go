package memory

import (
	"context"
	"errors"
	"github.com/RezaEskandarii/userfire/custom_errors"
	"github.com/RezaEskandarii/userfire/internal/queue"
	"github.com/RezaEskandarii/userfire/internal/queue/queuetest"
	"github.com/RezaEskandarii/userfire/internal/state"
	"github.com/RezaEskandarii/userfire/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestQueue_Conformance(t *testing.T) {
	queuetest.Run(t, func(t *testing.T, cfg queue.Config) queue.Backend {
		q := NewQueue(cfg)
		t.Cleanup(func() { _ = q.Close() })
		return q
	})
}

func TestQueue_RetriedEnvelopeGoesToTail(t *testing.T) {
	cfg := queuetest.TestConfig()
	cfg.BackoffBase = time.Millisecond
	cfg.BackoffMax = time.Millisecond
	q := NewQueue(cfg)
	ctx := context.Background()

	first, err := q.Enqueue(ctx, types.CategoryAudit, "a", nil)
	require.NoError(t, err)
	second, err := q.Enqueue(ctx, types.CategoryAudit, "b", nil)
	require.NoError(t, err)

	env, err := q.Dequeue(ctx, types.CategoryAudit)
	require.NoError(t, err)
	require.Equal(t, first, env.ID)
	_, err = q.Nack(ctx, env.ID, env.Attempt, errors.New("boom"))
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	env, err = q.Dequeue(ctx, types.CategoryAudit)
	require.NoError(t, err)
	assert.Equal(t, second, env.ID)

	env, err = q.Dequeue(ctx, types.CategoryAudit)
	require.NoError(t, err)
	assert.Equal(t, first, env.ID)
	assert.Equal(t, 2, env.Attempt)
	require.NotNil(t, env.LastError)
	assert.Equal(t, "boom", *env.LastError)
}

func TestQueue_NackRequiresLease(t *testing.T) {
	q := NewQueue(queuetest.TestConfig())
	ctx := context.Background()

	id, err := q.Enqueue(ctx, types.CategoryEmail, "welcome", nil)
	require.NoError(t, err)

	status, err := q.Nack(ctx, id, 0, errors.New("boom"))
	assert.ErrorIs(t, err, queue.ErrNotInFlight)
	assert.Equal(t, state.StatusPending, status)
	assert.ErrorIs(t, q.Ack(ctx, id, 0), queue.ErrNotInFlight)

	_, err = q.Nack(ctx, "missing", 1, errors.New("boom"))
	assert.ErrorIs(t, err, queue.ErrJobNotFound)
}

func TestQueue_StaleHolderCannotRequeue(t *testing.T) {
	cfg := queuetest.TestConfig()
	cfg.LeaseTimeout = 30 * time.Millisecond
	q := NewQueue(cfg)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, types.CategoryEmail, "welcome", nil)
	require.NoError(t, err)

	a, err := q.Dequeue(ctx, types.CategoryEmail)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	_, err = q.RecoverExpiredLeases(ctx)
	require.NoError(t, err)
	b, err := q.Dequeue(ctx, types.CategoryEmail)
	require.NoError(t, err)
	require.Equal(t, 2, b.Attempt)

	_, err = q.Nack(ctx, a.ID, a.Attempt, errors.New("late"))
	assert.ErrorIs(t, err, queue.ErrLeaseLost)

	stats, err := q.Stats(ctx, types.CategoryEmail)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.InFlight)
	assert.EqualValues(t, 0, stats.Retrying)

	status, err := q.Nack(ctx, b.ID, b.Attempt, errors.New("smtp down"))
	require.NoError(t, err)
	assert.Equal(t, state.StatusFailedRetryable, status)
}

func TestQueue_PerCategoryRetryLimit(t *testing.T) {
	cfg := queuetest.TestConfig()
	cfg.CategoryRetryLimits = map[types.Category]int{types.CategoryReport: 1}
	q := NewQueue(cfg)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, types.CategoryReport, types.JobDeletionReport, nil)
	require.NoError(t, err)
	env, err := q.Dequeue(ctx, types.CategoryReport)
	require.NoError(t, err)

	status, err := q.Nack(ctx, env.ID, env.Attempt, errors.New("bucket missing"))
	require.NoError(t, err)
	assert.Equal(t, state.StatusFailedTerminal, status)
}

func TestQueue_Closed(t *testing.T) {
	q := NewQueue(queuetest.TestConfig())
	require.NoError(t, q.Close())

	_, err := q.Enqueue(context.Background(), types.CategoryEmail, "welcome", nil)
	assert.True(t, custom_errors.Is(err, custom_errors.KindQueueUnavailable))

	_, err = q.Dequeue(context.Background(), types.CategoryEmail)
	assert.ErrorIs(t, err, queue.ErrClosed)
}

func TestQueue_DeadLettersPagination(t *testing.T) {
	cfg := queuetest.TestConfig()
	cfg.RetryLimit = 1
	q := NewQueue(cfg)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := q.Enqueue(ctx, types.CategoryAudit, types.JobAuditLog, nil)
		require.NoError(t, err)
		env, err := q.Dequeue(ctx, types.CategoryAudit)
		require.NoError(t, err)
		_, err = q.Nack(ctx, env.ID, env.Attempt, errors.New("db down"))
		require.NoError(t, err)
	}

	page, total, err := q.DeadLetters(ctx, types.CategoryAudit, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, page, 1)

	page, _, err = q.DeadLetters(ctx, types.CategoryAudit, 2, 5)
	require.NoError(t, err)
	assert.Empty(t, page)
}
