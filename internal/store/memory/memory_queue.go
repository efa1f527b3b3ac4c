package memory

import (
	"context"
	"github.com/RezaEskandarii/userfire/internal/queue"
	"github.com/RezaEskandarii/userfire/internal/state"
	"github.com/RezaEskandarii/userfire/types"
	"github.com/google/uuid"
	"sort"
	"sync"
	"time"
)

// Queue is an in-process backend. It is used by tests and single-binary
// deployments where durability across restarts is not needed.
type Queue struct {
	cfg queue.Config

	mu     sync.Mutex
	jobs   map[string]*types.Envelope
	order  map[types.Category][]string
	dead   map[types.Category][]types.DeadLetter
	wake   chan struct{}
	closed bool
}

func NewQueue(cfg queue.Config) *Queue {
	return &Queue{
		cfg:   cfg.WithDefaults(),
		jobs:  make(map[string]*types.Envelope),
		order: make(map[types.Category][]string),
		dead:  make(map[types.Category][]types.DeadLetter),
		wake:  make(chan struct{}),
	}
}

// broadcast wakes every blocked Dequeue. Callers hold q.mu.
func (q *Queue) broadcast() {
	close(q.wake)
	q.wake = make(chan struct{})
}

func (q *Queue) Enqueue(ctx context.Context, category types.Category, name string, payload any) (string, error) {
	if err := queue.ValidateEnqueue(category, name); err != nil {
		return "", err
	}
	raw, err := queue.EncodePayload(payload)
	if err != nil {
		return "", err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return "", queue.Unavailable("enqueue", queue.ErrClosed)
	}

	now := time.Now().UTC()
	env := &types.Envelope{
		ID:          uuid.NewString(),
		Category:    category,
		Name:        name,
		Payload:     raw,
		Status:      state.StatusPending,
		EnqueuedAt:  now,
		AvailableAt: now,
	}
	q.jobs[env.ID] = env
	q.order[category] = append(q.order[category], env.ID)
	q.broadcast()
	return env.ID, nil
}

func (q *Queue) Dequeue(ctx context.Context, category types.Category) (*types.Envelope, error) {
	if err := queue.ValidateCategory(category); err != nil {
		return nil, err
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, queue.Unavailable("dequeue", queue.ErrClosed)
		}
		now := time.Now().UTC()
		q.reclaimLocked(category, now)
		if env := q.claimLocked(category, now); env != nil {
			q.mu.Unlock()
			return env, nil
		}
		wait := q.nextWakeLocked(category, now)
		wake := q.wake
		q.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// claimLocked hands out the first available envelope in queue order.
func (q *Queue) claimLocked(category types.Category, now time.Time) *types.Envelope {
	ids := q.order[category]
	for i, id := range ids {
		env := q.jobs[id]
		if env == nil || !env.Status.Claimable() {
			continue
		}
		if env.AvailableAt.After(now) {
			continue
		}
		q.order[category] = append(ids[:i:i], ids[i+1:]...)

		lease := now.Add(q.cfg.LeaseTimeout)
		env.Status = state.StatusInFlight
		env.Attempt++
		env.LeaseExpiresAt = &lease
		return copyEnvelope(env)
	}
	return nil
}

// reclaimLocked returns expired leases of category to the head of the queue.
func (q *Queue) reclaimLocked(category types.Category, now time.Time) int {
	var expired []*types.Envelope
	for _, env := range q.jobs {
		if env.Category != category || env.Status != state.StatusInFlight {
			continue
		}
		if env.LeaseExpiresAt != nil && !env.LeaseExpiresAt.After(now) {
			expired = append(expired, env)
		}
	}
	if len(expired) == 0 {
		return 0
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].EnqueuedAt.Before(expired[j].EnqueuedAt)
	})
	head := make([]string, 0, len(expired)+len(q.order[category]))
	for _, env := range expired {
		env.Status = state.StatusPending
		env.LeaseExpiresAt = nil
		env.AvailableAt = now
		head = append(head, env.ID)
	}
	q.order[category] = append(head, q.order[category]...)
	return len(expired)
}

// nextWakeLocked is how long Dequeue may sleep before something in category
// could become claimable without a broadcast.
func (q *Queue) nextWakeLocked(category types.Category, now time.Time) time.Duration {
	wait := q.cfg.PollInterval
	for _, env := range q.jobs {
		if env.Category != category {
			continue
		}
		var at time.Time
		switch {
		case env.Status.Claimable():
			at = env.AvailableAt
		case env.Status == state.StatusInFlight && env.LeaseExpiresAt != nil:
			at = *env.LeaseExpiresAt
		default:
			continue
		}
		if d := at.Sub(now); d < wait {
			wait = d
		}
	}
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	return wait
}

func (q *Queue) Ack(ctx context.Context, id string, attempt int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	env, ok := q.jobs[id]
	if !ok {
		return queue.ErrJobNotFound
	}
	if env.Status.IsTerminal() {
		return nil
	}
	if err := queue.CheckLease(env.Status, env.Attempt, attempt); err != nil {
		return err
	}
	now := time.Now().UTC()
	env.Status = state.StatusCompleted
	env.LeaseExpiresAt = nil
	env.CompletedAt = &now
	q.removeFromOrderLocked(env)
	return nil
}

func (q *Queue) Nack(ctx context.Context, id string, attempt int, cause error) (state.JobStatus, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	env, ok := q.jobs[id]
	if !ok {
		return "", queue.ErrJobNotFound
	}
	if env.Status.IsTerminal() {
		return env.Status, nil
	}
	if err := queue.CheckLease(env.Status, env.Attempt, attempt); err != nil {
		return env.Status, err
	}

	now := time.Now().UTC()
	msg := queue.TruncateError(cause)
	env.LastError = &msg
	env.LeaseExpiresAt = nil

	if q.cfg.Retryable(env.Category, env.Attempt) {
		env.Status = state.StatusFailedRetryable
		env.AvailableAt = now.Add(q.cfg.Backoff(env.Attempt))
		q.order[env.Category] = append(q.order[env.Category], env.ID)
		q.broadcast()
		return env.Status, nil
	}

	env.Status = state.StatusFailedTerminal
	q.dead[env.Category] = append(q.dead[env.Category], types.DeadLetter{
		ID:         env.ID,
		Category:   env.Category,
		Name:       env.Name,
		Payload:    env.Payload,
		Attempts:   env.Attempt,
		LastError:  msg,
		EnqueuedAt: env.EnqueuedAt,
		FailedAt:   now,
	})
	return env.Status, nil
}

func (q *Queue) removeFromOrderLocked(env *types.Envelope) {
	ids := q.order[env.Category]
	for i, id := range ids {
		if id == env.ID {
			q.order[env.Category] = append(ids[:i:i], ids[i+1:]...)
			return
		}
	}
}

func (q *Queue) Stats(ctx context.Context, category types.Category) (types.QueueStats, error) {
	if err := queue.ValidateCategory(category); err != nil {
		return types.QueueStats{}, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := types.QueueStats{Category: category}
	for _, env := range q.jobs {
		if env.Category != category {
			continue
		}
		switch env.Status {
		case state.StatusPending:
			stats.Pending++
		case state.StatusInFlight:
			stats.InFlight++
		case state.StatusFailedRetryable:
			stats.Retrying++
		case state.StatusCompleted:
			stats.Completed++
		}
	}
	stats.Dead = int64(len(q.dead[category]))
	return stats, nil
}

func (q *Queue) DeadLetters(ctx context.Context, category types.Category, limit, offset int) ([]types.DeadLetter, int, error) {
	if err := queue.ValidateCategory(category); err != nil {
		return nil, 0, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	all := q.dead[category]
	total := len(all)
	if offset >= total {
		return []types.DeadLetter{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]types.DeadLetter, end-offset)
	copy(out, all[offset:end])
	return out, total, nil
}

func (q *Queue) RecoverExpiredLeases(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now().UTC()
	total := 0
	for _, category := range types.AllCategories {
		total += q.reclaimLocked(category, now)
	}
	if total > 0 {
		q.broadcast()
	}
	return total, nil
}

func (q *Queue) PurgeCompleted(ctx context.Context, olderThan time.Time) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	purged := 0
	for id, env := range q.jobs {
		if env.Status == state.StatusCompleted && env.CompletedAt != nil && env.CompletedAt.Before(olderThan) {
			delete(q.jobs, id)
			purged++
		}
	}
	return purged, nil
}

func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		q.broadcast()
	}
	return nil
}

func copyEnvelope(env *types.Envelope) *types.Envelope {
	out := *env
	out.Payload = append([]byte(nil), env.Payload...)
	if env.LeaseExpiresAt != nil {
		t := *env.LeaseExpiresAt
		out.LeaseExpiresAt = &t
	}
	if env.LastError != nil {
		s := *env.LastError
		out.LastError = &s
	}
	return &out
}

var _ queue.Backend = (*Queue)(nil)
