// Package queue defines the contract shared by every envelope backend.
package queue

import (
	"context"
	"github.com/RezaEskandarii/userfire/internal/state"
	"github.com/RezaEskandarii/userfire/types"
	"time"
)

// Enqueuer is the producer side of a JobQueue.
type Enqueuer interface {
	// Enqueue stores a new pending envelope and returns its id.
	// payload is serialized as JSON.
	Enqueue(ctx context.Context, category types.Category, name string, payload any) (string, error)
}

// JobQueue is implemented by the postgres, redis and memory backends.
type JobQueue interface {
	Enqueuer

	// Dequeue blocks until an envelope of category is available or ctx is done.
	// The returned envelope is in-flight, leased to the caller, and its
	// attempt counter has already been incremented.
	Dequeue(ctx context.Context, category types.Category) (*types.Envelope, error)

	// Ack marks the envelope completed. attempt is the lease token handed
	// out by Dequeue (Envelope.Attempt); a holder whose lease was reclaimed
	// gets ErrLeaseLost. Acking a terminal envelope is a no-op.
	Ack(ctx context.Context, id string, attempt int) error

	// Nack records a failed attempt and returns the resulting status:
	// failed-retryable while attempts remain, failed-terminal otherwise.
	// The lease token rules of Ack apply.
	Nack(ctx context.Context, id string, attempt int, cause error) (state.JobStatus, error)

	Close() error
}

// Inspector exposes operational views over a backend.
type Inspector interface {
	Stats(ctx context.Context, category types.Category) (types.QueueStats, error)
	DeadLetters(ctx context.Context, category types.Category, limit, offset int) ([]types.DeadLetter, int, error)
	// RecoverExpiredLeases returns in-flight envelopes whose lease has
	// expired to pending without touching their attempt counter.
	RecoverExpiredLeases(ctx context.Context) (int, error)
	PurgeCompleted(ctx context.Context, olderThan time.Time) (int, error)
}

type Backend interface {
	JobQueue
	Inspector
}
