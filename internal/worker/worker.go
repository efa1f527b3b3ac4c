// Package worker drives a single category: it dequeues envelopes, invokes the
// bound processor and records the outcome back on the queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"github.com/RezaEskandarii/userfire/custom_errors"
	"github.com/RezaEskandarii/userfire/internal/metrics"
	"github.com/RezaEskandarii/userfire/internal/processor"
	"github.com/RezaEskandarii/userfire/internal/queue"
	"github.com/RezaEskandarii/userfire/internal/state"
	"github.com/RezaEskandarii/userfire/pkg/logger"
	"github.com/RezaEskandarii/userfire/types"
	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/semaphore"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultReconnectInitial = 500 * time.Millisecond
	DefaultReconnectMax     = 30 * time.Second
)

// Observer is notified after every processed envelope.
type Observer func(ctx context.Context, outcome types.Outcome)

type Worker struct {
	queue       queue.JobQueue
	category    types.Category
	process     processor.Processor
	concurrency int
	observers   []Observer
	log         *slog.Logger
	reconnect   *backoff.ExponentialBackOff
}

type Option func(*Worker)

func WithConcurrency(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

func WithObserver(o Observer) Option {
	return func(w *Worker) {
		if o != nil {
			w.observers = append(w.observers, o)
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(w *Worker) {
		if log != nil {
			w.log = log
		}
	}
}

// WithReconnectBackoff bounds the wait between failed dequeue calls.
func WithReconnectBackoff(initial, maxDelay time.Duration) Option {
	return func(w *Worker) {
		w.reconnect = newReconnectBackoff(initial, maxDelay)
	}
}

func newReconnectBackoff(initial, maxDelay time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = maxDelay
	b.Reset()
	return b
}

// New binds category to p. Outcomes are logged and counted by default.
func New(q queue.JobQueue, category types.Category, p processor.Processor, opts ...Option) *Worker {
	w := &Worker{
		queue:       q,
		category:    category,
		process:     p,
		concurrency: 1,
		log:         logger.NewLogger(),
		reconnect:   newReconnectBackoff(DefaultReconnectInitial, DefaultReconnectMax),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = w.log.With(logger.Scope("worker"), slog.String("category", category.String()))
	w.observers = append([]Observer{LogObserver(w.log), MetricsObserver()}, w.observers...)
	return w
}

func (w *Worker) Category() types.Category {
	return w.category
}

// Run processes envelopes until ctx is cancelled. Envelopes already handed to
// the processor run to completion; Run returns once they are recorded.
func (w *Worker) Run(ctx context.Context) error {
	sem := semaphore.NewWeighted(int64(w.concurrency))
	var wg sync.WaitGroup
	defer wg.Wait()

	w.log.Info("worker started", slog.Int("concurrency", w.concurrency))
	defer w.log.Info("worker stopped")

	for {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil
		}

		env, err := w.queue.Dequeue(ctx, w.category)
		if err != nil {
			sem.Release(1)
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, queue.ErrClosed) {
				return err
			}
			metrics.DequeueErrors.WithLabelValues(w.category.String()).Inc()
			delay := w.reconnect.NextBackOff()
			w.log.Warn("dequeue failed, backing off", logger.Error(err), slog.Duration("delay", delay))

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			continue
		}
		w.reconnect.Reset()

		wg.Add(1)
		go func(env *types.Envelope) {
			defer wg.Done()
			defer sem.Release(1)
			w.handle(context.WithoutCancel(ctx), env)
		}(env)
	}
}

// ProcessOne runs a single dequeue, invoke and ack/nack cycle.
func (w *Worker) ProcessOne(ctx context.Context) (types.Outcome, error) {
	env, err := w.queue.Dequeue(ctx, w.category)
	if err != nil {
		return types.Outcome{}, err
	}
	return w.handle(context.WithoutCancel(ctx), env), nil
}

func (w *Worker) handle(ctx context.Context, env *types.Envelope) types.Outcome {
	start := time.Now()
	err := w.invoke(ctx, env)

	outcome := types.Outcome{
		EnvelopeID: env.ID,
		Category:   env.Category,
		Name:       env.Name,
		Attempt:    env.Attempt,
		Duration:   time.Since(start),
	}

	if err == nil {
		if ackErr := w.queue.Ack(ctx, env.ID, env.Attempt); ackErr != nil {
			// the envelope stays leased; expiry or a newer holder settles it
			outcome.Status = state.StatusInFlight
			outcome.Err = fmt.Errorf("ack: %w", ackErr)
		} else {
			outcome.Status = state.StatusCompleted
		}
	} else {
		outcome.Err = err
		status, nackErr := w.queue.Nack(ctx, env.ID, env.Attempt, err)
		if nackErr != nil {
			outcome.Status = state.StatusInFlight
			outcome.Err = fmt.Errorf("%w (nack: %w)", err, nackErr)
		} else {
			outcome.Status = status
		}
	}
	outcome.FinishedAt = time.Now().UTC()

	for _, observe := range w.observers {
		observe(ctx, outcome)
	}
	return outcome
}

func (w *Worker) invoke(ctx context.Context, env *types.Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = custom_errors.NewProcessor(fmt.Sprintf("processor panicked: %v", r), nil)
		}
	}()
	return w.process(ctx, env.Name, env.Payload)
}
