package service

import (
	"context"
	"github.com/RezaEskandarii/userfire/custom_errors"
	"github.com/RezaEskandarii/userfire/internal/metrics"
	"github.com/RezaEskandarii/userfire/internal/queue"
	"github.com/RezaEskandarii/userfire/pkg/logger"
	"github.com/RezaEskandarii/userfire/types"
	"log/slog"
	"time"
)

const enqueueTimeout = 5 * time.Second

// Producer enqueues side-effect jobs after a mutation has committed.
// Failures are logged and never returned to the caller.
type Producer struct {
	queue queue.Enqueuer
	log   *slog.Logger
}

func NewProducer(q queue.Enqueuer, log *slog.Logger) *Producer {
	return &Producer{
		queue: q,
		log:   log.With(logger.Scope("producer")),
	}
}

// Enqueue detaches from ctx so a finished request does not abort the enqueue.
func (p *Producer) Enqueue(ctx context.Context, category types.Category, name string, payload any) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
	defer cancel()

	id, err := p.queue.Enqueue(ctx, category, name, payload)
	if err != nil {
		metrics.EnqueueFailures.WithLabelValues(category.String()).Inc()
		p.log.Warn("enqueue failed",
			slog.String("category", category.String()),
			slog.String("name", name),
			slog.String("kind", custom_errors.KindOf(err).String()),
			logger.Error(err))
		return
	}
	p.log.Debug("job enqueued",
		slog.String("category", category.String()),
		slog.String("name", name),
		slog.String("id", id))
}
