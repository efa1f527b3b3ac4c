package worker

import (
	"context"
	"errors"
	"github.com/RezaEskandarii/userfire/internal/message_broaker"
	"github.com/RezaEskandarii/userfire/internal/metrics"
	"github.com/RezaEskandarii/userfire/internal/queue"
	"github.com/RezaEskandarii/userfire/internal/state"
	"github.com/RezaEskandarii/userfire/pkg/logger"
	"github.com/RezaEskandarii/userfire/types"
	"log/slog"
	"time"
)

func LogObserver(log *slog.Logger) Observer {
	return func(ctx context.Context, o types.Outcome) {
		attrs := []any{
			slog.String("id", o.EnvelopeID),
			slog.String("name", o.Name),
			slog.Int("attempt", o.Attempt),
			slog.Duration("duration", o.Duration),
		}
		if o.Err != nil {
			attrs = append(attrs, logger.Error(o.Err))
		}

		if errors.Is(o.Err, queue.ErrLeaseLost) {
			log.Warn("job lease lost, result discarded", attrs...)
			return
		}

		switch o.Status {
		case state.StatusCompleted:
			log.Info("job completed", attrs...)
		case state.StatusFailedRetryable:
			log.Warn("job failed, retry scheduled", attrs...)
		case state.StatusFailedTerminal:
			log.Error("job dead-lettered", attrs...)
		default:
			log.Error("job outcome not recorded", attrs...)
		}
	}
}

func MetricsObserver() Observer {
	return func(ctx context.Context, o types.Outcome) {
		metrics.JobsProcessed.WithLabelValues(o.Category.String(), o.Status.String()).Inc()
		metrics.JobDuration.WithLabelValues(o.Category.String()).Observe(o.Duration.Seconds())
	}
}

// BrokerObserver publishes every outcome as an OutcomeEvent. Publish failures
// are logged and otherwise ignored.
func BrokerObserver(broker message_broaker.MessageBroker, log *slog.Logger) Observer {
	log = log.With(logger.Scope("worker.broker"))
	return func(ctx context.Context, o types.Outcome) {
		ev := message_broaker.NewOutcomeEvent(o)
		body, err := ev.Marshal()
		if err != nil {
			log.Error("encode outcome event", logger.Error(err))
			return
		}
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := broker.Publish(ctx, ev.RoutingKey(), body); err != nil {
			log.Warn("publish outcome event", logger.Error(err), slog.String("id", o.EnvelopeID))
		}
	}
}
