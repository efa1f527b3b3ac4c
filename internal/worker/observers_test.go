package worker

import (
	"context"
	"errors"
	"github.com/RezaEskandarii/userfire/internal/message_broaker"
	"github.com/RezaEskandarii/userfire/internal/state"
	"github.com/RezaEskandarii/userfire/pkg/logger"
	"github.com/RezaEskandarii/userfire/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

type capturingBroker struct {
	keys   []string
	bodies [][]byte
	err    error
}

func (b *capturingBroker) Publish(_ context.Context, routingKey string, message []byte) error {
	if b.err != nil {
		return b.err
	}
	b.keys = append(b.keys, routingKey)
	b.bodies = append(b.bodies, message)
	return nil
}

func (b *capturingBroker) Consume(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

func (b *capturingBroker) Close() error { return nil }

func TestBrokerObserver_Publishes(t *testing.T) {
	broker := &capturingBroker{}
	observe := BrokerObserver(broker, logger.Discard())

	observe(context.Background(), types.Outcome{
		EnvelopeID: "e-1",
		Category:   types.CategoryEmail,
		Name:       "welcome",
		Attempt:    3,
		Status:     state.StatusFailedTerminal,
		Err:        errors.New("smtp down"),
		Duration:   250 * time.Millisecond,
		FinishedAt: time.Now().UTC(),
	})

	require.Len(t, broker.keys, 1)
	assert.Equal(t, "jobs.email.failed-terminal", broker.keys[0])

	ev, err := message_broaker.DecodeOutcomeEvent(broker.bodies[0])
	require.NoError(t, err)
	assert.Equal(t, "e-1", ev.EnvelopeID)
	assert.Equal(t, "smtp down", ev.Error)
	assert.Equal(t, int64(250), ev.DurationMS)
}

func TestBrokerObserver_IgnoresPublishErrors(t *testing.T) {
	broker := &capturingBroker{err: errors.New("channel closed")}
	observe := BrokerObserver(broker, logger.Discard())

	assert.NotPanics(t, func() {
		observe(context.Background(), types.Outcome{Category: types.CategoryAudit, Status: state.StatusCompleted})
	})
}
