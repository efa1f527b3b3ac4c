package message_broaker

import (
	"encoding/json"
	"fmt"
	"github.com/RezaEskandarii/userfire/internal/state"
	"github.com/RezaEskandarii/userfire/types"
	"time"
)

// OutcomeEvent is the wire form of a worker outcome.
type OutcomeEvent struct {
	EnvelopeID string          `json:"envelope_id"`
	Category   types.Category  `json:"category"`
	Name       string          `json:"name"`
	Attempt    int             `json:"attempt"`
	Status     state.JobStatus `json:"status"`
	Error      string          `json:"error,omitempty"`
	DurationMS int64           `json:"duration_ms"`
	FinishedAt time.Time       `json:"finished_at"`
}

func NewOutcomeEvent(o types.Outcome) OutcomeEvent {
	ev := OutcomeEvent{
		EnvelopeID: o.EnvelopeID,
		Category:   o.Category,
		Name:       o.Name,
		Attempt:    o.Attempt,
		Status:     o.Status,
		DurationMS: o.Duration.Milliseconds(),
		FinishedAt: o.FinishedAt,
	}
	if o.Err != nil {
		ev.Error = o.Err.Error()
	}
	return ev
}

// RoutingKey is jobs.<category>.<status>, e.g. jobs.email.failed-terminal.
func (e OutcomeEvent) RoutingKey() string {
	return fmt.Sprintf("jobs.%s.%s", e.Category, e.Status)
}

func (e OutcomeEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

func DecodeOutcomeEvent(body []byte) (OutcomeEvent, error) {
	var ev OutcomeEvent
	err := json.Unmarshal(body, &ev)
	return ev, err
}
