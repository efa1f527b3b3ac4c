package types

import (
	"github.com/RezaEskandarii/userfire/internal/state"
	"time"
)

// Outcome describes the result of one worker cycle for a single envelope.
type Outcome struct {
	EnvelopeID string
	Category   Category
	Name       string
	Attempt    int
	Status     state.JobStatus
	Err        error
	Duration   time.Duration
	FinishedAt time.Time
}

func (o Outcome) Succeeded() bool {
	return o.Err == nil && o.Status == state.StatusCompleted
}
