package types

import (
	"encoding/json"
	"github.com/RezaEskandarii/userfire/internal/state"
	"time"
)

// Envelope is the unit of work stored in a category queue.
type Envelope struct {
	ID             string          `json:"id"`
	Category       Category        `json:"category"`
	Name           string          `json:"name"`
	Payload        json.RawMessage `json:"payload"`
	Status         state.JobStatus `json:"status"`
	Attempt        int             `json:"attempt"`
	EnqueuedAt     time.Time       `json:"enqueued_at"`
	AvailableAt    time.Time       `json:"available_at"`
	LeaseExpiresAt *time.Time      `json:"lease_expires_at,omitempty"`
	LastError      *string         `json:"last_error,omitempty"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}

// DeadLetter is the record kept for an envelope that exhausted its retries.
type DeadLetter struct {
	ID         string          `json:"id"`
	Category   Category        `json:"category"`
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	LastError  string          `json:"last_error"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	FailedAt   time.Time       `json:"failed_at"`
}

type QueueStats struct {
	Category  Category `json:"category"`
	Pending   int64    `json:"pending"`
	InFlight  int64    `json:"in_flight"`
	Retrying  int64    `json:"retrying"`
	Completed int64    `json:"completed"`
	Dead      int64    `json:"dead"`
}
