package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/RezaEskandarii/userfire/custom_errors"
	"github.com/RezaEskandarii/userfire/internal/state"
	"github.com/RezaEskandarii/userfire/types"
	"strings"
)

var (
	ErrUnknownCategory = errors.New("queue: unknown category")
	ErrEmptyJobName    = errors.New("queue: job name must not be empty")
	ErrJobNotFound     = errors.New("queue: job not found")
	ErrNotInFlight     = errors.New("queue: job is not in flight")
	ErrLeaseLost       = errors.New("queue: lease lost")
	ErrClosed          = errors.New("queue: closed")
)

// ValidateEnqueue checks the producer-supplied fields of a new envelope.
func ValidateEnqueue(category types.Category, name string) error {
	if !category.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	if strings.TrimSpace(name) == "" {
		return ErrEmptyJobName
	}
	return nil
}

func ValidateCategory(category types.Category) error {
	if !category.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	return nil
}

// CheckLease decides whether the holder of lease attempt may settle an
// envelope currently in status at attempt current. Terminal envelopes are
// handled by the caller before this is consulted.
func CheckLease(status state.JobStatus, current, attempt int) error {
	switch {
	case status == state.StatusInFlight && current == attempt:
		return nil
	case status == state.StatusInFlight, attempt > 0:
		return ErrLeaseLost
	default:
		return ErrNotInFlight
	}
}

// EncodePayload serializes payload. A nil payload becomes JSON null.
func EncodePayload(payload any) (json.RawMessage, error) {
	if raw, ok := payload.(json.RawMessage); ok && len(raw) > 0 {
		if !json.Valid(raw) {
			return nil, errors.New("queue: payload is not valid JSON")
		}
		return raw, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("queue: encode payload: %w", err)
	}
	return b, nil
}

// Unavailable wraps a storage failure so callers see KindQueueUnavailable.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return custom_errors.NewQueueUnavailable(fmt.Sprintf("queue %s failed", op), err)
}

// TruncateError limits an error message to MaxErrorLength characters.
func TruncateError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) <= MaxErrorLength {
		return msg
	}
	return msg[:MaxErrorLength-3] + "..."
}
