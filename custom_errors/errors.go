package custom_errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error so callers can map it to a transport status.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindQueueUnavailable
	KindProcessor
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindQueueUnavailable:
		return "queue_unavailable"
	case KindProcessor:
		return "processor"
	default:
		return "internal"
	}
}

// Code returns the HTTP status associated with the kind.
func (k Kind) Code() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindQueueUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NewValidation(message string) *Error {
	return New(KindValidation, message, nil)
}

func NewNotFound(message string) *Error {
	return New(KindNotFound, message, nil)
}

func NewQueueUnavailable(message string, err error) *Error {
	return New(KindQueueUnavailable, message, err)
}

func NewProcessor(message string, err error) *Error {
	return New(KindProcessor, message, err)
}

func NewInternal(message string, err error) *Error {
	return New(KindInternal, message, err)
}

// KindOf returns the kind of the first *Error in err's chain.
// A *ValidationError counts as KindValidation whatever it collected.
// Anything else is KindInternal.
func KindOf(err error) Kind {
	var v *ValidationError
	if errors.As(err, &v) {
		return KindValidation
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the client-facing message for err.
// Internal errors never leak their details.
func Message(err error) string {
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Error()
	}
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "Internal Server Error"
}
