package custom_errors

import (
	"errors"
	"fmt"
	"github.com/stretchr/testify/assert"
	"net/http"
	"testing"
)

func TestKind_Code(t *testing.T) {
	tests := []struct {
		kind Kind
		code int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindNotFound, http.StatusNotFound},
		{KindQueueUnavailable, http.StatusServiceUnavailable},
		{KindProcessor, http.StatusInternalServerError},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.code, tt.kind.Code())
		})
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	base := NewQueueUnavailable("enqueue failed", errors.New("dial tcp: refused"))
	wrapped := fmt.Errorf("create user: %w", base)

	assert.Equal(t, KindQueueUnavailable, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindQueueUnavailable))
	assert.False(t, Is(nil, KindInternal))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Contains(t, base.Error(), "dial tcp: refused")
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "User not found", Message(NewNotFound("User not found")))
	assert.Equal(t, "Internal Server Error", Message(errors.New("pq: relation does not exist")))
	assert.Equal(t, "Internal Server Error", Message(NewInternal("db", errors.New("x"))))

	v := &ValidationError{}
	v.Add(errors.New("worker count must be positive"))
	assert.Equal(t, KindValidation, KindOf(v))
	assert.Equal(t, "worker count must be positive", Message(v))
}

func TestValidationError_Collects(t *testing.T) {
	errRetry := errors.New("queue retry limit must be at least 1")
	v := &ValidationError{}
	v.Add(nil)
	assert.False(t, v.HasError())
	assert.Empty(t, v.Error())

	v.Add(errRetry)
	v.Add(NewNotFound("User not found"))
	assert.True(t, v.HasError())
	assert.Len(t, v.Errors, 2)
	assert.ErrorIs(t, v, errRetry)

	var inner *Error
	assert.ErrorAs(t, v, &inner)
	assert.Equal(t, KindValidation, KindOf(v))
}
