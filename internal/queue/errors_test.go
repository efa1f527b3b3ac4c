package queue

import (
	"github.com/RezaEskandarii/userfire/internal/state"
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestCheckLease(t *testing.T) {
	tests := []struct {
		name    string
		status  state.JobStatus
		current int
		attempt int
		want    error
	}{
		{name: "current holder", status: state.StatusInFlight, current: 2, attempt: 2},
		{name: "newer holder owns the lease", status: state.StatusInFlight, current: 2, attempt: 1, want: ErrLeaseLost},
		{name: "reclaimed to pending", status: state.StatusPending, current: 1, attempt: 1, want: ErrLeaseLost},
		{name: "already nacked", status: state.StatusFailedRetryable, current: 1, attempt: 1, want: ErrLeaseLost},
		{name: "never dequeued", status: state.StatusPending, current: 0, attempt: 0, want: ErrNotInFlight},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckLease(tt.status, tt.current, tt.attempt)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
