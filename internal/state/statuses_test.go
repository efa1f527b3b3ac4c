package state

import (
	"testing"
)

func TestJobStatus_String(t *testing.T) {
	tests := []struct {
		name     string
		status   JobStatus
		expected string
	}{
		{
			name:     "Pending status",
			status:   StatusPending,
			expected: "pending",
		},
		{
			name:     "In-flight status",
			status:   StatusInFlight,
			expected: "in-flight",
		},
		{
			name:     "Completed status",
			status:   StatusCompleted,
			expected: "completed",
		},
		{
			name:     "Retryable status",
			status:   StatusFailedRetryable,
			expected: "failed-retryable",
		},
		{
			name:     "Terminal status",
			status:   StatusFailedTerminal,
			expected: "failed-terminal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.status.String()
			if result != tt.expected {
				t.Errorf("String() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		name     string
		from     JobStatus
		to       JobStatus
		expected bool
	}{
		{
			name:     "Valid: Pending to InFlight",
			from:     StatusPending,
			to:       StatusInFlight,
			expected: true,
		},
		{
			name:     "Valid: InFlight to Completed",
			from:     StatusInFlight,
			to:       StatusCompleted,
			expected: true,
		},
		{
			name:     "Valid: InFlight to Retryable",
			from:     StatusInFlight,
			to:       StatusFailedRetryable,
			expected: true,
		},
		{
			name:     "Valid: InFlight to Terminal",
			from:     StatusInFlight,
			to:       StatusFailedTerminal,
			expected: true,
		},
		{
			name:     "Valid: Retryable to InFlight",
			from:     StatusFailedRetryable,
			to:       StatusInFlight,
			expected: true,
		},
		{
			name:     "Valid: expired lease back to Pending",
			from:     StatusInFlight,
			to:       StatusPending,
			expected: true,
		},
		{
			name:     "Invalid: Pending to Completed",
			from:     StatusPending,
			to:       StatusCompleted,
			expected: false,
		},
		{
			name:     "Invalid: Completed to Retryable",
			from:     StatusCompleted,
			to:       StatusFailedRetryable,
			expected: false,
		},
		{
			name:     "Invalid: Terminal to InFlight",
			from:     StatusFailedTerminal,
			to:       StatusInFlight,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValidTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidTransition() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestJobStatus_IsTerminal(t *testing.T) {
	for _, s := range AllStatuses {
		want := s == StatusCompleted || s == StatusFailedTerminal
		if got := s.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", s, got, want)
		}
		if s.IsTerminal() && s.Claimable() {
			t.Errorf("%s cannot be both terminal and claimable", s)
		}
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if JobStatus("queued").Valid() {
		t.Errorf("unknown status reported valid")
	}
}
