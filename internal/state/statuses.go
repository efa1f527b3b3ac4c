package state

// JobStatus is the lifecycle state of a job envelope.
type JobStatus string

const (
	StatusPending         JobStatus = "pending"
	StatusInFlight        JobStatus = "in-flight"
	StatusCompleted       JobStatus = "completed"
	StatusFailedRetryable JobStatus = "failed-retryable"
	StatusFailedTerminal  JobStatus = "failed-terminal"
)

func (s JobStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailedTerminal
}

// Claimable reports whether an envelope in state s may be handed to a worker
// once its availability time has passed.
func (s JobStatus) Claimable() bool {
	return s == StatusPending || s == StatusFailedRetryable
}

func (s JobStatus) Valid() bool {
	for _, st := range AllStatuses {
		if st == s {
			return true
		}
	}
	return false
}

var AllStatuses = []JobStatus{
	StatusPending,
	StatusInFlight,
	StatusCompleted,
	StatusFailedRetryable,
	StatusFailedTerminal,
}

type Transition struct {
	From JobStatus
	To   JobStatus
}

var ValidTransitions = []Transition{
	{From: StatusPending, To: StatusInFlight},
	{From: StatusInFlight, To: StatusCompleted},
	{From: StatusInFlight, To: StatusFailedRetryable},
	{From: StatusInFlight, To: StatusFailedTerminal},
	{From: StatusFailedRetryable, To: StatusInFlight},
	// expired lease
	{From: StatusInFlight, To: StatusPending},
	{From: StatusInFlight, To: StatusInFlight},
}

func IsValidTransition(from, to JobStatus) bool {
	for _, t := range ValidTransitions {
		if t.From == from && t.To == to {
			return true
		}
	}
	return false
}
