package state

type JobStatus string

const (
	StatusCreated             JobStatus = "created"
	StatusInProgress          JobStatus = "in_progress"
	StatusCompleted           JobStatus = "completed"
	StatusFailed              JobStatus = "failed"
	StatusMaxAttemptsExceeded JobStatus = "max_attempts_exceeded"
)

func (s JobStatus) String() string {
	return string(s)
}

var AllStatuses = []JobStatus{
	StatusCreated,
	StatusInProgress,
	StatusCompleted,
	StatusFailed,
	StatusMaxAttemptsExceeded,
}

// IsKnown reports whether s is one of the statuses the remote store emits.
func (s JobStatus) IsKnown() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsDispatchable reports whether a job in this status may be handed to a worker.
func (s JobStatus) IsDispatchable() bool {
	return s == StatusCreated || s == StatusFailed
}

// IsTerminal reports whether no further processing will ever happen.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusMaxAttemptsExceeded
}

type Transition struct {
	From JobStatus
	To   JobStatus
}

var ValidTransitions = []Transition{
	{From: StatusCreated, To: StatusInProgress},
	{From: StatusFailed, To: StatusInProgress},
	{From: StatusInProgress, To: StatusCompleted},
	{From: StatusInProgress, To: StatusFailed},
	{From: StatusCreated, To: StatusMaxAttemptsExceeded},
	{From: StatusFailed, To: StatusMaxAttemptsExceeded},
}

func IsValidTransition(from, to JobStatus) bool {
	for _, t := range ValidTransitions {
		if t.From == from && t.To == to {
			return true
		}
	}
	return false
}
