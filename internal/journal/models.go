package journal

import "time"

// Status represents the lifecycle of a recorded run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Run is one pipeline invocation as persisted in the journal.
type Run struct {
	ID           string
	Status       Status
	RecordCount  int
	StartedAt    time.Time
	FinishedAt   *time.Time
	ErrorMessage string
}

// PhaseEvent marks a pipeline phase transition within a run.
type PhaseEvent struct {
	ID        int64
	RunID     string
	Phase     string
	Detail    string
	CreatedAt time.Time
}
