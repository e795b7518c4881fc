package entity

import "time"

// Chain run states, as exposed by the status endpoint.
const (
	RunStateAccepted  = "accepted"
	RunStateRunning   = "running"
	RunStateCompleted = "completed"
	RunStateFailed    = "failed"
)

// RunStatus is the externally observable state of one chain run, keyed by
// its start URL.
type RunStatus struct {
	StartURL      string     `json:"start_url"`
	State         string     `json:"state"`
	QuestionIndex int        `json:"question_index"`
	FailureReason string     `json:"failure_reason,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// RunRecord mirrors the `chain_runs` PostgreSQL table schema. One row per
// chain run, updated as the run progresses and finalized on termination.
type RunRecord struct {
	ID              int64
	RunID           string
	StartURL        string
	Email           string
	State           string
	QuestionsSolved int
	FailureReason   string
	StartedAt       time.Time
	FinishedAt      *time.Time
}
