package response

import "time"

// SubmitTaskResponse acknowledges an accepted quiz task. The chain runs out
// of band; this is the only synchronous reply the caller gets.
type SubmitTaskResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	RunID   string `json:"run_id"`
}

// RunStatusResponse is a DTO for chain run status, mirroring entity.RunStatus.
type RunStatusResponse struct {
	StartURL      string     `json:"start_url"`
	State         string     `json:"state"` // "accepted", "running", "completed", "failed"
	QuestionIndex int        `json:"question_index"`
	FailureReason string     `json:"failure_reason,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// RunRecordResponse is a DTO for the persisted history of one chain run.
type RunRecordResponse struct {
	RunID           string     `json:"run_id"`
	StartURL        string     `json:"start_url"`
	State           string     `json:"state"`
	QuestionsSolved int        `json:"questions_solved"`
	FailureReason   string     `json:"failure_reason,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}
