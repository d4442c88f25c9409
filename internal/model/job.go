package model

import (
	"time"

	"github.com/tuneedit/api/internal/editor"
)

// Job status
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Job is a submission attempt, kept in redis while the session lives.
type Job struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	SessionID   string     `json:"sessionId"`
	Status      JobStatus  `json:"status"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Job types
const (
	JobTypeSubmit = "submit"
)

// SubmitTaskPayload is the asynq payload of a submission task.
type SubmitTaskPayload struct {
	JobID     string                   `json:"jobId"`
	SessionID string                   `json:"sessionId"`
	Payload   editor.SubmissionPayload `json:"payload"`
}

// IsTerminal reports whether the job has finished.
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusSucceeded || j.Status == JobStatusFailed
}
