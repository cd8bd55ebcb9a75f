// Package store is the durable queue and its typed repository. All
// persistence in the job runner goes through this package; no other
// component talks to the database.
package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobType identifies which handler processes a job.
type JobType string

const (
	JobTypeThumbnail     JobType = "thumbnail"
	JobTypeTranscription JobType = "transcription"
	JobTypeAnalysis      JobType = "analysis"
	JobTypeCutting       JobType = "cutting"
	JobTypeDelivery      JobType = "delivery"
)

// IsValidJobType returns true if s is a member of the closed type enumeration.
func IsValidJobType(s string) bool {
	switch JobType(s) {
	case JobTypeThumbnail, JobTypeTranscription, JobTypeAnalysis,
		JobTypeCutting, JobTypeDelivery:
		return true
	default:
		return false
	}
}

// JobStatus represents the lifecycle state of a job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCanceled  JobStatus = "canceled"
)

// IsTerminal reports whether the status permits no further transitions.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusCanceled:
		return true
	default:
		return false
	}
}

// Job is a queue entry in processing_jobs.
//
// A row is exclusively owned by the claiming worker for the duration of the
// running state; the claim query enforces that no two workers observe the
// same queued row.
type Job struct {
	ID           string          `json:"id"`
	ProjectID    string          `json:"project_id,omitempty"`
	ShortID      string          `json:"short_id,omitempty"`
	Type         JobType         `json:"type"`
	Status       JobStatus       `json:"status"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// NewJob creates a queued job. projectID may be empty for delivery jobs;
// every other type references a project.
func NewJob(jobType JobType, projectID string, payload json.RawMessage) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Type:      jobType,
		Status:    JobStatusQueued,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
