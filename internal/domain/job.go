package domain

import (
	"time"
)

// JobID is a unique identifier for a job.
type JobID string

// String returns the string representation of the JobID.
func (id JobID) String() string {
	return string(id)
}

// JobStatus represents the current state of a job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job is an asynchronous download request waiting for a worker.
type Job struct {
	ID         JobID
	Request    DownloadRequest
	Status     JobStatus
	Attempts   int
	MaxRetries int
	Result     *DownloadResult
	LastError  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewJob creates a new queued job for a download request.
func NewJob(id JobID, req DownloadRequest, maxRetries int) *Job {
	now := time.Now()
	return &Job{
		ID:         id,
		Request:    req,
		Status:     JobStatusQueued,
		Attempts:   0,
		MaxRetries: maxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// CanRetry returns true if the job can be retried.
func (j *Job) CanRetry() bool {
	return j.Attempts < j.MaxRetries
}

// MarkProcessing updates the job status to processing.
func (j *Job) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.UpdatedAt = time.Now()
}

// MarkCompleted stores the result and marks the job completed.
func (j *Job) MarkCompleted(result DownloadResult) {
	j.Result = &result
	j.Status = JobStatusCompleted
	j.UpdatedAt = time.Now()
}

// MarkFailed records a failed attempt. Transient failures move the job
// back to retrying while attempts remain.
func (j *Job) MarkFailed(result DownloadResult) {
	j.Attempts++
	j.Result = &result
	j.LastError = result.Error
	j.UpdatedAt = time.Now()

	if result.FailureKind.Transient() && j.CanRetry() {
		j.Status = JobStatusRetrying
	} else {
		j.Status = JobStatusFailed
	}
}
