// Package model defines the core data types shared by the dispatch store, services and API.
package model

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	apperrors "github.com/target/integrations-dispatch/internal/errors"
)

// JobStatus represents the lifecycle state of a job.
type JobStatus string

const (
	// JobStatusQueued indicates a job is waiting to be claimed.
	JobStatusQueued JobStatus = "queued"
	// JobStatusInProgress indicates a worker has claimed the job.
	JobStatusInProgress JobStatus = "in-progress"
	// JobStatusDone indicates the unit of work finished successfully.
	JobStatusDone JobStatus = "done"
	// JobStatusError indicates the unit of work failed, timed out, or crashed.
	JobStatusError JobStatus = "error"
)

// ErrNoJobsAvailable is returned when no job can be claimed on a queue.
var ErrNoJobsAvailable = errors.New("no jobs available")

// Valid returns true if the JobStatus is one of the known states.
func (s JobStatus) Valid() bool {
	return s == JobStatusQueued || s == JobStatusInProgress || s.Terminal()
}

// Terminal reports whether no further lifecycle transition is possible.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusError
}

// CanTransitionTo reports whether moving from s to next respects queued → in-progress → {done, error}.
// Terminal → terminal is allowed so duplicate completion reports overwrite the payload.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusQueued:
		return next == JobStatusInProgress
	case JobStatusInProgress, JobStatusDone, JobStatusError:
		return next.Terminal()
	default:
		return false
	}
}

// Job is one execution instance of a deployment, joined with the deployment fields
// a worker needs to run it.
type Job struct {
	ID           string          `json:"id"                    db:"id"`
	DeploymentID string          `json:"deployment_id"         db:"deployment_id"`
	Status       JobStatus       `json:"status"                db:"status"`
	Result       json.RawMessage `json:"result"                db:"result"`
	CreatedAt    time.Time       `json:"created_at"            db:"created_at"`
	StartedAt    *time.Time      `json:"started_at"            db:"started_at"`
	FinishedAt   *time.Time      `json:"finished_at"           db:"finished_at"`

	IntegrationName string          `json:"integration_name" db:"integration_name"`
	TenantID        string          `json:"tenant_id"        db:"tenant_id"`
	Config          json.RawMessage `json:"config"           db:"config"`
	Queue           string          `json:"queue"            db:"queue"`
	TimeoutSeconds  int             `json:"timeout"          db:"timeout_seconds"`
}

// QueueSeconds returns the whole seconds between creation and claim, or nil before the claim.
func (j *Job) QueueSeconds() *int64 {
	if j.StartedAt == nil {
		return nil
	}
	return wholeSeconds(j.CreatedAt, *j.StartedAt)
}

// ExecutionSeconds returns the whole seconds between claim and completion.
func (j *Job) ExecutionSeconds() *int64 {
	if j.StartedAt == nil || j.FinishedAt == nil {
		return nil
	}
	return wholeSeconds(*j.StartedAt, *j.FinishedAt)
}

// TotalSeconds returns the whole seconds between creation and completion.
func (j *Job) TotalSeconds() *int64 {
	if j.FinishedAt == nil {
		return nil
	}
	return wholeSeconds(j.CreatedAt, *j.FinishedAt)
}

func wholeSeconds(from, to time.Time) *int64 {
	s := int64(to.Sub(from) / time.Second)
	return &s
}

// Timeout returns the execution deadline for the job.
func (j *Job) Timeout() time.Duration {
	return time.Duration(j.TimeoutSeconds) * time.Second
}

// MarshalJSON adds the derived duration fields to the wire representation.
func (j Job) MarshalJSON() ([]byte, error) {
	type alias Job
	return json.Marshal(struct {
		alias
		DurationInQueue     *int64 `json:"duration_in_queue"`
		DurationInExecution *int64 `json:"duration_in_execution"`
		DurationTotal       *int64 `json:"duration_total"`
	}{
		alias:               alias(j),
		DurationInQueue:     j.QueueSeconds(),
		DurationInExecution: j.ExecutionSeconds(),
		DurationTotal:       j.TotalSeconds(),
	})
}

// EnqueueJobRequest asks the store to create a queued job for a deployment.
type EnqueueJobRequest struct {
	DeploymentID string `json:"deployment_id" validate:"required"`
}

// EnqueueJobResponse is the body returned for a successful enqueue.
type EnqueueJobResponse struct {
	ID string `json:"id"`
}

// CompleteJobRequest reports the outcome of a claimed job.
type CompleteJobRequest struct {
	Status JobStatus       `json:"status"`
	Result json.RawMessage `json:"result"`
}

// Normalize applies the default status and result.
func (r *CompleteJobRequest) Normalize() {
	if strings.TrimSpace(string(r.Status)) == "" {
		r.Status = JobStatusDone
	}
	if len(r.Result) == 0 || string(r.Result) == "null" {
		r.Result = json.RawMessage(`{}`)
	}
}

// Validate ensures the completion targets a terminal status with a JSON result.
func (r *CompleteJobRequest) Validate() error {
	if !r.Status.Terminal() {
		return apperrors.ValidationField("status", "status must be one of done, error")
	}
	if len(r.Result) > 0 && !json.Valid(r.Result) {
		return apperrors.ValidationField("result", "result must be valid JSON")
	}
	return nil
}

// TimeRange bounds a finished_at window. Before is inclusive upper, After inclusive lower.
type TimeRange struct {
	Before *time.Time
	After  *time.Time
}

// Validate rejects an unbounded range so a sweep can never delete every job.
// Both bounds apply together, so a Before earlier than After matches nothing.
func (r TimeRange) Validate() error {
	if r.Before == nil && r.After == nil {
		return apperrors.Validation("at least one of 'before' or 'after' is required")
	}
	return nil
}

// DeleteJobsResponse reports the outcome of a retention sweep.
type DeleteJobsResponse struct {
	Deleted int64 `json:"deleted"`
}
