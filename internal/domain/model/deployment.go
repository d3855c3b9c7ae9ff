package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/target/integrations-dispatch/internal/domain"
	apperrors "github.com/target/integrations-dispatch/internal/errors"
)

const (
	// DefaultQueue is the queue a deployment routes to when none is given.
	DefaultQueue = "default"
	// DefaultTimeoutSeconds bounds a single execution when no timeout is given.
	DefaultTimeoutSeconds = 3600
	maxQueueLen           = 128
)

// Deployment is a recurring or on-demand unit-of-work definition owned by a tenant.
type Deployment struct {
	ID              string          `json:"id"                db:"id"`
	IntegrationID   string          `json:"integration_id"    db:"integration_id"`
	IntegrationName string          `json:"integration_name"  db:"integration_name"`
	TenantID        string          `json:"tenant_id"         db:"tenant_id"`
	Config          json.RawMessage `json:"config"            db:"config"`
	Schedule        *string         `json:"schedule"          db:"schedule"`
	Queue           string          `json:"queue"             db:"queue"`
	TimeoutSeconds  int             `json:"timeout"           db:"timeout_seconds"`
	Enabled         bool            `json:"enabled"           db:"enabled"`
	LastScheduledAt *time.Time      `json:"last_scheduled_at" db:"last_scheduled_at"`
	CreatedAt       time.Time       `json:"created_at"        db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"        db:"updated_at"`
}

// Recurring reports whether the scheduler should consider this deployment.
func (d *Deployment) Recurring() bool {
	return d.Enabled && d.Schedule != nil && strings.TrimSpace(*d.Schedule) != ""
}

// CreateDeploymentRequest represents a request to create a deployment for a tenant.
type CreateDeploymentRequest struct {
	IntegrationID string          `json:"integration_id" validate:"required"`
	TenantID      string          `json:"-"`
	Config        json.RawMessage `json:"config"         validate:"required"`
	Schedule      *string         `json:"schedule,omitempty"`
	Queue         string          `json:"queue,omitempty"`
	Timeout       *int            `json:"timeout,omitempty"`
	Enabled       *bool           `json:"enabled,omitempty"`
}

// Normalize applies defaults for queue, timeout and enabled, and drops blank schedules.
func (r *CreateDeploymentRequest) Normalize() {
	r.Queue = strings.TrimSpace(r.Queue)
	if r.Queue == "" {
		r.Queue = DefaultQueue
	}
	if r.Timeout == nil {
		t := DefaultTimeoutSeconds
		r.Timeout = &t
	}
	if r.Enabled == nil {
		enabled := true
		r.Enabled = &enabled
	}
	r.Schedule = trimmedOrNil(r.Schedule)
}

// Validate checks the deployment invariants. Call Normalize first.
func (r *CreateDeploymentRequest) Validate() error {
	if strings.TrimSpace(r.TenantID) == "" {
		return apperrors.ValidationField("tenant_id", "tenant is required")
	}
	if strings.TrimSpace(r.IntegrationID) == "" {
		return apperrors.ValidationField("integration_id", "integration_id is required")
	}
	if err := validateConfig(r.Config); err != nil {
		return err
	}
	if err := validateQueue(r.Queue); err != nil {
		return err
	}
	if r.Timeout == nil || *r.Timeout <= 0 {
		return apperrors.ValidationField("timeout", "timeout must be greater than zero")
	}
	return validateSchedule(r.Schedule)
}

// UpdateDeploymentRequest carries a partial update. A Schedule pointing at an empty
// string clears the schedule.
type UpdateDeploymentRequest struct {
	Config   json.RawMessage `json:"config,omitempty"`
	Enabled  *bool           `json:"enabled,omitempty"`
	Schedule *string         `json:"schedule,omitempty"`
	Queue    *string         `json:"queue,omitempty"`
	Timeout  *int            `json:"timeout,omitempty"`
}

// HasUpdates returns true if the request changes at least one field.
func (r *UpdateDeploymentRequest) HasUpdates() bool {
	return len(r.Config) > 0 || r.Enabled != nil || r.Schedule != nil || r.Queue != nil || r.Timeout != nil
}

// ClearsSchedule reports whether the update removes the schedule.
func (r *UpdateDeploymentRequest) ClearsSchedule() bool {
	return r.Schedule != nil && strings.TrimSpace(*r.Schedule) == ""
}

// Validate checks the fields being updated.
func (r *UpdateDeploymentRequest) Validate() error {
	if !r.HasUpdates() {
		return apperrors.Validation("at least one field must be updated")
	}
	if len(r.Config) > 0 {
		if err := validateConfig(r.Config); err != nil {
			return err
		}
	}
	if r.Queue != nil {
		if err := validateQueue(strings.TrimSpace(*r.Queue)); err != nil {
			return err
		}
	}
	if r.Timeout != nil && *r.Timeout <= 0 {
		return apperrors.ValidationField("timeout", "timeout must be greater than zero")
	}
	if r.Schedule != nil && !r.ClearsSchedule() {
		return validateSchedule(r.Schedule)
	}
	return nil
}

// DeploymentJobViolations groups a job's violations for a deployment history view.
type DeploymentJobViolations struct {
	JobID      string       `json:"job_id"`
	Status     JobStatus    `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	FinishedAt *time.Time   `json:"finished_at"`
	Violations []*Violation `json:"violations"`
}

func validateConfig(cfg json.RawMessage) error {
	if len(cfg) == 0 {
		return apperrors.ValidationField("config", "config is required")
	}
	var obj map[string]any
	if err := json.Unmarshal(cfg, &obj); err != nil || obj == nil {
		return apperrors.ValidationField("config", "config must be a JSON object")
	}
	return nil
}

func validateQueue(queue string) error {
	if queue == "" {
		return apperrors.ValidationField("queue", "queue cannot be empty")
	}
	if len(queue) > maxQueueLen {
		return apperrors.ValidationField("queue", "queue cannot exceed 128 characters")
	}
	return nil
}

func validateSchedule(schedule *string) error {
	if schedule == nil {
		return nil
	}
	if err := domain.ValidateSchedule(*schedule); err != nil {
		return apperrors.ValidationField("schedule", err.Error())
	}
	return nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
