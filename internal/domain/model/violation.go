package model

import (
	"encoding/json"
	"strings"
	"time"

	apperrors "github.com/target/integrations-dispatch/internal/errors"
)

// Severity grades a violation.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid returns true for the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// Violation is an immutable finding recorded against a job.
type Violation struct {
	ID                string          `json:"id"                 db:"id"`
	JobID             string          `json:"job_id"             db:"job_id"`
	IntegrationName   string          `json:"integration_name"   db:"integration_name"`
	TaskName          string          `json:"task_name"          db:"task_name"`
	ControlReferences json.RawMessage `json:"control_references" db:"control_references"`
	Output            json.RawMessage `json:"output"             db:"output"`
	Severity          Severity        `json:"severity"           db:"severity"`
	Description       *string         `json:"description"        db:"description"`
	ViolationType     *string         `json:"violation_type"     db:"violation_type"`
	Environment       *string         `json:"environment"        db:"environment"`
	Meta              json.RawMessage `json:"meta"               db:"meta"`
	Timestamp         time.Time       `json:"timestamp"          db:"timestamp"`
}

// CreateViolationRequest is posted by the worker that owns the job.
type CreateViolationRequest struct {
	TaskName          string          `json:"task_name"                validate:"required"`
	ControlReferences json.RawMessage `json:"control_references"       validate:"required"`
	Output            json.RawMessage `json:"output"                   validate:"required"`
	Severity          Severity        `json:"severity,omitempty"`
	Description       *string         `json:"description,omitempty"`
	ViolationType     *string         `json:"violation_type,omitempty"`
	Environment       *string         `json:"environment,omitempty"`
	Meta              json.RawMessage `json:"meta,omitempty"`
	Timestamp         *time.Time      `json:"timestamp,omitempty"`
}

// Normalize applies the default severity and metadata.
func (r *CreateViolationRequest) Normalize() {
	r.TaskName = strings.TrimSpace(r.TaskName)
	if r.Severity == "" {
		r.Severity = SeverityMedium
	}
	r.Severity = Severity(strings.ToLower(string(r.Severity)))
	if len(r.Meta) == 0 || string(r.Meta) == "null" {
		r.Meta = json.RawMessage(`{}`)
	}
}

// Validate checks required fields. Call Normalize first.
func (r *CreateViolationRequest) Validate() error {
	if r.TaskName == "" {
		return apperrors.ValidationField("task_name", "task_name is required")
	}
	if isJSONNull(r.ControlReferences) {
		return apperrors.ValidationField("control_references", "control_references is required")
	}
	var refs []any
	if err := json.Unmarshal(r.ControlReferences, &refs); err != nil {
		return apperrors.ValidationField("control_references", "control_references must be a JSON array")
	}
	if isJSONNull(r.Output) {
		return apperrors.ValidationField("output", "output is required")
	}
	if !json.Valid(r.Output) {
		return apperrors.ValidationField("output", "output must be valid JSON")
	}
	if !r.Severity.Valid() {
		return apperrors.ValidationField("severity", "severity must be one of low, medium, high, critical")
	}
	if !json.Valid(r.Meta) {
		return apperrors.ValidationField("meta", "meta must be valid JSON")
	}
	return nil
}

// CreateViolationResponse is returned after a violation is recorded.
type CreateViolationResponse struct {
	ID string `json:"id"`
}

func isJSONNull(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}
