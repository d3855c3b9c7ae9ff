package model

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/target/integrations-dispatch/internal/errors"
)

const maxNameLen = 255

// Integration is a catalog entry describing a runnable unit of work and the
// JSON Schema its deployment configs must satisfy.
type Integration struct {
	ID          string          `json:"id"          db:"id"`
	Name        string          `json:"name"        db:"name"`
	Title       string          `json:"title"       db:"title"`
	Description *string         `json:"description" db:"description"`
	Schema      json.RawMessage `json:"schema"      db:"schema"`
	Schedule    *string         `json:"schedule"    db:"schedule"`
	IsService   bool            `json:"is_service"  db:"is_service"`
	CatalogHash *string         `json:"-"           db:"catalog_hash"`
	CreatedAt   time.Time       `json:"created_at"  db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"  db:"updated_at"`
}

// CreateIntegrationRequest represents a request to register an integration.
type CreateIntegrationRequest struct {
	Name        string          `json:"name"                  validate:"required,max=255"`
	Title       string          `json:"title,omitempty"`
	Description *string         `json:"description,omitempty"`
	Schema      json.RawMessage `json:"schema"                validate:"required"`
	Schedule    *string         `json:"schedule,omitempty"    validate:"omitempty,cron"`
	IsService   bool            `json:"is_service,omitempty"`
	CatalogHash *string         `json:"-"`
}

// Normalize trims the name and fills the title and description defaults.
func (r *CreateIntegrationRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	if strings.TrimSpace(r.Title) == "" {
		r.Title = r.Name
	}
	if r.Description == nil {
		desc := "Integration:" + r.Name + " does not have a description"
		r.Description = &desc
	}
	r.Schedule = trimmedOrNil(r.Schedule)
}

// Validate validates the CreateIntegrationRequest fields.
func (r *CreateIntegrationRequest) Validate() error {
	if r.Name == "" {
		return apperrors.ValidationField("name", "name is required")
	}
	if utf8.RuneCountInString(r.Name) > maxNameLen {
		return apperrors.ValidationField("name", "name cannot exceed 255 characters")
	}
	if len(r.Schema) == 0 {
		return apperrors.ValidationField("schema", "schema is required")
	}
	if !json.Valid(r.Schema) {
		return apperrors.ValidationField("schema", "schema must be valid JSON")
	}
	return validateSchedule(r.Schedule)
}

// CatalogEntry is one integration as published in the remote catalog document.
type CatalogEntry struct {
	Name        string         `json:"name"        yaml:"name"`
	Title       string         `json:"title"       yaml:"title"`
	Description string         `json:"description" yaml:"description"`
	Schema      map[string]any `json:"schema"      yaml:"schema"`
	Schedule    string         `json:"schedule"    yaml:"schedule"`
	IsService   bool           `json:"is_service"  yaml:"is_service"`
	Enabled     bool           `json:"enabled"     yaml:"enabled"`
}

// SyncResult lists integration names touched by a catalog sync.
type SyncResult struct {
	Created []string `json:"created"`
	Updated []string `json:"updated"`
	Skipped []string `json:"skipped,omitempty"`
}
