package ports

// Package ports defines interfaces (hexagonal ports) for dispatch behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"encoding/json"
	"time"

	"github.com/target/integrations-dispatch/internal/domain/model"
)

// ExecutionProvider runs one unit of work for a claimed job.
//
// Implementations should honor ctx cancellation where they can. The worker enforces
// the timeout regardless and abandons a provider that does not return in time.
type ExecutionProvider interface {
	Execute(ctx context.Context, unit string, config json.RawMessage, timeout time.Duration) (json.RawMessage, error)
}

// ViolationReporter records a finding against the job being executed.
type ViolationReporter func(ctx context.Context, req model.CreateViolationRequest) error

type violationReporterKey struct{}

// WithViolationReporter attaches the reporter for the current job to ctx.
func WithViolationReporter(ctx context.Context, r ViolationReporter) context.Context {
	return context.WithValue(ctx, violationReporterKey{}, r)
}

// ViolationReporterFrom returns the reporter attached to ctx, or nil.
func ViolationReporterFrom(ctx context.Context) ViolationReporter {
	r, _ := ctx.Value(violationReporterKey{}).(ViolationReporter)
	return r
}
