package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/target/integrations-dispatch/internal/core"
	apperrors "github.com/target/integrations-dispatch/internal/errors"
)

// JMESPathEvaluator abstracts JMESPath operations for testability.
type JMESPathEvaluator interface {
	Validate(expr string) error
	Evaluate(expr string, data any) (any, error)
}

// jmespathLibEvaluator implements JMESPathEvaluator using go-jmespath.
type jmespathLibEvaluator struct{}

func (jmespathLibEvaluator) Validate(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	_, err := jmespath.Compile(expr)
	return err
}

func (jmespathLibEvaluator) Evaluate(expr string, data any) (any, error) {
	return jmespath.Search(expr, data)
}

// ViolationServiceOptions groups dependencies for ViolationService.
type ViolationServiceOptions struct {
	Repo      core.ViolationRepository // Required: violation repository
	Evaluator JMESPathEvaluator        // Optional: defaults to go-jmespath
}

// ViolationService serves tenant violation listings.
type ViolationService struct {
	repo core.ViolationRepository
	jems JMESPathEvaluator
}

// NewViolationService constructs a ViolationService.
func NewViolationService(opts ViolationServiceOptions) (*ViolationService, error) {
	if opts.Repo == nil {
		return nil, errors.New("ViolationRepository is required")
	}
	jems := opts.Evaluator
	if jems == nil {
		jems = jmespathLibEvaluator{}
	}
	return &ViolationService{repo: opts.Repo, jems: jems}, nil
}

// ListForTenant returns a tenant's violations. A non-empty filter is a JMESPath
// expression evaluated over the JSON array of violations; its result is returned as is.
func (s *ViolationService) ListForTenant(ctx context.Context, tenantID, filter string) (any, error) {
	filter = strings.TrimSpace(filter)
	if err := s.jems.Validate(filter); err != nil {
		return nil, apperrors.ValidationField("filter", fmt.Sprintf("invalid JMESPath expression: %v", err))
	}

	violations, err := s.repo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if filter == "" {
		return violations, nil
	}

	// Round-trip through JSON so the expression sees wire field names.
	raw, err := json.Marshal(violations)
	if err != nil {
		return nil, fmt.Errorf("encode violations: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode violations: %w", err)
	}
	out, err := s.jems.Evaluate(filter, doc)
	if err != nil {
		return nil, apperrors.ValidationField("filter", fmt.Sprintf("evaluate JMESPath expression: %v", err))
	}
	return out, nil
}
