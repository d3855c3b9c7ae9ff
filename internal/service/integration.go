package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/integrations-dispatch/internal/core"
	"github.com/target/integrations-dispatch/internal/domain/model"
)

// IntegrationServiceOptions groups dependencies for IntegrationService.
type IntegrationServiceOptions struct {
	Repo   core.IntegrationRepository // Required: catalog repository
	Logger *slog.Logger               // Optional: structured logger
}

// IntegrationService manages the integration catalog.
type IntegrationService struct {
	repo   core.IntegrationRepository
	logger *slog.Logger
}

// NewIntegrationService constructs an IntegrationService.
func NewIntegrationService(opts IntegrationServiceOptions) (*IntegrationService, error) {
	if opts.Repo == nil {
		return nil, errors.New("IntegrationRepository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &IntegrationService{repo: opts.Repo, logger: logger.With("component", "integration_service")}, nil
}

// Create registers an integration after checking that its schema compiles.
func (s *IntegrationService) Create(ctx context.Context, req *model.CreateIntegrationRequest) (*model.Integration, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := compileSchema(req.Schema); err != nil {
		return nil, err
	}
	integ, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "integration created", "integration_id", integ.ID, "name", integ.Name)
	return integ, nil
}

// Get returns an integration by id.
func (s *IntegrationService) Get(ctx context.Context, id string) (*model.Integration, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns the catalog ordered by name.
func (s *IntegrationService) List(ctx context.Context) ([]*model.Integration, error) {
	return s.repo.List(ctx)
}

// DeleteAll clears the catalog along with every deployment, job and violation.
func (s *IntegrationService) DeleteAll(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete integrations: %w", err)
	}
	s.logger.WarnContext(ctx, "integration catalog cleared", "deleted", n)
	return n, nil
}
