package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/target/integrations-dispatch/internal/core"
	"github.com/target/integrations-dispatch/internal/domain/model"
	apperrors "github.com/target/integrations-dispatch/internal/errors"
)

// DeploymentServiceOptions groups dependencies for DeploymentService.
type DeploymentServiceOptions struct {
	Repo         core.DeploymentRepository  // Required: deployment repository
	Integrations core.IntegrationRepository // Required: schema lookups
	History      DeploymentHistoryRepos     // Optional: violation history
	Logger       *slog.Logger               // Optional: structured logger
}

// DeploymentHistoryRepos backs the per-deployment violation history view.
type DeploymentHistoryRepos struct {
	Jobs       core.DeploymentJobLister
	Violations core.ViolationRepository
}

// DeploymentService manages tenant-scoped deployments.
type DeploymentService struct {
	repo         core.DeploymentRepository
	integrations core.IntegrationRepository
	history      DeploymentHistoryRepos
	logger       *slog.Logger
}

// NewDeploymentService constructs a DeploymentService.
func NewDeploymentService(opts DeploymentServiceOptions) (*DeploymentService, error) {
	if opts.Repo == nil {
		return nil, errors.New("DeploymentRepository is required")
	}
	if opts.Integrations == nil {
		return nil, errors.New("IntegrationRepository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &DeploymentService{
		repo:         opts.Repo,
		integrations: opts.Integrations,
		history:      opts.History,
		logger:       logger.With("component", "deployment_service"),
	}, nil
}

// Create validates the config against the integration's schema and stores the deployment.
func (s *DeploymentService) Create(
	ctx context.Context,
	tenantID string,
	req *model.CreateDeploymentRequest,
) (*model.Deployment, error) {
	req.TenantID = tenantID
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	integ, err := s.integrations.GetByID(ctx, req.IntegrationID)
	if err != nil {
		return nil, err
	}
	if err := validateConfig(integ.Schema, req.Config); err != nil {
		return nil, err
	}

	dep, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "deployment created",
		"deployment_id", dep.ID,
		"tenant_id", tenantID,
		"integration", integ.Name,
		"queue", dep.Queue,
	)
	return dep, nil
}

// Get returns a tenant's deployment.
func (s *DeploymentService) Get(ctx context.Context, tenantID, id string) (*model.Deployment, error) {
	return s.repo.GetForTenant(ctx, tenantID, id)
}

// List returns a tenant's deployments.
func (s *DeploymentService) List(ctx context.Context, tenantID string) ([]*model.Deployment, error) {
	return s.repo.ListByTenant(ctx, tenantID)
}

// Update applies a partial update. A new config is re-validated against the schema.
func (s *DeploymentService) Update(
	ctx context.Context,
	tenantID, id string,
	req model.UpdateDeploymentRequest,
) (*model.Deployment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if len(req.Config) > 0 {
		current, err := s.repo.GetForTenant(ctx, tenantID, id)
		if err != nil {
			return nil, err
		}
		integ, err := s.integrations.GetByID(ctx, current.IntegrationID)
		if err != nil {
			return nil, err
		}
		if err := validateConfig(integ.Schema, req.Config); err != nil {
			return nil, err
		}
	}
	return s.repo.Update(ctx, tenantID, id, req)
}

// Delete removes a tenant's deployment and its jobs.
func (s *DeploymentService) Delete(ctx context.Context, tenantID, id string) error {
	ok, err := s.repo.Delete(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NotFoundf("deployment %s not found", id)
	}
	s.logger.InfoContext(ctx, "deployment deleted", "deployment_id", id, "tenant_id", tenantID)
	return nil
}

// ViolationHistory lists the deployment's jobs, newest first, each with its violations.
func (s *DeploymentService) ViolationHistory(
	ctx context.Context,
	tenantID, id string,
) ([]model.DeploymentJobViolations, error) {
	if s.history.Jobs == nil || s.history.Violations == nil {
		return nil, apperrors.Internal("deployment history is not configured")
	}
	if _, err := s.repo.GetForTenant(ctx, tenantID, id); err != nil {
		return nil, err
	}
	jobs, err := s.history.Jobs.ListByDeployment(ctx, id)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(jobs))
	for _, j := range jobs {
		ids = append(ids, j.ID)
	}
	violations, err := s.history.Violations.ListByJobIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byJob := make(map[string][]*model.Violation, len(jobs))
	for _, v := range violations {
		byJob[v.JobID] = append(byJob[v.JobID], v)
	}
	out := make([]model.DeploymentJobViolations, 0, len(jobs))
	for _, j := range jobs {
		vs := byJob[j.ID]
		if vs == nil {
			vs = []*model.Violation{}
		}
		out = append(out, model.DeploymentJobViolations{
			JobID:      j.ID,
			Status:     j.Status,
			CreatedAt:  j.CreatedAt,
			FinishedAt: j.FinishedAt,
			Violations: vs,
		})
	}
	return out, nil
}
