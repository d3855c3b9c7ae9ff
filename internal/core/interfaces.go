// Package core declares the repository ports the service layer depends on.
package core

import (
	"context"
	"time"

	"github.com/target/integrations-dispatch/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// Service implementations depend on these interfaces, not on internal/data.

// JobRepository is the Job Store: the single source of truth for job state and the
// owner of the claim protocol.
type JobRepository interface {
	// Enqueue creates a queued job and stamps the deployment's last_scheduled_at in one statement.
	Enqueue(ctx context.Context, deploymentID string) (*model.Job, error)
	// ClaimNext moves the oldest claimable queued job on queue to in-progress.
	// It returns model.ErrNoJobsAvailable instead of waiting on rows locked by other claimants.
	ClaimNext(ctx context.Context, queue string) (*model.Job, error)
	// Complete records a terminal status and result for a claimed job.
	Complete(ctx context.Context, id string, req model.CompleteJobRequest) (*model.Job, error)
	// DeleteRange deletes jobs whose finished_at falls inside the bounded range.
	DeleteRange(ctx context.Context, r model.TimeRange) (int64, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)
	GetForTenant(ctx context.Context, tenantID, id string) (*model.Job, error)
	List(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error)
	Count(ctx context.Context, opts model.JobListOptions) (int, error)
	// CountStuck counts in-progress jobs claimed before the cutoff.
	CountStuck(ctx context.Context, startedBefore time.Time) (int, error)
}

// DeploymentRepository defines tenant-scoped deployment persistence.
type DeploymentRepository interface {
	Create(ctx context.Context, req *model.CreateDeploymentRequest) (*model.Deployment, error)
	GetByID(ctx context.Context, id string) (*model.Deployment, error)
	GetForTenant(ctx context.Context, tenantID, id string) (*model.Deployment, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*model.Deployment, error)
	Update(ctx context.Context, tenantID, id string, req model.UpdateDeploymentRequest) (*model.Deployment, error)
	Delete(ctx context.Context, tenantID, id string) (bool, error)
	// ListScheduled returns enabled deployments with a non-null schedule.
	ListScheduled(ctx context.Context) ([]*model.Deployment, error)
}

// IntegrationRepository defines catalog persistence.
type IntegrationRepository interface {
	Create(ctx context.Context, req *model.CreateIntegrationRequest) (*model.Integration, error)
	GetByID(ctx context.Context, id string) (*model.Integration, error)
	GetByName(ctx context.Context, name string) (*model.Integration, error)
	List(ctx context.Context) ([]*model.Integration, error)
	// UpdateFromCatalog overwrites the catalog-managed fields of an existing integration.
	UpdateFromCatalog(ctx context.Context, id string, req *model.CreateIntegrationRequest) (*model.Integration, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// ViolationRepository defines violation persistence. Violations are append-only.
type ViolationRepository interface {
	Create(ctx context.Context, jobID string, req *model.CreateViolationRequest) (*model.Violation, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*model.Violation, error)
	ListByJobIDs(ctx context.Context, jobIDs []string) ([]*model.Violation, error)
}

// DeploymentJobLister lists every job for a deployment, newest first, for history views.
type DeploymentJobLister interface {
	ListByDeployment(ctx context.Context, deploymentID string) ([]*model.Job, error)
}

// JobReaper is the slice of the job store the retention sweep needs.
type JobReaper interface {
	DeleteRange(ctx context.Context, r model.TimeRange) (int64, error)
	CountStuck(ctx context.Context, startedBefore time.Time) (int, error)
}
