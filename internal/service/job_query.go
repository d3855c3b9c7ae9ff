package service

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/target/integrations-dispatch/internal/core"
	"github.com/target/integrations-dispatch/internal/domain/model"
)

// JobQueryService serves the tenant-scoped job listings of the management API.
type JobQueryService struct {
	repo core.JobRepository
}

// NewJobQueryService constructs a JobQueryService.
func NewJobQueryService(repo core.JobRepository) (*JobQueryService, error) {
	if repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	return &JobQueryService{repo: repo}, nil
}

// List returns one page of a tenant's jobs, newest first, with the total count.
func (s *JobQueryService) List(ctx context.Context, opts model.JobListOptions) (*model.JobPage, error) {
	opts.Normalize()

	var (
		jobs  []*model.Job
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		jobs, err = s.repo.List(gctx, opts)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.repo.Count(gctx, opts)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []*model.Job{}
	}
	return &model.JobPage{
		Jobs:       jobs,
		Pagination: model.NewPagination(opts.Page, opts.PerPage, total),
	}, nil
}

// Get returns a tenant's job.
func (s *JobQueryService) Get(ctx context.Context, tenantID, id string) (*model.Job, error) {
	return s.repo.GetForTenant(ctx, tenantID, id)
}
