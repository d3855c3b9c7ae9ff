package dispatchclient

import (
	"context"
	"errors"

	"github.com/target/integrations-dispatch/internal/domain/model"
	"github.com/target/integrations-dispatch/internal/ports"
	"github.com/target/integrations-dispatch/internal/service"
)

var _ ports.DispatchClient = (*LocalClient)(nil)

// LocalClient calls the dispatch service directly when the scheduler or workers
// share a process with the API.
type LocalClient struct {
	svc *service.DispatchService
}

// NewLocalClient wraps svc.
func NewLocalClient(svc *service.DispatchService) (*LocalClient, error) {
	if svc == nil {
		return nil, errors.New("DispatchService is required")
	}
	return &LocalClient{svc: svc}, nil
}

func (c *LocalClient) ScheduledDeployments(ctx context.Context) ([]*model.Deployment, error) {
	return c.svc.ScheduledDeployments(ctx)
}

// Enqueue is always a scheduler enqueue and is not rate limited.
func (c *LocalClient) Enqueue(ctx context.Context, deploymentID string) (string, error) {
	job, err := c.svc.Enqueue(ctx, service.EnqueueRequest{DeploymentID: deploymentID, FromScheduler: true})
	if err != nil {
		return "", err
	}
	return job.ID, nil
}

func (c *LocalClient) ClaimNext(ctx context.Context, queue string) (*model.Job, error) {
	return c.svc.ClaimNext(ctx, queue)
}

func (c *LocalClient) Complete(ctx context.Context, jobID string, req model.CompleteJobRequest) error {
	_, err := c.svc.Complete(ctx, jobID, req)
	return err
}

func (c *LocalClient) ReportViolation(ctx context.Context, jobID string, req model.CreateViolationRequest) (string, error) {
	v, err := c.svc.RecordViolation(ctx, jobID, req)
	if err != nil {
		return "", err
	}
	return v.ID, nil
}
