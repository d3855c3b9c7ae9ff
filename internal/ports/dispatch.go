package ports

import (
	"context"

	"github.com/target/integrations-dispatch/internal/domain/model"
)

const (
	// SourceHeader names the request header a caller uses to identify itself to the dispatch API.
	SourceHeader = "X-Dispatch-Source"
	// SourceScheduler marks enqueue calls made by the cron scheduler. Together with the
	// scheduler bearer token it exempts the call from the rate limit.
	SourceScheduler = "scheduler"
)

// DispatchClient is the boundary the Cron Scheduler and Worker Loop use to reach
// the job store. Implementations talk HTTP to a remote API or call the dispatch
// service in process.
type DispatchClient interface {
	// ScheduledDeployments returns enabled deployments that carry a schedule.
	ScheduledDeployments(ctx context.Context) ([]*model.Deployment, error)
	// Enqueue creates a queued job for the deployment and returns its id.
	Enqueue(ctx context.Context, deploymentID string) (string, error)
	// ClaimNext returns model.ErrNoJobsAvailable when the queue is empty.
	ClaimNext(ctx context.Context, queue string) (*model.Job, error)
	Complete(ctx context.Context, jobID string, req model.CompleteJobRequest) error
	ReportViolation(ctx context.Context, jobID string, req model.CreateViolationRequest) (string, error)
}
