package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/target/integrations-dispatch/internal/core"
	"github.com/target/integrations-dispatch/internal/domain/model"
	apperrors "github.com/target/integrations-dispatch/internal/errors"
	"github.com/target/integrations-dispatch/internal/observability/metrics"
	"github.com/target/integrations-dispatch/internal/observability/statsd"
	"github.com/target/integrations-dispatch/internal/observability/tracing"
	"github.com/target/integrations-dispatch/internal/ports"
)

// DispatchServiceOptions groups dependencies for DispatchService.
type DispatchServiceOptions struct {
	Jobs        core.JobRepository        // Required: job store
	Deployments core.DeploymentRepository // Required: scheduled deployment reads
	Violations  core.ViolationRepository  // Required: violation recording
	Limiter     ports.RateLimiter         // Optional: on-demand enqueue limit
	Metrics     statsd.Sink               // Optional: lifecycle metrics
	Logger      *slog.Logger              // Optional: structured logger
}

// DispatchService is the thin layer behind the dispatch API. It validates input,
// applies the enqueue limit and delegates every invariant to the job store.
type DispatchService struct {
	jobs        core.JobRepository
	deployments core.DeploymentRepository
	violations  core.ViolationRepository
	limiter     ports.RateLimiter
	metrics     statsd.Sink
	logger      *slog.Logger
}

// EnqueueRequest asks for a new queued job.
type EnqueueRequest struct {
	DeploymentID string
	// FromScheduler exempts the request from the on-demand rate limit.
	FromScheduler bool
}

// NewDispatchService constructs a DispatchService.
func NewDispatchService(opts DispatchServiceOptions) (*DispatchService, error) {
	if opts.Jobs == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Deployments == nil {
		return nil, errors.New("DeploymentRepository is required")
	}
	if opts.Violations == nil {
		return nil, errors.New("ViolationRepository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sink := opts.Metrics
	if sink == nil {
		sink = statsd.Nop{}
	}
	return &DispatchService{
		jobs:        opts.Jobs,
		deployments: opts.Deployments,
		violations:  opts.Violations,
		limiter:     opts.Limiter,
		metrics:     sink,
		logger:      logger.With("component", "dispatch_service"),
	}, nil
}

// ScheduledDeployments returns enabled deployments that carry a schedule.
func (s *DispatchService) ScheduledDeployments(ctx context.Context) ([]*model.Deployment, error) {
	return s.deployments.ListScheduled(ctx)
}

// Enqueue creates a queued job and stamps the deployment's last_scheduled_at.
func (s *DispatchService) Enqueue(ctx context.Context, req EnqueueRequest) (job *model.Job, err error) {
	ctx, span := tracing.Start(ctx, "dispatch.enqueue",
		attribute.String("deployment_id", req.DeploymentID),
		attribute.Bool("scheduled", req.FromScheduler),
	)
	defer func() { tracing.End(span, err) }()

	if req.DeploymentID == "" {
		return nil, apperrors.ValidationField("deployment_id", "deployment_id is required")
	}
	if !req.FromScheduler {
		if limErr := s.checkLimit(ctx, req.DeploymentID); limErr != nil {
			metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
				Transition: metrics.TransitionEnqueue, Result: metrics.ResultNoop, Err: limErr,
			})
			return nil, limErr
		}
	}

	job, err = s.jobs.Enqueue(ctx, req.DeploymentID)
	if err != nil {
		metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
			Transition: metrics.TransitionEnqueue, Result: metrics.ResultError, Err: err,
		})
		return nil, err
	}
	metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
		Queue: job.Queue, Unit: job.IntegrationName,
		Transition: metrics.TransitionEnqueue, Result: metrics.ResultSuccess,
	})
	s.logger.InfoContext(ctx, "job enqueued",
		"job_id", job.ID,
		"deployment_id", job.DeploymentID,
		"queue", job.Queue,
		"scheduled", req.FromScheduler,
	)
	return job, nil
}

// checkLimit fails open when the limiter itself errors.
func (s *DispatchService) checkLimit(ctx context.Context, deploymentID string) error {
	if s.limiter == nil {
		return nil
	}
	ok, err := s.limiter.Allow(ctx, "enqueue:"+deploymentID)
	if err != nil {
		s.logger.WarnContext(ctx, "enqueue rate limiter unavailable", "deployment_id", deploymentID, "error", err)
		return nil
	}
	if !ok {
		return apperrors.RateLimited(fmt.Sprintf("enqueue rate exceeded for deployment %s", deploymentID))
	}
	return nil
}

// ClaimNext claims the oldest queued job on queue. It returns model.ErrNoJobsAvailable
// when the queue is empty.
func (s *DispatchService) ClaimNext(ctx context.Context, queue string) (job *model.Job, err error) {
	if queue == "" {
		queue = model.DefaultQueue
	}
	ctx, span := tracing.Start(ctx, "dispatch.claim", attribute.String("queue", queue))
	defer func() {
		if errors.Is(err, model.ErrNoJobsAvailable) {
			tracing.End(span, nil)
			return
		}
		tracing.End(span, err)
	}()

	job, err = s.jobs.ClaimNext(ctx, queue)
	switch {
	case errors.Is(err, model.ErrNoJobsAvailable):
		return nil, err
	case err != nil:
		metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
			Queue: queue, Transition: metrics.TransitionClaim, Result: metrics.ResultError, Err: err,
		})
		return nil, err
	}

	var waited time.Duration
	if job.StartedAt != nil {
		waited = job.StartedAt.Sub(job.CreatedAt)
	}
	metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
		Queue: queue, Unit: job.IntegrationName,
		Transition: metrics.TransitionClaim, Result: metrics.ResultSuccess, Duration: waited,
	})
	span.SetAttributes(attribute.String("job_id", job.ID))
	return job, nil
}

// GetJob returns a job by id.
func (s *DispatchService) GetJob(ctx context.Context, id string) (*model.Job, error) {
	return s.jobs.GetByID(ctx, id)
}

// Complete records a job's terminal status and result.
func (s *DispatchService) Complete(
	ctx context.Context,
	id string,
	req model.CompleteJobRequest,
) (job *model.Job, err error) {
	ctx, span := tracing.Start(ctx, "dispatch.complete", attribute.String("job_id", id))
	defer func() { tracing.End(span, err) }()

	req.Normalize()
	if err = req.Validate(); err != nil {
		return nil, err
	}

	job, err = s.jobs.Complete(ctx, id, req)
	if err != nil {
		metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
			Transition: metrics.TransitionComplete, Result: metrics.ResultError, Err: err,
		})
		return nil, err
	}

	var ran time.Duration
	if secs := job.ExecutionSeconds(); secs != nil {
		ran = time.Duration(*secs) * time.Second
	}
	result := metrics.ResultSuccess
	if job.Status == model.JobStatusError {
		result = metrics.ResultError
	}
	metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
		Queue: job.Queue, Unit: job.IntegrationName,
		Transition: metrics.TransitionComplete, Result: result, Duration: ran,
	})
	s.logger.InfoContext(ctx, "job completed",
		"job_id", job.ID,
		"deployment_id", job.DeploymentID,
		"status", job.Status,
	)
	return job, nil
}

// DeleteRange removes finished jobs inside the window. An unbounded window is rejected.
func (s *DispatchService) DeleteRange(ctx context.Context, rng model.TimeRange) (int64, error) {
	if err := rng.Validate(); err != nil {
		return 0, err
	}
	n, err := s.jobs.DeleteRange(ctx, rng)
	if err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "jobs deleted", "deleted", n, "before", rng.Before, "after", rng.After)
	return n, nil
}

// RecordViolation attaches a finding to a job.
func (s *DispatchService) RecordViolation(
	ctx context.Context,
	jobID string,
	req model.CreateViolationRequest,
) (*model.Violation, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	v, err := s.violations.Create(ctx, jobID, &req)
	if err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "violation recorded", "job_id", jobID, "task_name", v.TaskName, "severity", v.Severity)
	return v, nil
}
