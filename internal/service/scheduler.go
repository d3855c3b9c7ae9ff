package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/target/integrations-dispatch/internal/data"
	"github.com/target/integrations-dispatch/internal/domain"
	"github.com/target/integrations-dispatch/internal/observability/tracing"
	"github.com/target/integrations-dispatch/internal/ports"
)

// SchedulerServiceOptions holds the dependencies for creating a SchedulerService.
type SchedulerServiceOptions struct {
	Client       ports.DispatchClient // Required: scheduled reads and enqueue
	Lease        ports.LeaderLease    // Optional: single-leader guard across replicas
	TimeProvider data.TimeProvider    // Optional: defaults to real time
	Logger       *slog.Logger         // Optional: structured logger
}

// SchedulerService decides, per tick, which recurring deployments are due and enqueues them.
type SchedulerService struct {
	client       ports.DispatchClient
	lease        ports.LeaderLease
	timeProvider data.TimeProvider
	logger       *slog.Logger
}

// TickResult summarizes one scheduler tick.
type TickResult struct {
	Leader  bool
	Fetched int
	Fired   int
	Skipped int
	Failed  int
}

// NewSchedulerService creates a new SchedulerService with the given dependencies.
func NewSchedulerService(opts SchedulerServiceOptions) (*SchedulerService, error) {
	if opts.Client == nil {
		return nil, errors.New("DispatchClient is required")
	}
	if opts.TimeProvider == nil {
		opts.TimeProvider = &data.RealTimeProvider{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &SchedulerService{
		client:       opts.Client,
		lease:        opts.Lease,
		timeProvider: opts.TimeProvider,
		logger:       opts.Logger.With("component", "scheduler_service"),
	}, nil
}

// Tick runs one scheduling pass.
//
// Algorithm:
// 1. Fetch enabled deployments that carry a schedule
// 2. For each, decide due-ness against last_scheduled_at (never scheduled means due)
// 3. Enqueue each due deployment; enqueue stamps last_scheduled_at with the enqueue time
//
// A malformed schedule or a failed enqueue affects only that deployment. Only a
// failure to fetch the deployment list fails the tick.
func (s *SchedulerService) Tick(ctx context.Context) (res TickResult, err error) {
	ctx, span := tracing.Start(ctx, "scheduler.tick")
	defer func() {
		span.SetAttributes(
			attribute.Bool("leader", res.Leader),
			attribute.Int("fetched", res.Fetched),
			attribute.Int("fired", res.Fired),
			attribute.Int("skipped", res.Skipped),
			attribute.Int("failed", res.Failed),
		)
		tracing.End(span, err)
	}()

	leader, err := s.acquireLeadership(ctx)
	if err != nil || !leader {
		return res, err
	}
	res.Leader = true

	deployments, err := s.client.ScheduledDeployments(ctx)
	if err != nil {
		return res, fmt.Errorf("fetch scheduled deployments: %w", err)
	}
	res.Fetched = len(deployments)

	now := s.timeProvider.Now()
	for _, d := range deployments {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if !d.Recurring() {
			continue
		}
		due, ferr := domain.ShouldFire(*d.Schedule, d.LastScheduledAt, now)
		if ferr != nil {
			res.Skipped++
			s.logger.WarnContext(ctx, "skipping deployment with invalid schedule",
				"deployment_id", d.ID,
				"schedule", *d.Schedule,
				"error", ferr,
			)
			continue
		}
		if !due {
			continue
		}

		jobID, eerr := s.client.Enqueue(ctx, d.ID)
		if eerr != nil {
			res.Failed++
			s.logger.ErrorContext(ctx, "enqueue scheduled deployment failed",
				"deployment_id", d.ID,
				"error", eerr,
			)
			continue
		}
		res.Fired++
		s.logger.InfoContext(ctx, "scheduled deployment fired",
			"deployment_id", d.ID,
			"job_id", jobID,
			"queue", d.Queue,
			"last_scheduled_at", d.LastScheduledAt,
		)
	}
	return res, nil
}

// acquireLeadership reports whether this instance should schedule. Without a lease
// every instance is leader. A lease error skips the tick.
func (s *SchedulerService) acquireLeadership(ctx context.Context) (bool, error) {
	if s.lease == nil {
		return true, nil
	}
	ok, err := s.lease.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire scheduler lease: %w", err)
	}
	if !ok {
		s.logger.DebugContext(ctx, "scheduler lease held elsewhere; skipping tick")
	}
	return ok, nil
}

// Resign releases the leader lease, if any, so a peer can take over promptly.
func (s *SchedulerService) Resign(ctx context.Context) {
	if s.lease == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.lease.Release(ctx); err != nil {
		s.logger.WarnContext(ctx, "release scheduler lease", "error", err)
	}
}
