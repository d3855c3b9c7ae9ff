// Package scheduler provides adapters for running the cron scheduler.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	obserrors "github.com/target/integrations-dispatch/internal/observability/errors"
	"github.com/target/integrations-dispatch/internal/observability/metrics"
	"github.com/target/integrations-dispatch/internal/observability/statsd"
	"github.com/target/integrations-dispatch/internal/service"
)

// Ticker is the per-tick contract the runner drives.
type Ticker interface {
	Tick(ctx context.Context) (service.TickResult, error)
	Resign(ctx context.Context)
}

// Runner provides a simple adapter to run the scheduler loop.
// It calls Tick at a fixed interval until the context is cancelled.
type Runner struct {
	scheduler Ticker
	interval  time.Duration
	logger    *slog.Logger
	metrics   statsd.Sink
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Scheduler Ticker
	Interval  time.Duration
	Logger    *slog.Logger
	Metrics   statsd.Sink
}

// NewRunner creates a new scheduler runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if err := validateRunnerOptions(&opts); err != nil {
		return nil, err
	}
	return &Runner{
		scheduler: opts.Scheduler,
		interval:  opts.Interval,
		logger:    opts.Logger.With("component", "scheduler_runner"),
		metrics:   opts.Metrics,
	}, nil
}

// validateRunnerOptions validates and sets defaults for RunnerOptions.
func validateRunnerOptions(opts *RunnerOptions) error {
	if opts.Scheduler == nil {
		return errors.New("scheduler is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = statsd.Nop{}
	}
	return nil
}

// Run starts the scheduler loop and runs until the context is cancelled.
// The leader lease, if any, is released on the way out.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting scheduler runner", "interval", r.interval)
	defer r.scheduler.Resign(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "scheduler runner stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			r.tickOnce(ctx)
		}
	}
}

func (r *Runner) tickOnce(ctx context.Context) {
	start := time.Now()
	res, err := r.scheduler.Tick(ctx)
	elapsed := time.Since(start)

	r.emitTickMetrics(res, elapsed, err)

	switch {
	case err != nil:
		// Continue running despite errors
		r.logger.ErrorContext(ctx, "scheduler tick error", "error", err)
	case res.Fired > 0 || res.Failed > 0:
		r.logger.InfoContext(ctx, "scheduler tick",
			"fetched", res.Fetched,
			"fired", res.Fired,
			"skipped", res.Skipped,
			"failed", res.Failed,
		)
	}
}

func (r *Runner) emitTickMetrics(res service.TickResult, elapsed time.Duration, err error) {
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	} else if res.Fired == 0 {
		result = metrics.ResultNoop
	}

	tags := map[string]string{"result": result}
	if err != nil {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}
	r.metrics.Count("scheduler.tick", 1, tags)

	metrics.EmitSchedulerTick(r.metrics, metrics.TickMetric{
		Fetched:  res.Fetched,
		Fired:    res.Fired,
		Skipped:  res.Skipped,
		Failed:   res.Failed,
		Duration: elapsed,
		Leader:   res.Leader,
	})

	if err == nil && res.Leader {
		r.metrics.Gauge("scheduler.last_success_epoch", float64(time.Now().Unix()), nil)
	}
}
