// Package jobrunner runs worker loops that claim and execute dispatch jobs.
package jobrunner

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/target/integrations-dispatch/internal/service"
)

// Worker is the single-iteration contract the runner drives.
type Worker interface {
	RunOnce(ctx context.Context) (service.RunOutcome, error)
}

// RunnerOptions configures the job runner adapter.
type RunnerOptions struct {
	Worker Worker
	Logger *slog.Logger

	// Interval is the base pause after each iteration; defaults to 60s.
	Interval time.Duration
	// Concurrency is the number of independent loops; defaults to 1.
	Concurrency int
}

// Runner drives Worker.RunOnce in Concurrency independent loops.
type Runner struct {
	worker   Worker
	logger   *slog.Logger
	interval time.Duration
	workers  int

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) bool
}

// NewRunner constructs a Runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Worker == nil {
		return nil, errors.New("worker is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	workers := opts.Concurrency
	if workers <= 0 {
		workers = 1
	}
	return &Runner{
		worker:   opts.Worker,
		logger:   logger.With("component", "jobrunner"),
		interval: interval,
		workers:  workers,
		sleep:    sleepCtx,
	}, nil
}

// Run starts the worker loops and blocks until ctx is cancelled.
// Returns nil on graceful shutdown.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting job runner", "workers", r.workers, "interval", r.interval)

	g, gctx := errgroup.WithContext(ctx)
	for i := range r.workers {
		g.Go(func() error { return r.workerLoop(gctx, i) })
	}
	err := g.Wait()
	if err == nil || errors.Is(err, context.Canceled) {
		r.logger.InfoContext(ctx, "job runner stopped")
		return nil
	}
	return err
}

func (r *Runner) workerLoop(ctx context.Context, id int) error {
	log := r.logger.With("loop", id)
	for ctx.Err() == nil {
		outcome, err := r.worker.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.ErrorContext(ctx, "worker iteration failed", "error", err)
		} else if outcome != service.OutcomeIdle {
			log.DebugContext(ctx, "worker iteration finished", "outcome", outcome)
		}
		if !r.sleep(ctx, r.interval+jitter(r.interval)) {
			return nil
		}
	}
	return nil
}

// jitter returns a random duration in [0, interval/2). It is zero if crypto/rand fails.
func jitter(interval time.Duration) time.Duration {
	maxJitter := int64(interval / 2)
	if maxJitter <= 0 {
		return 0
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0
	}
	n := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	return time.Duration(int64(n)) // #nosec G115 - bounded by maxJitter which is int64
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
