package catalogsync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/target/integrations-dispatch/internal/domain/model"
)

// Syncer performs one catalog sync.
type Syncer interface {
	Sync(ctx context.Context) (*model.SyncResult, error)
}

// RunnerOptions configures the re-sync actor.
type RunnerOptions struct {
	Syncer   Syncer
	Interval time.Duration
	Logger   *slog.Logger
}

// Runner re-syncs the catalog on a fixed interval. A failed sync is logged and
// the next tick tries again.
type Runner struct {
	syncer   Syncer
	interval time.Duration
	logger   *slog.Logger
}

// NewRunner constructs a Runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Syncer == nil {
		return nil, errors.New("syncer is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Runner{
		syncer:   opts.Syncer,
		interval: opts.Interval,
		logger:   opts.Logger.With("component", "catalog_sync_runner"),
	}, nil
}

// Run syncs immediately and then every interval until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting catalog sync runner", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.syncOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "catalog sync runner stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			r.syncOnce(ctx)
		}
	}
}

func (r *Runner) syncOnce(ctx context.Context) {
	res, err := r.syncer.Sync(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.logger.ErrorContext(ctx, "catalog sync failed", "error", err)
		return
	}
	if len(res.Created) > 0 || len(res.Updated) > 0 {
		r.logger.InfoContext(ctx, "catalog changes applied",
			"created", res.Created,
			"updated", res.Updated,
		)
	}
}
