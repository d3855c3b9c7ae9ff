package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/integrations-dispatch/config"
	"github.com/target/integrations-dispatch/internal/core"
	"github.com/target/integrations-dispatch/internal/data"
	"github.com/target/integrations-dispatch/internal/domain/model"
	"github.com/target/integrations-dispatch/internal/observability/metrics"
	"github.com/target/integrations-dispatch/internal/observability/statsd"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Repo         core.JobReaper      // Required: job store
	Config       config.ReaperConfig // Required: reaper configuration
	TimeProvider data.TimeProvider   // Optional: defaults to real time
	Logger       *slog.Logger        // Optional: structured logger
	Metrics      statsd.Sink         // Optional: metrics sink
}

// ReaperService provides job retention.
//
// This service manages:
// - Deleting finished jobs older than the retention window.
// - Reporting in-progress jobs that have been running longer than StuckAfter.
//
// Stuck jobs are reported only. They are never requeued or failed.
type ReaperService struct {
	repo         core.JobReaper
	config       config.ReaperConfig
	timeProvider data.TimeProvider
	logger       *slog.Logger
	metrics      statsd.Sink
}

// SweepResult summarizes one retention pass.
type SweepResult struct {
	Deleted int64
	Stuck   int
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobReaper is required")
	}
	if opts.TimeProvider == nil {
		opts.TimeProvider = data.RealTimeProvider{}
	}
	if opts.Metrics == nil {
		opts.Metrics = statsd.Nop{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "reaper_service")
	logger.Debug("ReaperService initialized",
		"interval", opts.Config.Interval,
		"job_retention", opts.Config.JobRetention,
		"stuck_after", opts.Config.StuckAfter,
	)

	return &ReaperService{
		repo:         opts.Repo,
		config:       opts.Config,
		timeProvider: opts.TimeProvider,
		logger:       logger,
		metrics:      opts.Metrics,
	}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ReaperService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)

	// Spread replicas that start together.
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if _, err := s.Sweep(ctx); err != nil {
		s.logSweepError(err, "initial sweep")
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logSweepError(err, "sweep")
			}
		}
	}
}

// waitWithJitter adds a random delay up to 10% of the interval.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

// Sweep deletes finished jobs past retention and counts stuck in-progress jobs.
// Both steps run even when the other fails.
func (s *ReaperService) Sweep(ctx context.Context) (SweepResult, error) {
	now := s.timeProvider.Now()
	var (
		res  SweepResult
		errs []error
	)

	cutoff := now.Add(-s.config.JobRetention)
	deleted, err := s.repo.DeleteRange(ctx, model.TimeRange{Before: &cutoff})
	if err != nil {
		errs = append(errs, fmt.Errorf("delete finished jobs: %w", err))
	} else {
		res.Deleted = deleted
		if deleted > 0 {
			s.logger.InfoContext(ctx, "deleted finished jobs",
				"count", deleted,
				"retention", s.config.JobRetention,
			)
		}
	}

	stuck, err := s.repo.CountStuck(ctx, now.Add(-s.config.StuckAfter))
	if err != nil {
		errs = append(errs, fmt.Errorf("count stuck jobs: %w", err))
	} else {
		res.Stuck = stuck
		if stuck > 0 {
			s.logger.WarnContext(ctx, "jobs in progress beyond threshold",
				"count", stuck,
				"stuck_after", s.config.StuckAfter,
			)
		}
	}

	joined := errors.Join(errs...)
	metrics.EmitReaperSweep(s.metrics, res.Deleted, res.Stuck, joined)
	return res, joined
}

func (s *ReaperService) logSweepError(err error, label string) {
	if isContextCancellation(err) {
		s.logger.Debug(label+" cancelled by context", "error", err)
		return
	}
	s.logger.Error(label+" failed", "error", err)
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
