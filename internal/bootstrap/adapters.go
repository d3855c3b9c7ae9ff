package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/integrations-dispatch/config"
	"github.com/target/integrations-dispatch/internal/adapters/catalogsync"
	"github.com/target/integrations-dispatch/internal/adapters/dispatchclient"
	"github.com/target/integrations-dispatch/internal/adapters/jobrunner"
	"github.com/target/integrations-dispatch/internal/adapters/journal"
	"github.com/target/integrations-dispatch/internal/adapters/provider"
	"github.com/target/integrations-dispatch/internal/adapters/reaper"
	redisadapter "github.com/target/integrations-dispatch/internal/adapters/redis"
	schedrunner "github.com/target/integrations-dispatch/internal/adapters/scheduler"
	"github.com/target/integrations-dispatch/internal/observability/statsd"
	"github.com/target/integrations-dispatch/internal/ports"
	"github.com/target/integrations-dispatch/internal/service"
)

// NewDispatchClient returns an HTTP client when DISPATCH_API_URL is set and the
// in-process client otherwise.
//
//nolint:ireturn // callers depend on the port, not the transport.
func NewDispatchClient(cfg config.DispatchClientConfig, dispatch *service.DispatchService) (ports.DispatchClient, error) {
	if cfg.Remote() {
		c, err := dispatchclient.NewHTTPClient(dispatchclient.Config{
			BaseURL:        cfg.APIURL,
			Timeout:        cfg.Timeout,
			SchedulerToken: cfg.SchedulerToken,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	if dispatch == nil {
		return nil, errors.New("in-process dispatch requires a database; set DISPATCH_API_URL to use a remote API")
	}
	c, err := dispatchclient.NewLocalClient(dispatch)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// SchedulerConfig contains configuration for the scheduler service.
type SchedulerConfig struct {
	Client      ports.DispatchClient
	RedisClient redis.UniversalClient
	Config      config.SchedulerConfig
	Logger      *slog.Logger
	Metrics     statsd.Sink
}

// RunScheduler starts the cron scheduler. With Redis the replicas elect a leader;
// without it every replica schedules.
func RunScheduler(ctx context.Context, cfg SchedulerConfig) error {
	var lease ports.LeaderLease
	if cfg.RedisClient != nil {
		l, err := redisadapter.NewLease(redisadapter.LeaseOptions{
			Client: cfg.RedisClient,
			TTL:    cfg.Config.LeaderTTL,
			Logger: cfg.Logger,
		})
		if err != nil {
			return fmt.Errorf("create scheduler lease: %w", err)
		}
		lease = l
	}

	svc, err := service.NewSchedulerService(service.SchedulerServiceOptions{
		Client: cfg.Client,
		Lease:  lease,
		Logger: cfg.Logger,
	})
	if err != nil {
		return fmt.Errorf("create scheduler service: %w", err)
	}

	runner, err := schedrunner.NewRunner(schedrunner.RunnerOptions{
		Scheduler: svc,
		Interval:  cfg.Config.Interval,
		Logger:    cfg.Logger,
		Metrics:   cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create scheduler runner: %w", err)
	}
	return runner.Run(ctx)
}

// WorkerConfig contains configuration for the worker loops.
type WorkerConfig struct {
	Client  ports.DispatchClient
	Config  config.WorkerConfig
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// RunWorker starts WORKER_CONCURRENCY claim/execute/report loops.
func RunWorker(ctx context.Context, cfg WorkerConfig) error {
	execProvider, err := NewExecutionProvider(cfg.Config, cfg.Logger)
	if err != nil {
		return err
	}

	var completions ports.CompletionJournal
	if cfg.Config.JournalPath != "" {
		j, openErr := journal.Open(ctx, cfg.Config.JournalPath)
		if openErr != nil {
			return fmt.Errorf("open report journal: %w", openErr)
		}
		defer func() {
			if cerr := j.Close(); cerr != nil {
				cfg.Logger.Warn("close report journal", "error", cerr)
			}
		}()
		completions = j
	}

	worker, err := service.NewWorkerService(service.WorkerServiceOptions{
		Client:   cfg.Client,
		Provider: execProvider,
		Journal:  completions,
		Queue:    cfg.Config.Queue,
		Metrics:  cfg.Metrics,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return fmt.Errorf("create worker service: %w", err)
	}

	runner, err := jobrunner.NewRunner(jobrunner.RunnerOptions{
		Worker:      worker,
		Logger:      cfg.Logger,
		Interval:    cfg.Config.PollInterval,
		Concurrency: cfg.Config.Concurrency,
	})
	if err != nil {
		return fmt.Errorf("create job runner: %w", err)
	}
	return runner.Run(ctx)
}

// NewExecutionProvider chains the builtin handlers with the subprocess units in
// PROVIDER_DIR, when set. Builtins win on a name clash.
//
//nolint:ireturn // the worker depends on the port.
func NewExecutionProvider(cfg config.WorkerConfig, logger *slog.Logger) (ports.ExecutionProvider, error) {
	builtins := provider.NewRegistry()
	if cfg.ProviderDir == "" {
		return provider.NewChain(builtins), nil
	}
	sub, err := provider.NewSubprocess(provider.SubprocessConfig{
		Dir:       cfg.ProviderDir,
		KillGrace: cfg.KillGrace,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create subprocess provider: %w", err)
	}
	return provider.NewChain(builtins, sub), nil
}

// ReaperConfig contains configuration for the reaper service.
type ReaperConfig struct {
	Repos   *serviceRepositories
	Logger  *slog.Logger
	Config  config.ReaperConfig
	Metrics statsd.Sink
}

// RunReaper starts the reaper service.
func RunReaper(ctx context.Context, cfg ReaperConfig) error {
	if cfg.Repos == nil {
		return errors.New("reaper requires a database")
	}
	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		DB:      cfg.Repos.DB,
		Repo:    cfg.Repos.Jobs,
		Config:  cfg.Config,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}

	return runner.Run(ctx)
}

// CatalogSyncConfig contains configuration for the catalog sync service.
type CatalogSyncConfig struct {
	Syncer   *service.CatalogSyncService
	Interval time.Duration
	Logger   *slog.Logger
}

// RunCatalogSync starts the periodic catalog sync.
func RunCatalogSync(ctx context.Context, cfg CatalogSyncConfig) error {
	if cfg.Syncer == nil {
		return errors.New("catalog sync requires a database and a catalog source")
	}
	runner, err := catalogsync.NewRunner(catalogsync.RunnerOptions{
		Syncer:   cfg.Syncer,
		Interval: cfg.Interval,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return fmt.Errorf("create catalog sync runner: %w", err)
	}
	return runner.Run(ctx)
}
