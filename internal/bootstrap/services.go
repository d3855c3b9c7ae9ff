package bootstrap

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/target/integrations-dispatch/config"
	"github.com/target/integrations-dispatch/internal/adapters/catalogsync"
	redisadapter "github.com/target/integrations-dispatch/internal/adapters/redis"
	"github.com/target/integrations-dispatch/internal/data"
	"github.com/target/integrations-dispatch/internal/ports"
	"github.com/target/integrations-dispatch/internal/service"
)

// ServiceContainer holds all application services. The store-backed services are
// nil when this process has no database (a remote scheduler or worker).
type ServiceContainer struct {
	Dispatch      *service.DispatchService
	Integrations  *service.IntegrationService
	Deployments   *service.DeploymentService
	Jobs          *service.JobQueryService
	Violations    *service.ViolationService
	Catalog       *service.CatalogSyncService // nil without CATALOG_URL or CATALOG_PATH
	Repos         *serviceRepositories
	Observability ObservabilityContainer
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config        *config.AppConfig
	DB            *sql.DB
	RedisClient   redis.UniversalClient
	Observability ObservabilityContainer
	Logger        *slog.Logger
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	DB           *sql.DB
	Jobs         *data.JobRepo
	Deployments  *data.DeploymentRepo
	Integrations *data.IntegrationRepo
	Violations   *data.ViolationRepo
}

// buildRepositories builds repositories backing service ports; no business rules here.
func buildRepositories(db *sql.DB, logger *slog.Logger) *serviceRepositories {
	cfg := data.RepoConfig{Logger: logger}
	return &serviceRepositories{
		DB:           db,
		Jobs:         data.NewJobRepo(db, cfg),
		Deployments:  data.NewDeploymentRepo(db, cfg),
		Integrations: data.NewIntegrationRepo(db, cfg),
		Violations:   data.NewViolationRepo(db, cfg),
	}
}

// NewServices wires the store-backed services. Without a database only the
// observability container is populated.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	out := ServiceContainer{Observability: deps.Observability}
	if deps.DB == nil {
		return out, nil
	}
	cfg := deps.Config
	repos := buildRepositories(deps.DB, logger)
	out.Repos = repos

	limiter, err := newEnqueueLimiter(deps.RedisClient, cfg.RateLimit, logger)
	if err != nil {
		return out, err
	}
	if out.Dispatch, err = service.NewDispatchService(service.DispatchServiceOptions{
		Jobs:        repos.Jobs,
		Deployments: repos.Deployments,
		Violations:  repos.Violations,
		Limiter:     limiter,
		Metrics:     deps.Observability.Metrics,
		Logger:      logger,
	}); err != nil {
		return out, fmt.Errorf("dispatch service: %w", err)
	}
	if out.Integrations, err = service.NewIntegrationService(service.IntegrationServiceOptions{
		Repo:   repos.Integrations,
		Logger: logger,
	}); err != nil {
		return out, fmt.Errorf("integration service: %w", err)
	}
	if out.Deployments, err = service.NewDeploymentService(service.DeploymentServiceOptions{
		Repo:         repos.Deployments,
		Integrations: repos.Integrations,
		History:      service.DeploymentHistoryRepos{Jobs: repos.Jobs, Violations: repos.Violations},
		Logger:       logger,
	}); err != nil {
		return out, fmt.Errorf("deployment service: %w", err)
	}
	if out.Jobs, err = service.NewJobQueryService(repos.Jobs); err != nil {
		return out, fmt.Errorf("job query service: %w", err)
	}
	if out.Violations, err = service.NewViolationService(service.ViolationServiceOptions{
		Repo: repos.Violations,
	}); err != nil {
		return out, fmt.Errorf("violation service: %w", err)
	}
	if cfg.Catalog.Configured() {
		if out.Catalog, err = newCatalogSyncService(repos, cfg.Catalog, deps.Observability, logger); err != nil {
			return out, err
		}
	}
	return out, nil
}

func newCatalogSyncService(
	repos *serviceRepositories,
	cfg config.CatalogConfig,
	obs ObservabilityContainer,
	logger *slog.Logger,
) (*service.CatalogSyncService, error) {
	source, err := catalogsync.NewSource(cfg)
	if err != nil {
		return nil, err
	}
	svc, err := service.NewCatalogSyncService(service.CatalogSyncServiceOptions{
		Repo:    repos.Integrations,
		Source:  source,
		Metrics: obs.Metrics,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("catalog sync service: %w", err)
	}
	return svc, nil
}

// newEnqueueLimiter returns nil (no limit) without Redis or with a zero rate.
//
//nolint:ireturn // the port is what the dispatch service consumes.
func newEnqueueLimiter(client redis.UniversalClient, cfg config.RateLimitConfig, logger *slog.Logger) (ports.RateLimiter, error) {
	if client == nil || cfg.Rate <= 0 {
		logger.Info("on-demand enqueue rate limit disabled")
		return nil, nil
	}
	lim, err := redisadapter.NewTokenBucketLimiter(redisadapter.LimiterOptions{
		Client: client,
		Rate:   cfg.Rate,
		Burst:  cfg.Burst,
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue rate limiter: %w", err)
	}
	logger.Info("on-demand enqueue rate limit enabled", "rate", cfg.Rate, "burst", cfg.Burst)
	return lim, nil
}
