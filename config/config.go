package config

import (
	"errors"
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - database.go: Postgres and Redis configuration
//   - http.go: HTTP server and API token configuration
//   - services.go: Service mode, scheduler, worker, reaper and catalog configuration
//   - observability.go: Logging, metrics and tracing configuration
type AppConfig struct {
	// IsDev controls development mode behavior (allows an empty API token).
	IsDev bool `env:"DEV" envDefault:"false"`

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Service mode configuration
	Services string `env:"SERVICES" envDefault:"http"`

	// Dispatch client configuration used by the scheduler and workers
	Dispatch DispatchClientConfig

	// Scheduler configuration
	Scheduler SchedulerConfig

	// Worker configuration
	Worker WorkerConfig

	// Reaper configuration
	Reaper ReaperConfig

	// Catalog sync configuration
	Catalog CatalogConfig

	// Enqueue rate limit configuration
	RateLimit RateLimitConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Dispatch.Sanitize()
	c.Scheduler.Sanitize()
	c.Worker.Sanitize()
	c.Reaper.Sanitize()
	c.Catalog.Sanitize()
	c.RateLimit.Sanitize()
	c.Observability.Sanitize()
	c.Redis.Sanitize()

	c.detectDevMode()
}

// detectDevMode checks both DEV and APP_ENV environment variables.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		appEnv := strings.ToLower(os.Getenv("APP_ENV"))
		c.IsDev = appEnv == "development" || appEnv == "dev"
	}
}

// Validate checks cross-field requirements that Sanitize cannot repair.
func (c *AppConfig) Validate() error {
	services, err := c.GetEnabledServices()
	if err != nil {
		return err
	}
	if services[ServiceModeHTTP] && c.HTTP.APIToken == "" && !c.IsDev {
		return errors.New("API_TOKEN is required when the http service is enabled outside dev mode")
	}
	if services[ServiceModeSync] && !c.Catalog.Configured() {
		return errors.New("CATALOG_URL or CATALOG_PATH is required when the sync service is enabled")
	}
	return nil
}

// NeedsDatabase reports whether any enabled service talks to Postgres directly.
// Schedulers and workers pointed at a remote dispatch API do not.
func (c *AppConfig) NeedsDatabase() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return true
	}
	if services[ServiceModeHTTP] || services[ServiceModeReaper] || services[ServiceModeSync] {
		return true
	}
	return !c.Dispatch.Remote()
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

func (c *AppConfig) serviceEnabled(mode ServiceMode) bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[mode]
}

// IsHTTPServerEnabled returns true if the HTTP server service is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool { return c.serviceEnabled(ServiceModeHTTP) }

// IsSchedulerEnabled returns true if the cron scheduler service is enabled.
func (c *AppConfig) IsSchedulerEnabled() bool { return c.serviceEnabled(ServiceModeScheduler) }

// IsWorkerEnabled returns true if the worker loop service is enabled.
func (c *AppConfig) IsWorkerEnabled() bool { return c.serviceEnabled(ServiceModeWorker) }

// IsReaperEnabled returns true if the reaper service is enabled.
func (c *AppConfig) IsReaperEnabled() bool { return c.serviceEnabled(ServiceModeReaper) }

// IsSyncEnabled returns true if the catalog sync service is enabled.
func (c *AppConfig) IsSyncEnabled() bool { return c.serviceEnabled(ServiceModeSync) }
