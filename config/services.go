package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the dispatch and management HTTP API.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeScheduler runs the cron scheduler.
	ServiceModeScheduler ServiceMode = "scheduler"
	// ServiceModeWorker runs the worker loops.
	ServiceModeWorker ServiceMode = "worker"
	// ServiceModeReaper runs the job retention sweep.
	ServiceModeReaper ServiceMode = "reaper"
	// ServiceModeSync runs the periodic integration catalog sync.
	ServiceModeSync ServiceMode = "sync"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeScheduler,
		ServiceModeWorker,
		ServiceModeReaper,
		ServiceModeSync,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	for part := range strings.SplitSeq(servicesStr, ",") {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP,
			ServiceModeScheduler,
			ServiceModeWorker,
			ServiceModeReaper,
			ServiceModeSync:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, scheduler, worker, reaper, sync)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// DispatchClientConfig selects how the scheduler and workers reach the job store.
type DispatchClientConfig struct {
	// APIURL is the base URL of a remote dispatch API. Empty means in-process.
	APIURL string `env:"DISPATCH_API_URL"`

	// Timeout bounds each dispatch API call.
	Timeout time.Duration `env:"DISPATCH_API_TIMEOUT" envDefault:"30s"`

	// SchedulerToken authenticates scheduler enqueues against the remote API.
	SchedulerToken string `env:"SCHEDULER_TOKEN"`
}

// Sanitize trims the URL and enforces a minimum timeout.
func (d *DispatchClientConfig) Sanitize() {
	d.APIURL = strings.TrimRight(strings.TrimSpace(d.APIURL), "/")
	d.SchedulerToken = strings.TrimSpace(d.SchedulerToken)
	if d.Timeout < time.Second {
		d.Timeout = time.Second
	}
}

// Remote reports whether calls go over HTTP.
func (d *DispatchClientConfig) Remote() bool {
	return d.APIURL != ""
}

// SchedulerConfig contains cron scheduler configuration.
type SchedulerConfig struct {
	// Interval is the scheduler tick interval.
	Interval time.Duration `env:"SCHEDULER_INTERVAL" envDefault:"30s"`

	// LeaderTTL is the lifetime of the Redis leader lease. Only used when Redis is configured.
	LeaderTTL time.Duration `env:"SCHEDULER_LEADER_TTL" envDefault:"90s"`
}

// Sanitize applies guardrails to scheduler configuration values.
func (s *SchedulerConfig) Sanitize() {
	if s.Interval < time.Second {
		s.Interval = time.Second
	}
	if s.LeaderTTL < 2*s.Interval {
		s.LeaderTTL = 2 * s.Interval
	}
}

// WorkerConfig contains worker loop configuration.
type WorkerConfig struct {
	// Queue is the queue this worker claims from.
	Queue string `env:"WORKER_QUEUE" envDefault:"default"`

	// PollInterval is the base sleep between iterations; jitter in [0, interval/2) is added.
	PollInterval time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"60s"`

	// Concurrency is the number of independent worker loops in this process.
	Concurrency int `env:"WORKER_CONCURRENCY" envDefault:"1"`

	// ProviderDir holds subprocess units laid out as <dir>/<unit>/entry.
	ProviderDir string `env:"PROVIDER_DIR"`

	// KillGrace is how long a subprocess gets between SIGTERM and SIGKILL.
	KillGrace time.Duration `env:"PROVIDER_KILL_GRACE" envDefault:"5s"`

	// JournalPath is the SQLite file that records completions the API did not accept.
	// Empty disables the journal.
	JournalPath string `env:"JOURNAL_PATH"`
}

// Sanitize applies guardrails to worker configuration values.
func (w *WorkerConfig) Sanitize() {
	if w.Queue = strings.TrimSpace(w.Queue); w.Queue == "" {
		w.Queue = "default"
	}
	if w.PollInterval < 100*time.Millisecond {
		w.PollInterval = 100 * time.Millisecond
	}
	if w.Concurrency < 1 {
		w.Concurrency = 1
	}
	if w.Concurrency > 64 {
		w.Concurrency = 64
	}
	if w.KillGrace <= 0 {
		w.KillGrace = 5 * time.Second
	}
	w.ProviderDir = strings.TrimSpace(w.ProviderDir)
	w.JournalPath = strings.TrimSpace(w.JournalPath)
}

// ReaperConfig contains job reaper service configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"1h"`

	// JobRetention is how long finished jobs are kept before deletion.
	JobRetention time.Duration `env:"REAPER_JOB_RETENTION" envDefault:"720h"` // 30 days

	// StuckAfter reports in-progress jobs started longer ago than this. They are never requeued.
	StuckAfter time.Duration `env:"REAPER_STUCK_AFTER" envDefault:"24h"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	// Enforce minimum intervals to prevent excessive database load
	if r.Interval < time.Minute {
		r.Interval = time.Minute
	}
	if r.JobRetention < time.Hour {
		r.JobRetention = time.Hour
	}
	if r.StuckAfter < time.Minute {
		r.StuckAfter = time.Minute
	}
}

// CatalogConfig locates the integration catalog document.
type CatalogConfig struct {
	// URL is an http(s) location of the catalog; it takes precedence over Path.
	URL string `env:"CATALOG_URL"`

	// Path is a local YAML or JSON catalog file.
	Path string `env:"CATALOG_PATH"`

	// SyncInterval is the period of the background sync service.
	SyncInterval time.Duration `env:"SYNC_INTERVAL" envDefault:"5m"`

	// FetchTimeout bounds one catalog download.
	FetchTimeout time.Duration `env:"CATALOG_FETCH_TIMEOUT" envDefault:"30s"`
}

// Sanitize applies guardrails to catalog configuration values.
func (c *CatalogConfig) Sanitize() {
	c.URL = strings.TrimSpace(c.URL)
	c.Path = strings.TrimSpace(c.Path)
	if c.SyncInterval < 10*time.Second {
		c.SyncInterval = 10 * time.Second
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 30 * time.Second
	}
}

// Configured reports whether a catalog source is set.
func (c *CatalogConfig) Configured() bool {
	return c.URL != "" || c.Path != ""
}

// RateLimitConfig bounds on-demand enqueue requests per deployment.
type RateLimitConfig struct {
	// Rate is the sustained number of enqueues per second per deployment. Zero disables the limit.
	Rate float64 `env:"ENQUEUE_RATE" envDefault:"1"`

	// Burst is the bucket capacity.
	Burst int `env:"ENQUEUE_BURST" envDefault:"5"`
}

// Sanitize applies guardrails to rate limit values.
func (r *RateLimitConfig) Sanitize() {
	if r.Rate < 0 {
		r.Rate = 0
	}
	if r.Burst < 1 {
		r.Burst = 1
	}
}

// Enabled reports whether enqueue requests are limited.
func (r *RateLimitConfig) Enabled() bool {
	return r.Rate > 0
}
