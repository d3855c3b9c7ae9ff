package config

import (
	"log/slog"
	"reflect"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestParseServices(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    map[ServiceMode]bool
		expectError bool
	}{
		{
			name:     "single service - http",
			input:    "http",
			expected: map[ServiceMode]bool{ServiceModeHTTP: true},
		},
		{
			name:     "single service - worker",
			input:    "worker",
			expected: map[ServiceMode]bool{ServiceModeWorker: true},
		},
		{
			name:  "scheduler and worker",
			input: "scheduler,worker",
			expected: map[ServiceMode]bool{
				ServiceModeScheduler: true,
				ServiceModeWorker:    true,
			},
		},
		{
			name:  "all services with whitespace",
			input: " http , scheduler,worker ,reaper,sync",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:      true,
				ServiceModeScheduler: true,
				ServiceModeWorker:    true,
				ServiceModeReaper:    true,
				ServiceModeSync:      true,
			},
		},
		{
			name:     "duplicates collapse",
			input:    "http,http",
			expected: map[ServiceMode]bool{ServiceModeHTTP: true},
		},
		{
			name:        "empty string",
			input:       "",
			expectError: true,
		},
		{
			name:        "only commas",
			input:       ",,",
			expectError: true,
		},
		{
			name:        "unknown service",
			input:       "http,rules-engine",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseServices(tt.input)
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestConfig_ServiceEnabledMethods(t *testing.T) {
	cfg := AppConfig{Services: "scheduler,worker"}
	if cfg.IsHTTPServerEnabled() {
		t.Errorf("IsHTTPServerEnabled(): expected false")
	}
	if !cfg.IsSchedulerEnabled() {
		t.Errorf("IsSchedulerEnabled(): expected true")
	}
	if !cfg.IsWorkerEnabled() {
		t.Errorf("IsWorkerEnabled(): expected true")
	}
	if cfg.IsReaperEnabled() || cfg.IsSyncEnabled() {
		t.Errorf("reaper and sync must be disabled")
	}

	invalid := AppConfig{Services: "invalid-service"}
	if invalid.IsHTTPServerEnabled() || invalid.IsWorkerEnabled() {
		t.Errorf("service methods must return false for an invalid configuration")
	}
}

func TestValidServiceModes(t *testing.T) {
	expected := []ServiceMode{
		ServiceModeHTTP,
		ServiceModeScheduler,
		ServiceModeWorker,
		ServiceModeReaper,
		ServiceModeSync,
	}
	if got := ValidServiceModes(); !reflect.DeepEqual(got, expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}
}

func TestAppConfig_ParseEnvDefaults(t *testing.T) {
	t.Setenv("SERVICES", "http,worker")
	t.Setenv("API_TOKEN", " secret ")
	t.Setenv("SCHEDULER_TOKEN", " sched ")
	t.Setenv("WORKER_CONCURRENCY", "0")
	t.Setenv("DB_HOST", "db.internal")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg.Sanitize()

	if cfg.HTTP.APIToken != "secret" {
		t.Errorf("expected trimmed token, got %q", cfg.HTTP.APIToken)
	}
	if cfg.HTTP.SchedulerToken != "sched" || cfg.Dispatch.SchedulerToken != "sched" {
		t.Errorf("expected SCHEDULER_TOKEN on both server and client, got %q and %q",
			cfg.HTTP.SchedulerToken, cfg.Dispatch.SchedulerToken)
	}
	if cfg.Postgres.Host != "db.internal" {
		t.Errorf("expected DB_HOST to be honoured, got %q", cfg.Postgres.Host)
	}
	if cfg.Scheduler.Interval != 30*time.Second {
		t.Errorf("expected 30s scheduler interval, got %v", cfg.Scheduler.Interval)
	}
	if cfg.Worker.PollInterval != 60*time.Second || cfg.Worker.Queue != "default" {
		t.Errorf("unexpected worker defaults: %+v", cfg.Worker)
	}
	if cfg.Worker.Concurrency != 1 {
		t.Errorf("expected concurrency clamped to 1, got %d", cfg.Worker.Concurrency)
	}
	if cfg.Reaper.JobRetention != 720*time.Hour {
		t.Errorf("expected 30 day retention, got %v", cfg.Reaper.JobRetention)
	}
	if cfg.Redis.Enabled() {
		t.Errorf("redis must be disabled without a URI")
	}
	if cfg.Dispatch.Remote() {
		t.Errorf("dispatch client must default to in-process")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestAppConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     AppConfig
		wantErr bool
	}{
		{name: "http without token", cfg: AppConfig{Services: "http"}, wantErr: true},
		{name: "http without token in dev", cfg: AppConfig{Services: "http", IsDev: true}},
		{name: "worker only", cfg: AppConfig{Services: "worker"}},
		{name: "sync without catalog", cfg: AppConfig{Services: "sync"}, wantErr: true},
		{name: "sync with catalog path", cfg: AppConfig{Services: "sync", Catalog: CatalogConfig{Path: "catalog.yaml"}}},
		{name: "bad services", cfg: AppConfig{Services: "nope"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAppConfig_NeedsDatabase(t *testing.T) {
	remote := DispatchClientConfig{APIURL: "http://dispatch:8080"}
	tests := []struct {
		name string
		cfg  AppConfig
		want bool
	}{
		{name: "http", cfg: AppConfig{Services: "http"}, want: true},
		{name: "in-process worker", cfg: AppConfig{Services: "worker"}, want: true},
		{name: "remote worker", cfg: AppConfig{Services: "worker,scheduler", Dispatch: remote}, want: false},
		{name: "remote worker with reaper", cfg: AppConfig{Services: "worker,reaper", Dispatch: remote}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.NeedsDatabase(); got != tt.want {
				t.Errorf("NeedsDatabase() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSchedulerConfig_Sanitize(t *testing.T) {
	cfg := SchedulerConfig{Interval: 0, LeaderTTL: time.Second}
	cfg.Sanitize()
	if cfg.Interval != time.Second {
		t.Errorf("expected interval floor of 1s, got %v", cfg.Interval)
	}
	if cfg.LeaderTTL != 2*time.Second {
		t.Errorf("expected lease to outlive two ticks, got %v", cfg.LeaderTTL)
	}
}

func TestReaperConfig_Sanitize(t *testing.T) {
	cfg := ReaperConfig{Interval: time.Second, JobRetention: time.Minute, StuckAfter: 0}
	cfg.Sanitize()
	if cfg.Interval != time.Minute || cfg.JobRetention != time.Hour || cfg.StuckAfter != time.Minute {
		t.Errorf("unexpected sanitized reaper config: %+v", cfg)
	}
}

func TestDispatchClientConfig_Sanitize(t *testing.T) {
	cfg := DispatchClientConfig{APIURL: " http://dispatch:8080/ "}
	cfg.Sanitize()
	if cfg.APIURL != "http://dispatch:8080" {
		t.Errorf("expected trailing slash trimmed, got %q", cfg.APIURL)
	}
	if !cfg.Remote() {
		t.Errorf("expected remote client")
	}
}

func TestRedisConfig_Sanitize(t *testing.T) {
	cfg := RedisConfig{UseSentinel: true, SentinelNodes: []string{" ", ""}}
	cfg.Sanitize()
	if cfg.UseSentinel || cfg.Enabled() {
		t.Errorf("sentinel without nodes must be disabled")
	}
}

func TestObservabilityConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityConfig{
		LogLevel: " DEBUG ",
		Metrics:  ObservabilityMetricsConfig{Enabled: true, StatsdAddress: " ", Prefix: ".dispatch."},
	}
	cfg.Sanitize()

	if cfg.Metrics.IsEnabled() {
		t.Fatalf("expected metrics disabled when address is empty")
	}
	if cfg.Metrics.Prefix != "dispatch" {
		t.Errorf("expected prefix dots trimmed, got %q", cfg.Metrics.Prefix)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("expected debug level, got %v", cfg.SlogLevel())
	}
	if cfg.Tracing.ServiceName != defaultObservabilityName {
		t.Errorf("expected default service name, got %q", cfg.Tracing.ServiceName)
	}
}
