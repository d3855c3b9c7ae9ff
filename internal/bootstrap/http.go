package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/integrations-dispatch/config"
	httpx "github.com/target/integrations-dispatch/internal/http"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
	// ErrCh receives a listener failure.
	ErrCh chan<- error
}

// BuildHTTPHandler assembles the router for the configured services.
func BuildHTTPHandler(cfg *HTTPServerConfig) http.Handler {
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}
	services := httpx.RouterServices{
		Dispatch:       cfg.Services.Dispatch,
		Integrations:   cfg.Services.Integrations,
		Deployments:    cfg.Services.Deployments,
		Jobs:           cfg.Services.Jobs,
		Violations:     cfg.Services.Violations,
		APIToken:       appCfg.HTTP.APIToken,
		SchedulerToken: appCfg.HTTP.SchedulerToken,
		Metrics:        cfg.Services.Observability.MetricsHandler,
		MaxBodyBytes:   appCfg.HTTP.MaxBodyBytes,
		Logger:         cfg.Logger,
	}
	// Typed nils must not reach the router's optional interfaces.
	if cfg.Services.Catalog != nil {
		services.Catalog = cfg.Services.Catalog
	}
	if cfg.Services.Repos != nil && cfg.Services.Repos.DB != nil {
		services.Health = cfg.Services.Repos.DB
	}
	return httpx.NewRouter(services)
}

// StartHTTPServer creates and starts the HTTP server.
// Returns the server instance for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) *http.Server {
	if cfg == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
		cfg.Logger = logger
	}
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}
	if appCfg.HTTP.APIToken == "" {
		logger.Warn("API_TOKEN is empty; management API rejects every request")
	}

	addr := appCfg.HTTP.Addr
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           BuildHTTPHandler(cfg),
		ReadHeaderTimeout: appCfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			if cfg.ErrCh != nil {
				select {
				case cfg.ErrCh <- err:
				default:
				}
			}
		}
	}()

	return server
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(ctx context.Context, server *http.Server, timeout time.Duration, logger *slog.Logger) error {
	if server == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("HTTP server stopped")
	return nil
}
