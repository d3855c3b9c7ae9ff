package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/target/integrations-dispatch/config"
	"github.com/target/integrations-dispatch/internal/observability/metrics"
	"github.com/target/integrations-dispatch/internal/observability/statsd"
	"github.com/target/integrations-dispatch/internal/observability/tracing"
)

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	// Metrics fans out to every enabled sink; it is never nil.
	Metrics statsd.Sink
	// MetricsHandler serves the Prometheus registry, or nil when disabled.
	MetricsHandler http.Handler

	closers []func(context.Context) error
}

// Close flushes spans and closes the StatsD socket.
func (o ObservabilityContainer) Close(ctx context.Context) error {
	var errs []error
	for _, c := range o.closers {
		if err := c(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BuildObservability configures metrics sinks and the tracer provider. A StatsD
// dial failure is logged and that sink is skipped.
func BuildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) (ObservabilityContainer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		out   ObservabilityContainer
		sinks metrics.Fanout
	)

	if cfg.Metrics.Prometheus {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		sinks = append(sinks, metrics.NewPromSink(reg, "dispatch", logger))
		out.MetricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  cfg.Metrics.Prefix,
			Logger:  logger,
		})
		if err != nil {
			logger.Error("failed to initialise statsd client", "error", err)
		} else {
			sinks = append(sinks, client)
			out.closers = append(out.closers, func(context.Context) error { return client.Close() })
		}
	}

	switch len(sinks) {
	case 0:
		out.Metrics = statsd.Nop{}
	case 1:
		out.Metrics = sinks[0]
	default:
		out.Metrics = sinks
	}

	shutdown, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil {
		return out, fmt.Errorf("init tracing: %w", err)
	}
	out.closers = append(out.closers, shutdown)
	if cfg.Tracing.Enabled {
		logger.Info("tracing enabled", "service_name", cfg.Tracing.ServiceName)
	}

	return out, nil
}
