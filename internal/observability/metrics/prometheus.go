package metrics

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/target/integrations-dispatch/internal/observability/statsd"
)

// PromSink mirrors statsd-style metrics into Prometheus collectors. Each metric
// name gets one vector, created on first use, whose labels are that first
// emission's tag keys. Later emissions with a different key set are dropped.
type PromSink struct {
	factory   promauto.Factory
	namespace string
	logger    *slog.Logger

	mu         sync.Mutex
	counters   map[string]*labeled[*prometheus.CounterVec]
	gauges     map[string]*labeled[*prometheus.GaugeVec]
	histograms map[string]*labeled[*prometheus.HistogramVec]
}

type labeled[V any] struct {
	vec    V
	labels []string
}

var _ statsd.Sink = (*PromSink)(nil)

// NewPromSink registers collectors on reg under namespace.
func NewPromSink(reg prometheus.Registerer, namespace string, logger *slog.Logger) *PromSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &PromSink{
		factory:    promauto.With(reg),
		namespace:  namespace,
		logger:     logger.With("component", "prometheus_sink"),
		counters:   map[string]*labeled[*prometheus.CounterVec]{},
		gauges:     map[string]*labeled[*prometheus.GaugeVec]{},
		histograms: map[string]*labeled[*prometheus.HistogramVec]{},
	}
}

// Count adds value to the <name>_total counter.
func (p *PromSink) Count(name string, value int64, tags map[string]string) {
	if value < 0 {
		return
	}
	keys := sortedKeys(tags)
	p.mu.Lock()
	c, ok := p.counters[name]
	if !ok {
		c = &labeled[*prometheus.CounterVec]{
			vec: p.factory.NewCounterVec(prometheus.CounterOpts{
				Namespace: p.namespace, Name: promName(name) + "_total", Help: name + " counter.",
			}, keys),
			labels: keys,
		}
		p.counters[name] = c
	}
	p.mu.Unlock()
	if vals, ok := p.values(name, c.labels, tags); ok {
		c.vec.WithLabelValues(vals...).Add(float64(value))
	}
}

// Gauge sets the <name> gauge.
func (p *PromSink) Gauge(name string, value float64, tags map[string]string) {
	keys := sortedKeys(tags)
	p.mu.Lock()
	g, ok := p.gauges[name]
	if !ok {
		g = &labeled[*prometheus.GaugeVec]{
			vec: p.factory.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: p.namespace, Name: promName(name), Help: name + " gauge.",
			}, keys),
			labels: keys,
		}
		p.gauges[name] = g
	}
	p.mu.Unlock()
	if vals, ok := p.values(name, g.labels, tags); ok {
		g.vec.WithLabelValues(vals...).Set(value)
	}
}

// Timing observes value in the <name>_seconds histogram.
func (p *PromSink) Timing(name string, value time.Duration, tags map[string]string) {
	keys := sortedKeys(tags)
	p.mu.Lock()
	h, ok := p.histograms[name]
	if !ok {
		h = &labeled[*prometheus.HistogramVec]{
			vec: p.factory.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: p.namespace,
				Name:      promName(name) + "_seconds",
				Help:      name + " duration.",
				Buckets:   []float64{.01, .05, .1, .5, 1, 5, 15, 60, 300, 900, 3600},
			}, keys),
			labels: keys,
		}
		p.histograms[name] = h
	}
	p.mu.Unlock()
	if vals, ok := p.values(name, h.labels, tags); ok {
		h.vec.WithLabelValues(vals...).Observe(value.Seconds())
	}
}

func (p *PromSink) values(name string, labels []string, tags map[string]string) ([]string, bool) {
	if len(tags) != len(labels) {
		p.logger.Debug("dropping metric with mismatched labels", "metric", name)
		return nil, false
	}
	vals := make([]string, len(labels))
	for i, l := range labels {
		v, ok := tags[l]
		if !ok {
			p.logger.Debug("dropping metric with mismatched labels", "metric", name)
			return nil, false
		}
		vals[i] = v
	}
	return vals, true
}

func sortedKeys(tags map[string]string) []string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func promName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_", " ", "_").Replace(strings.TrimSpace(name))
}

// Fanout forwards every metric to each sink.
type Fanout []statsd.Sink

var _ statsd.Sink = Fanout(nil)

func (f Fanout) Count(name string, value int64, tags map[string]string) {
	for _, s := range f {
		s.Count(name, value, CloneTags(tags))
	}
}

func (f Fanout) Gauge(name string, value float64, tags map[string]string) {
	for _, s := range f {
		s.Gauge(name, value, CloneTags(tags))
	}
}

func (f Fanout) Timing(name string, value time.Duration, tags map[string]string) {
	for _, s := range f {
		s.Timing(name, value, CloneTags(tags))
	}
}
