// Package metrics defines the dispatch metric vocabulary and its sinks.
package metrics

import (
	"time"

	obserrors "github.com/target/integrations-dispatch/internal/observability/errors"
	"github.com/target/integrations-dispatch/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Job lifecycle transitions.
const (
	TransitionEnqueue  = "enqueue"
	TransitionClaim    = "claim"
	TransitionExecute  = "execute"
	TransitionComplete = "complete"
	TransitionTimeout  = "timeout"
)

// JobMetric captures one job lifecycle event.
type JobMetric struct {
	Queue      string
	Unit       string
	Transition string
	Result     string
	Duration   time.Duration
	Err        error
}

// EmitJobLifecycle emits job.transition and, when a duration is known, job.duration.
func EmitJobLifecycle(sink statsd.Sink, in JobMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"queue":       in.Queue,
		"unit":        in.Unit,
		"transition":  in.Transition,
		"result":      in.Result,
		"error_class": "",
	}
	if in.Err != nil && in.Result == ResultError {
		tags["error_class"] = obserrors.Classify(in.Err)
	}

	sink.Count("job.transition", 1, tags)
	if in.Duration > 0 {
		sink.Timing("job.duration", in.Duration, CloneTags(tags))
	}
}

// TickMetric summarizes one scheduler tick.
type TickMetric struct {
	Fetched  int
	Fired    int
	Skipped  int
	Failed   int
	Duration time.Duration
	Leader   bool
}

// EmitSchedulerTick emits per-outcome deployment counts for one tick.
func EmitSchedulerTick(sink statsd.Sink, in TickMetric) {
	if sink == nil {
		return
	}
	for outcome, n := range map[string]int{"fired": in.Fired, "skipped": in.Skipped, "failed": in.Failed} {
		sink.Count("scheduler.deployments", int64(n), map[string]string{"outcome": outcome})
	}
	sink.Gauge("scheduler.fetched", float64(in.Fetched), nil)
	leader := 0.0
	if in.Leader {
		leader = 1
	}
	sink.Gauge("scheduler.leader", leader, nil)
	if in.Duration > 0 {
		sink.Timing("scheduler.tick_duration", in.Duration, nil)
	}
}

// EmitReaperSweep reports a retention sweep and the stuck-job gauge.
func EmitReaperSweep(sink statsd.Sink, deleted int64, stuck int, err error) {
	if sink == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	sink.Count("reaper.deleted_jobs", deleted, map[string]string{"result": result})
	sink.Gauge("reaper.stuck_jobs", float64(stuck), nil)
}

// EmitCatalogSync reports a catalog sync outcome.
func EmitCatalogSync(sink statsd.Sink, created, updated int, err error) {
	if sink == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	sink.Count("catalog.sync", 1, map[string]string{"result": result})
	sink.Count("catalog.integrations", int64(created), map[string]string{"change": "created"})
	sink.Count("catalog.integrations", int64(updated), map[string]string{"change": "updated"})
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
