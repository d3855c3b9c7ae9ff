package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/target/integrations-dispatch/internal/domain/model"
	"github.com/target/integrations-dispatch/internal/observability/metrics"
	"github.com/target/integrations-dispatch/internal/observability/statsd"
	"github.com/target/integrations-dispatch/internal/observability/tracing"
	"github.com/target/integrations-dispatch/internal/ports"
)

// reportTimeout bounds the completion call, which runs detached from shutdown.
const reportTimeout = 30 * time.Second

// RunOutcome describes what one worker iteration did.
type RunOutcome string

const (
	// OutcomeIdle means the queue was empty.
	OutcomeIdle RunOutcome = "idle"
	// OutcomeFetchFailed means the claim call failed and was treated as no job.
	OutcomeFetchFailed RunOutcome = "fetch_failed"
	// OutcomeDone means the job ran and was reported done.
	OutcomeDone RunOutcome = "done"
	// OutcomeError means the job failed, crashed or timed out and was reported as error.
	OutcomeError RunOutcome = "error"
	// OutcomeUnreported means the completion call failed; the job stays in-progress.
	OutcomeUnreported RunOutcome = "unreported"
)

// WorkerServiceOptions groups dependencies for WorkerService.
type WorkerServiceOptions struct {
	Client   ports.DispatchClient      // Required: claim, complete and violation calls
	Provider ports.ExecutionProvider   // Required: runs units of work
	Journal  ports.CompletionJournal   // Optional: keeps unreported completions
	Queue    string                    // Optional: defaults to "default"
	Metrics  statsd.Sink               // Optional: lifecycle metrics
	Logger   *slog.Logger              // Optional: structured logger
}

// WorkerService claims one job at a time, executes it under its deadline and reports the outcome.
type WorkerService struct {
	client   ports.DispatchClient
	provider ports.ExecutionProvider
	journal  ports.CompletionJournal
	queue    string
	metrics  statsd.Sink
	logger   *slog.Logger
}

// NewWorkerService constructs a WorkerService.
func NewWorkerService(opts WorkerServiceOptions) (*WorkerService, error) {
	if opts.Client == nil {
		return nil, errors.New("DispatchClient is required")
	}
	if opts.Provider == nil {
		return nil, errors.New("ExecutionProvider is required")
	}
	if opts.Queue == "" {
		opts.Queue = model.DefaultQueue
	}
	if opts.Metrics == nil {
		opts.Metrics = statsd.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &WorkerService{
		client:   opts.Client,
		provider: opts.Provider,
		journal:  opts.Journal,
		queue:    opts.Queue,
		metrics:  opts.Metrics,
		logger:   opts.Logger.With("component", "worker", "queue", opts.Queue),
	}, nil
}

// Queue returns the queue this worker claims from.
func (w *WorkerService) Queue() string { return w.queue }

// RunOnce performs a single fetch, execute, report iteration. Failures of the unit
// of work never surface as an error; the returned error is reserved for ctx cancellation.
func (w *WorkerService) RunOnce(ctx context.Context) (RunOutcome, error) {
	job, err := w.client.ClaimNext(ctx, w.queue)
	switch {
	case errors.Is(err, model.ErrNoJobsAvailable):
		return OutcomeIdle, nil
	case err != nil:
		if ctx.Err() != nil {
			return OutcomeIdle, ctx.Err()
		}
		w.logger.WarnContext(ctx, "claim failed; treating as no job", "error", err)
		return OutcomeFetchFailed, nil
	}

	log := w.logger.With(
		"job_id", job.ID,
		"deployment_id", job.DeploymentID,
		"unit", job.IntegrationName,
	)
	log.InfoContext(ctx, "job claimed", "timeout", job.Timeout())

	req := w.execute(ctx, job, log)

	reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()
	if cerr := w.client.Complete(reportCtx, job.ID, req); cerr != nil {
		log.ErrorContext(ctx, "report completion failed; job left in-progress", "status", req.Status, "error", cerr)
		w.recordUnreported(reportCtx, job.ID, req, cerr, log)
		return OutcomeUnreported, nil
	}

	log.InfoContext(ctx, "job reported", "status", req.Status)
	if req.Status == model.JobStatusDone {
		return OutcomeDone, nil
	}
	return OutcomeError, nil
}

type execOutcome struct {
	result   json.RawMessage
	err      error
	panicked any
	stack    []byte
}

// execute runs the provider in its own goroutine under the job's deadline. When the
// deadline passes first the goroutine is abandoned and a timeout result is produced.
func (w *WorkerService) execute(ctx context.Context, job *model.Job, log *slog.Logger) (req model.CompleteJobRequest) {
	timeout := job.Timeout()
	if timeout <= 0 {
		timeout = time.Duration(model.DefaultTimeoutSeconds) * time.Second
	}
	unit := job.IntegrationName

	ctx, span := tracing.Start(ctx, "worker.execute",
		attribute.String("job_id", job.ID),
		attribute.String("unit", unit),
		attribute.String("queue", job.Queue),
	)
	start := time.Now()
	defer func() {
		span.SetAttributes(attribute.String("status", string(req.Status)))
		var spanErr error
		if req.Status == model.JobStatusError {
			spanErr = errors.New(string(req.Result))
		}
		tracing.End(span, spanErr)
	}()

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	execCtx = ports.WithViolationReporter(execCtx, w.violationReporter(job.ID, log))

	cfg := injectJobID(job.Config, job.ID)
	done := make(chan execOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- execOutcome{panicked: r, stack: debug.Stack()}
			}
		}()
		res, err := w.provider.Execute(execCtx, unit, cfg, timeout)
		done <- execOutcome{result: res, err: err}
	}()

	var out execOutcome
	select {
	case out = <-done:
	case <-execCtx.Done():
	}
	elapsed := time.Since(start)

	timedOut := errors.Is(execCtx.Err(), context.DeadlineExceeded) &&
		(out.err == nil && out.result == nil && out.panicked == nil || errors.Is(out.err, context.DeadlineExceeded))
	switch {
	case timedOut:
		log.WarnContext(ctx, "job timed out", "timeout", timeout)
		w.emit(job, metrics.TransitionTimeout, metrics.ResultError, elapsed, context.DeadlineExceeded)
		return model.CompleteJobRequest{Status: model.JobStatusError, Result: timeoutResult(unit, timeout)}
	case out.panicked != nil:
		log.ErrorContext(ctx, "provider panicked", "panic", out.panicked)
		err := fmt.Errorf("panic: %v", out.panicked)
		w.emit(job, metrics.TransitionExecute, metrics.ResultError, elapsed, err)
		return model.CompleteJobRequest{Status: model.JobStatusError, Result: errorResult(err.Error(), string(out.stack))}
	case out.err == nil && out.result == nil && ctx.Err() != nil:
		log.WarnContext(ctx, "worker stopping before job finished")
		w.emit(job, metrics.TransitionExecute, metrics.ResultError, elapsed, ctx.Err())
		msg := fmt.Sprintf("worker stopped before integration '%s' finished", unit)
		return model.CompleteJobRequest{Status: model.JobStatusError, Result: errorResult(msg, "")}
	case out.err != nil:
		log.WarnContext(ctx, "job failed", "error", out.err)
		w.emit(job, metrics.TransitionExecute, metrics.ResultError, elapsed, out.err)
		return model.CompleteJobRequest{Status: model.JobStatusError, Result: errorResult(out.err.Error(), "")}
	}

	result := out.result
	if len(result) == 0 {
		result = json.RawMessage(`{}`)
	}
	if !json.Valid(result) {
		err := fmt.Errorf("integration '%s' returned invalid JSON", unit)
		w.emit(job, metrics.TransitionExecute, metrics.ResultError, elapsed, err)
		return model.CompleteJobRequest{Status: model.JobStatusError, Result: errorResult(err.Error(), "")}
	}
	w.emit(job, metrics.TransitionExecute, metrics.ResultSuccess, elapsed, nil)
	return model.CompleteJobRequest{Status: model.JobStatusDone, Result: result}
}

func (w *WorkerService) violationReporter(jobID string, log *slog.Logger) ports.ViolationReporter {
	return func(ctx context.Context, req model.CreateViolationRequest) error {
		id, err := w.client.ReportViolation(ctx, jobID, req)
		if err != nil {
			log.WarnContext(ctx, "report violation failed", "task_name", req.TaskName, "error", err)
			return err
		}
		log.DebugContext(ctx, "violation reported", "violation_id", id, "task_name", req.TaskName)
		return nil
	}
}

func (w *WorkerService) recordUnreported(
	ctx context.Context,
	jobID string,
	req model.CompleteJobRequest,
	cause error,
	log *slog.Logger,
) {
	if w.journal == nil {
		return
	}
	entry := model.JournalEntry{
		ID:         uuid.NewString(),
		JobID:      jobID,
		Status:     req.Status,
		Result:     req.Result,
		Reason:     cause.Error(),
		RecordedAt: time.Now().UTC(),
	}
	if err := w.journal.Record(ctx, entry); err != nil {
		log.ErrorContext(ctx, "journal unreported completion", "error", err)
		return
	}
	log.InfoContext(ctx, "unreported completion journaled", "entry_id", entry.ID)
}

func (w *WorkerService) emit(job *model.Job, transition, result string, d time.Duration, err error) {
	metrics.EmitJobLifecycle(w.metrics, metrics.JobMetric{
		Queue:      job.Queue,
		Unit:       job.IntegrationName,
		Transition: transition,
		Result:     result,
		Duration:   d,
		Err:        err,
	})
}

// injectJobID returns the deployment config with "job_id" set. A config that is not
// a JSON object is replaced by one holding only the job id.
func injectJobID(cfg json.RawMessage, jobID string) json.RawMessage {
	obj := map[string]any{}
	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &obj); err != nil || obj == nil {
			obj = map[string]any{}
		}
	}
	obj["job_id"] = jobID
	b, err := json.Marshal(obj)
	if err != nil {
		return json.RawMessage(fmt.Sprintf(`{"job_id":%q}`, jobID))
	}
	return b
}

func timeoutResult(unit string, timeout time.Duration) json.RawMessage {
	secs := int64(timeout / time.Second)
	b, _ := json.Marshal(map[string]any{
		"error":           fmt.Sprintf("integration '%s' timed out after %ds", unit, secs),
		"timeout":         true,
		"timeout_seconds": secs,
	})
	return b
}

func errorResult(msg, trace string) json.RawMessage {
	body := map[string]string{"error": msg}
	if trace != "" {
		body["trace"] = trace
	}
	b, _ := json.Marshal(body)
	return b
}
