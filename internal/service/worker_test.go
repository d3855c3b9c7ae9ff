package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/integrations-dispatch/internal/domain/model"
	"github.com/target/integrations-dispatch/internal/mocks"
	"github.com/target/integrations-dispatch/internal/mocks/coord"
	"github.com/target/integrations-dispatch/internal/observability/metrics"
	"github.com/target/integrations-dispatch/internal/ports"
)

type workerFixture struct {
	svc      *WorkerService
	client   *mocks.MockDispatchClient
	provider *mocks.MockExecutionProvider
	journal  *coord.MemoryJournal
	rec      *metrics.Recorder
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &workerFixture{
		client:   mocks.NewMockDispatchClient(ctrl),
		provider: mocks.NewMockExecutionProvider(ctrl),
		journal:  coord.NewMemoryJournal(),
		rec:      &metrics.Recorder{},
	}
	svc, err := NewWorkerService(WorkerServiceOptions{
		Client:   f.client,
		Provider: f.provider,
		Journal:  f.journal,
		Metrics:  f.rec,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func claimedJob(timeoutSeconds int) *model.Job {
	return &model.Job{
		ID:              "job-1",
		DeploymentID:    "dep-1",
		Queue:           model.DefaultQueue,
		IntegrationName: "aws-config",
		Config:          json.RawMessage(`{"region":"us-east-1"}`),
		Status:          model.JobStatusInProgress,
		TimeoutSeconds:  timeoutSeconds,
	}
}

func captureCompletion(f *workerFixture, got *model.CompleteJobRequest) {
	f.client.EXPECT().Complete(gomock.Any(), "job-1", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, req model.CompleteJobRequest) error {
			*got = req
			return nil
		})
}

func resultMap(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestNewWorkerService_RequiresDeps(t *testing.T) {
	_, err := NewWorkerService(WorkerServiceOptions{})
	assert.Error(t, err)

	f := newWorkerFixture(t)
	_, err = NewWorkerService(WorkerServiceOptions{Client: f.client})
	assert.Error(t, err)
	assert.Equal(t, model.DefaultQueue, f.svc.Queue())
}

func TestWorkerService_RunOnce_Idle(t *testing.T) {
	f := newWorkerFixture(t)
	f.client.EXPECT().ClaimNext(gomock.Any(), model.DefaultQueue).Return(nil, model.ErrNoJobsAvailable)

	out, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeIdle, out)
}

func TestWorkerService_RunOnce_ClaimFailureIsNoJob(t *testing.T) {
	f := newWorkerFixture(t)
	f.client.EXPECT().ClaimNext(gomock.Any(), gomock.Any()).Return(nil, errors.New("dial tcp: connection refused"))

	out, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeFetchFailed, out)
}

func TestWorkerService_RunOnce_Success(t *testing.T) {
	f := newWorkerFixture(t)
	f.client.EXPECT().ClaimNext(gomock.Any(), gomock.Any()).Return(claimedJob(60), nil)
	f.provider.EXPECT().Execute(gomock.Any(), "aws-config", gomock.Any(), 60*time.Second).DoAndReturn(
		func(_ context.Context, _ string, cfg json.RawMessage, _ time.Duration) (json.RawMessage, error) {
			assert.JSONEq(t, `{"region":"us-east-1","job_id":"job-1"}`, string(cfg))
			return json.RawMessage(`{"checked":12}`), nil
		})
	var got model.CompleteJobRequest
	captureCompletion(f, &got)

	out, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, out)
	assert.Equal(t, model.JobStatusDone, got.Status)
	assert.JSONEq(t, `{"checked":12}`, string(got.Result))
	assert.Equal(t, 1.0, f.rec.Sum("job.transition", map[string]string{"transition": "execute", "result": "success"}))
}

func TestWorkerService_RunOnce_ProviderError(t *testing.T) {
	f := newWorkerFixture(t)
	f.client.EXPECT().ClaimNext(gomock.Any(), gomock.Any()).Return(claimedJob(60), nil)
	f.provider.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("access denied"))
	var got model.CompleteJobRequest
	captureCompletion(f, &got)

	out, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeError, out)
	assert.Equal(t, model.JobStatusError, got.Status)
	assert.JSONEq(t, `{"error":"access denied"}`, string(got.Result))
}

func TestWorkerService_RunOnce_Timeout(t *testing.T) {
	f := newWorkerFixture(t)
	f.client.EXPECT().ClaimNext(gomock.Any(), gomock.Any()).Return(claimedJob(1), nil)
	release := make(chan struct{})
	defer close(release)
	f.provider.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), time.Second).DoAndReturn(
		func(context.Context, string, json.RawMessage, time.Duration) (json.RawMessage, error) {
			<-release
			return json.RawMessage(`{}`), nil
		})
	var got model.CompleteJobRequest
	captureCompletion(f, &got)

	start := time.Now()
	out, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second, "a provider ignoring ctx must not hold the worker")
	assert.Equal(t, OutcomeError, out)
	assert.Equal(t, model.JobStatusError, got.Status)

	body := resultMap(t, got.Result)
	assert.Equal(t, "integration 'aws-config' timed out after 1s", body["error"])
	assert.Equal(t, true, body["timeout"])
	assert.EqualValues(t, 1, body["timeout_seconds"])
	assert.Equal(t, 1.0, f.rec.Sum("job.transition", map[string]string{"transition": "timeout"}))
}

func TestWorkerService_RunOnce_Panic(t *testing.T) {
	f := newWorkerFixture(t)
	f.client.EXPECT().ClaimNext(gomock.Any(), gomock.Any()).Return(claimedJob(60), nil)
	f.provider.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, string, json.RawMessage, time.Duration) (json.RawMessage, error) {
			panic("nil map write")
		})
	var got model.CompleteJobRequest
	captureCompletion(f, &got)

	out, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeError, out)

	body := resultMap(t, got.Result)
	assert.Equal(t, "panic: nil map write", body["error"])
	assert.NotEmpty(t, body["trace"])
}

func TestWorkerService_RunOnce_InvalidResult(t *testing.T) {
	f := newWorkerFixture(t)
	f.client.EXPECT().ClaimNext(gomock.Any(), gomock.Any()).Return(claimedJob(60), nil)
	f.provider.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(json.RawMessage(`{not json`), nil)
	var got model.CompleteJobRequest
	captureCompletion(f, &got)

	_, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusError, got.Status)
}

func TestWorkerService_RunOnce_ReportsViolations(t *testing.T) {
	f := newWorkerFixture(t)
	f.client.EXPECT().ClaimNext(gomock.Any(), gomock.Any()).Return(claimedJob(60), nil)
	finding := model.CreateViolationRequest{
		TaskName:          "root_mfa",
		ControlReferences: json.RawMessage(`["CIS-1.5"]`),
		Output:            json.RawMessage(`{"account":"123"}`),
	}
	f.provider.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ string, _ json.RawMessage, _ time.Duration) (json.RawMessage, error) {
			report := ports.ViolationReporterFrom(ctx)
			if report == nil {
				return nil, errors.New("no violation reporter on ctx")
			}
			return json.RawMessage(`{}`), report(ctx, finding)
		})
	f.client.EXPECT().ReportViolation(gomock.Any(), "job-1", finding).Return("v-1", nil)
	var got model.CompleteJobRequest
	captureCompletion(f, &got)

	out, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, out)
}

func TestWorkerService_RunOnce_UnreportedIsJournaled(t *testing.T) {
	f := newWorkerFixture(t)
	f.client.EXPECT().ClaimNext(gomock.Any(), gomock.Any()).Return(claimedJob(60), nil)
	f.provider.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(json.RawMessage(`{"ok":true}`), nil)
	f.client.EXPECT().Complete(gomock.Any(), "job-1", gomock.Any()).Return(errors.New("503 Service Unavailable"))

	out, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnreported, out)

	entries, err := f.journal.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "job-1", entries[0].JobID)
	assert.Equal(t, model.JobStatusDone, entries[0].Status)
	assert.Contains(t, entries[0].Reason, "503")
}

func TestInjectJobID(t *testing.T) {
	assert.JSONEq(t, `{"job_id":"j"}`, string(injectJobID(nil, "j")))
	assert.JSONEq(t, `{"job_id":"j"}`, string(injectJobID(json.RawMessage(`[1,2]`), "j")))
	assert.JSONEq(t, `{"a":1,"job_id":"j"}`, string(injectJobID(json.RawMessage(`{"a":1,"job_id":"old"}`), "j")))
}
