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
	apperrors "github.com/target/integrations-dispatch/internal/errors"
	"github.com/target/integrations-dispatch/internal/mocks"
	"github.com/target/integrations-dispatch/internal/mocks/coord"
	"github.com/target/integrations-dispatch/internal/observability/metrics"
)

type dispatchFixture struct {
	svc         *DispatchService
	jobs        *mocks.MockJobRepository
	deployments *mocks.MockDeploymentRepository
	violations  *mocks.MockViolationRepository
	limiter     *coord.StaticLimiter
	rec         *metrics.Recorder
}

func newDispatchFixture(t *testing.T) *dispatchFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &dispatchFixture{
		jobs:        mocks.NewMockJobRepository(ctrl),
		deployments: mocks.NewMockDeploymentRepository(ctrl),
		violations:  mocks.NewMockViolationRepository(ctrl),
		limiter:     &coord.StaticLimiter{Budget: 1},
		rec:         &metrics.Recorder{},
	}
	svc, err := NewDispatchService(DispatchServiceOptions{
		Jobs:        f.jobs,
		Deployments: f.deployments,
		Violations:  f.violations,
		Limiter:     f.limiter,
		Metrics:     f.rec,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestNewDispatchService_RequiresRepos(t *testing.T) {
	_, err := NewDispatchService(DispatchServiceOptions{})
	require.Error(t, err)
}

func TestDispatchService_Enqueue(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()
	job := &model.Job{ID: "j1", DeploymentID: "d1", Queue: "default", IntegrationName: "okta"}

	f.jobs.EXPECT().Enqueue(gomock.Any(), "d1").Return(job, nil)
	got, err := f.svc.Enqueue(ctx, EnqueueRequest{DeploymentID: "d1"})
	require.NoError(t, err)
	assert.Equal(t, "j1", got.ID)
	assert.Equal(t, 1.0, f.rec.Sum("job.transition", map[string]string{"transition": "enqueue", "result": "success"}))

	_, err = f.svc.Enqueue(ctx, EnqueueRequest{DeploymentID: "d1"})
	require.Error(t, err)
	assert.True(t, apperrors.IsRateLimited(err), "second on-demand enqueue exceeds the budget")

	f.jobs.EXPECT().Enqueue(gomock.Any(), "d1").Return(job, nil)
	_, err = f.svc.Enqueue(ctx, EnqueueRequest{DeploymentID: "d1", FromScheduler: true})
	require.NoError(t, err, "scheduler enqueues bypass the limit")
	assert.Equal(t, 2, f.limiter.Calls("enqueue:d1"))
}

func TestDispatchService_Enqueue_Validation(t *testing.T) {
	f := newDispatchFixture(t)
	_, err := f.svc.Enqueue(context.Background(), EnqueueRequest{})
	assert.True(t, apperrors.IsValidation(err))
}

func TestDispatchService_Enqueue_LimiterFailureFailsOpen(t *testing.T) {
	f := newDispatchFixture(t)
	f.svc.limiter = &coord.StaticLimiter{Err: errors.New("redis unavailable")}
	f.jobs.EXPECT().Enqueue(gomock.Any(), "d1").Return(&model.Job{ID: "j1"}, nil)

	_, err := f.svc.Enqueue(context.Background(), EnqueueRequest{DeploymentID: "d1"})
	require.NoError(t, err)
}

func TestDispatchService_Enqueue_NotFoundPropagates(t *testing.T) {
	f := newDispatchFixture(t)
	f.jobs.EXPECT().Enqueue(gomock.Any(), "missing").Return(nil, apperrors.NotFound("deployment missing not found"))

	_, err := f.svc.Enqueue(context.Background(), EnqueueRequest{DeploymentID: "missing", FromScheduler: true})
	assert.True(t, apperrors.IsNotFound(err))
	assert.Equal(t, 1.0, f.rec.Sum("job.transition", map[string]string{"result": "error", "error_class": "not_found"}))
}

func TestDispatchService_ClaimNext(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()
	created := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	started := created.Add(3 * time.Second)

	f.jobs.EXPECT().ClaimNext(gomock.Any(), "default").Return(nil, model.ErrNoJobsAvailable)
	_, err := f.svc.ClaimNext(ctx, "")
	require.ErrorIs(t, err, model.ErrNoJobsAvailable, "empty queue name means default")

	f.jobs.EXPECT().ClaimNext(gomock.Any(), "gpu").Return(&model.Job{
		ID: "j1", Queue: "gpu", CreatedAt: created, StartedAt: &started,
	}, nil)
	job, err := f.svc.ClaimNext(ctx, "gpu")
	require.NoError(t, err)
	assert.Equal(t, "j1", job.ID)

	f.jobs.EXPECT().ClaimNext(gomock.Any(), "gpu").Return(nil, apperrors.TransientStore(errors.New("conn reset"), "claim"))
	_, err = f.svc.ClaimNext(ctx, "gpu")
	assert.True(t, apperrors.IsTransientStore(err))
}

func TestDispatchService_Complete(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()

	_, err := f.svc.Complete(ctx, "j1", model.CompleteJobRequest{Status: model.JobStatusQueued})
	assert.True(t, apperrors.IsValidation(err))

	f.jobs.EXPECT().
		Complete(gomock.Any(), "j1", model.CompleteJobRequest{Status: model.JobStatusDone, Result: json.RawMessage(`{}`)}).
		Return(&model.Job{ID: "j1", Status: model.JobStatusDone}, nil)
	job, err := f.svc.Complete(ctx, "j1", model.CompleteJobRequest{})
	require.NoError(t, err, "status defaults to done and result to {}")
	assert.Equal(t, model.JobStatusDone, job.Status)

	f.jobs.EXPECT().Complete(gomock.Any(), "j2", gomock.Any()).Return(nil, apperrors.Conflict("job j2 has not been claimed"))
	_, err = f.svc.Complete(ctx, "j2", model.CompleteJobRequest{Status: model.JobStatusError})
	assert.True(t, apperrors.IsConflict(err))
}

func TestDispatchService_DeleteRange(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()

	_, err := f.svc.DeleteRange(ctx, model.TimeRange{})
	assert.True(t, apperrors.IsValidation(err), "unbounded ranges never reach the store")

	before := time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)
	f.jobs.EXPECT().DeleteRange(gomock.Any(), model.TimeRange{Before: &before}).Return(int64(2), nil)
	n, err := f.svc.DeleteRange(ctx, model.TimeRange{Before: &before})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestDispatchService_RecordViolation(t *testing.T) {
	f := newDispatchFixture(t)
	req := model.CreateViolationRequest{TaskName: "mfa", ControlReferences: json.RawMessage(`[]`), Output: json.RawMessage(`{}`)}

	f.violations.EXPECT().Create(gomock.Any(), "j1", gomock.Any()).Return(&model.Violation{ID: "v1", TaskName: "mfa"}, nil)
	v, err := f.svc.RecordViolation(context.Background(), "j1", req)
	require.NoError(t, err)
	assert.Equal(t, "v1", v.ID)
}

func TestDispatchService_ScheduledDeployments(t *testing.T) {
	f := newDispatchFixture(t)
	f.deployments.EXPECT().ListScheduled(gomock.Any()).Return([]*model.Deployment{{ID: "d1"}}, nil)

	list, err := f.svc.ScheduledDeployments(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
