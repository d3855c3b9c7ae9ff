package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/integrations-dispatch/internal/domain/model"
	apperrors "github.com/target/integrations-dispatch/internal/errors"
	"github.com/target/integrations-dispatch/internal/mocks"
)

const regionSchema = `{
	"type": "object",
	"required": ["region"],
	"properties": {"region": {"type": "string", "enum": ["us-east-1", "eu-west-1"]}}
}`

type deploymentFixture struct {
	svc          *DeploymentService
	repo         *mocks.MockDeploymentRepository
	integrations *mocks.MockIntegrationRepository
	jobs         *mocks.MockDeploymentJobLister
	violations   *mocks.MockViolationRepository
}

func newDeploymentFixture(t *testing.T) *deploymentFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &deploymentFixture{
		repo:         mocks.NewMockDeploymentRepository(ctrl),
		integrations: mocks.NewMockIntegrationRepository(ctrl),
		jobs:         mocks.NewMockDeploymentJobLister(ctrl),
		violations:   mocks.NewMockViolationRepository(ctrl),
	}
	svc, err := NewDeploymentService(DeploymentServiceOptions{
		Repo:         f.repo,
		Integrations: f.integrations,
		History:      DeploymentHistoryRepos{Jobs: f.jobs, Violations: f.violations},
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestDeploymentService_Create(t *testing.T) {
	f := newDeploymentFixture(t)
	ctx := context.Background()
	integ := &model.Integration{ID: "i1", Name: "aws-config", Schema: json.RawMessage(regionSchema)}

	f.integrations.EXPECT().GetByID(gomock.Any(), "i1").Return(integ, nil).Times(2)
	f.repo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req *model.CreateDeploymentRequest) (*model.Deployment, error) {
			assert.Equal(t, "acme", req.TenantID)
			assert.Equal(t, model.DefaultQueue, req.Queue)
			return &model.Deployment{ID: "d1", TenantID: req.TenantID, Queue: req.Queue}, nil
		})

	dep, err := f.svc.Create(ctx, "acme", &model.CreateDeploymentRequest{
		IntegrationID: "i1",
		Config:        json.RawMessage(`{"region":"us-east-1"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "d1", dep.ID)

	_, err = f.svc.Create(ctx, "acme", &model.CreateDeploymentRequest{
		IntegrationID: "i1",
		Config:        json.RawMessage(`{"region":"mars-1"}`),
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "config", apperrors.GetField(err))
	assert.Contains(t, err.Error(), "/region")
}

func TestDeploymentService_Create_UnknownIntegration(t *testing.T) {
	f := newDeploymentFixture(t)
	f.integrations.EXPECT().GetByID(gomock.Any(), "nope").Return(nil, apperrors.NotFound("integration nope not found"))

	_, err := f.svc.Create(context.Background(), "acme", &model.CreateDeploymentRequest{
		IntegrationID: "nope",
		Config:        json.RawMessage(`{}`),
	})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestDeploymentService_Update_RevalidatesConfig(t *testing.T) {
	f := newDeploymentFixture(t)
	ctx := context.Background()

	_, err := f.svc.Update(ctx, "acme", "d1", model.UpdateDeploymentRequest{})
	assert.True(t, apperrors.IsValidation(err), "empty updates are rejected")

	f.repo.EXPECT().GetForTenant(gomock.Any(), "acme", "d1").Return(&model.Deployment{ID: "d1", IntegrationID: "i1"}, nil)
	f.integrations.EXPECT().GetByID(gomock.Any(), "i1").Return(&model.Integration{ID: "i1", Schema: json.RawMessage(regionSchema)}, nil)
	_, err = f.svc.Update(ctx, "acme", "d1", model.UpdateDeploymentRequest{Config: json.RawMessage(`{}`)})
	assert.True(t, apperrors.IsValidation(err))

	enabled := false
	f.repo.EXPECT().Update(gomock.Any(), "acme", "d1", gomock.Any()).Return(&model.Deployment{ID: "d1"}, nil)
	_, err = f.svc.Update(ctx, "acme", "d1", model.UpdateDeploymentRequest{Enabled: &enabled})
	require.NoError(t, err)
}

func TestDeploymentService_Delete(t *testing.T) {
	f := newDeploymentFixture(t)
	f.repo.EXPECT().Delete(gomock.Any(), "acme", "d1").Return(true, nil)
	f.repo.EXPECT().Delete(gomock.Any(), "acme", "d2").Return(false, nil)

	require.NoError(t, f.svc.Delete(context.Background(), "acme", "d1"))
	assert.True(t, apperrors.IsNotFound(f.svc.Delete(context.Background(), "acme", "d2")))
}

func TestDeploymentService_ViolationHistory(t *testing.T) {
	f := newDeploymentFixture(t)
	now := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	f.repo.EXPECT().GetForTenant(gomock.Any(), "acme", "d1").Return(&model.Deployment{ID: "d1"}, nil)
	f.jobs.EXPECT().ListByDeployment(gomock.Any(), "d1").Return([]*model.Job{
		{ID: "j2", Status: model.JobStatusDone, CreatedAt: now},
		{ID: "j1", Status: model.JobStatusError, CreatedAt: now.Add(-time.Hour)},
	}, nil)
	f.violations.EXPECT().ListByJobIDs(gomock.Any(), []string{"j2", "j1"}).Return([]*model.Violation{
		{ID: "v1", JobID: "j2", TaskName: "mfa"},
		{ID: "v2", JobID: "j2", TaskName: "keys"},
	}, nil)

	history, err := f.svc.ViolationHistory(context.Background(), "acme", "d1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "j2", history[0].JobID)
	assert.Len(t, history[0].Violations, 2)
	assert.NotNil(t, history[1].Violations)
	assert.Empty(t, history[1].Violations)
}

func TestIntegrationService_Create_RejectsBadSchema(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockIntegrationRepository(ctrl)
	svc, err := NewIntegrationService(IntegrationServiceOptions{Repo: repo})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), &model.CreateIntegrationRequest{
		Name:   "gcp",
		Schema: json.RawMessage(`{"type": 7}`),
	})
	require.Error(t, err)
	assert.Equal(t, "schema", apperrors.GetField(err))

	repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(&model.Integration{ID: "i1", Name: "gcp"}, nil)
	integ, err := svc.Create(context.Background(), &model.CreateIntegrationRequest{
		Name:   "gcp",
		Schema: json.RawMessage(`{"type":"object"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "i1", integ.ID)
}
