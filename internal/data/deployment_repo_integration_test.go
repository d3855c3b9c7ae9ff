package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/integrations-dispatch/internal/domain/model"
	apperrors "github.com/target/integrations-dispatch/internal/errors"
	"github.com/target/integrations-dispatch/internal/testutil"
)

func TestDeploymentRepo_Integration_CRUD(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		integrations := NewIntegrationRepo(db, RepoConfig{})
		repo := NewDeploymentRepo(db, RepoConfig{})

		integ, err := integrations.Create(ctx, &model.CreateIntegrationRequest{
			Name:   "aws-config",
			Schema: json.RawMessage(`{"type":"object"}`),
		})
		require.NoError(t, err)

		dep, err := repo.Create(ctx, &model.CreateDeploymentRequest{
			TenantID:      "acme",
			IntegrationID: integ.ID,
			Config:        json.RawMessage(`{"region":"eu-west-1"}`),
			Schedule:      testutil.StringPtr("*/15 * * * *"),
		})
		require.NoError(t, err)
		assert.Equal(t, "aws-config", dep.IntegrationName)
		assert.Equal(t, model.DefaultQueue, dep.Queue)
		assert.Equal(t, model.DefaultTimeoutSeconds, dep.TimeoutSeconds)
		assert.True(t, dep.Enabled)
		assert.Nil(t, dep.LastScheduledAt)

		scheduled, err := repo.ListScheduled(ctx)
		require.NoError(t, err)
		require.Len(t, scheduled, 1)

		updated, err := repo.Update(ctx, "acme", dep.ID, model.UpdateDeploymentRequest{
			Schedule: testutil.StringPtr(""),
			Queue:    testutil.StringPtr("bulk"),
			Timeout:  testutil.IntPtr(120),
		})
		require.NoError(t, err)
		assert.Nil(t, updated.Schedule)
		assert.Equal(t, "bulk", updated.Queue)
		assert.Equal(t, 120, updated.TimeoutSeconds)

		scheduled, err = repo.ListScheduled(ctx)
		require.NoError(t, err)
		assert.Empty(t, scheduled)

		_, err = repo.GetForTenant(ctx, "globex", dep.ID)
		assert.True(t, apperrors.IsNotFound(err), "deployments are tenant scoped")

		_, err = repo.Update(ctx, "globex", dep.ID, model.UpdateDeploymentRequest{Enabled: new(bool)})
		assert.True(t, apperrors.IsNotFound(err))

		list, err := repo.ListByTenant(ctx, "acme")
		require.NoError(t, err)
		assert.Len(t, list, 1)

		ok, err := repo.Delete(ctx, "acme", dep.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.Delete(ctx, "acme", dep.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestDeploymentRepo_Integration_UnknownIntegration(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewDeploymentRepo(db, RepoConfig{})
		_, err := repo.Create(context.Background(), &model.CreateDeploymentRequest{
			TenantID:      "acme",
			IntegrationID: "0d1c4e39-8e62-4b4f-a8c8-6a7bd6d0e2f5",
			Config:        json.RawMessage(`{}`),
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestDeploymentRepo_Integration_DeleteCascadesToJobs(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		fx := testutil.NewFixtures(t, db)
		dep := fx.Deployment(fx.Integration("okta"), testutil.DeploymentSpec{TenantID: "acme"})
		jobs := NewJobRepo(db, RepoConfig{})
		_, err := jobs.Enqueue(ctx, dep)
		require.NoError(t, err)

		ok, err := NewDeploymentRepo(db, RepoConfig{}).Delete(ctx, "acme", dep)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 0, fx.JobCount())
	})
}
