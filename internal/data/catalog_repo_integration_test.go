package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/integrations-dispatch/internal/domain/model"
	apperrors "github.com/target/integrations-dispatch/internal/errors"
	"github.com/target/integrations-dispatch/internal/testutil"
)

func TestIntegrationRepo_Integration(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewIntegrationRepo(db, RepoConfig{})

		created, err := repo.Create(ctx, &model.CreateIntegrationRequest{
			Name:   "okta",
			Schema: json.RawMessage(`{"type":"object"}`),
		})
		require.NoError(t, err)
		assert.Equal(t, "okta", created.Title)
		require.NotNil(t, created.Description)

		_, err = repo.Create(ctx, &model.CreateIntegrationRequest{Name: "okta", Schema: json.RawMessage(`{}`)})
		require.Error(t, err)
		assert.True(t, apperrors.IsConflict(err), "names are unique")
		assert.Equal(t, "name", apperrors.GetField(err))

		byName, err := repo.GetByName(ctx, "okta")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byName.ID)

		_, err = repo.GetByID(ctx, "not-a-uuid")
		assert.True(t, apperrors.IsNotFound(err))

		hash := "abc123"
		updated, err := repo.UpdateFromCatalog(ctx, created.ID, &model.CreateIntegrationRequest{
			Name:        "okta",
			Title:       "Okta",
			Schema:      json.RawMessage(`{"type":"object","required":["org"]}`),
			Schedule:    testutil.StringPtr("@daily"),
			CatalogHash: &hash,
		})
		require.NoError(t, err)
		assert.Equal(t, "Okta", updated.Title)
		require.NotNil(t, updated.Schedule)
		assert.Equal(t, "@daily", *updated.Schedule)
		require.NotNil(t, updated.CatalogHash)
		assert.Equal(t, hash, *updated.CatalogHash)

		_, err = repo.Create(ctx, &model.CreateIntegrationRequest{Name: "github", Schema: json.RawMessage(`{}`)})
		require.NoError(t, err)
		all, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "github", all[0].Name, "catalog is ordered by name")

		n, err := repo.DeleteAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		_, err = repo.GetByID(ctx, created.ID)
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestViolationRepo_Integration(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewViolationRepo(db, RepoConfig{})
		fx := testutil.NewFixtures(t, db)

		integ := fx.Integration("aws-iam")
		mine := fx.Deployment(integ, testutil.DeploymentSpec{TenantID: "acme"})
		other := fx.Deployment(integ, testutil.DeploymentSpec{TenantID: "globex"})
		base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
		jobA := fx.FinishedJob(mine, base)
		jobB := fx.FinishedJob(other, base)

		early, late := base, base.Add(time.Hour)
		v1, err := repo.Create(ctx, jobA, &model.CreateViolationRequest{
			TaskName:          "root-mfa",
			ControlReferences: json.RawMessage(`["CIS-1.5"]`),
			Output:            json.RawMessage(`{"account":"123"}`),
			Timestamp:         &early,
		})
		require.NoError(t, err)
		assert.Equal(t, model.SeverityMedium, v1.Severity)
		assert.Equal(t, "aws-iam", v1.IntegrationName)
		assert.JSONEq(t, `{}`, string(v1.Meta))

		v2, err := repo.Create(ctx, jobA, &model.CreateViolationRequest{
			TaskName:          "stale-keys",
			ControlReferences: json.RawMessage(`[]`),
			Output:            json.RawMessage(`{}`),
			Severity:          "High",
			Timestamp:         &late,
		})
		require.NoError(t, err)
		assert.Equal(t, model.SeverityHigh, v2.Severity, "severity is normalized to lower case")
		_, err = repo.Create(ctx, jobB, &model.CreateViolationRequest{
			TaskName:          "root-mfa",
			ControlReferences: json.RawMessage(`[]`),
			Output:            json.RawMessage(`{}`),
		})
		require.NoError(t, err)

		_, err = repo.Create(ctx, "0b8d7e6a-3c2f-4b9a-8f1e-2d4c6b8a0e13", &model.CreateViolationRequest{
			TaskName:          "x",
			ControlReferences: json.RawMessage(`[]`),
			Output:            json.RawMessage(`{}`),
		})
		assert.True(t, apperrors.IsNotFound(err))

		tenant, err := repo.ListByTenant(ctx, "acme")
		require.NoError(t, err)
		require.Len(t, tenant, 2)
		assert.Equal(t, v2.ID, tenant[0].ID, "newest first")

		byJob, err := repo.ListByJobIDs(ctx, []string{jobA})
		require.NoError(t, err)
		require.Len(t, byJob, 2)
		assert.Equal(t, v1.ID, byJob[0].ID)

		none, err := repo.ListByJobIDs(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, none)

		none, err = repo.ListByTenant(ctx, "initech")
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}
