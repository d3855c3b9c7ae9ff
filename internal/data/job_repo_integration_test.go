package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/integrations-dispatch/internal/domain/model"
	apperrors "github.com/target/integrations-dispatch/internal/errors"
	"github.com/target/integrations-dispatch/internal/testutil"
)

func TestJobRepo_Integration_EnqueueStampsDeployment(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
		repo := NewJobRepo(db, RepoConfig{TimeProvider: NewFixedTimeProvider(now)})
		deployments := NewDeploymentRepo(db, RepoConfig{})

		fx := testutil.NewFixtures(t, db)
		depID := fx.Deployment(fx.Integration("aws-config"), testutil.DeploymentSpec{
			Config:   json.RawMessage(`{"region":"us-east-1"}`),
			Schedule: testutil.StringPtr("@hourly"),
		})

		job, err := repo.Enqueue(ctx, depID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusQueued, job.Status)
		assert.Equal(t, "aws-config", job.IntegrationName)
		assert.JSONEq(t, `{"region":"us-east-1"}`, string(job.Config))
		assert.Nil(t, job.StartedAt)

		dep, err := deployments.GetByID(ctx, depID)
		require.NoError(t, err)
		require.NotNil(t, dep.LastScheduledAt)
		assert.True(t, now.Equal(*dep.LastScheduledAt))
	})
}

func TestJobRepo_Integration_EnqueueUnknownDeployment(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})

		_, err := repo.Enqueue(context.Background(), "7f1f3c52-2c8e-4c4c-9d7e-3a4f1b0c9a11")
		assert.True(t, apperrors.IsNotFound(err))

		_, err = repo.Enqueue(context.Background(), "not-a-uuid")
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestJobRepo_Integration_ClaimOrderAndQueueIsolation(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewJobRepo(db, RepoConfig{})
		fx := testutil.NewFixtures(t, db)
		integ := fx.Integration("gcp-iam")
		defaultDep := fx.Deployment(integ, testutil.DeploymentSpec{})
		gpuDep := fx.Deployment(integ, testutil.DeploymentSpec{Queue: "gpu"})

		base := time.Now().UTC().Add(-time.Hour)
		second := fx.QueuedJob(defaultDep, base.Add(time.Minute))
		first := fx.QueuedJob(defaultDep, base)
		gpu := fx.QueuedJob(gpuDep, base.Add(-time.Minute))

		got, err := repo.ClaimNext(ctx, "default")
		require.NoError(t, err)
		assert.Equal(t, first, got.ID)
		assert.Equal(t, model.JobStatusInProgress, got.Status)
		require.NotNil(t, got.StartedAt)

		got, err = repo.ClaimNext(ctx, "default")
		require.NoError(t, err)
		assert.Equal(t, second, got.ID)

		_, err = repo.ClaimNext(ctx, "default")
		require.ErrorIs(t, err, model.ErrNoJobsAvailable)

		got, err = repo.ClaimNext(ctx, "gpu")
		require.NoError(t, err)
		assert.Equal(t, gpu, got.ID)
		assert.Equal(t, "gpu", got.Queue)
	})
}

func TestJobRepo_Integration_ConcurrentClaimsAreExclusive(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewJobRepo(db, RepoConfig{})
		fx := testutil.NewFixtures(t, db)
		dep := fx.Deployment(fx.Integration("okta"), testutil.DeploymentSpec{})

		const jobs, claimants = 5, 12
		base := time.Now().UTC().Add(-time.Hour)
		for i := range jobs {
			fx.QueuedJob(dep, base.Add(time.Duration(i)*time.Second))
		}

		var (
			mu      sync.Mutex
			claimed = map[string]int{}
			empty   int
			wg      sync.WaitGroup
		)
		for range claimants {
			wg.Add(1)
			go func() {
				defer wg.Done()
				job, err := repo.ClaimNext(ctx, "default")
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					assert.ErrorIs(t, err, model.ErrNoJobsAvailable)
					empty++
					return
				}
				claimed[job.ID]++
			}()
		}
		wg.Wait()

		assert.Len(t, claimed, jobs)
		for id, n := range claimed {
			assert.Equal(t, 1, n, "job %s claimed more than once", id)
		}
		assert.Equal(t, claimants-jobs, empty)
	})
}

func TestJobRepo_Integration_CompleteLifecycle(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		clock := NewFixedTimeProvider(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
		repo := NewJobRepo(db, RepoConfig{TimeProvider: clock})
		fx := testutil.NewFixtures(t, db)
		dep := fx.Deployment(fx.Integration("github"), testutil.DeploymentSpec{})

		queued, err := repo.Enqueue(ctx, dep)
		require.NoError(t, err)

		_, err = repo.Complete(ctx, queued.ID, model.CompleteJobRequest{})
		require.Error(t, err)
		assert.True(t, apperrors.IsConflict(err), "completing a queued job must conflict")

		clock.AddTime(5 * time.Second)
		_, err = repo.ClaimNext(ctx, "default")
		require.NoError(t, err)

		clock.AddTime(30 * time.Second)
		first, err := repo.Complete(ctx, queued.ID, model.CompleteJobRequest{
			Status: model.JobStatusDone,
			Result: json.RawMessage(`{"findings":1}`),
		})
		require.NoError(t, err)
		require.NotNil(t, first.FinishedAt)
		assert.Equal(t, int64(30), *first.ExecutionSeconds())

		clock.AddTime(time.Minute)
		second, err := repo.Complete(ctx, queued.ID, model.CompleteJobRequest{
			Status: model.JobStatusError,
			Result: json.RawMessage(`{"error":"late duplicate"}`),
		})
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusError, second.Status)
		assert.JSONEq(t, `{"error":"late duplicate"}`, string(second.Result))
		assert.True(t, first.FinishedAt.Equal(*second.FinishedAt), "finished_at keeps its first value")

		_, err = repo.ClaimNext(ctx, "default")
		assert.ErrorIs(t, err, model.ErrNoJobsAvailable, "terminal jobs are never claimable")

		_, err = repo.Complete(ctx, "1b4e28ba-2fa1-11d2-883f-0016d3cca427", model.CompleteJobRequest{})
		assert.True(t, apperrors.IsNotFound(err))

		_, err = repo.Complete(ctx, queued.ID, model.CompleteJobRequest{Status: model.JobStatusQueued})
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestJobRepo_Integration_DeleteRange(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewJobRepo(db, RepoConfig{})
		fx := testutil.NewFixtures(t, db)
		dep := fx.Deployment(fx.Integration("slack"), testutil.DeploymentSpec{})

		fx.FinishedJob(dep, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
		fx.FinishedJob(dep, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
		kept := fx.FinishedJob(dep, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
		fx.QueuedJob(dep, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

		_, err := repo.DeleteRange(ctx, model.TimeRange{})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
		assert.Equal(t, 4, fx.JobCount(), "unbounded delete must not touch any row")

		jan, mar := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
		n, err := repo.DeleteRange(ctx, model.TimeRange{Before: &jan, After: &mar})
		require.NoError(t, err)
		assert.Zero(t, n, "before earlier than after matches no row")
		assert.Equal(t, 4, fx.JobCount())

		before := time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)
		n, err = repo.DeleteRange(ctx, model.TimeRange{Before: &before})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		_, err = repo.GetByID(ctx, kept)
		require.NoError(t, err)
		assert.Equal(t, 2, fx.JobCount(), "unfinished jobs are outside every window")
	})
}

func TestJobRepo_Integration_ListPagination(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewJobRepo(db, RepoConfig{})
		fx := testutil.NewFixtures(t, db)
		integ := fx.Integration("jira")
		mine := fx.Deployment(integ, testutil.DeploymentSpec{TenantID: "acme"})
		other := fx.Deployment(integ, testutil.DeploymentSpec{TenantID: "globex"})

		base := time.Now().UTC().Add(-time.Hour)
		var newest string
		for i := range 5 {
			newest = fx.QueuedJob(mine, base.Add(time.Duration(i)*time.Minute))
		}
		fx.QueuedJob(other, base)

		opts := model.JobListOptions{TenantID: "acme", Page: 1, PerPage: 2}
		page, err := repo.List(ctx, opts)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, newest, page[0].ID)

		total, err := repo.Count(ctx, opts)
		require.NoError(t, err)
		assert.Equal(t, 5, total)

		_, err = repo.GetForTenant(ctx, "globex", newest)
		assert.True(t, apperrors.IsNotFound(err))

		bad := "nope"
		_, err = repo.List(ctx, model.JobListOptions{TenantID: "acme", DeploymentID: &bad})
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestJobRepo_Integration_CountStuck(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		clock := NewFixedTimeProvider(time.Now().UTC().Add(-3 * time.Hour))
		repo := NewJobRepo(db, RepoConfig{TimeProvider: clock})
		fx := testutil.NewFixtures(t, db)
		dep := fx.Deployment(fx.Integration("aws-s3"), testutil.DeploymentSpec{})

		fx.QueuedJob(dep, clock.Now())
		_, err := repo.ClaimNext(ctx, "default")
		require.NoError(t, err)

		n, err := repo.CountStuck(ctx, time.Now().UTC().Add(-2*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = repo.CountStuck(ctx, time.Now().UTC().Add(-4*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})
}
