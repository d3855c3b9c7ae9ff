package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/target/integrations-dispatch/internal/core"
	"github.com/target/integrations-dispatch/internal/data/pgxutil"
	"github.com/target/integrations-dispatch/internal/domain/model"
	apperrors "github.com/target/integrations-dispatch/internal/errors"
)

// RepoConfig holds options shared by the Postgres repositories.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// JobRepo is the Postgres-backed job store.
type JobRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

var (
	_ core.JobRepository       = (*JobRepo)(nil)
	_ core.DeploymentJobLister = (*JobRepo)(nil)
)

// NewJobRepo creates a JobRepo.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &JobRepo{
		DB:           db,
		timeProvider: orRealTime(cfg.TimeProvider),
		logger:       logger.With("component", "job_repo"),
	}
}

// jobViewColumns projects the joined job view; aliases match model.Job db tags.
const jobViewColumns = `
  j.id,
  j.deployment_id,
  j.status,
  j.result,
  j.created_at,
  j.started_at,
  j.finished_at,
  i.name AS integration_name,
  d.tenant_id,
  d.config,
  d.queue,
  d.timeout_seconds`

const jobViewFrom = `
FROM jobs j
JOIN deployments d ON d.id = j.deployment_id
JOIN integrations i ON i.id = d.integration_id`

// enqueueSQL stamps last_scheduled_at and inserts the queued job in one statement.
const enqueueSQL = `
WITH d AS (
  UPDATE deployments
     SET last_scheduled_at = $2
   WHERE id = $1
  RETURNING id, integration_id, tenant_id, config, queue, timeout_seconds
), j AS (
  INSERT INTO jobs (deployment_id, status, created_at)
  SELECT d.id, 'queued', $2 FROM d
  RETURNING id, deployment_id, status, result, created_at, started_at, finished_at
)
SELECT` + jobViewColumns + `
FROM j
JOIN d ON d.id = j.deployment_id
JOIN integrations i ON i.id = d.integration_id`

// claimNextSQL picks the oldest queued job for the queue and skips rows other
// claimants already hold, so concurrent pollers never wait on each other.
const claimNextSQL = `
WITH next AS (
  SELECT j.id
    FROM jobs j
    JOIN deployments d ON d.id = j.deployment_id
   WHERE j.status = 'queued'
     AND d.queue = $1
   ORDER BY j.created_at, j.id
   LIMIT 1
   FOR UPDATE OF j SKIP LOCKED
), j AS (
  UPDATE jobs
     SET status = 'in-progress',
         started_at = $2
    FROM next
   WHERE jobs.id = next.id
  RETURNING jobs.id, jobs.deployment_id, jobs.status, jobs.result,
            jobs.created_at, jobs.started_at, jobs.finished_at
)
SELECT` + jobViewColumns + `
FROM j
JOIN deployments d ON d.id = j.deployment_id
JOIN integrations i ON i.id = d.integration_id`

// completeSQL accepts a completion from in-progress or a terminal state. The first
// finished_at is kept; status and result follow the last writer.
const completeSQL = `
WITH j AS (
  UPDATE jobs
     SET status = $2,
         result = $3::jsonb,
         finished_at = COALESCE(finished_at, $4)
   WHERE id = $1
     AND status IN ('in-progress', 'done', 'error')
  RETURNING id, deployment_id, status, result, created_at, started_at, finished_at
)
SELECT` + jobViewColumns + `
FROM j
JOIN deployments d ON d.id = j.deployment_id
JOIN integrations i ON i.id = d.integration_id`

const deleteRangeSQL = `
DELETE FROM jobs
 WHERE finished_at IS NOT NULL
   AND ($1::timestamptz IS NULL OR finished_at <= $1)
   AND ($2::timestamptz IS NULL OR finished_at >= $2)`

const jobListFilter = `
 WHERE d.tenant_id = $1
   AND ($2::uuid IS NULL OR j.deployment_id = $2)
   AND ($3::timestamptz IS NULL OR j.finished_at <= $3)
   AND ($4::timestamptz IS NULL OR j.finished_at >= $4)`

// Enqueue creates a queued job for the deployment.
func (r *JobRepo) Enqueue(ctx context.Context, deploymentID string) (*model.Job, error) {
	if !validUUID(deploymentID) {
		return nil, apperrors.NotFoundf("deployment %s not found", deploymentID)
	}

	job, err := pgxutil.ConnQueryOne[model.Job](ctx, r.DB, enqueueSQL, deploymentID, r.timeProvider.Now())
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFoundf("deployment %s not found", deploymentID)
	}
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", apperrors.MapDBError(err))
	}
	return job, nil
}

// ClaimNext atomically moves the oldest queued job on queue to in-progress.
func (r *JobRepo) ClaimNext(ctx context.Context, queue string) (*model.Job, error) {
	if queue == "" {
		queue = model.DefaultQueue
	}

	var job *model.Job
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted},
		Fn: func(tx pgx.Tx) error {
			j, qerr := pgxutil.QueryOne[model.Job](ctx, tx, claimNextSQL, queue, r.timeProvider.Now())
			if errors.Is(qerr, pgx.ErrNoRows) {
				return model.ErrNoJobsAvailable
			}
			if qerr != nil {
				return qerr
			}
			job = j
			return nil
		},
	})
	if errors.Is(err, model.ErrNoJobsAvailable) {
		return nil, model.ErrNoJobsAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", apperrors.MapDBError(err))
	}
	return job, nil
}

// Complete records the terminal status and result for a claimed job.
func (r *JobRepo) Complete(ctx context.Context, id string, req model.CompleteJobRequest) (*model.Job, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !validUUID(id) {
		return nil, apperrors.NotFoundf("job %s not found", id)
	}

	var job *model.Job
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		j, qerr := pgxutil.QueryOne[model.Job](ctx, conn, completeSQL,
			id, req.Status, []byte(req.Result), r.timeProvider.Now())
		if errors.Is(qerr, pgx.ErrNoRows) {
			return r.explainMissedComplete(ctx, conn, id, req.Status)
		}
		if qerr != nil {
			return qerr
		}
		job = j
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("complete job: %w", apperrors.MapDBError(err))
	}
	return job, nil
}

// explainMissedComplete tells a missing job apart from one that was never claimed.
func (r *JobRepo) explainMissedComplete(
	ctx context.Context,
	conn *pgx.Conn,
	id string,
	next model.JobStatus,
) error {
	var status model.JobStatus
	err := conn.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFoundf("job %s not found", id)
	}
	if err != nil {
		return err
	}
	return completeConflict(id, status, next)
}

// completeConflict describes why a completion into next was refused for a job
// currently in status. A status that now allows the move was claimed between the
// update and the lookup, so the caller may retry.
func completeConflict(id string, status, next model.JobStatus) error {
	if status.CanTransitionTo(next) {
		return apperrors.Conflictf("job %s moved to %s during completion; retry", id, status)
	}
	return apperrors.Conflictf("job %s is %s and has not been claimed", id, status)
}

// DeleteRange removes finished jobs inside the window. An unbounded window is rejected.
func (r *JobRepo) DeleteRange(ctx context.Context, tr model.TimeRange) (int64, error) {
	if err := tr.Validate(); err != nil {
		return 0, err
	}

	var deleted int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		tag, xerr := conn.Exec(ctx, deleteRangeSQL, utcPtr(tr.Before), utcPtr(tr.After))
		if xerr != nil {
			return xerr
		}
		deleted = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete jobs: %w", apperrors.MapDBError(err))
	}
	r.logger.InfoContext(ctx, "deleted finished jobs", "deleted", deleted, "before", tr.Before, "after", tr.After)
	return deleted, nil
}

// GetByID returns the job view for id.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	if !validUUID(id) {
		return nil, apperrors.NotFoundf("job %s not found", id)
	}
	job, err := pgxutil.ConnQueryOne[model.Job](ctx, r.DB,
		`SELECT`+jobViewColumns+jobViewFrom+` WHERE j.id = $1`, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFoundf("job %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", apperrors.MapDBError(err))
	}
	return job, nil
}

// GetForTenant returns the job view for id when it belongs to tenantID.
func (r *JobRepo) GetForTenant(ctx context.Context, tenantID, id string) (*model.Job, error) {
	if !validUUID(id) {
		return nil, apperrors.NotFoundf("job %s not found", id)
	}
	job, err := pgxutil.ConnQueryOne[model.Job](ctx, r.DB,
		`SELECT`+jobViewColumns+jobViewFrom+` WHERE j.id = $1 AND d.tenant_id = $2`, id, tenantID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFoundf("job %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", apperrors.MapDBError(err))
	}
	return job, nil
}

// List returns one page of a tenant's jobs, newest first.
func (r *JobRepo) List(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error) {
	opts.Normalize()
	args, err := jobListArgs(opts)
	if err != nil {
		return nil, err
	}
	args = append(args, opts.PerPage, opts.Offset())

	q := `SELECT` + jobViewColumns + jobViewFrom + jobListFilter + `
 ORDER BY j.created_at DESC, j.id DESC
 LIMIT $5 OFFSET $6`
	jobs, err := pgxutil.ConnQueryAll[model.Job](ctx, r.DB, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", apperrors.MapDBError(err))
	}
	return jobs, nil
}

// Count returns the total number of jobs matching the list filter.
func (r *JobRepo) Count(ctx context.Context, opts model.JobListOptions) (int, error) {
	args, err := jobListArgs(opts)
	if err != nil {
		return 0, err
	}

	var n int
	err = pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, `SELECT count(*)`+jobViewFrom+jobListFilter, args...).Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("count jobs: %w", apperrors.MapDBError(err))
	}
	return n, nil
}

// ListByDeployment returns every job of a deployment, newest first.
func (r *JobRepo) ListByDeployment(ctx context.Context, deploymentID string) ([]*model.Job, error) {
	if !validUUID(deploymentID) {
		return []*model.Job{}, nil
	}
	jobs, err := pgxutil.ConnQueryAll[model.Job](ctx, r.DB,
		`SELECT`+jobViewColumns+jobViewFrom+` WHERE j.deployment_id = $1 ORDER BY j.created_at DESC, j.id DESC`,
		deploymentID)
	if err != nil {
		return nil, fmt.Errorf("list deployment jobs: %w", apperrors.MapDBError(err))
	}
	return jobs, nil
}

// CountStuck counts jobs that have been in-progress since before startedBefore.
func (r *JobRepo) CountStuck(ctx context.Context, startedBefore time.Time) (int, error) {
	var n int
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx,
			`SELECT count(*) FROM jobs WHERE status = 'in-progress' AND started_at < $1`,
			startedBefore.UTC()).Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("count stuck jobs: %w", apperrors.MapDBError(err))
	}
	return n, nil
}

func jobListArgs(opts model.JobListOptions) ([]any, error) {
	var deploymentID any
	if opts.DeploymentID != nil && *opts.DeploymentID != "" {
		if !validUUID(*opts.DeploymentID) {
			return nil, apperrors.ValidationField("deployment_id", "deployment_id must be a UUID")
		}
		deploymentID = *opts.DeploymentID
	}
	return []any{opts.TenantID, deploymentID, utcPtr(opts.Finished.Before), utcPtr(opts.Finished.After)}, nil
}

func validUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
