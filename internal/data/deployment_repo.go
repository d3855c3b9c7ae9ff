package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/target/integrations-dispatch/internal/core"
	"github.com/target/integrations-dispatch/internal/data/pgxutil"
	"github.com/target/integrations-dispatch/internal/domain/model"
	apperrors "github.com/target/integrations-dispatch/internal/errors"
)

// DeploymentRepo provides database operations for deployments.
type DeploymentRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

var _ core.DeploymentRepository = (*DeploymentRepo)(nil)

// NewDeploymentRepo creates a DeploymentRepo.
func NewDeploymentRepo(db *sql.DB, cfg RepoConfig) *DeploymentRepo {
	return &DeploymentRepo{DB: db, timeProvider: orRealTime(cfg.TimeProvider)}
}

const deploymentColumns = `
  d.id,
  d.integration_id,
  i.name AS integration_name,
  d.tenant_id,
  d.config,
  d.schedule,
  d.queue,
  d.timeout_seconds,
  d.enabled,
  d.last_scheduled_at,
  d.created_at,
  d.updated_at`

const deploymentFrom = `
FROM deployments d
JOIN integrations i ON i.id = d.integration_id`

// Create inserts a validated deployment.
func (r *DeploymentRepo) Create(ctx context.Context, req *model.CreateDeploymentRequest) (*model.Deployment, error) {
	if req == nil {
		return nil, apperrors.Validation("create deployment request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !validUUID(req.IntegrationID) {
		return nil, apperrors.NotFoundf("integration %s not found", req.IntegrationID)
	}

	now := r.timeProvider.Now()
	var out *model.Deployment
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		var id string
		ierr := conn.QueryRow(ctx, `
INSERT INTO deployments (integration_id, tenant_id, config, schedule, queue, timeout_seconds, enabled, created_at, updated_at)
VALUES ($1, $2, $3::jsonb, $4, $5, $6, $7, $8, $8)
RETURNING id`,
			req.IntegrationID, req.TenantID, []byte(req.Config), req.Schedule, req.Queue, *req.Timeout, *req.Enabled, now,
		).Scan(&id)
		if ierr != nil {
			return ierr
		}
		d, gerr := pgxutil.QueryOne[model.Deployment](ctx, conn,
			`SELECT`+deploymentColumns+deploymentFrom+` WHERE d.id = $1`, id)
		out = d
		return gerr
	})
	if err != nil {
		var appErr *apperrors.AppError
		mapped := apperrors.MapDBError(err)
		if errors.As(mapped, &appErr) && appErr.Code == apperrors.ErrCodeValidation && strings.Contains(appErr.Message, "integration") {
			return nil, apperrors.NotFoundf("integration %s not found", req.IntegrationID)
		}
		return nil, fmt.Errorf("create deployment: %w", mapped)
	}
	return out, nil
}

// GetByID returns a deployment regardless of tenant.
func (r *DeploymentRepo) GetByID(ctx context.Context, id string) (*model.Deployment, error) {
	return r.getOne(ctx, `SELECT`+deploymentColumns+deploymentFrom+` WHERE d.id = $1`, id)
}

// GetForTenant returns a deployment owned by tenantID.
func (r *DeploymentRepo) GetForTenant(ctx context.Context, tenantID, id string) (*model.Deployment, error) {
	return r.getOne(ctx, `SELECT`+deploymentColumns+deploymentFrom+` WHERE d.id = $1 AND d.tenant_id = $2`, id, tenantID)
}

func (r *DeploymentRepo) getOne(ctx context.Context, q, id string, extra ...any) (*model.Deployment, error) {
	if !validUUID(id) {
		return nil, apperrors.NotFoundf("deployment %s not found", id)
	}
	d, err := pgxutil.ConnQueryOne[model.Deployment](ctx, r.DB, q, append([]any{id}, extra...)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFoundf("deployment %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get deployment: %w", apperrors.MapDBError(err))
	}
	return d, nil
}

// ListByTenant returns a tenant's deployments, newest first.
func (r *DeploymentRepo) ListByTenant(ctx context.Context, tenantID string) ([]*model.Deployment, error) {
	out, err := pgxutil.ConnQueryAll[model.Deployment](ctx, r.DB,
		`SELECT`+deploymentColumns+deploymentFrom+` WHERE d.tenant_id = $1 ORDER BY d.created_at DESC, d.id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// ListScheduled returns enabled deployments that carry a schedule.
func (r *DeploymentRepo) ListScheduled(ctx context.Context) ([]*model.Deployment, error) {
	out, err := pgxutil.ConnQueryAll[model.Deployment](ctx, r.DB,
		`SELECT`+deploymentColumns+deploymentFrom+` WHERE d.enabled AND d.schedule IS NOT NULL ORDER BY d.created_at, d.id`)
	if err != nil {
		return nil, fmt.Errorf("list scheduled deployments: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// Update applies a partial update to a tenant's deployment.
func (r *DeploymentRepo) Update(
	ctx context.Context,
	tenantID, id string,
	req model.UpdateDeploymentRequest,
) (*model.Deployment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !validUUID(id) {
		return nil, apperrors.NotFoundf("deployment %s not found", id)
	}

	sets := []string{"updated_at = $3"}
	args := []any{id, tenantID, r.timeProvider.Now()}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if len(req.Config) > 0 {
		args = append(args, []byte(req.Config))
		sets = append(sets, fmt.Sprintf("config = $%d::jsonb", len(args)))
	}
	if req.Enabled != nil {
		add("enabled", *req.Enabled)
	}
	if req.ClearsSchedule() {
		sets = append(sets, "schedule = NULL")
	} else if req.Schedule != nil {
		add("schedule", strings.TrimSpace(*req.Schedule))
	}
	if req.Queue != nil {
		add("queue", strings.TrimSpace(*req.Queue))
	}
	if req.Timeout != nil {
		add("timeout_seconds", *req.Timeout)
	}

	q := `UPDATE deployments SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 AND tenant_id = $2`
	var affected int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		tag, xerr := conn.Exec(ctx, q, args...)
		affected = tag.RowsAffected()
		return xerr
	})
	if err != nil {
		return nil, fmt.Errorf("update deployment: %w", apperrors.MapDBError(err))
	}
	if affected == 0 {
		return nil, apperrors.NotFoundf("deployment %s not found", id)
	}
	return r.GetForTenant(ctx, tenantID, id)
}

// Delete removes a tenant's deployment and, by cascade, its jobs and violations.
func (r *DeploymentRepo) Delete(ctx context.Context, tenantID, id string) (bool, error) {
	if !validUUID(id) {
		return false, nil
	}
	var affected int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		tag, xerr := conn.Exec(ctx, `DELETE FROM deployments WHERE id = $1 AND tenant_id = $2`, id, tenantID)
		affected = tag.RowsAffected()
		return xerr
	})
	if err != nil {
		return false, fmt.Errorf("delete deployment: %w", apperrors.MapDBError(err))
	}
	return affected > 0, nil
}
