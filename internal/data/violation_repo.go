package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/target/integrations-dispatch/internal/core"
	"github.com/target/integrations-dispatch/internal/data/pgxutil"
	"github.com/target/integrations-dispatch/internal/domain/model"
	apperrors "github.com/target/integrations-dispatch/internal/errors"
)

// ViolationRepo provides append-only storage for violations.
type ViolationRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

var _ core.ViolationRepository = (*ViolationRepo)(nil)

// NewViolationRepo creates a ViolationRepo.
func NewViolationRepo(db *sql.DB, cfg RepoConfig) *ViolationRepo {
	return &ViolationRepo{DB: db, timeProvider: orRealTime(cfg.TimeProvider)}
}

const violationColumns = `
  v.id,
  v.job_id,
  i.name AS integration_name,
  v.task_name,
  v.control_references,
  v.output,
  v.severity,
  v.description,
  v.violation_type,
  v.environment,
  v.meta,
  v.timestamp`

const violationFrom = `
FROM violations v
JOIN jobs j ON j.id = v.job_id
JOIN deployments d ON d.id = j.deployment_id
JOIN integrations i ON i.id = d.integration_id`

// Create records a violation for jobID. A missing job is NotFound.
func (r *ViolationRepo) Create(
	ctx context.Context,
	jobID string,
	req *model.CreateViolationRequest,
) (*model.Violation, error) {
	if req == nil {
		return nil, apperrors.Validation("create violation request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !validUUID(jobID) {
		return nil, apperrors.NotFoundf("job %s not found", jobID)
	}

	ts := r.timeProvider.Now()
	if req.Timestamp != nil {
		ts = req.Timestamp.UTC()
	}

	var out *model.Violation
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		var id string
		ierr := conn.QueryRow(ctx, `
INSERT INTO violations (job_id, task_name, control_references, output, severity,
                        description, violation_type, environment, meta, timestamp)
SELECT j.id, $2, $3::jsonb, $4::jsonb, $5, $6, $7, $8, $9::jsonb, $10
  FROM jobs j
 WHERE j.id = $1
RETURNING id`,
			jobID, req.TaskName, []byte(req.ControlReferences), []byte(req.Output), req.Severity,
			req.Description, req.ViolationType, req.Environment, []byte(req.Meta), ts,
		).Scan(&id)
		if ierr != nil {
			return ierr
		}
		v, gerr := pgxutil.QueryOne[model.Violation](ctx, conn, `SELECT`+violationColumns+violationFrom+` WHERE v.id = $1`, id)
		out = v
		return gerr
	})
	if err != nil {
		if apperrors.IsNotFound(apperrors.MapDBError(err)) {
			return nil, apperrors.NotFoundf("job %s not found", jobID)
		}
		return nil, fmt.Errorf("create violation: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// ListByTenant returns every violation recorded under a tenant's deployments, newest first.
func (r *ViolationRepo) ListByTenant(ctx context.Context, tenantID string) ([]*model.Violation, error) {
	out, err := pgxutil.ConnQueryAll[model.Violation](ctx, r.DB,
		`SELECT`+violationColumns+violationFrom+` WHERE d.tenant_id = $1 ORDER BY v.timestamp DESC, v.id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list violations: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// ListByJobIDs returns the violations for the given jobs in timestamp order.
func (r *ViolationRepo) ListByJobIDs(ctx context.Context, jobIDs []string) ([]*model.Violation, error) {
	if len(jobIDs) == 0 {
		return []*model.Violation{}, nil
	}
	out, err := pgxutil.ConnQueryAll[model.Violation](ctx, r.DB,
		`SELECT`+violationColumns+violationFrom+` WHERE v.job_id = ANY($1::uuid[]) ORDER BY v.timestamp, v.id`, jobIDs)
	if err != nil {
		return nil, fmt.Errorf("list job violations: %w", apperrors.MapDBError(err))
	}
	return out, nil
}
