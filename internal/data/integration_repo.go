package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/target/integrations-dispatch/internal/core"
	"github.com/target/integrations-dispatch/internal/data/pgxutil"
	"github.com/target/integrations-dispatch/internal/domain/model"
	apperrors "github.com/target/integrations-dispatch/internal/errors"
)

// IntegrationRepo provides database operations for the integration catalog.
type IntegrationRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

var _ core.IntegrationRepository = (*IntegrationRepo)(nil)

// NewIntegrationRepo creates an IntegrationRepo.
func NewIntegrationRepo(db *sql.DB, cfg RepoConfig) *IntegrationRepo {
	return &IntegrationRepo{DB: db, timeProvider: orRealTime(cfg.TimeProvider)}
}

const integrationColumns = `id, name, title, description, schema, schedule, is_service, catalog_hash, created_at, updated_at`

// Create registers an integration. A duplicate name is a Conflict.
func (r *IntegrationRepo) Create(ctx context.Context, req *model.CreateIntegrationRequest) (*model.Integration, error) {
	if req == nil {
		return nil, apperrors.Validation("create integration request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := r.timeProvider.Now()
	out, err := pgxutil.ConnQueryOne[model.Integration](ctx, r.DB, `
INSERT INTO integrations (name, title, description, schema, schedule, is_service, catalog_hash, created_at, updated_at)
VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, $8, $8)
RETURNING `+integrationColumns,
		req.Name, req.Title, req.Description, []byte(req.Schema), req.Schedule, req.IsService, req.CatalogHash, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create integration: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// GetByID returns an integration by id.
func (r *IntegrationRepo) GetByID(ctx context.Context, id string) (*model.Integration, error) {
	if !validUUID(id) {
		return nil, apperrors.NotFoundf("integration %s not found", id)
	}
	return r.getOne(ctx, `SELECT `+integrationColumns+` FROM integrations WHERE id = $1`, id)
}

// GetByName returns an integration by its unique name.
func (r *IntegrationRepo) GetByName(ctx context.Context, name string) (*model.Integration, error) {
	return r.getOne(ctx, `SELECT `+integrationColumns+` FROM integrations WHERE name = $1`, name)
}

func (r *IntegrationRepo) getOne(ctx context.Context, q, key string) (*model.Integration, error) {
	out, err := pgxutil.ConnQueryOne[model.Integration](ctx, r.DB, q, key)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFoundf("integration %s not found", key)
	}
	if err != nil {
		return nil, fmt.Errorf("get integration: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// List returns every integration ordered by name.
func (r *IntegrationRepo) List(ctx context.Context) ([]*model.Integration, error) {
	out, err := pgxutil.ConnQueryAll[model.Integration](ctx, r.DB,
		`SELECT `+integrationColumns+` FROM integrations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list integrations: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// UpdateFromCatalog overwrites the catalog-managed fields of an integration.
func (r *IntegrationRepo) UpdateFromCatalog(
	ctx context.Context,
	id string,
	req *model.CreateIntegrationRequest,
) (*model.Integration, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !validUUID(id) {
		return nil, apperrors.NotFoundf("integration %s not found", id)
	}

	out, err := pgxutil.ConnQueryOne[model.Integration](ctx, r.DB, `
UPDATE integrations
   SET title = $2, description = $3, schema = $4::jsonb, schedule = $5,
       is_service = $6, catalog_hash = $7, updated_at = $8
 WHERE id = $1
RETURNING `+integrationColumns,
		id, req.Title, req.Description, []byte(req.Schema), req.Schedule, req.IsService, req.CatalogHash,
		r.timeProvider.Now(),
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFoundf("integration %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("update integration: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// DeleteAll removes the whole catalog, cascading to deployments, jobs and violations.
func (r *IntegrationRepo) DeleteAll(ctx context.Context) (int64, error) {
	var n int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		tag, xerr := conn.Exec(ctx, `DELETE FROM integrations`)
		n = tag.RowsAffected()
		return xerr
	})
	if err != nil {
		return 0, fmt.Errorf("delete integrations: %w", apperrors.MapDBError(err))
	}
	return n, nil
}
