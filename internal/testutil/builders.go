package testutil

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// Fixtures inserts rows directly so store tests do not depend on the repositories
// they exercise.
type Fixtures struct {
	t  TestingTB
	db *sql.DB
}

// NewFixtures binds a fixture helper to db.
func NewFixtures(t TestingTB, db *sql.DB) *Fixtures {
	return &Fixtures{t: t, db: db}
}

// DeploymentSpec describes a deployment fixture. Zero values take the column defaults.
type DeploymentSpec struct {
	TenantID string
	Queue    string
	Schedule *string
	Config   json.RawMessage
	Timeout  int
	Disabled bool
}

// Integration inserts an integration named name and returns its id.
func (f *Fixtures) Integration(name string) string {
	f.t.Helper()
	var id string
	err := f.db.QueryRowContext(context.Background(),
		`INSERT INTO integrations (name, title) VALUES ($1, $1) RETURNING id`, name).Scan(&id)
	if err != nil {
		f.t.Fatalf("insert integration fixture: %v", err)
	}
	return id
}

// Deployment inserts a deployment for integrationID and returns its id.
func (f *Fixtures) Deployment(integrationID string, spec DeploymentSpec) string {
	f.t.Helper()
	if spec.TenantID == "" {
		spec.TenantID = "tenant-a"
	}
	if spec.Queue == "" {
		spec.Queue = "default"
	}
	if len(spec.Config) == 0 {
		spec.Config = json.RawMessage(`{}`)
	}
	if spec.Timeout == 0 {
		spec.Timeout = 60
	}

	var id string
	err := f.db.QueryRowContext(context.Background(), `
INSERT INTO deployments (integration_id, tenant_id, config, schedule, queue, timeout_seconds, enabled)
VALUES ($1, $2, $3::jsonb, $4, $5, $6, $7) RETURNING id`,
		integrationID, spec.TenantID, string(spec.Config), spec.Schedule, spec.Queue, spec.Timeout, !spec.Disabled,
	).Scan(&id)
	if err != nil {
		f.t.Fatalf("insert deployment fixture: %v", err)
	}
	return id
}

// QueuedJob inserts a queued job created at createdAt.
func (f *Fixtures) QueuedJob(deploymentID string, createdAt time.Time) string {
	f.t.Helper()
	var id string
	err := f.db.QueryRowContext(context.Background(),
		`INSERT INTO jobs (deployment_id, status, created_at) VALUES ($1, 'queued', $2) RETURNING id`,
		deploymentID, createdAt.UTC()).Scan(&id)
	if err != nil {
		f.t.Fatalf("insert job fixture: %v", err)
	}
	return id
}

// FinishedJob inserts a done job that finished at finishedAt.
func (f *Fixtures) FinishedJob(deploymentID string, finishedAt time.Time) string {
	f.t.Helper()
	started := finishedAt.Add(-time.Minute).UTC()
	var id string
	err := f.db.QueryRowContext(context.Background(), `
INSERT INTO jobs (deployment_id, status, result, created_at, started_at, finished_at)
VALUES ($1, 'done', '{}'::jsonb, $2, $2, $3) RETURNING id`,
		deploymentID, started, finishedAt.UTC()).Scan(&id)
	if err != nil {
		f.t.Fatalf("insert finished job fixture: %v", err)
	}
	return id
}

// JobCount returns the number of rows in jobs.
func (f *Fixtures) JobCount() int {
	f.t.Helper()
	var n int
	if err := f.db.QueryRowContext(context.Background(), `SELECT count(*) FROM jobs`).Scan(&n); err != nil {
		f.t.Fatalf("count jobs: %v", err)
	}
	return n
}
