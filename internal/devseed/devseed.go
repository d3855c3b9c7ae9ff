// Package devseed loads a small development catalog: the builtin http_check
// integration and one scheduled deployment per probe target.
package devseed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/integrations-dispatch/internal/core"
	"github.com/target/integrations-dispatch/internal/domain/model"
	apperrors "github.com/target/integrations-dispatch/internal/errors"
	"github.com/target/integrations-dispatch/internal/service"
)

// Tenant owns every seeded deployment.
const Tenant = "dev"

const httpCheckSchema = `{
  "type": "object",
  "required": ["url"],
  "properties": {
    "url": {"type": "string", "format": "uri"},
    "method": {"type": "string", "enum": ["GET", "HEAD"]},
    "expected_status": {"type": "integer", "minimum": 100, "maximum": 599}
  },
  "additionalProperties": false
}`

// Services bundles the dependencies needed for development seeding.
type Services struct {
	Integrations    *service.IntegrationService
	IntegrationRepo core.IntegrationRepository
	Deployments     *service.DeploymentService
}

type probeSeed struct {
	url      string
	schedule string
	status   int
}

func defaultProbes() []probeSeed {
	return []probeSeed{
		{url: "https://example.com/", schedule: "*/5 * * * *"},
		{url: "https://example.org/status", schedule: "0 * * * *", status: 204},
	}
}

// Run creates the http_check integration when absent and adds the default probe
// deployments when the dev tenant has none.
func Run(ctx context.Context, svcs Services, logger *slog.Logger) error {
	if svcs.Integrations == nil || svcs.IntegrationRepo == nil || svcs.Deployments == nil {
		return errors.New("devseed requires integration and deployment services")
	}
	if logger == nil {
		logger = slog.Default()
	}

	integ, err := ensureIntegration(ctx, svcs, logger)
	if err != nil {
		return err
	}

	existing, err := svcs.Deployments.List(ctx, Tenant)
	if err != nil {
		return fmt.Errorf("list dev deployments: %w", err)
	}
	if len(existing) > 0 {
		logger.InfoContext(ctx, "dev deployments already present; skipping", "count", len(existing))
		return nil
	}

	failures := 0
	for _, p := range defaultProbes() {
		if err := createProbe(ctx, svcs.Deployments, integ.ID, p); err != nil {
			logger.ErrorContext(ctx, "seed deployment failed", "url", p.url, "error", err)
			failures++
			continue
		}
		logger.InfoContext(ctx, "seeded deployment", "url", p.url, "schedule", p.schedule)
	}
	if failures > 0 {
		return fmt.Errorf("%d seed errors; check logs", failures)
	}
	return nil
}

func ensureIntegration(ctx context.Context, svcs Services, logger *slog.Logger) (*model.Integration, error) {
	desc := "Probe a URL and record an availability violation on an unexpected status"
	integ, err := svcs.Integrations.Create(ctx, &model.CreateIntegrationRequest{
		Name:        "http_check",
		Title:       "HTTP check",
		Description: &desc,
		Schema:      json.RawMessage(httpCheckSchema),
	})
	switch {
	case err == nil:
		logger.InfoContext(ctx, "seeded integration", "name", integ.Name, "integration_id", integ.ID)
		return integ, nil
	case apperrors.IsConflict(err):
		return svcs.IntegrationRepo.GetByName(ctx, "http_check")
	default:
		return nil, fmt.Errorf("seed http_check integration: %w", err)
	}
}

func createProbe(ctx context.Context, svc *service.DeploymentService, integrationID string, p probeSeed) error {
	cfg := map[string]any{"url": p.url}
	if p.status != 0 {
		cfg["expected_status"] = p.status
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	schedule := p.schedule
	timeout := 30
	_, err = svc.Create(ctx, Tenant, &model.CreateDeploymentRequest{
		IntegrationID: integrationID,
		Config:        raw,
		Schedule:      &schedule,
		Timeout:       &timeout,
	})
	return err
}
