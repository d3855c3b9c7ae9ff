package service

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"

	"github.com/target/integrations-dispatch/internal/core"
	"github.com/target/integrations-dispatch/internal/domain/model"
	apperrors "github.com/target/integrations-dispatch/internal/errors"
	"github.com/target/integrations-dispatch/internal/observability/metrics"
	"github.com/target/integrations-dispatch/internal/observability/statsd"
	"github.com/target/integrations-dispatch/internal/ports"
)

// ErrCatalogFetch marks a failure to download or read the catalog document.
var ErrCatalogFetch = errors.New("catalog fetch failed")

// CatalogSyncServiceOptions groups dependencies for CatalogSyncService.
type CatalogSyncServiceOptions struct {
	Repo    core.IntegrationRepository // Required: catalog repository
	Source  ports.CatalogSource        // Required: catalog document source
	Metrics statsd.Sink                // Optional: sync metrics
	Logger  *slog.Logger               // Optional: structured logger
}

// CatalogSyncService reconciles the integration table with the published catalog.
type CatalogSyncService struct {
	repo    core.IntegrationRepository
	source  ports.CatalogSource
	metrics statsd.Sink
	logger  *slog.Logger
}

// NewCatalogSyncService constructs a CatalogSyncService.
func NewCatalogSyncService(opts CatalogSyncServiceOptions) (*CatalogSyncService, error) {
	if opts.Repo == nil {
		return nil, errors.New("IntegrationRepository is required")
	}
	if opts.Source == nil {
		return nil, errors.New("CatalogSource is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sink := opts.Metrics
	if sink == nil {
		sink = statsd.Nop{}
	}
	return &CatalogSyncService{
		repo:    opts.Repo,
		source:  opts.Source,
		metrics: sink,
		logger:  logger.With("component", "catalog_sync"),
	}, nil
}

// Sync fetches the catalog once. Enabled entries that are new are created and entries
// whose content hash changed are updated. An invalid entry is skipped and reported.
func (s *CatalogSyncService) Sync(ctx context.Context) (result *model.SyncResult, err error) {
	result = &model.SyncResult{Created: []string{}, Updated: []string{}}
	defer func() {
		metrics.EmitCatalogSync(s.metrics, len(result.Created), len(result.Updated), err)
	}()

	raw, err := s.source.Fetch(ctx)
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrCatalogFetch, err)
	}
	entries, err := ParseCatalog(raw)
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrCatalogFetch, err)
	}

	for _, entry := range entries {
		if !entry.Enabled {
			continue
		}
		changed, created, serr := s.syncEntry(ctx, entry)
		if serr != nil {
			s.logger.WarnContext(ctx, "catalog entry skipped", "name", entry.Name, "error", serr)
			result.Skipped = append(result.Skipped, entry.Name)
			continue
		}
		switch {
		case created:
			result.Created = append(result.Created, entry.Name)
		case changed:
			result.Updated = append(result.Updated, entry.Name)
		}
	}

	s.logger.InfoContext(ctx, "catalog synced",
		"entries", len(entries),
		"created", len(result.Created),
		"updated", len(result.Updated),
		"skipped", len(result.Skipped),
	)
	return result, nil
}

func (s *CatalogSyncService) syncEntry(ctx context.Context, entry model.CatalogEntry) (changed, created bool, err error) {
	req, err := catalogRequest(entry)
	if err != nil {
		return false, false, err
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return false, false, err
	}
	if _, err := compileSchema(req.Schema); err != nil {
		return false, false, err
	}

	existing, err := s.repo.GetByName(ctx, req.Name)
	switch {
	case apperrors.IsNotFound(err):
		if _, err := s.repo.Create(ctx, req); err != nil {
			return false, false, err
		}
		return true, true, nil
	case err != nil:
		return false, false, err
	}

	if existing.CatalogHash != nil && *existing.CatalogHash == *req.CatalogHash {
		return false, false, nil
	}
	if _, err := s.repo.UpdateFromCatalog(ctx, existing.ID, req); err != nil {
		return false, false, err
	}
	return true, false, nil
}

// ParseCatalog decodes a catalog document. Both a top-level list and a mapping with
// an "integrations" list are accepted; JSON documents parse as YAML.
func ParseCatalog(raw []byte) ([]model.CatalogEntry, error) {
	if strings.TrimSpace(string(raw)) == "" {
		return nil, errors.New("catalog document is empty")
	}
	var list []model.CatalogEntry
	if err := yaml.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var doc struct {
		Integrations []model.CatalogEntry `yaml:"integrations"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return doc.Integrations, nil
}

func catalogRequest(entry model.CatalogEntry) (*model.CreateIntegrationRequest, error) {
	schema := json.RawMessage(`{}`)
	if entry.Schema != nil {
		b, err := json.Marshal(entry.Schema)
		if err != nil {
			return nil, apperrors.ValidationField("schema", fmt.Sprintf("encode schema: %v", err))
		}
		schema = b
	}
	hash, err := CatalogHash(entry)
	if err != nil {
		return nil, err
	}
	req := &model.CreateIntegrationRequest{
		Name:        entry.Name,
		Title:       entry.Title,
		Schema:      schema,
		IsService:   entry.IsService,
		CatalogHash: &hash,
	}
	if d := strings.TrimSpace(entry.Description); d != "" {
		req.Description = &d
	}
	if sch := strings.TrimSpace(entry.Schedule); sch != "" {
		req.Schedule = &sch
	}
	return req, nil
}

// CatalogHash is the blake3 digest of the entry's canonical JSON encoding.
func CatalogHash(entry model.CatalogEntry) (string, error) {
	b, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("encode catalog entry: %w", err)
	}
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
