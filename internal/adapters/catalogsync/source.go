// Package catalogsync fetches the integration catalog and runs the periodic re-sync actor.
package catalogsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/target/integrations-dispatch/config"
	"github.com/target/integrations-dispatch/internal/ports"
)

// maxCatalogBytes caps a downloaded catalog document.
const maxCatalogBytes = 8 << 20

var (
	_ ports.CatalogSource = (*HTTPSource)(nil)
	_ ports.CatalogSource = (*FileSource)(nil)
)

// HTTPSource downloads the catalog document from a URL.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// Fetch downloads the catalog. Any non-2xx status is an error.
func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9, */*;q=0.5")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("get catalog: unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	if len(body) > maxCatalogBytes {
		return nil, fmt.Errorf("catalog exceeds %d bytes", maxCatalogBytes)
	}
	return body, nil
}

// FileSource reads the catalog document from disk.
type FileSource struct {
	Path string
}

// Fetch reads the catalog file.
func (s *FileSource) Fetch(context.Context) ([]byte, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return b, nil
}

// NewSource picks the catalog source from configuration. A URL wins over a path.
func NewSource(cfg config.CatalogConfig) (ports.CatalogSource, error) {
	switch {
	case cfg.URL != "":
		timeout := cfg.FetchTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		return &HTTPSource{URL: cfg.URL, Client: &http.Client{Timeout: timeout}}, nil
	case cfg.Path != "":
		return &FileSource{Path: cfg.Path}, nil
	default:
		return nil, errors.New("catalog source is not configured: set CATALOG_URL or CATALOG_PATH")
	}
}
