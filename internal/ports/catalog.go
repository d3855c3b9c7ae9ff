package ports

import "context"

// CatalogSource returns the raw integration catalog document (YAML or JSON).
type CatalogSource interface {
	Fetch(ctx context.Context) ([]byte, error)
}
