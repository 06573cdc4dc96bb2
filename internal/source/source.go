// Package source fetches the product collection from where it is kept.
package source

import (
	"context"

	"github.com/abgdnv/catalog/internal/catalog"
)

// Source supplies the full product collection.
type Source interface {
	// Fetch returns every product in display order.
	Fetch(ctx context.Context) ([]catalog.Product, error)
}

// Kinds accepted by the catalog.source configuration.
const (
	KindPostgres = "postgres"
	KindHTTP     = "http"
	KindFile     = "file"
)
