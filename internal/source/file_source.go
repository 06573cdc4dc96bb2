package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/abgdnv/catalog/internal/catalog"
)

// FileSource reads a JSON array of products from disk, handy for local runs.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Fetch(ctx context.Context) ([]catalog.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	var products []catalog.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", s.path, err)
	}
	if products == nil {
		products = []catalog.Product{}
	}
	return products, nil
}
