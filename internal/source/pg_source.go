package source

import (
	"context"
	"fmt"

	"github.com/abgdnv/catalog/internal/catalog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const selectProducts = `
SELECT id::text AS id, name, category, company, colors, price, shipping,
       image, description, stars, reviews, stock
FROM products
ORDER BY position`

const insertProduct = `
INSERT INTO products (name, category, company, colors, price, shipping, image, description, stars, reviews, stock)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id::text`

type productRow struct {
	ID          string   `db:"id"`
	Name        string   `db:"name"`
	Category    string   `db:"category"`
	Company     string   `db:"company"`
	Colors      []string `db:"colors"`
	Price       int64    `db:"price"`
	Shipping    bool     `db:"shipping"`
	Image       string   `db:"image"`
	Description string   `db:"description"`
	Stars       float64  `db:"stars"`
	Reviews     int32    `db:"reviews"`
	Stock       int32    `db:"stock"`
}

// PgSource reads the products table.
type PgSource struct {
	db *pgxpool.Pool
}

// NewPgSource creates a source backed by a PostgreSQL connection pool.
func NewPgSource(db *pgxpool.Pool) *PgSource {
	return &PgSource{db: db}
}

// Fetch returns every product ordered by insertion position.
func (s *PgSource) Fetch(ctx context.Context) ([]catalog.Product, error) {
	rows, err := s.db.Query(ctx, selectProducts)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	collected, err := pgx.CollectRows(rows, pgx.RowToStructByName[productRow])
	if err != nil {
		return nil, fmt.Errorf("failed to read products: %w", err)
	}
	products := make([]catalog.Product, 0, len(collected))
	for _, r := range collected {
		products = append(products, catalog.Product(r))
	}
	return products, nil
}

// Insert stores products in one transaction and returns their generated ids.
func (s *PgSource) Insert(ctx context.Context, products []catalog.Product) ([]string, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids := make([]string, 0, len(products))
	for _, p := range products {
		colors := p.Colors
		if colors == nil {
			colors = []string{}
		}
		var id string
		err := tx.QueryRow(ctx, insertProduct,
			p.Name, p.Category, p.Company, colors, p.Price, p.Shipping,
			p.Image, p.Description, p.Stars, p.Reviews, p.Stock,
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("failed to insert product %q: %w", p.Name, err)
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit products: %w", err)
	}
	return ids, nil
}
