package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ignite/outreach-engine/internal/domain"
)

// ProductRepo reads the catalog. The catalog is maintained out of band; the
// engine only ever looks products up.
type ProductRepo struct{ db *sql.DB }

// NewProductRepo creates a Postgres-backed product catalog reader.
func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{db: db} }

const productColumns = `id, name, COALESCE(category, ''), list_price, created_at`

func (r *ProductRepo) Get(ctx context.Context, id string) (*domain.Product, error) {
	p := &domain.Product{}
	err := r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Category, &p.ListPrice, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("product %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// Resolve maps a free-form hint ("iphone 13", a product id, part of a name)
// to a catalog product. Exact id match wins over a name match.
func (r *ProductRepo) Resolve(ctx context.Context, hint string) (*domain.Product, error) {
	hint = strings.TrimSpace(hint)
	p := &domain.Product{}
	err := r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1 OR name ILIKE '%' || $1 || '%'
		ORDER BY (id = $1) DESC, length(name) ASC
		LIMIT 1
	`, hint).Scan(&p.ID, &p.Name, &p.Category, &p.ListPrice, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no product matches hint %q", hint)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve product: %w", err)
	}
	return p, nil
}
