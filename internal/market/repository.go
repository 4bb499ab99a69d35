package market

import (
	"context"

	"github.com/ignite/outreach-engine/internal/domain"
)

// Repository persists per-product competitor price snapshots.
type Repository interface {
	// Upsert stores the snapshot unless a newer observation already exists
	// for the product. Out-of-order deliveries from scraper adapters must
	// never roll a product's view backwards.
	Upsert(ctx context.Context, snap domain.MarketSnapshot) error
	// Get returns the newest snapshot for the product, or ErrNotFound.
	Get(ctx context.Context, productID string) (*domain.MarketSnapshot, error)
}
