package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/market"
)

// SnapshotRepo implements market.Repository with a monotonic upsert: an
// observation only lands when it is newer than what is stored.
type SnapshotRepo struct{ db *sql.DB }

// NewSnapshotRepo creates a Postgres-backed snapshot store.
func NewSnapshotRepo(db *sql.DB) *SnapshotRepo { return &SnapshotRepo{db: db} }

func (r *SnapshotRepo) Upsert(ctx context.Context, snap domain.MarketSnapshot) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO market_snapshots (product_id, lowest_price, source_count, observed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (product_id) DO UPDATE
		SET lowest_price = EXCLUDED.lowest_price,
		    source_count = EXCLUDED.source_count,
		    observed_at  = EXCLUDED.observed_at
		WHERE market_snapshots.observed_at < EXCLUDED.observed_at
	`, snap.ProductID, snap.LowestPrice, snap.SourceCount, snap.ObservedAt)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

func (r *SnapshotRepo) Get(ctx context.Context, productID string) (*domain.MarketSnapshot, error) {
	snap := &domain.MarketSnapshot{}
	err := r.db.QueryRowContext(ctx, `
		SELECT product_id, lowest_price, source_count, observed_at
		FROM market_snapshots
		WHERE product_id = $1
	`, productID).Scan(&snap.ProductID, &snap.LowestPrice, &snap.SourceCount, &snap.ObservedAt)
	if err == sql.ErrNoRows {
		return nil, market.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return snap, nil
}
