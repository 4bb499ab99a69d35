// Package market is the snapshot store consulted by the decision engine.
// Snapshots arrive from external scraper adapters; reads answer "what is the
// lowest trusted competitor price right now" and refuse to answer with data
// past the staleness horizon.
package market

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/outreach-engine/internal/domain"
)

type Service struct {
	repo    Repository
	horizon time.Duration
	now     func() time.Time
}

func NewService(repo Repository, horizon time.Duration) *Service {
	if horizon <= 0 {
		horizon = 6 * time.Hour
	}
	return &Service{repo: repo, horizon: horizon, now: time.Now}
}

// Put validates and stores an observation. Older observations are silently
// ignored by the repository's monotonic upsert.
func (s *Service) Put(ctx context.Context, snap domain.MarketSnapshot) error {
	if snap.ProductID == "" {
		return fmt.Errorf("%w: missing product id", ErrInvalidSnapshot)
	}
	if snap.LowestPrice <= 0 {
		return fmt.Errorf("%w: non-positive price", ErrInvalidSnapshot)
	}
	if snap.SourceCount < 1 {
		return fmt.Errorf("%w: no sources", ErrInvalidSnapshot)
	}
	if snap.ObservedAt.IsZero() {
		snap.ObservedAt = s.now().UTC()
	}
	return s.repo.Upsert(ctx, snap)
}

// Lowest returns the freshest competitor price for the product. ErrStale
// when the newest observation is beyond the horizon, ErrNotFound when the
// product has never been observed.
func (s *Service) Lowest(ctx context.Context, productID string) (*domain.MarketSnapshot, error) {
	snap, err := s.repo.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if snap.StaleAfter(s.horizon, s.now()) {
		return nil, fmt.Errorf("%w: observed at %s", ErrStale, snap.ObservedAt.Format(time.RFC3339))
	}
	return snap, nil
}

// Horizon reports the configured staleness cutoff.
func (s *Service) Horizon() time.Duration {
	return s.horizon
}
