// Package ledger tracks each customer/product lead through its lifecycle.
// All writes are conditional on the entry version so concurrent decisions for
// the same lead serialize instead of clobbering each other.
package ledger

import (
	"context"
	"time"

	"github.com/ignite/outreach-engine/internal/domain"
)

// Repository persists lead entries.
type Repository interface {
	// Get returns the entry for the pair, or ErrNotFound.
	Get(ctx context.Context, customerID, productID string) (*domain.LeadEntry, error)
	// Create inserts a fresh entry at version 1. ErrConflict when a
	// concurrent create won.
	Create(ctx context.Context, entry *domain.LeadEntry) error
	// Transition moves the entry to the new state iff the stored version
	// still matches entry.Version, bumping the version. ErrConflict when
	// the version moved.
	Transition(ctx context.Context, entry *domain.LeadEntry, to domain.LeadState) error
	// TouchDispatch records a dispatch timestamp under the same version
	// guard.
	TouchDispatch(ctx context.Context, entry *domain.LeadEntry, at time.Time) error
	// StaleInquired lists inquired entries whose last inquiry falls inside
	// [windowCutoff, graceCutoff); these are the sweep's ghost candidates.
	StaleInquired(ctx context.Context, graceCutoff, windowCutoff time.Time, limit int) ([]*domain.LeadEntry, error)
	// GhostsWithin lists ghost entries whose last inquiry is still inside
	// the relevance window, capped at limit.
	GhostsWithin(ctx context.Context, windowCutoff time.Time, limit int) ([]*domain.LeadEntry, error)
	// Expired lists non-terminal entries whose last inquiry fell out of
	// the relevance window; the sweep marks them lost.
	Expired(ctx context.Context, windowCutoff time.Time, limit int) ([]*domain.LeadEntry, error)
}
