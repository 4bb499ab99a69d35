// Package rules resolves the business rule governing a product: price floors,
// allowed strategies, drop thresholds and dispatch cooldowns. Resolution walks
// from most to least specific scope so a product override beats its category,
// and the built-in global default guarantees a rule always exists.
package rules

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/outreach-engine/internal/domain"
)

var ErrNotFound = errors.New("rule not found")

// Repository looks up active rules by scope.
type Repository interface {
	// Find returns the active rule for the scope/key pair, or ErrNotFound.
	Find(ctx context.Context, scope domain.RuleScope, key string) (*domain.Rule, error)
}

type Resolver struct {
	repo     Repository
	fallback *domain.Rule
}

func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo, fallback: domain.DefaultRule()}
}

// SetFallbackPolicy overrides the built-in default rule's drop threshold and
// cooldown with the deployment's configured values. The fallback stays
// conservative regardless: price_drop remains off until a stored rule
// enables it.
func (r *Resolver) SetFallbackPolicy(dropThresholdPct float64, cooldown time.Duration) {
	if dropThresholdPct > 0 {
		r.fallback.DropThresholdPct = dropThresholdPct
	}
	if cooldown > 0 {
		r.fallback.CooldownMinutes = int(cooldown / time.Minute)
	}
}

// Resolve returns the most specific active rule for the product. Lookup
// failures other than ErrNotFound abort resolution rather than silently
// loosening constraints.
func (r *Resolver) Resolve(ctx context.Context, product domain.Product) (*domain.Rule, error) {
	rule, err := r.repo.Find(ctx, domain.ScopeProduct, product.ID)
	if err == nil {
		return rule, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("resolving product rule: %w", err)
	}

	if product.Category != "" {
		rule, err = r.repo.Find(ctx, domain.ScopeCategory, product.Category)
		if err == nil {
			return rule, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("resolving category rule: %w", err)
		}
	}

	rule, err = r.repo.Find(ctx, domain.ScopeGlobal, "*")
	if err == nil {
		return rule, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("resolving global rule: %w", err)
	}

	cp := *r.fallback
	return &cp, nil
}
