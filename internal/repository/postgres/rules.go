package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/rules"
)

// RuleRepo implements rules.Repository. At most one active rule exists per
// scope/key; UpdatedAt breaks ties if an operator leaves two active.
type RuleRepo struct{ db *sql.DB }

// NewRuleRepo creates a Postgres-backed rule store.
func NewRuleRepo(db *sql.DB) *RuleRepo { return &RuleRepo{db: db} }

func (r *RuleRepo) Find(ctx context.Context, scope domain.RuleScope, key string) (*domain.Rule, error) {
	rule := &domain.Rule{}
	var strategies []string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, scope, scope_key, price_floor, price_ceiling,
		       enabled_strategies, drop_threshold_pct, cooldown_minutes,
		       active, created_at, updated_at
		FROM rules
		WHERE scope = $1 AND scope_key = $2 AND active = true
		ORDER BY updated_at DESC
		LIMIT 1
	`, scope, key).Scan(
		&rule.ID, &rule.Scope, &rule.ScopeKey, &rule.PriceFloor, &rule.PriceCeiling,
		pq.Array(&strategies), &rule.DropThresholdPct, &rule.CooldownMinutes,
		&rule.Active, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, rules.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find rule: %w", err)
	}
	for _, s := range strategies {
		rule.EnabledStrategies = append(rule.EnabledStrategies, domain.Strategy(s))
	}
	return rule, nil
}
