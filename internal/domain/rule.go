package domain

import "time"

// RuleScope enumerates how specifically a business rule applies. The engine
// reads the most specific matching rule: product beats category beats global.
type RuleScope string

const (
	ScopeProduct  RuleScope = "product"
	ScopeCategory RuleScope = "category"
	ScopeGlobal   RuleScope = "global"
)

// Rule holds the negotiation policy for a product scope: price bounds, the
// strategies the vendor allows, and the per-customer dispatch cooldown.
// At most one active rule exists per scope key.
type Rule struct {
	ID                string     `json:"id" db:"id"`
	Scope             RuleScope  `json:"scope" db:"scope"`
	ScopeKey          string     `json:"scope_key" db:"scope_key"`
	PriceFloor        float64    `json:"price_floor" db:"price_floor"`
	PriceCeiling      float64    `json:"price_ceiling" db:"price_ceiling"`
	EnabledStrategies []Strategy `json:"enabled_strategies" db:"enabled_strategies"`
	DropThresholdPct  float64    `json:"drop_threshold_pct" db:"drop_threshold_pct"`
	CooldownMinutes   int        `json:"cooldown_minutes" db:"cooldown_minutes"`
	Active            bool       `json:"active" db:"active"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// Allows reports whether the rule permits the given strategy. An empty
// EnabledStrategies list allows everything except price_drop, which must be
// opted into explicitly.
func (r *Rule) Allows(s Strategy) bool {
	if len(r.EnabledStrategies) == 0 {
		return s != StrategyPriceDrop
	}
	for _, e := range r.EnabledStrategies {
		if e == s {
			return true
		}
	}
	return false
}

// Cooldown returns the rule's cooldown as a duration.
func (r *Rule) Cooldown() time.Duration {
	return time.Duration(r.CooldownMinutes) * time.Minute
}

// DefaultRule is the conservative global fallback used when no rule matches:
// no price drops, long cooldown, no_action-leaning.
func DefaultRule() *Rule {
	return &Rule{
		Scope:             ScopeGlobal,
		ScopeKey:          "*",
		EnabledStrategies: []Strategy{StrategyValueReinforcement, StrategyNoAction},
		DropThresholdPct:  5.0,
		CooldownMinutes:   24 * 60,
		Active:            true,
	}
}
