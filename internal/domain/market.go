package domain

import "time"

// MarketSnapshot is a cached, timestamped competitor price observation for a
// product. Snapshots refresh monotonically: an older observation never
// overwrites a newer one.
type MarketSnapshot struct {
	ProductID   string    `json:"product_id" db:"product_id"`
	LowestPrice float64   `json:"lowest_price" db:"lowest_price"`
	SourceCount int       `json:"source_count" db:"source_count"`
	ObservedAt  time.Time `json:"observed_at" db:"observed_at"`
}

// StaleAfter reports whether the snapshot is older than the given horizon at
// time now. Stale snapshots are unusable: price comparisons require a fresh
// competitor price.
func (m *MarketSnapshot) StaleAfter(horizon time.Duration, now time.Time) bool {
	return now.Sub(m.ObservedAt) > horizon
}
