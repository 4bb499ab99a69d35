package domain

import (
	"strings"
	"time"
)

// Customer represents a single WhatsApp contact the engine has seen.
// Customers are never deleted, only tagged.
type Customer struct {
	ID                string    `json:"id" db:"id"`
	Phone             string    `json:"phone" db:"phone"`
	Name              string    `json:"name" db:"name"`
	Tags              []string  `json:"tags" db:"tags"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	LastInteractionAt time.Time `json:"last_interaction_at" db:"last_interaction_at"`
}

// HasTag reports whether the customer already carries the given tag.
func (c *Customer) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// NormalizePhone canonicalizes a phone-like address: strips the WhatsApp
// JID suffix, spaces, dashes, and a leading plus sign, so the same contact
// always hashes to the same customer key.
func NormalizePhone(raw string) string {
	p := raw
	if idx := strings.Index(p, "@"); idx >= 0 {
		p = p[:idx]
	}
	p = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(p)
	p = strings.TrimPrefix(p, "+")
	return p
}

// Product is a catalog item. The catalog is owned by the rules subsystem;
// the engine only reads it.
type Product struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Category  string    `json:"category" db:"category"`
	ListPrice float64   `json:"list_price" db:"list_price"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
