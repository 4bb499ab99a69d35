package domain

import "time"

// LeadState enumerates the lifecycle states of a customer+product lead.
type LeadState string

const (
	LeadNew              LeadState = "new"
	LeadInquired         LeadState = "inquired"
	LeadAwaitingResponse LeadState = "awaiting_response"
	LeadGhost            LeadState = "ghost"
	LeadRetargeted       LeadState = "retargeted"
	LeadConverted        LeadState = "converted"
	LeadLost             LeadState = "lost"
)

// IsTerminal returns true if the lead is in a final state. Terminal leads
// are excluded from retargeting sweeps forever.
func (s LeadState) IsTerminal() bool {
	return s == LeadConverted || s == LeadLost
}

// LeadEntry is the durable per-(customer,product) interaction record and the
// single source of truth both the webhook path and the scheduler read and
// write. Every mutation is a conditional update keyed on Version.
type LeadEntry struct {
	CustomerID     string     `json:"customer_id" db:"customer_id"`
	ProductID      string     `json:"product_id" db:"product_id"`
	State          LeadState  `json:"state" db:"state"`
	Version        int64      `json:"version" db:"version"`
	LastInquiryAt  time.Time  `json:"last_inquiry_at" db:"last_inquiry_at"`
	LastDispatchAt *time.Time `json:"last_dispatch_at" db:"last_dispatch_at"`
	Purchased      bool       `json:"purchased" db:"purchased"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}
