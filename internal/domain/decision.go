package domain

import "time"

// Strategy enumerates the messaging strategies the engine can choose.
type Strategy string

const (
	StrategyPriceDrop          Strategy = "price_drop"
	StrategyValueReinforcement Strategy = "value_reinforcement"
	StrategyNoAction           Strategy = "no_action"
)

// RequiresDispatch returns true if the strategy produces an outbound message.
func (s Strategy) RequiresDispatch() bool {
	return s == StrategyPriceDrop || s == StrategyValueReinforcement
}

// Decision is the immutable, append-only record of one engine invocation.
// It is the unit of idempotency for dispatch: at most one outbound message
// is ever sent per decision ID.
type Decision struct {
	ID                    string    `json:"id" db:"id"`
	CustomerID            string    `json:"customer_id" db:"customer_id"`
	ProductID             string    `json:"product_id" db:"product_id"`
	Strategy              Strategy  `json:"strategy" db:"strategy"`
	ConversionProbability float64   `json:"conversion_probability" db:"conversion_probability"`
	OldPrice              float64   `json:"old_price" db:"old_price"`
	NewPrice              float64   `json:"new_price" db:"new_price"`
	Reasoning             string    `json:"reasoning" db:"reasoning"`
	Retarget              bool      `json:"retarget" db:"retarget"`
	CreatedAt             time.Time `json:"created_at" db:"created_at"`
}

// DispatchStatus enumerates the lifecycle of a dispatch record.
type DispatchStatus string

const (
	DispatchPending    DispatchStatus = "pending"
	DispatchSent       DispatchStatus = "sent"
	DispatchFailed     DispatchStatus = "failed"
	DispatchDeadLetter DispatchStatus = "dead_letter"
)

// DispatchRecord tracks the single outbound send for a decision. One-to-one
// with Decision; created in 'pending' when a decision requiring outreach is
// committed, updated only by the dispatch gate.
type DispatchRecord struct {
	DecisionID        string         `json:"decision_id" db:"decision_id"`
	CustomerID        string         `json:"customer_id" db:"customer_id"`
	Status            DispatchStatus `json:"status" db:"status"`
	Attempts          int            `json:"attempts" db:"attempts"`
	LastAttemptAt     *time.Time     `json:"last_attempt_at" db:"last_attempt_at"`
	LastError         string         `json:"last_error,omitempty" db:"last_error"`
	ProviderMessageID string         `json:"provider_message_id,omitempty" db:"provider_message_id"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
}
