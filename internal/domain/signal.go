package domain

// Intent enumerates the closed set of classifier intents. Keeping this a
// closed enum (rather than free-form classifier output) makes the decision
// table exhaustive and testable.
type Intent string

const (
	IntentInquiry    Intent = "inquiry"
	IntentObjection  Intent = "objection"
	IntentReadyToBuy Intent = "ready_to_buy"
	IntentUnknown    Intent = "unknown"
)

// Valid reports whether the intent is one of the known values.
func (i Intent) Valid() bool {
	switch i {
	case IntentInquiry, IntentObjection, IntentReadyToBuy, IntentUnknown:
		return true
	}
	return false
}

// LeadSignal is the normalized output of classifying one inbound event.
// It is ephemeral: consumed once by the decision engine and never persisted
// beyond the decision it informs.
type LeadSignal struct {
	CustomerID     string            `json:"customer_id"`
	ProductID      string            `json:"product_id"`
	Intent         Intent            `json:"intent"`
	Confidence     float64           `json:"confidence"`
	MentionedPrice float64           `json:"mentioned_price,omitempty"`
	Sentiment      string            `json:"sentiment,omitempty"`
	Attributes     map[string]string `json:"attributes,omitempty"`
}

// InboundEvent is one raw message from the messaging webhook.
type InboundEvent struct {
	CustomerID  string `json:"customer_id"`
	Name        string `json:"name,omitempty"`
	ProductHint string `json:"product_hint,omitempty"`
	MessageText string `json:"message_text"`
	ImageRef    string `json:"image_reference,omitempty"`
	ReceivedAt  int64  `json:"received_at"`
}
