// Package classify turns raw customer messages into structured lead signals.
// The primary tier calls a hosted LLM; a keyword scorer covers outages so the
// decision engine always has something to work with.
package classify

import (
	"context"
	"errors"

	"github.com/ignite/outreach-engine/internal/domain"
)

var (
	// ErrUnavailable means the classifier tier could not produce a signal.
	// Callers fall through to the next tier or proceed without a signal.
	ErrUnavailable = errors.New("classifier unavailable")
)

// Request is one inbound message to classify. ImageRef carries the provider
// URL of a replied-to status image; an image-only reply is a valid request
// and MessageText may be empty.
type Request struct {
	CustomerID  string
	ProductID   string
	MessageText string
	ImageRef    string
}

// Classifier produces a lead signal for a customer message.
type Classifier interface {
	Classify(ctx context.Context, req Request) (*domain.LeadSignal, error)
}
