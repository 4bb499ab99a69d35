package classify

import (
	"context"
	"errors"
	"log"

	"github.com/ignite/outreach-engine/internal/domain"
)

// Chain tries each classifier in order, falling through on ErrUnavailable.
// Other errors stop the chain.
type Chain struct {
	tiers []Classifier
}

func NewChain(tiers ...Classifier) *Chain {
	return &Chain{tiers: tiers}
}

func (c *Chain) Classify(ctx context.Context, req Request) (*domain.LeadSignal, error) {
	for i, tier := range c.tiers {
		signal, err := tier.Classify(ctx, req)
		if err == nil {
			return signal, nil
		}
		if !errors.Is(err, ErrUnavailable) {
			return nil, err
		}
		if i < len(c.tiers)-1 {
			log.Printf("[Classify] tier %d unavailable, falling back", i)
		}
	}
	return nil, ErrUnavailable
}
