// Package engine computes outreach decisions. The strategy choice itself is
// a pure function over a fully-resolved input so replays are reproducible;
// the Service wrapper does all the loading, committing and conflict handling.
package engine

import (
	"fmt"

	"github.com/ignite/outreach-engine/internal/domain"
)

// tableInput is everything the decision table is allowed to look at. The
// caller resolves ledger state, rule, snapshot and signal up front; nothing
// in here reaches for a clock or an RNG.
type tableInput struct {
	HasSignal       bool
	Intent          domain.Intent
	Confidence      float64
	ListPrice       float64
	CompetitorPrice float64 // 0 when unknown or stale
	State           domain.LeadState
	CooldownElapsed bool
	Rule            *domain.Rule
	HoursSinceInquiry float64
}

// lowConfidence is the cutoff below which a signal cannot justify a price
// concession on its own.
const lowConfidence = 0.5

func (in tableInput) competitorKnown() bool {
	return in.CompetitorPrice > 0 && in.ListPrice > 0
}

// dropDepthPct is how far the competitor undercuts the list price, in percent.
func (in tableInput) dropDepthPct() float64 {
	if !in.competitorKnown() {
		return 0
	}
	return (in.ListPrice - in.CompetitorPrice) / in.ListPrice * 100
}

// outreachInFlight reports whether a committed decision already moved the
// lead into a sent-and-waiting state. Further concessions wait for a reply:
// the reply itself transitions the lead back to inquired first.
func outreachInFlight(state domain.LeadState) bool {
	return state == domain.LeadAwaitingResponse || state == domain.LeadRetargeted
}

// selectStrategy is the deterministic decision table.
func selectStrategy(in tableInput) domain.Strategy {
	confident := in.HasSignal && in.Confidence >= lowConfidence

	if confident &&
		!outreachInFlight(in.State) &&
		in.competitorKnown() &&
		in.dropDepthPct() > in.Rule.DropThresholdPct &&
		in.CooldownElapsed &&
		in.Rule.Allows(domain.StrategyPriceDrop) {
		return domain.StrategyPriceDrop
	}

	// Cooldown does not demote this branch: the dispatch gate defers the
	// send, the decision itself stays on record.
	if (in.State == domain.LeadInquired || in.State == domain.LeadGhost) &&
		in.Rule.Allows(domain.StrategyValueReinforcement) {
		return domain.StrategyValueReinforcement
	}

	return domain.StrategyNoAction
}

// dropPrice is the discounted price for a price_drop: match the competitor
// but never cross the rule's floor.
func dropPrice(in tableInput) float64 {
	price := in.CompetitorPrice
	if in.Rule.PriceFloor > 0 && price < in.Rule.PriceFloor {
		price = in.Rule.PriceFloor
	}
	return price
}

// reasoning renders a deterministic explanation for the chosen strategy.
func reasoning(in tableInput, strategy domain.Strategy) string {
	switch strategy {
	case domain.StrategyPriceDrop:
		return fmt.Sprintf("competitor at %.2f undercuts list %.2f by %.1f%% (threshold %.1f%%), cooldown elapsed",
			in.CompetitorPrice, in.ListPrice, in.dropDepthPct(), in.Rule.DropThresholdPct)
	case domain.StrategyValueReinforcement:
		switch {
		case !in.HasSignal:
			return fmt.Sprintf("no classification available, lead %s: reinforcing value", in.State)
		case !in.competitorKnown():
			return fmt.Sprintf("competitor price unknown or stale, lead %s: reinforcing value", in.State)
		case in.Confidence < lowConfidence:
			return fmt.Sprintf("signal confidence %.2f below %.2f, lead %s: reinforcing value", in.Confidence, lowConfidence, in.State)
		default:
			return fmt.Sprintf("price drop not warranted, lead %s: reinforcing value", in.State)
		}
	default:
		if outreachInFlight(in.State) {
			return fmt.Sprintf("outreach already in flight, lead %s: holding", in.State)
		}
		return fmt.Sprintf("no eligible strategy for lead state %s", in.State)
	}
}
