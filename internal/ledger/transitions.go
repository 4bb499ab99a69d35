package ledger

import (
	"fmt"

	"github.com/ignite/outreach-engine/internal/domain"
)

// allowed maps each state to the states it may move to. Terminal states have
// no outgoing edges.
var allowed = map[domain.LeadState][]domain.LeadState{
	domain.LeadNew: {
		domain.LeadInquired,
		domain.LeadAwaitingResponse,
	},
	domain.LeadInquired: {
		domain.LeadInquired,
		domain.LeadAwaitingResponse,
		domain.LeadGhost,
		domain.LeadConverted,
		domain.LeadLost,
	},
	domain.LeadAwaitingResponse: {
		domain.LeadInquired,
		domain.LeadAwaitingResponse,
		domain.LeadGhost,
		domain.LeadConverted,
		domain.LeadLost,
	},
	domain.LeadGhost: {
		domain.LeadInquired,
		domain.LeadAwaitingResponse,
		domain.LeadGhost,
		domain.LeadRetargeted,
		domain.LeadConverted,
		domain.LeadLost,
	},
	domain.LeadRetargeted: {
		domain.LeadInquired,
		domain.LeadAwaitingResponse,
		domain.LeadGhost,
		domain.LeadConverted,
		domain.LeadLost,
	},
}

// CanTransition reports whether the lifecycle permits from -> to.
func CanTransition(from, to domain.LeadState) bool {
	for _, next := range allowed[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition returns ErrInvalidTransition with both states named when
// the move is not permitted.
func CheckTransition(from, to domain.LeadState) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
