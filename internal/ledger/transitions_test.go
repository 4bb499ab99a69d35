package ledger

import (
	"errors"
	"testing"

	"github.com/ignite/outreach-engine/internal/domain"
)

func TestLifecycleTransitions(t *testing.T) {
	cases := []struct {
		from, to domain.LeadState
		ok       bool
	}{
		{domain.LeadNew, domain.LeadInquired, true},
		{domain.LeadInquired, domain.LeadAwaitingResponse, true},
		{domain.LeadAwaitingResponse, domain.LeadGhost, true},
		{domain.LeadGhost, domain.LeadRetargeted, true},
		{domain.LeadRetargeted, domain.LeadInquired, true},
		{domain.LeadGhost, domain.LeadLost, true},
		{domain.LeadAwaitingResponse, domain.LeadConverted, true},
		{domain.LeadInquired, domain.LeadGhost, true},

		{domain.LeadNew, domain.LeadGhost, false},
		{domain.LeadConverted, domain.LeadInquired, false},
		{domain.LeadLost, domain.LeadRetargeted, false},
		{domain.LeadInquired, domain.LeadRetargeted, false},
	}

	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.ok {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestCheckTransitionError(t *testing.T) {
	err := CheckTransition(domain.LeadConverted, domain.LeadGhost)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, terminal := range []domain.LeadState{domain.LeadConverted, domain.LeadLost} {
		for _, to := range []domain.LeadState{
			domain.LeadNew, domain.LeadInquired, domain.LeadAwaitingResponse,
			domain.LeadGhost, domain.LeadRetargeted,
		} {
			if CanTransition(terminal, to) {
				t.Errorf("terminal state %s should not transition to %s", terminal, to)
			}
		}
	}
}
