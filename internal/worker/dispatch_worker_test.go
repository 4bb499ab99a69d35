package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ignite/outreach-engine/internal/dispatch"
	"github.com/ignite/outreach-engine/internal/domain"
)

type stubRecords struct {
	mu  sync.Mutex
	due []*domain.DispatchRecord
	err error
}

func (s *stubRecords) Get(context.Context, string) (*domain.DispatchRecord, error) {
	return nil, dispatch.ErrNotFound
}

func (s *stubRecords) MarkSent(context.Context, string, string, time.Time) (bool, error) {
	return true, nil
}

func (s *stubRecords) MarkFailed(context.Context, string, string, time.Time, bool) error {
	return nil
}

func (s *stubRecords) ClaimDue(_ context.Context, _ time.Time, _ time.Duration, limit int) ([]*domain.DispatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	due := s.due
	if len(due) > limit {
		due = due[:limit]
	}
	s.due = s.due[len(due):]
	return due, nil
}

func (s *stubRecords) DeadLetters(context.Context, int) ([]*domain.DispatchRecord, error) {
	return nil, nil
}

type stubDecisions struct {
	decisions map[string]*domain.Decision
}

func (s *stubDecisions) GetDecision(_ context.Context, id string) (*domain.Decision, error) {
	d, ok := s.decisions[id]
	if !ok {
		return nil, errors.New("decision not found")
	}
	return d, nil
}

func pendingRecord(decisionID string) *domain.DispatchRecord {
	return &domain.DispatchRecord{
		DecisionID: decisionID,
		CustomerID: "c-" + decisionID,
		Status:     domain.DispatchPending,
	}
}

func TestDrainRedispatchesDueRecords(t *testing.T) {
	records := &stubRecords{due: []*domain.DispatchRecord{pendingRecord("d1"), pendingRecord("d2")}}
	decisions := &stubDecisions{decisions: map[string]*domain.Decision{
		"d1": {ID: "d1", Strategy: domain.StrategyPriceDrop},
		"d2": {ID: "d2", Strategy: domain.StrategyValueReinforcement},
	}}
	gate := &stubGate{outcome: dispatch.Outcome{Result: dispatch.ResultSent}}
	dw := NewDispatchWorker(records, decisions, gate, time.Second, time.Second, 50)

	dw.Drain(context.Background())

	if gate.calls != 2 {
		t.Fatalf("gate calls = %d, want 2", gate.calls)
	}
	claimed, sent, failed := dw.Stats()
	if claimed != 2 || sent != 2 || failed != 0 {
		t.Fatalf("stats = %d/%d/%d, want 2/2/0", claimed, sent, failed)
	}
}

func TestDrainCountsFailedOutcomes(t *testing.T) {
	records := &stubRecords{due: []*domain.DispatchRecord{pendingRecord("d1")}}
	decisions := &stubDecisions{decisions: map[string]*domain.Decision{
		"d1": {ID: "d1", Strategy: domain.StrategyPriceDrop},
	}}
	gate := &stubGate{outcome: dispatch.Outcome{Result: dispatch.ResultFailed, Reason: "gateway rejected"}}
	dw := NewDispatchWorker(records, decisions, gate, time.Second, time.Second, 50)

	dw.Drain(context.Background())

	_, sent, failed := dw.Stats()
	if sent != 0 || failed != 1 {
		t.Fatalf("sent=%d failed=%d, want 0/1", sent, failed)
	}
}

func TestDrainToleratesMissingDecision(t *testing.T) {
	records := &stubRecords{due: []*domain.DispatchRecord{pendingRecord("gone"), pendingRecord("d1")}}
	decisions := &stubDecisions{decisions: map[string]*domain.Decision{
		"d1": {ID: "d1", Strategy: domain.StrategyPriceDrop},
	}}
	gate := &stubGate{outcome: dispatch.Outcome{Result: dispatch.ResultSent}}
	dw := NewDispatchWorker(records, decisions, gate, time.Second, time.Second, 50)

	dw.Drain(context.Background())

	if gate.calls != 1 {
		t.Fatalf("gate calls = %d, want 1 after skipping the missing decision", gate.calls)
	}
	_, sent, failed := dw.Stats()
	if sent != 1 || failed != 1 {
		t.Fatalf("sent=%d failed=%d, want 1/1", sent, failed)
	}
}

func TestDrainRespectsBatchSize(t *testing.T) {
	records := &stubRecords{}
	for i := 0; i < 5; i++ {
		records.due = append(records.due, pendingRecord("d"+string(rune('1'+i))))
	}
	decisions := &stubDecisions{decisions: map[string]*domain.Decision{}}
	for _, r := range records.due {
		decisions.decisions[r.DecisionID] = &domain.Decision{ID: r.DecisionID, Strategy: domain.StrategyPriceDrop}
	}
	gate := &stubGate{outcome: dispatch.Outcome{Result: dispatch.ResultSent}}
	dw := NewDispatchWorker(records, decisions, gate, time.Second, time.Second, 2)

	dw.Drain(context.Background())

	claimed, _, _ := dw.Stats()
	if claimed != 2 {
		t.Fatalf("claimed = %d, want 2 per pass", claimed)
	}
}

func TestStartStopIdempotent(t *testing.T) {
	records := &stubRecords{}
	dw := NewDispatchWorker(records, &stubDecisions{}, &stubGate{}, time.Hour, time.Second, 10)

	if err := dw.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := dw.Start(); err == nil {
		t.Fatal("second start should fail")
	}
	dw.Stop()
	dw.Stop()
}
