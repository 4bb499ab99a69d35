package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/ledger"
	"github.com/ignite/outreach-engine/internal/market"
)

// ErrDeferred means a concurrent writer advanced the lead first and the
// retry also lost. The next trigger (webhook or sweep) picks the lead up
// again; nothing was committed.
var ErrDeferred = errors.New("decision deferred: ledger contention")

// ProductStore resolves catalog data. Read-only to the engine.
type ProductStore interface {
	Get(ctx context.Context, id string) (*domain.Product, error)
}

// MarketStore answers the freshest competitor price, or ErrStale/ErrNotFound.
type MarketStore interface {
	Lowest(ctx context.Context, productID string) (*domain.MarketSnapshot, error)
}

// RuleResolver returns the most specific active rule for a product.
type RuleResolver interface {
	Resolve(ctx context.Context, product domain.Product) (*domain.Rule, error)
}

// DecisionStore commits a decision atomically with its ledger transition:
// one transaction appends the decision, applies the state change conditional
// on entry.Version, and creates a pending dispatch record when the strategy
// requires outreach. ledger.ErrConflict when the version moved.
type DecisionStore interface {
	Commit(ctx context.Context, decision *domain.Decision, entry *domain.LeadEntry, to domain.LeadState) error
}

// Service orchestrates one engine invocation end to end.
type Service struct {
	entries   ledger.Repository
	decisions DecisionStore
	products  ProductStore
	snapshots MarketStore
	rules     RuleResolver

	now   func() time.Time
	newID func() string
}

func NewService(entries ledger.Repository, decisions DecisionStore, products ProductStore, snapshots MarketStore, rules RuleResolver) *Service {
	return &Service{
		entries:   entries,
		decisions: decisions,
		products:  products,
		snapshots: snapshots,
		rules:     rules,
		now:       time.Now,
		newID:     func() string { return ulid.Make().String() },
	}
}

// Decide runs the decision table for one customer+product pair. signal may
// be nil (classification unavailable, or a scheduler sweep); retarget marks
// scheduler-triggered invocations so ghost leads move to retargeted instead
// of awaiting_response. A nil-strategy result never exists: every invocation
// yields a decision, though terminal leads are not committed.
func (s *Service) Decide(ctx context.Context, customerID, productID string, signal *domain.LeadSignal, retarget bool) (*domain.Decision, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		decision, err := s.decideOnce(ctx, customerID, productID, signal, retarget, attempt > 0)
		if errors.Is(err, ledger.ErrConflict) {
			lastErr = err
			continue
		}
		return decision, err
	}
	return nil, fmt.Errorf("%w: %v", ErrDeferred, lastErr)
}

func (s *Service) decideOnce(ctx context.Context, customerID, productID string, signal *domain.LeadSignal, retarget bool, afterConflict bool) (*domain.Decision, error) {
	now := s.now().UTC()

	entry, err := s.loadOrCreate(ctx, customerID, productID, now, signal != nil)
	if err != nil {
		return nil, err
	}

	// Converted and lost leads never get another message; the decision is
	// advisory and not worth a ledger write.
	if entry.State.IsTerminal() || entry.Purchased {
		return &domain.Decision{
			ID:         s.newID(),
			CustomerID: customerID,
			ProductID:  productID,
			Strategy:   domain.StrategyNoAction,
			Reasoning:  fmt.Sprintf("lead is %s", entry.State),
			Retarget:   retarget,
			CreatedAt:  now,
		}, nil
	}

	// A conflict on the previous attempt means another writer advanced this
	// lead mid-decide. When the reload shows outreach already in flight the
	// winner made this invocation's call; the loser stands down without a
	// second decision or ledger write.
	if afterConflict && outreachInFlight(entry.State) {
		return &domain.Decision{
			ID:         s.newID(),
			CustomerID: customerID,
			ProductID:  productID,
			Strategy:   domain.StrategyNoAction,
			Reasoning:  fmt.Sprintf("concurrent decision already moved lead to %s", entry.State),
			Retarget:   retarget,
			CreatedAt:  now,
		}, nil
	}

	product := s.lookupProduct(ctx, productID)

	rule, err := s.rules.Resolve(ctx, product)
	if err != nil {
		return nil, fmt.Errorf("resolving rule for %s: %w", productID, err)
	}

	in := tableInput{
		State:           entry.State,
		ListPrice:       product.ListPrice,
		Rule:            rule,
		CooldownElapsed: entry.LastDispatchAt == nil || now.Sub(*entry.LastDispatchAt) >= rule.Cooldown(),
	}
	if signal != nil {
		in.HasSignal = true
		in.Intent = signal.Intent
		in.Confidence = signal.Confidence
	}
	if snap := s.lookupSnapshot(ctx, productID); snap != nil {
		in.CompetitorPrice = snap.LowestPrice
	}
	if !entry.LastInquiryAt.IsZero() {
		in.HoursSinceInquiry = now.Sub(entry.LastInquiryAt).Hours()
	}

	strategy := selectStrategy(in)

	decision := &domain.Decision{
		ID:         s.newID(),
		CustomerID: customerID,
		ProductID:  productID,
		Strategy:   strategy,
		Reasoning:  reasoning(in, strategy),
		Retarget:   retarget,
		CreatedAt:  now,
	}
	if strategy == domain.StrategyPriceDrop {
		decision.OldPrice = product.ListPrice
		decision.NewPrice = dropPrice(in)
	}
	decision.ConversionProbability = estimateConversion(in, strategy, decision.NewPrice)

	to := s.targetState(entry.State, strategy, signal != nil, retarget)
	if to != entry.State {
		if err := ledger.CheckTransition(entry.State, to); err != nil {
			return nil, err
		}
	}
	if signal != nil {
		entry.LastInquiryAt = now
	}

	if err := s.decisions.Commit(ctx, decision, entry, to); err != nil {
		return nil, err
	}
	return decision, nil
}

func (s *Service) loadOrCreate(ctx context.Context, customerID, productID string, now time.Time, inquiry bool) (*domain.LeadEntry, error) {
	entry, err := s.entries.Get(ctx, customerID, productID)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return nil, fmt.Errorf("loading lead entry: %w", err)
	}

	entry = &domain.LeadEntry{
		CustomerID: customerID,
		ProductID:  productID,
		State:      domain.LeadNew,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if inquiry {
		entry.LastInquiryAt = now
	}
	if err := s.entries.Create(ctx, entry); err != nil {
		if errors.Is(err, ledger.ErrConflict) {
			// Concurrent create won; use theirs.
			return s.entries.Get(ctx, customerID, productID)
		}
		return nil, fmt.Errorf("creating lead entry: %w", err)
	}
	return entry, nil
}

// targetState maps (current state, strategy, trigger) to the post-commit
// ledger state.
func (s *Service) targetState(state domain.LeadState, strategy domain.Strategy, hasSignal, retarget bool) domain.LeadState {
	switch {
	case strategy.RequiresDispatch() && retarget && state == domain.LeadGhost:
		return domain.LeadRetargeted
	case strategy.RequiresDispatch():
		return domain.LeadAwaitingResponse
	case hasSignal:
		// The inquiry itself is worth recording even when we stay quiet.
		return domain.LeadInquired
	default:
		return state
	}
}

func (s *Service) lookupProduct(ctx context.Context, productID string) domain.Product {
	product, err := s.products.Get(ctx, productID)
	if err != nil {
		log.Printf("[Engine] product %s unresolved, price comparisons disabled: %v", productID, err)
		return domain.Product{ID: productID}
	}
	return *product
}

func (s *Service) lookupSnapshot(ctx context.Context, productID string) *domain.MarketSnapshot {
	snap, err := s.snapshots.Lowest(ctx, productID)
	if err != nil {
		if !errors.Is(err, market.ErrNotFound) && !errors.Is(err, market.ErrStale) {
			log.Printf("[Engine] snapshot lookup failed for %s: %v", productID, err)
		}
		return nil
	}
	return snap
}
