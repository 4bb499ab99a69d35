// Package dispatch is the only component allowed to send messages. The gate
// enforces at-most-one send per decision via a conditional status update and
// a per-customer cooldown via Redis; the gateway client and the message
// renderer live alongside it.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/ledger"
	"github.com/ignite/outreach-engine/internal/pkg/logger"
)

// ErrNotFound means no dispatch record exists for the decision.
var ErrNotFound = errors.New("dispatch record not found")

// Result classifies one gate invocation.
type Result string

const (
	ResultSent     Result = "sent"
	ResultDeferred Result = "deferred"
	ResultFailed   Result = "failed"
)

// Outcome is the gate's verdict plus the reason for anything except a send.
type Outcome struct {
	Result Result
	Reason string
}

// Repository persists dispatch records.
type Repository interface {
	// Get returns the record for the decision, or ErrNotFound.
	Get(ctx context.Context, decisionID string) (*domain.DispatchRecord, error)
	// MarkSent flips the record to sent iff it is not sent already.
	// Returns false when another sender won.
	MarkSent(ctx context.Context, decisionID, providerMessageID string, at time.Time) (bool, error)
	// MarkFailed increments attempts and records the error; dead moves the
	// record to dead_letter for manual review.
	MarkFailed(ctx context.Context, decisionID, reason string, at time.Time, dead bool) error
	// ClaimDue claims pending/failed records whose backoff has elapsed.
	ClaimDue(ctx context.Context, now time.Time, baseBackoff time.Duration, limit int) ([]*domain.DispatchRecord, error)
	// DeadLetters lists records awaiting manual review.
	DeadLetters(ctx context.Context, limit int) ([]*domain.DispatchRecord, error)
}

// CustomerStore and ProductStore supply template data; lookups are best
// effort and never block a send.
type CustomerStore interface {
	Get(ctx context.Context, id string) (*domain.Customer, error)
}

type ProductStore interface {
	Get(ctx context.Context, id string) (*domain.Product, error)
}

// Gate coordinates one outbound send end to end.
type Gate struct {
	records   Repository
	entries   ledger.Repository
	customers CustomerStore
	products  ProductStore
	gateway   Gateway
	renderer  *Renderer
	cooldowns *redis.Client

	cooldown    time.Duration
	maxAttempts int
	now         func() time.Time
}

func NewGate(records Repository, entries ledger.Repository, customers CustomerStore, products ProductStore, gateway Gateway, renderer *Renderer, cooldowns *redis.Client, cooldown time.Duration, maxAttempts int) *Gate {
	if cooldown <= 0 {
		cooldown = 24 * time.Hour
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Gate{
		records:     records,
		entries:     entries,
		customers:   customers,
		products:    products,
		gateway:     gateway,
		renderer:    renderer,
		cooldowns:   cooldowns,
		cooldown:    cooldown,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// Dispatch sends the message for a decision at most once. Repeated calls
// after a send are no-ops; cooldown hits leave the record pending for the
// retry worker.
func (g *Gate) Dispatch(ctx context.Context, decision *domain.Decision) (Outcome, error) {
	if !decision.Strategy.RequiresDispatch() {
		return Outcome{Result: ResultDeferred, Reason: "strategy requires no outreach"}, nil
	}

	rec, err := g.records.Get(ctx, decision.ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("loading dispatch record: %w", err)
	}
	switch rec.Status {
	case domain.DispatchSent:
		return Outcome{Result: ResultSent, Reason: "already sent"}, nil
	case domain.DispatchDeadLetter:
		return Outcome{Result: ResultFailed, Reason: "dead letter"}, nil
	}

	if !g.claimCooldown(ctx, decision.CustomerID, decision.ID) {
		return Outcome{Result: ResultDeferred, Reason: "customer cooldown active"}, nil
	}

	now := g.now().UTC()

	text, err := g.render(ctx, decision)
	if err != nil {
		g.releaseCooldown(ctx, decision.CustomerID)
		g.fail(ctx, rec, err.Error(), now)
		return Outcome{Result: ResultFailed, Reason: err.Error()}, nil
	}

	result, err := g.gateway.Send(ctx, decision.CustomerID, text)
	if err != nil {
		g.releaseCooldown(ctx, decision.CustomerID)
		g.fail(ctx, rec, err.Error(), now)
		return Outcome{Result: ResultFailed, Reason: err.Error()}, nil
	}
	if !result.Accepted {
		g.releaseCooldown(ctx, decision.CustomerID)
		g.fail(ctx, rec, "gateway rejected message", now)
		return Outcome{Result: ResultFailed, Reason: "gateway rejected message"}, nil
	}

	claimed, err := g.records.MarkSent(ctx, decision.ID, result.ProviderMessageID, now)
	if err != nil {
		return Outcome{}, fmt.Errorf("marking dispatch sent: %w", err)
	}
	if !claimed {
		return Outcome{Result: ResultSent, Reason: "already sent"}, nil
	}

	g.touchLedger(ctx, decision, now)
	return Outcome{Result: ResultSent}, nil
}

func (g *Gate) render(ctx context.Context, decision *domain.Decision) (string, error) {
	var customerName string
	if customer, err := g.customers.Get(ctx, decision.CustomerID); err == nil {
		customerName = customer.Name
	}
	productName := decision.ProductID
	var listPrice float64
	if product, err := g.products.Get(ctx, decision.ProductID); err == nil {
		productName = product.Name
		listPrice = product.ListPrice
	}
	return g.renderer.Render(decision, customerName, productName, listPrice)
}

// claimCooldown takes the per-customer cooldown slot. Redis outages fail
// open: a missed cooldown is preferable to a dropped send.
func (g *Gate) claimCooldown(ctx context.Context, customerID, decisionID string) bool {
	ok, err := g.cooldowns.SetNX(ctx, cooldownKey(customerID), decisionID, g.cooldown).Result()
	if err != nil {
		log.Printf("[Dispatch] cooldown store unavailable, failing open: %v", err)
		return true
	}
	return ok
}

func (g *Gate) releaseCooldown(ctx context.Context, customerID string) {
	if err := g.cooldowns.Del(ctx, cooldownKey(customerID)).Err(); err != nil {
		log.Printf("[Dispatch] releasing cooldown for failed send: %v", err)
	}
}

func cooldownKey(customerID string) string {
	return "cooldown:" + domain.NormalizePhone(customerID)
}

func (g *Gate) fail(ctx context.Context, rec *domain.DispatchRecord, reason string, now time.Time) {
	dead := rec.Attempts+1 >= g.maxAttempts
	if err := g.records.MarkFailed(ctx, rec.DecisionID, reason, now, dead); err != nil {
		log.Printf("[Dispatch] recording failure for %s: %v", rec.DecisionID, err)
	}
	if dead {
		log.Printf("[Dispatch] decision %s moved to dead letter after %d attempts", rec.DecisionID, rec.Attempts+1)
	}
}

// touchLedger stamps the lead's last dispatch time so the engine's cooldown
// check sees this send. Best effort: one reload on conflict, then give up.
func (g *Gate) touchLedger(ctx context.Context, decision *domain.Decision, at time.Time) {
	for attempt := 0; attempt < 2; attempt++ {
		entry, err := g.entries.Get(ctx, decision.CustomerID, decision.ProductID)
		if err != nil {
			log.Printf("[Dispatch] loading ledger entry for %s/%s: %v", logger.RedactPhone(decision.CustomerID), decision.ProductID, err)
			return
		}
		err = g.entries.TouchDispatch(ctx, entry, at)
		if err == nil {
			return
		}
		if !errors.Is(err, ledger.ErrConflict) {
			log.Printf("[Dispatch] stamping dispatch time: %v", err)
			return
		}
	}
	log.Printf("[Dispatch] dispatch stamp lost to contention for %s/%s", logger.RedactPhone(decision.CustomerID), decision.ProductID)
}
