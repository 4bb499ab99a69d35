package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/ignite/outreach-engine/internal/classify"
	"github.com/ignite/outreach-engine/internal/dedup"
	"github.com/ignite/outreach-engine/internal/dispatch"
	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/market"
)

// Decider runs the decision engine for one customer+product.
type Decider interface {
	Decide(ctx context.Context, customerID, productID string, signal *domain.LeadSignal, retarget bool) (*domain.Decision, error)
}

// Dispatcher hands a committed decision to the dispatch gate.
type Dispatcher interface {
	Dispatch(ctx context.Context, decision *domain.Decision) (dispatch.Outcome, error)
}

// CustomerUpserter records contacts as they message in.
type CustomerUpserter interface {
	Upsert(ctx context.Context, customer *domain.Customer) error
}

// ProductResolver maps a free-form product hint to a catalog product.
type ProductResolver interface {
	Resolve(ctx context.Context, hint string) (*domain.Product, error)
}

// DecisionLister surfaces the append-only decision log.
type DecisionLister interface {
	Recent(ctx context.Context, limit int) ([]*domain.Decision, error)
}

// DeadLetterLister surfaces dispatch records parked for manual review.
type DeadLetterLister interface {
	DeadLetters(ctx context.Context, limit int) ([]*domain.DispatchRecord, error)
}

// Handlers holds the wired pipeline components behind the HTTP surface.
type Handlers struct {
	dedup      *dedup.Deduplicator
	classifier classify.Classifier
	engine     Decider
	gate       Dispatcher
	snapshots  *market.Service
	customers  CustomerUpserter
	products   ProductResolver
	decisions  DecisionLister
	dead       DeadLetterLister

	health *HealthChecker
}

// NewHandlers wires the pipeline components into the HTTP surface.
func NewHandlers(
	deduper *dedup.Deduplicator,
	classifier classify.Classifier,
	engine Decider,
	gate Dispatcher,
	snapshots *market.Service,
	customers CustomerUpserter,
	products ProductResolver,
	decisions DecisionLister,
	dead DeadLetterLister,
	health *HealthChecker,
) *Handlers {
	return &Handlers{
		dedup:      deduper,
		classifier: classifier,
		engine:     engine,
		gate:       gate,
		snapshots:  snapshots,
		customers:  customers,
		products:   products,
		decisions:  decisions,
		dead:       dead,
		health:     health,
	}
}

// GetDecisions returns the most recent decisions, newest first.
//
//	GET /api/decisions?limit=50
func (h *Handlers) GetDecisions(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50, 500)

	decisions, err := h.decisions.Recent(r.Context(), limit)
	if err != nil {
		log.Printf("[API] listing decisions: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list decisions")
		return
	}
	if decisions == nil {
		decisions = []*domain.Decision{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"decisions": decisions,
		"count":     len(decisions),
	})
}

// GetDeadLetters returns dispatch records parked after exhausting retries.
//
//	GET /api/dispatches/dead?limit=50
func (h *Handlers) GetDeadLetters(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50, 500)

	records, err := h.dead.DeadLetters(r.Context(), limit)
	if err != nil {
		log.Printf("[API] listing dead letters: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list dead letters")
		return
	}
	if records == nil {
		records = []*domain.DispatchRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

func parseLimit(r *http.Request, def, max int) int {
	limit := def
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > max {
		limit = max
	}
	return limit
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[API] encoding response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func nowUTC() time.Time { return time.Now().UTC() }
