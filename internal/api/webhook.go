package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/ignite/outreach-engine/internal/classify"
	"github.com/ignite/outreach-engine/internal/dedup"
	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/engine"
	"github.com/ignite/outreach-engine/internal/pkg/logger"
)

// webhookResponse is what the messaging provider sees. The provider only
// cares about the 200; the body exists for operators replaying deliveries.
type webhookResponse struct {
	Status     string `json:"status"` // processed, duplicate, deferred, error
	DecisionID string `json:"decision_id,omitempty"`
	Strategy   string `json:"strategy,omitempty"`
	Dispatch   string `json:"dispatch,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// HandleInboundEvent runs the full pipeline for one webhook delivery:
// dedup, classify, decide, dispatch. It always answers 200 once the payload
// parses; redelivery after a non-200 would just hit the dedup window, so a
// failed pipeline releases its dedup claim instead and reports the failure
// in the body.
//
//	POST /webhook/inbound
func (h *Handlers) HandleInboundEvent(w http.ResponseWriter, r *http.Request) {
	var ev domain.InboundEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if ev.CustomerID == "" {
		respondError(w, http.StatusBadRequest, "customer_id is required")
		return
	}
	if strings.TrimSpace(ev.MessageText) == "" && ev.ImageRef == "" {
		respondError(w, http.StatusBadRequest, "message_text or image_reference is required")
		return
	}
	if ev.ReceivedAt == 0 {
		ev.ReceivedAt = nowUTC().Unix()
	}

	customerID := domain.NormalizePhone(ev.CustomerID)

	fingerprint := dedup.Fingerprint(ev, h.dedup.Window())
	fresh, err := h.dedup.Accept(r.Context(), fingerprint)
	if err != nil {
		log.Printf("[API] dedup accept: %v", err)
	}
	if !fresh {
		respondJSON(w, http.StatusOK, webhookResponse{Status: "duplicate"})
		return
	}

	h.recordCustomer(r, customerID, &ev)

	product := h.resolveProduct(r, &ev)

	signal := h.classifyEvent(r, customerID, product.ID, &ev)

	decision, err := h.engine.Decide(r.Context(), customerID, product.ID, signal, false)
	if err != nil {
		// Release the claim so the provider's redelivery gets another run.
		if relErr := h.dedup.Release(r.Context(), fingerprint); relErr != nil {
			log.Printf("[API] releasing dedup claim: %v", relErr)
		}
		if errors.Is(err, engine.ErrDeferred) {
			respondJSON(w, http.StatusOK, webhookResponse{Status: "deferred", Detail: "concurrent update, retry on redelivery"})
			return
		}
		log.Printf("[API] deciding for %s/%s: %v", logger.RedactPhone(customerID), product.ID, err)
		respondJSON(w, http.StatusOK, webhookResponse{Status: "error", Detail: "decision failed"})
		return
	}

	resp := webhookResponse{
		Status:     "processed",
		DecisionID: decision.ID,
		Strategy:   string(decision.Strategy),
	}

	if decision.Strategy.RequiresDispatch() {
		outcome, err := h.gate.Dispatch(r.Context(), decision)
		if err != nil {
			// The record is persisted; the retry worker picks it up.
			log.Printf("[API] dispatching %s: %v", decision.ID, err)
			resp.Dispatch = "pending"
		} else {
			resp.Dispatch = string(outcome.Result)
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// recordCustomer upserts the contact. Best effort: a failed upsert never
// blocks the decision.
func (h *Handlers) recordCustomer(r *http.Request, customerID string, ev *domain.InboundEvent) {
	customer := &domain.Customer{
		ID:                customerID,
		Phone:             customerID,
		Name:              ev.Name,
		LastInteractionAt: time.Unix(ev.ReceivedAt, 0).UTC(),
	}
	if err := h.customers.Upsert(r.Context(), customer); err != nil {
		log.Printf("[API] upserting customer %s: %v", logger.RedactPhone(customerID), err)
	}
}

// resolveProduct maps the event's product hint to a catalog product. An
// unknown hint still produces a decision; the engine treats a bare product
// id as a catalog miss with no list price.
func (h *Handlers) resolveProduct(r *http.Request, ev *domain.InboundEvent) *domain.Product {
	hint := strings.TrimSpace(ev.ProductHint)
	if hint == "" {
		hint = "general"
	}
	product, err := h.products.Resolve(r.Context(), hint)
	if err != nil {
		log.Printf("[API] resolving product hint %q: %v", hint, err)
		return &domain.Product{ID: hint}
	}
	return product
}

// classifyEvent runs the classifier chain. Image-only status replies go
// through too; the vision tier reads the image and the keyword tier passes.
// All tiers unavailable means a nil signal; the engine decides from ledger
// state alone.
func (h *Handlers) classifyEvent(r *http.Request, customerID, productID string, ev *domain.InboundEvent) *domain.LeadSignal {
	if strings.TrimSpace(ev.MessageText) == "" && ev.ImageRef == "" {
		return nil
	}

	signal, err := h.classifier.Classify(r.Context(), classify.Request{
		CustomerID:  customerID,
		ProductID:   productID,
		MessageText: ev.MessageText,
		ImageRef:    ev.ImageRef,
	})
	if err != nil {
		log.Printf("[API] classifying event from %s: %v", logger.RedactPhone(customerID), err)
		return nil
	}
	return signal
}
