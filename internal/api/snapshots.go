package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/market"
)

type snapshotRequest struct {
	ProductID   string  `json:"product_id"`
	LowestPrice float64 `json:"lowest_price"`
	SourceCount int     `json:"source_count"`
	ObservedAt  string  `json:"observed_at,omitempty"` // RFC3339; defaults to now
}

// HandleIngestSnapshot accepts one competitor price observation from the
// scraper adapters. Refresh is monotonic: an older observation is accepted
// with 200 but never overwrites a newer one.
//
//	POST /api/snapshots
func (h *Handlers) HandleIngestSnapshot(w http.ResponseWriter, r *http.Request) {
	var req snapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	observedAt := nowUTC()
	if req.ObservedAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.ObservedAt)
		if err != nil {
			respondError(w, http.StatusBadRequest, "observed_at must be RFC3339")
			return
		}
		observedAt = parsed.UTC()
	}

	snap := domain.MarketSnapshot{
		ProductID:   req.ProductID,
		LowestPrice: req.LowestPrice,
		SourceCount: req.SourceCount,
		ObservedAt:  observedAt,
	}

	if err := h.snapshots.Put(r.Context(), snap); err != nil {
		if errors.Is(err, market.ErrInvalidSnapshot) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("[API] storing snapshot for %s: %v", req.ProductID, err)
		respondError(w, http.StatusInternalServerError, "failed to store snapshot")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status":     "stored",
		"product_id": req.ProductID,
	})
}
