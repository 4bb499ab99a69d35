package engine

import "github.com/ignite/outreach-engine/internal/domain"

// Intent weights order the buying-signal strength: a customer asking how to
// pay converts far more often than an unclassified one.
var intentWeights = map[domain.Intent]float64{
	domain.IntentReadyToBuy: 1.0,
	domain.IntentInquiry:    0.6,
	domain.IntentObjection:  0.45,
	domain.IntentUnknown:    0.25,
}

// estimateConversion is a deterministic weighted score in [0,1], monotonic
// in buying-signal strength. Inputs: intent weight scaled by classifier
// confidence, discount depth when a price drop is on the table, and inquiry
// recency.
func estimateConversion(in tableInput, strategy domain.Strategy, newPrice float64) float64 {
	signalScore := 0.1
	if in.HasSignal {
		signalScore = intentWeights[in.Intent] * clamp01(in.Confidence)
	}

	discountScore := 0.0
	if strategy == domain.StrategyPriceDrop && in.ListPrice > 0 {
		depth := (in.ListPrice - newPrice) / in.ListPrice
		if depth > 0.5 {
			depth = 0.5
		}
		discountScore = depth * 2 // 50% off saturates the term
	}

	// Freshness decays over days; a week-old inquiry contributes little.
	recencyScore := 1.0 / (1.0 + in.HoursSinceInquiry/24.0)

	return clamp01(0.55*signalScore + 0.25*discountScore + 0.20*recencyScore)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
