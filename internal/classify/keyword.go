package classify

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/ignite/outreach-engine/internal/domain"
)

// Keyword tiers for the offline fallback. Phrases reflect how customers in
// the target market actually haggle, so matches are substring-based rather
// than tokenized.
var (
	priceKeywords = []string{
		"last price", "how much last", "reduce", "too cost",
		"can you drop", "cheaper", "i see am for", "too much",
	}
	qualityKeywords = []string{
		"original", "na original", "strong", "which model",
		"warranty", "how long", "fake", "real", "durable",
	}
	buyKeywords = []string{
		"i want to buy", "i will take", "send account", "how do i pay",
		"i go buy", "reserve", "i'll take it",
	}
	negativeWords = []string{
		"hate", "expensive", "too much", "cheap", "dont want", "not interested",
	}
	premiumBrands = []string{"iphone", "samsung galaxy s", "macbook"}
)

var priceMentionRe = regexp.MustCompile(`(?:₦|n|ngn)?\s*([0-9]{1,3}(?:,[0-9]{3})+|[0-9]{4,})`)

// KeywordClassifier scores messages against haggling and product-quality
// phrase lists. It anchors the fallback chain for any message with text;
// image-only replies are out of its reach and fall through as unavailable.
type KeywordClassifier struct{}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

func (c *KeywordClassifier) Classify(_ context.Context, req Request) (*domain.LeadSignal, error) {
	if strings.TrimSpace(req.MessageText) == "" {
		return nil, ErrUnavailable
	}
	lower := strings.ToLower(req.MessageText)

	signal := &domain.LeadSignal{
		CustomerID: req.CustomerID,
		ProductID:  req.ProductID,
		Intent:     domain.IntentUnknown,
		Confidence: 0.5,
		Sentiment:  "neutral",
		Attributes: map[string]string{"tier": "keyword"},
	}
	signal.MentionedPrice = extractPrice(lower)

	if matchAny(lower, buyKeywords) {
		signal.Intent = domain.IntentReadyToBuy
		signal.Confidence = 0.8
		signal.Sentiment = "positive"
		return signal, nil
	}

	// Complaints about a premium product read as price objections even when
	// no haggling phrase matched outright.
	if matchAny(lower, negativeWords) && matchAny(lower, premiumBrands) {
		signal.Intent = domain.IntentObjection
		signal.Confidence = 0.8
		signal.Sentiment = "negative"
		signal.Attributes["signals"] = "negative_premium_context"
		return signal, nil
	}

	priceScore := countMatches(lower, priceKeywords)
	qualityScore := countMatches(lower, qualityKeywords)

	switch {
	case priceScore > qualityScore:
		signal.Intent = domain.IntentObjection
		signal.Confidence = capConfidence(0.6 + float64(priceScore)*0.1)
		signal.Sentiment = "negative"
		signal.Attributes["signals"] = joinMatches(lower, priceKeywords)
	case qualityScore > priceScore:
		signal.Intent = domain.IntentInquiry
		signal.Confidence = capConfidence(0.6 + float64(qualityScore)*0.1)
		signal.Sentiment = "neutral"
		signal.Attributes["signals"] = joinMatches(lower, qualityKeywords)
	}

	return signal, nil
}

func matchAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func countMatches(s string, phrases []string) int {
	n := 0
	for _, p := range phrases {
		if strings.Contains(s, p) {
			n++
		}
	}
	return n
}

func joinMatches(s string, phrases []string) string {
	var hits []string
	for _, p := range phrases {
		if strings.Contains(s, p) {
			hits = append(hits, p)
		}
	}
	return strings.Join(hits, ",")
}

func capConfidence(v float64) float64 {
	if v > 0.9 {
		return 0.9
	}
	return v
}

func extractPrice(s string) float64 {
	m := priceMentionRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0
	}
	return v
}
