package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/ignite/outreach-engine/internal/domain"
)

const intentPrompt = `You are an intent classifier for a sales outreach assistant.

Analyze this customer message and determine their intent:
1. inquiry - asking about a product, its price, or availability
2. objection - pushing back on price or doubting the product
3. ready_to_buy - committing or asking how to pay
4. unknown - none of the above

If the customer names a price they saw elsewhere, extract it as a number.

Customer message: "%s"

Respond in JSON format:
{
    "intent": "inquiry" or "objection" or "ready_to_buy" or "unknown",
    "confidence": <0.0 to 1.0>,
    "mentioned_price": <number or 0>,
    "sentiment": <-1.0 to 1.0>,
    "signals": ["signal1", "signal2"]
}`

// LLMClassifier calls an OpenAI-compatible chat-completions endpoint. It has
// a bounded timeout and never retries: a slow or flaky model must not stall
// the inbound pipeline, the keyword fallback picks up instead.
type LLMClassifier struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewLLMClassifier(baseURL, apiKey, model string, timeout time.Duration) *LLMClassifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LLMClassifier{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *LLMClassifier) Classify(ctx context.Context, req Request) (*domain.LeadSignal, error) {
	if c.apiKey == "" {
		return nil, ErrUnavailable
	}

	text := req.MessageText
	if text == "" && req.ImageRef != "" {
		text = "(customer replied to the attached product image without text)"
	}
	var userContent interface{} = fmt.Sprintf(intentPrompt, text)
	if req.ImageRef != "" {
		// Vision-capable models take the replied-to status image as a
		// second content part alongside the prompt.
		userContent = []map[string]interface{}{
			{"type": "text", "text": fmt.Sprintf(intentPrompt, text)},
			{"type": "image_url", "image_url": map[string]string{"url": req.ImageRef}},
		}
	}

	reqBody := map[string]interface{}{
		"model": c.model,
		"messages": []map[string]interface{}{
			{"role": "system", "content": "You are a helpful assistant that responds in valid JSON format."},
			{"role": "user", "content": userContent},
		},
		"temperature": 0.3,
		"max_tokens":  512,
	}

	body, _ := json.Marshal(reqBody)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building classify request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Printf("[Classify] model call failed: %v", err)
		return nil, ErrUnavailable
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		log.Printf("[Classify] model returned status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
		return nil, ErrUnavailable
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &completion); err != nil || len(completion.Choices) == 0 {
		log.Printf("[Classify] unparseable completion: %v", err)
		return nil, ErrUnavailable
	}

	parsed, err := parseSignalJSON(completion.Choices[0].Message.Content)
	if err != nil {
		log.Printf("[Classify] bad model JSON: %v", err)
		return nil, ErrUnavailable
	}

	intent := domain.Intent(parsed.Intent)
	if !intent.Valid() {
		intent = domain.IntentUnknown
	}

	return &domain.LeadSignal{
		CustomerID:     req.CustomerID,
		ProductID:      req.ProductID,
		Intent:         intent,
		Confidence:     clamp01(parsed.Confidence),
		MentionedPrice: parsed.MentionedPrice,
		Sentiment:      sentimentLabel(parsed.Sentiment),
		Attributes:     map[string]string{"signals": strings.Join(parsed.Signals, ",")},
	}, nil
}

// sentimentLabel buckets the model's [-1,1] score into the closed label set.
func sentimentLabel(score float64) string {
	switch {
	case score > 0.2:
		return "positive"
	case score < -0.2:
		return "negative"
	default:
		return "neutral"
	}
}

type signalPayload struct {
	Intent         string   `json:"intent"`
	Confidence     float64  `json:"confidence"`
	MentionedPrice float64  `json:"mentioned_price"`
	Sentiment      float64  `json:"sentiment"`
	Signals        []string `json:"signals"`
}

// parseSignalJSON handles models that wrap their answer in markdown fences.
func parseSignalJSON(content string) (*signalPayload, error) {
	content = strings.TrimSpace(content)
	if i := strings.Index(content, "```json"); i >= 0 {
		content = content[i+len("```json"):]
		if j := strings.Index(content, "```"); j >= 0 {
			content = content[:j]
		}
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		if j := strings.Index(content, "```"); j >= 0 {
			content = content[:j]
		}
	}
	content = strings.TrimSpace(content)

	var p signalPayload
	if err := json.Unmarshal([]byte(content), &p); err != nil {
		return nil, fmt.Errorf("parsing signal payload: %w", err)
	}
	return &p, nil
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

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
