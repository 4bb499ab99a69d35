package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ignite/outreach-engine/internal/domain"
	"github.com/ignite/outreach-engine/internal/pkg/httpretry"
)

// SendResult is the gateway's verdict on one outbound message.
type SendResult struct {
	Accepted          bool
	ProviderMessageID string
}

// Gateway delivers rendered messages to customers.
type Gateway interface {
	Send(ctx context.Context, customerID, text string) (*SendResult, error)
}

// EvolutionGateway talks to an Evolution-API WhatsApp instance. Transient
// failures are retried by the underlying client; a 4xx means the gateway
// rejected the message outright.
type EvolutionGateway struct {
	baseURL  string
	apiKey   string
	instance string
	client   httpretry.Doer
}

func NewEvolutionGateway(baseURL, apiKey, instance string, client httpretry.Doer) *EvolutionGateway {
	if client == nil {
		client = httpretry.New(&http.Client{Timeout: 15 * time.Second}, 2)
	}
	return &EvolutionGateway{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		instance: instance,
		client:   client,
	}
}

func (g *EvolutionGateway) Send(ctx context.Context, customerID, text string) (*SendResult, error) {
	payload := map[string]string{
		"number": jid(customerID),
		"text":   text,
	}
	body, _ := json.Marshal(payload)

	url := fmt.Sprintf("%s/message/sendText/%s", g.baseURL, g.instance)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building send request: %w", err)
	}
	req.Header.Set("apikey", g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway send: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return &SendResult{Accepted: false}, nil
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var parsed struct {
		Key struct {
			ID string `json:"id"`
		} `json:"key"`
	}
	json.Unmarshal(respBody, &parsed)

	return &SendResult{Accepted: true, ProviderMessageID: parsed.Key.ID}, nil
}

// jid rebuilds the WhatsApp-style address the gateway expects from a
// normalized customer id.
func jid(customerID string) string {
	phone := domain.NormalizePhone(customerID)
	if !strings.HasPrefix(phone, "234") && strings.HasPrefix(phone, "0") {
		phone = "234" + phone[1:]
	}
	return phone + "@s.whatsapp.net"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
