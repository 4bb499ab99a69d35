package dispatch

import (
	"strings"
	"testing"

	"github.com/ignite/outreach-engine/internal/domain"
)

func TestRenderPriceDrop(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}
	r.flashCode = func() string { return "PAY-TEST01" }

	text, err := r.Render(&domain.Decision{
		Strategy: domain.StrategyPriceDrop,
		OldPrice: 16000,
		NewPrice: 13900,
	}, "Ada", "iPhone 13", 16000)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	for _, want := range []string{"Ada", "iPhone 13", "₦13,900", "₦16,000", "PAY-TEST01", "30 minutes"} {
		if !strings.Contains(text, want) {
			t.Errorf("rendered message missing %q:\n%s", want, text)
		}
	}
}

func TestRenderValueReinforcement(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}

	text, err := r.Render(&domain.Decision{
		Strategy: domain.StrategyValueReinforcement,
	}, "Ada", "iPhone 13", 16000)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(text, "₦16,000") || !strings.Contains(text, "warranty") {
		t.Fatalf("unexpected message:\n%s", text)
	}
	if strings.Contains(text, "PAY-") {
		t.Fatal("value reinforcement must not carry a flash code")
	}
}

func TestRenderNoActionErrors(t *testing.T) {
	r, _ := NewRenderer()
	if _, err := r.Render(&domain.Decision{Strategy: domain.StrategyNoAction}, "", "", 0); err == nil {
		t.Fatal("no_action should have no template")
	}
}

func TestRenderDefaults(t *testing.T) {
	r, _ := NewRenderer()
	text, err := r.Render(&domain.Decision{
		Strategy:  domain.StrategyValueReinforcement,
		ProductID: "iphone-13",
	}, "", "", 500)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(text, "Hello there!") || !strings.Contains(text, "iphone-13") {
		t.Fatalf("defaults not applied:\n%s", text)
	}
}

func TestFlashCodeShape(t *testing.T) {
	code := randomFlashCode()
	if len(code) != 10 || !strings.HasPrefix(code, "PAY-") {
		t.Fatalf("flash code %q, want PAY- plus 6 chars", code)
	}
}

func TestFormatPrice(t *testing.T) {
	cases := map[float64]string{
		500:     "500",
		13900:   "13,900",
		16000:   "16,000",
		1250000: "1,250,000",
	}
	for in, want := range cases {
		if got := formatPrice(in); got != want {
			t.Errorf("formatPrice(%v) = %q, want %q", in, got, want)
		}
	}
}
