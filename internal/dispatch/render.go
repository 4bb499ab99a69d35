package dispatch

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/osteele/liquid"

	"github.com/ignite/outreach-engine/internal/domain"
)

const priceDropTemplate = `Hello {{ customer_name }}!

Good news! Market price dropped today.

{{ product_name }} - Now ₦{{ new_price }} (was ₦{{ old_price }})

Flash Code: {{ flash_code }}
Valid for 30 minutes before system resets price.

Let me reserve one for you?`

const valueReinforcementTemplate = `Hello {{ customer_name }}!

{{ product_name }} - ₦{{ price }}

This is the original model with full warranty.
Cheaper ones you're seeing are mostly old stock or clones.

Available now. Should I reserve one for you?`

const flashCodeChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Renderer turns a decision into outbound message text. Flash codes are
// generated here, at send time, never inside the engine.
type Renderer struct {
	priceDrop *liquid.Template
	value     *liquid.Template
	flashCode func() string
}

func NewRenderer() (*Renderer, error) {
	eng := liquid.NewEngine()
	priceDrop, err := eng.ParseString(priceDropTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing price drop template: %w", err)
	}
	value, err := eng.ParseString(valueReinforcementTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing value template: %w", err)
	}
	return &Renderer{
		priceDrop: priceDrop,
		value:     value,
		flashCode: randomFlashCode,
	}, nil
}

func (r *Renderer) Render(decision *domain.Decision, customerName, productName string, listPrice float64) (string, error) {
	if customerName == "" {
		customerName = "there"
	}
	if productName == "" {
		productName = decision.ProductID
	}

	bindings := liquid.Bindings{
		"customer_name": customerName,
		"product_name":  productName,
	}

	switch decision.Strategy {
	case domain.StrategyPriceDrop:
		bindings["old_price"] = formatPrice(decision.OldPrice)
		bindings["new_price"] = formatPrice(decision.NewPrice)
		bindings["flash_code"] = r.flashCode()
		out, err := r.priceDrop.RenderString(bindings)
		if err != nil {
			return "", fmt.Errorf("rendering price drop message: %w", err)
		}
		return out, nil
	case domain.StrategyValueReinforcement:
		bindings["price"] = formatPrice(listPrice)
		out, err := r.value.RenderString(bindings)
		if err != nil {
			return "", fmt.Errorf("rendering value message: %w", err)
		}
		return out, nil
	default:
		return "", fmt.Errorf("strategy %s has no message template", decision.Strategy)
	}
}

func randomFlashCode() string {
	var b strings.Builder
	b.WriteString("PAY-")
	for i := 0; i < 6; i++ {
		b.WriteByte(flashCodeChars[rand.Intn(len(flashCodeChars))])
	}
	return b.String()
}

// formatPrice renders a naira amount with thousands separators, no decimals.
func formatPrice(v float64) string {
	s := fmt.Sprintf("%.0f", v)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
