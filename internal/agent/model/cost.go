package model

import (
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Pricing is the USD price of one million text tokens.
type Pricing struct {
	InputPerM  float64
	OutputPerM float64
}

// Usage is the priced token usage of one model call.
type Usage struct {
	InputUSD  float64
	OutputUSD float64
}

func (u Usage) TotalUSD() float64 { return u.InputUSD + u.OutputUSD }

// Longest names first so "-lite" variants win over their base model.
var pricingTable = []struct {
	prefix string
	price  Pricing
}{
	{"gemini-2.5-flash-lite", Pricing{InputPerM: 0.10, OutputPerM: 0.40}},
	{"gemini-2.0-flash-lite", Pricing{InputPerM: 0.075, OutputPerM: 0.30}},
	{"gemini-2.5-flash", Pricing{InputPerM: 0.30, OutputPerM: 2.50}},
	{"gemini-2.0-flash", Pricing{InputPerM: 0.10, OutputPerM: 0.40}},
}

// ResolvePricing matches versioned model names (gemini-2.0-flash-001) to
// their family price. Unknown models cost zero.
func ResolvePricing(model string) Pricing {
	model = strings.ToLower(strings.TrimPrefix(model, "models/"))
	for _, row := range pricingTable {
		if strings.HasPrefix(model, row.prefix) {
			return row.price
		}
	}
	return Pricing{}
}

// Price converts reported token usage into USD.
func (p Pricing) Price(usage *schema.TokenUsage) Usage {
	if usage == nil {
		return Usage{}
	}
	return Usage{
		InputUSD:  p.InputPerM * float64(usage.PromptTokens) / 1e6,
		OutputUSD: p.OutputPerM * float64(usage.CompletionTokens) / 1e6,
	}
}
