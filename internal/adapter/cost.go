// ABOUTME: Token pricing used to estimate the cost of an adapter reply
// ABOUTME: Per-adapter prices from config win over the built-in table

package adapter

// Pricing is the USD price per 1K tokens in each direction.
type Pricing struct {
	InputPer1K  float64
	OutputPer1K float64
}

// Known per-1K token prices (USD) for common models.
var defaultPricing = map[string]Pricing{
	"gpt-4o":                    {InputPer1K: 0.0025, OutputPer1K: 0.01},
	"gpt-4o-mini":               {InputPer1K: 0.00015, OutputPer1K: 0.0006},
	"grok-3":                    {InputPer1K: 0.003, OutputPer1K: 0.015},
	"grok-3-mini":               {InputPer1K: 0.0003, OutputPer1K: 0.0005},
	"claude-sonnet-4-20250514":  {InputPer1K: 0.003, OutputPer1K: 0.015},
	"claude-3-5-haiku-20241022": {InputPer1K: 0.0008, OutputPer1K: 0.004},
	"claude-3-5-haiku-latest":   {InputPer1K: 0.0008, OutputPer1K: 0.004},
	"gemini-1.5-flash":          {InputPer1K: 0.000075, OutputPer1K: 0.0003},
	"gemini-2.0-flash":          {InputPer1K: 0.0001, OutputPer1K: 0.0004},
}

// PricingFor returns configured prices when either is set, else the table
// entry for model, else zero.
func PricingFor(model string, input, output float64) Pricing {
	if input > 0 || output > 0 {
		return Pricing{InputPer1K: input, OutputPer1K: output}
	}
	return defaultPricing[model]
}

// Estimate prices a call from its token counts.
func (p Pricing) Estimate(inputTokens, outputTokens int64) float64 {
	return float64(inputTokens)/1000*p.InputPer1K + float64(outputTokens)/1000*p.OutputPer1K
}
