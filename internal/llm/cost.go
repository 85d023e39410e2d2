package llm

// modelPricing holds per-model pricing in USD per 1M tokens.
type modelPricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

var priceTable = map[string]modelPricing{
	"claude-sonnet-4-5-20250929": {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"claude-haiku-4-5-20251001":  {InputPerMillion: 0.80, OutputPerMillion: 4.00},
	"claude-opus-4-6":            {InputPerMillion: 15.00, OutputPerMillion: 75.00},

	"gpt-4o":      {InputPerMillion: 2.50, OutputPerMillion: 10.00},
	"gpt-4o-mini": {InputPerMillion: 0.15, OutputPerMillion: 0.60},

	"gemini-2.0-flash": {InputPerMillion: 0.10, OutputPerMillion: 0.40},
	"gemini-1.5-pro":   {InputPerMillion: 1.25, OutputPerMillion: 5.00},
}

// EstimateCost returns the cost in USD of a response's token usage. Unknown
// models cost 0.
func EstimateCost(resp *CompletionResponse) float64 {
	if resp == nil {
		return 0
	}
	pricing, ok := priceTable[resp.Model]
	if !ok {
		return 0
	}
	return float64(resp.InputTokens)/1_000_000*pricing.InputPerMillion +
		float64(resp.OutputTokens)/1_000_000*pricing.OutputPerMillion
}
