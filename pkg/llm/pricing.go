package llm

// Pricing is a per-million-token rate pair used to estimate a chat call's
// cost.
type Pricing struct {
	PromptPerMillion     float64
	CompletionPerMillion float64
}

// defaultPricing is applied to any model not present in the pricing table:
// anthropic-class pricing, matching this project's default model.
var defaultPricing = Pricing{PromptPerMillion: 3.0, CompletionPerMillion: 15.0}

// pricingTable holds the per-model rates this client knows about.
var pricingTable = map[string]Pricing{
	"anthropic/claude-3.5-sonnet": {PromptPerMillion: 3.0, CompletionPerMillion: 15.0},
	"anthropic/claude-3-haiku":    {PromptPerMillion: 0.25, CompletionPerMillion: 1.25},
	"anthropic/claude-3-opus":     {PromptPerMillion: 15.0, CompletionPerMillion: 75.0},
}

// EstimateCost returns the estimated USD cost of a call given its prompt
// and completion token counts.
func EstimateCost(model string, promptTokens, completionTokens int) float64 {
	p, ok := pricingTable[model]
	if !ok {
		p = defaultPricing
	}
	return float64(promptTokens)/1_000_000*p.PromptPerMillion +
		float64(completionTokens)/1_000_000*p.CompletionPerMillion
}
