// Package cost estimates spend from recorded token counts. Figures come from
// published per-million-token list prices, which drift over time; everything
// here is a display estimate, never a billing source.
package cost

import (
	"fmt"
	"strings"
)

// ModelCost is the pricing structure for one model, in USD per million tokens.
type ModelCost struct {
	InputPerMillion  float64 `json:"input_per_million"`
	OutputPerMillion float64 `json:"output_per_million"`
}

// InputCost returns the cost for the given number of prompt tokens.
func (mc ModelCost) InputCost(tokens int) float64 {
	return (float64(tokens) / 1_000_000.0) * mc.InputPerMillion
}

// OutputCost returns the cost for the given number of completion tokens.
func (mc ModelCost) OutputCost(tokens int) float64 {
	return (float64(tokens) / 1_000_000.0) * mc.OutputPerMillion
}

// TotalCost returns the combined cost for a call's prompt and completion.
func (mc ModelCost) TotalCost(promptTokens, completionTokens int) float64 {
	return mc.InputCost(promptTokens) + mc.OutputCost(completionTokens)
}

// String returns a formatted representation of the per-million rates.
func (mc ModelCost) String() string {
	return fmt.Sprintf("Input: $%.4f/M, Output: $%.4f/M", mc.InputPerMillion, mc.OutputPerMillion)
}

// pricing holds list prices keyed by model name or model family prefix.
// Dated model variants (claude-3-5-sonnet-20241022 and the like) resolve
// through the longest matching prefix.
var pricing = map[string]ModelCost{
	// OpenAI
	"gpt-4o":        {InputPerMillion: 2.50, OutputPerMillion: 10.00},
	"gpt-4o-mini":   {InputPerMillion: 0.15, OutputPerMillion: 0.60},
	"gpt-4-turbo":   {InputPerMillion: 10.00, OutputPerMillion: 30.00},
	"gpt-4":         {InputPerMillion: 30.00, OutputPerMillion: 60.00},
	"gpt-3.5-turbo": {InputPerMillion: 0.50, OutputPerMillion: 1.50},

	// Anthropic
	"claude-3-opus":     {InputPerMillion: 15.00, OutputPerMillion: 75.00},
	"claude-3-5-sonnet": {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"claude-3-sonnet":   {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"claude-3-5-haiku":  {InputPerMillion: 0.80, OutputPerMillion: 4.00},
	"claude-3-haiku":    {InputPerMillion: 0.25, OutputPerMillion: 1.25},

	// Google
	"gemini-1.5-pro":   {InputPerMillion: 1.25, OutputPerMillion: 5.00},
	"gemini-1.5-flash": {InputPerMillion: 0.075, OutputPerMillion: 0.30},
	"gemini-pro":       {InputPerMillion: 0.50, OutputPerMillion: 1.50},

	// Cohere
	"command-r-plus": {InputPerMillion: 2.50, OutputPerMillion: 10.00},
	"command-r":      {InputPerMillion: 0.15, OutputPerMillion: 0.60},
	"command":        {InputPerMillion: 1.00, OutputPerMillion: 2.00},
}

// ForModel returns the pricing for a model name. Exact matches win; otherwise
// the longest family prefix applies. The second return is false when the
// model has no known pricing, which includes every self-hosted model.
func ForModel(model string) (ModelCost, bool) {
	if mc, ok := pricing[model]; ok {
		return mc, true
	}

	var (
		best    ModelCost
		bestLen int
		found   bool
	)
	for prefix, mc := range pricing {
		if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
			best = mc
			bestLen = len(prefix)
			found = true
		}
	}
	return best, found
}

// Estimate returns the estimated spend for one call. Unknown models report
// zero with ok false so callers can distinguish free from unpriced.
func Estimate(model string, promptTokens, completionTokens int) (float64, bool) {
	mc, ok := ForModel(model)
	if !ok {
		return 0, false
	}
	return mc.TotalCost(promptTokens, completionTokens), true
}
