package cost

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// TestForModel_ExactMatch resolves a model that has a direct pricing entry.
func TestForModel_ExactMatch(t *testing.T) {
	mc, ok := ForModel("gpt-4o-mini")
	if !ok {
		t.Fatal("expected pricing for gpt-4o-mini")
	}
	if mc.InputPerMillion != 0.15 || mc.OutputPerMillion != 0.60 {
		t.Errorf("unexpected pricing: %s", mc)
	}
}

// TestForModel_PrefixMatch resolves dated model variants through the longest
// family prefix, so claude-3-5-sonnet-20241022 prices as claude-3-5-sonnet
// rather than claude-3-sonnet.
func TestForModel_PrefixMatch(t *testing.T) {
	tests := []struct {
		model string
		want  float64 // input per million
	}{
		{"claude-3-5-sonnet-20241022", 3.00},
		{"claude-3-opus-20240229", 15.00},
		{"gpt-4o-2024-08-06", 2.50},
		{"gpt-4-0613", 30.00},
		{"command-r-plus-08-2024", 2.50},
		{"gemini-1.5-flash-002", 0.075},
	}

	for _, tt := range tests {
		mc, ok := ForModel(tt.model)
		if !ok {
			t.Errorf("%s: expected pricing", tt.model)
			continue
		}
		if mc.InputPerMillion != tt.want {
			t.Errorf("%s: input rate = %f, want %f", tt.model, mc.InputPerMillion, tt.want)
		}
	}
}

// TestForModel_Unknown reports no pricing for self-hosted or unrecognized
// models instead of guessing.
func TestForModel_Unknown(t *testing.T) {
	for _, model := range []string{"mistralai/Mistral-7B-Instruct-v0.2", "llama-3-70b", ""} {
		if _, ok := ForModel(model); ok {
			t.Errorf("%s: expected no pricing", model)
		}
	}
}

// TestEstimate computes spend from prompt and completion token counts.
func TestEstimate(t *testing.T) {
	// gpt-4o: $2.50/M input, $10.00/M output.
	got, ok := Estimate("gpt-4o", 1_000_000, 500_000)
	if !ok {
		t.Fatal("expected pricing for gpt-4o")
	}
	if !almostEqual(got, 2.50+5.00) {
		t.Errorf("estimate = %f, want 7.50", got)
	}
}

// TestEstimate_UnknownModel returns zero with ok false so callers can tell
// unpriced apart from free.
func TestEstimate_UnknownModel(t *testing.T) {
	got, ok := Estimate("some-local-model", 1000, 1000)
	if ok || got != 0 {
		t.Errorf("estimate = (%f, %v), want (0, false)", got, ok)
	}
}

// TestModelCost_ZeroTokens costs nothing for an empty call.
func TestModelCost_ZeroTokens(t *testing.T) {
	mc := ModelCost{InputPerMillion: 2.50, OutputPerMillion: 10.00}
	if got := mc.TotalCost(0, 0); got != 0 {
		t.Errorf("total = %f, want 0", got)
	}
}
