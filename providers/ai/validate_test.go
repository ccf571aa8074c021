package ai

import (
	"errors"
	"testing"
)

func validRequest(provider ProviderID) CompletionRequest {
	return NewPromptRequest(provider, "hello")
}

// TestValidateRequest_Accepts verifies in-range requests pass untouched.
func TestValidateRequest_ValidShapes_Accepted(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CompletionRequest)
	}{
		{"defaults", func(r *CompletionRequest) {}},
		{"temperature lower bound", func(r *CompletionRequest) { r.Temperature = 0.01 }},
		{"temperature upper bound", func(r *CompletionRequest) { r.Temperature = 2.0 }},
		{"explicit max tokens", func(r *CompletionRequest) { r.MaxTokens = 4096 }},
		{"multi-turn history", func(r *CompletionRequest) {
			r.Messages = []Message{
				{Role: RoleSystem, Content: "be brief"},
				{Role: RoleUser, Content: "hi"},
				{Role: RoleAssistant, Content: "hello"},
				{Role: RoleUser, Content: "more"},
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := validRequest(ProviderOpenAI)
			tt.mutate(&request)
			if err := ValidateRequest(request); err != nil {
				t.Errorf("expected valid request, got %v", err)
			}
		})
	}
}

// TestValidateRequest_Rejects verifies shape violations fail with
// InvalidRequest before any network use.
func TestValidateRequest_InvalidShapes_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CompletionRequest)
	}{
		{"no messages", func(r *CompletionRequest) { r.Messages = nil }},
		{"empty prompt", func(r *CompletionRequest) { r.Messages = []Message{{Role: RoleUser, Content: ""}} }},
		{"blank prompt", func(r *CompletionRequest) { r.Messages = []Message{{Role: RoleUser, Content: "   "}} }},
		{"temperature below range", func(r *CompletionRequest) { r.Temperature = -1.0 }},
		{"temperature above range", func(r *CompletionRequest) { r.Temperature = 3.0 }},
		{"negative max tokens", func(r *CompletionRequest) { r.MaxTokens = -5 }},
		{"zero-value role", func(r *CompletionRequest) { r.Messages = []Message{{Content: "hi"}} }},
		{"unknown role", func(r *CompletionRequest) { r.Messages = []Message{{Role: "narrator", Content: "hi"}} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := validRequest(ProviderOpenAI)
			tt.mutate(&request)

			err := ValidateRequest(request)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("expected InvalidRequest classification, got %v", err)
			}
		})
	}
}

// TestModelMismatch verifies static cross-provider model detection.
func TestModelMismatch_CrossProviderNames(t *testing.T) {
	tests := []struct {
		provider ProviderID
		model    string
		mismatch bool
	}{
		{ProviderOpenAI, "gpt-4", false},
		{ProviderOpenAI, "claude-3-opus-20240229", true},
		{ProviderAnthropic, "claude-3-sonnet-20240229", false},
		{ProviderAnthropic, "gpt-4", true},
		{ProviderGemini, "gemini-pro", false},
		{ProviderGemini, "command", true},
		{ProviderCohere, "command-light", false},
		{ProviderCohere, "gemini-pro", true},
		{ProviderHuggingFace, "microsoft/DialoGPT-medium", false},
		{ProviderOpenAI, "microsoft/DialoGPT-medium", true},
		// Unknown shapes pass through for forward compatibility.
		{ProviderOpenAI, "my-custom-finetune", false},
		{ProviderOpenAI, "", false},
	}

	for _, tt := range tests {
		if got := ModelMismatch(tt.provider, tt.model); got != tt.mismatch {
			t.Errorf("ModelMismatch(%s, %q) = %v, want %v", tt.provider, tt.model, got, tt.mismatch)
		}
	}
}

// TestCheckModel verifies the mismatch error carries the InvalidRequest kind.
func TestCheckModel_Mismatch_ReturnsInvalidRequest(t *testing.T) {
	err := CheckModel(ProviderAnthropic, "gpt-4")
	if err == nil {
		t.Fatal("expected mismatch error")
	}
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected InvalidRequest classification, got %v", err)
	}

	if err := CheckModel(ProviderAnthropic, "claude-3-opus-20240229"); err != nil {
		t.Errorf("expected nil for matching model, got %v", err)
	}
}

// TestEffectiveDefaults verifies zero-value fields resolve to documented
// defaults.
func TestEffectiveDefaults(t *testing.T) {
	request := CompletionRequest{}
	if got := request.EffectiveTemperature(); got != DefaultTemperature {
		t.Errorf("expected default temperature %v, got %v", DefaultTemperature, got)
	}
	if got := request.EffectiveMaxTokens(); got != DefaultMaxTokens {
		t.Errorf("expected default max tokens %d, got %d", DefaultMaxTokens, got)
	}

	request.Temperature = 1.5
	request.MaxTokens = 256
	if got := request.EffectiveTemperature(); got != 1.5 {
		t.Errorf("expected explicit temperature, got %v", got)
	}
	if got := request.EffectiveMaxTokens(); got != 256 {
		t.Errorf("expected explicit max tokens, got %d", got)
	}
}
