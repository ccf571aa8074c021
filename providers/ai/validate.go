package ai

import (
	"fmt"
	"strings"
)

// modelSignatures maps statically recognizable model-name shapes to the
// provider that owns them. Used to reject cross-provider model selection
// before any network call; names that match no signature pass through.
var modelSignatures = []struct {
	prefix   string
	provider ProviderID
}{
	{"gpt-", ProviderOpenAI},
	{"chatgpt-", ProviderOpenAI},
	{"o1", ProviderOpenAI},
	{"o3", ProviderOpenAI},
	{"o4", ProviderOpenAI},
	{"claude-", ProviderAnthropic},
	{"gemini-", ProviderGemini},
	{"command", ProviderCohere},
}

// ModelMismatch reports whether model statically belongs to a provider other
// than the given one. HuggingFace models are namespaced ("org/model"); a
// slash therefore marks a model as HuggingFace-only.
func ModelMismatch(provider ProviderID, model string) bool {
	if model == "" {
		return false
	}

	if strings.Contains(model, "/") {
		return provider != ProviderHuggingFace
	}

	for _, signature := range modelSignatures {
		if strings.HasPrefix(model, signature.prefix) {
			return signature.provider != provider
		}
	}

	return false
}

// CheckModel returns an InvalidRequest error when the supplied model name
// statically belongs to a different provider, nil otherwise. Adapters call
// this from BuildRequest.
func CheckModel(provider ProviderID, model string) error {
	if ModelMismatch(provider, model) {
		return NewProviderError(KindInvalidRequest, provider,
			fmt.Sprintf("model %q is not a %s model", model, provider))
	}
	return nil
}

// ValidateRequest checks the request shape before any network I/O: at least
// one message with a known role and non-empty content, temperature within
// [0, 2], and a positive max-tokens value. A zero temperature or zero
// max-tokens means "use the default" and is valid.
func ValidateRequest(request CompletionRequest) error {
	if len(request.Messages) == 0 {
		return NewProviderError(KindInvalidRequest, request.Provider, "prompt text must not be empty")
	}
	for _, message := range request.Messages {
		if strings.TrimSpace(message.Content) == "" {
			return NewProviderError(KindInvalidRequest, request.Provider, "prompt text must not be empty")
		}
		switch message.Role {
		case RoleUser, RoleAssistant, RoleSystem:
		default:
			return NewProviderError(KindInvalidRequest, request.Provider,
				fmt.Sprintf("unknown message role %q", message.Role))
		}
	}

	if request.Temperature < 0 || request.Temperature > 2 {
		return NewProviderError(KindInvalidRequest, request.Provider,
			fmt.Sprintf("temperature %.2f outside valid range [0.0, 2.0]", request.Temperature))
	}

	if request.MaxTokens < 0 {
		return NewProviderError(KindInvalidRequest, request.Provider,
			fmt.Sprintf("max tokens must be positive, got %d", request.MaxTokens))
	}

	return nil
}
