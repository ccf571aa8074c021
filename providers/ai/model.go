package ai

import "net/http"

/*
	##### ADAPTER INPUT #####
*/

// ProviderID identifies one of the supported completion providers.
// The set is closed: adding a provider means adding a new adapter package
// and registering it in the manager, not extending dispatch logic.
type ProviderID string

const (
	ProviderOpenAI      ProviderID = "openai"
	ProviderAnthropic   ProviderID = "anthropic"
	ProviderGemini      ProviderID = "gemini"
	ProviderCohere      ProviderID = "cohere"
	ProviderHuggingFace ProviderID = "huggingface"
)

// ProviderIDs lists all supported providers in stable (alphabetical) order.
func ProviderIDs() []ProviderID {
	return []ProviderID{
		ProviderAnthropic,
		ProviderCohere,
		ProviderGemini,
		ProviderHuggingFace,
		ProviderOpenAI,
	}
}

// Credential is an opaque API secret for one provider. It is supplied by the
// configuration collaborator per call and is never stored by the core; the
// only place it may appear is inside the wire request built by an adapter.
type Credential string

// MessageRole represents the role of a message; compatible with string
type MessageRole string

const (
	RoleUser      MessageRole = "user"      // End-user message
	RoleAssistant MessageRole = "assistant" // Model response
	RoleSystem    MessageRole = "system"    // System instructions
)

// Message represents a single message in a conversation. Conversation history
// is owned by the caller and supplied per request; the core keeps nothing.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

const (
	// DefaultTemperature is applied when a request leaves Temperature unset.
	DefaultTemperature float32 = 0.7

	// DefaultMaxTokens is applied when a request leaves MaxTokens unset.
	DefaultMaxTokens = 1000
)

// CompletionRequest is the uniform request accepted by every adapter.
// Construct it once per invocation and treat it as immutable; the manager and
// adapters only ever read it.
type CompletionRequest struct {
	Provider    ProviderID `json:"provider"`
	Model       string     `json:"model,omitempty"`       // Vendor-specific name; empty selects the adapter default
	Messages    []Message  `json:"messages"`              // Full conversation, last entry is the active prompt
	Temperature float32    `json:"temperature,omitempty"` // Sampling temperature [0..2]; 0 value means "use default"
	MaxTokens   int        `json:"max_tokens,omitempty"`  // Maximum completion tokens; 0 means "use default"
	Stream      bool       `json:"stream,omitempty"`
}

// NewPromptRequest builds a single-turn request carrying one user message.
func NewPromptRequest(provider ProviderID, prompt string) CompletionRequest {
	return CompletionRequest{
		Provider: provider,
		Messages: []Message{{Role: RoleUser, Content: prompt}},
	}
}

// EffectiveTemperature returns the request temperature or the default when unset.
func (r CompletionRequest) EffectiveTemperature() float32 {
	if r.Temperature == 0 {
		return DefaultTemperature
	}
	return r.Temperature
}

// EffectiveMaxTokens returns the request max tokens or the default when unset.
func (r CompletionRequest) EffectiveMaxTokens() int {
	if r.MaxTokens == 0 {
		return DefaultMaxTokens
	}
	return r.MaxTokens
}

/*
	##### ADAPTER OUTPUT #####
*/

// FinishReason normalises vendor finish/stop reasons behind one enum.
type FinishReason string

const (
	FinishStopped         FinishReason = "stopped"
	FinishLengthLimit     FinishReason = "length_limit"
	FinishContentFiltered FinishReason = "content_filtered"
	FinishUnknown         FinishReason = "unknown"
)

// Usage carries token counters when the vendor reports them. A nil *Usage on
// a result means the provider did not report usage for that call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// CompletionResult is the uniform non-streaming response. It is produced once
// per request and has no identity beyond that call.
type CompletionResult struct {
	Provider     ProviderID   `json:"provider"`
	Model        string       `json:"model"`
	Text         string       `json:"text"`
	FinishReason FinishReason `json:"finish_reason"`
	Usage        *Usage       `json:"usage,omitempty"`
}

// CompletionChunk is one incremental unit of a streamed result. Chunks form
// an ordered finite sequence; the chunk with Final=true is always last and
// may carry the finish reason and usage when the vendor reports them.
type CompletionChunk struct {
	Text         string       `json:"text,omitempty"`
	Final        bool         `json:"final,omitempty"`
	FinishReason FinishReason `json:"finish_reason,omitempty"`
	Usage        *Usage       `json:"usage,omitempty"`
}

/*
	##### WIRE LAYER #####
*/

// WireRequest is a fully built vendor HTTP request: the adapter owns the
// method, URL (including any query-parameter auth), headers and serialized
// body; the transport executes it without interpreting any of them.
type WireRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// WireResponse is a buffered vendor HTTP response handed back to the adapter
// for interpretation. For streaming calls only non-2xx responses are buffered
// into a WireResponse; 2xx bodies stay open for incremental reads.
type WireResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}
