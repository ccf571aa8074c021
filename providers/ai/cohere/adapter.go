// Package cohere implements the completion adapter for Cohere's generate
// API. Authentication uses a Bearer token. Unlike the chat-completion
// vendors the request carries a single prompt string built from the
// conversation; streaming is framed as newline-delimited JSON objects with
// an explicit is_finished terminator.
package cohere

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/subhobhai943/termux-ai-tool/providers/ai"
)

const (
	defaultBaseURL   = "https://api.cohere.ai/v1"
	generateEndpoint = "/generate"
	defaultModel     = "command"
)

// Adapter maps the uniform completion model onto Cohere's wire protocol.
// It is stateless and safe for concurrent use.
type Adapter struct {
	baseURL string
}

// New returns an Adapter targeting the public Cohere endpoint.
func New() *Adapter {
	return &Adapter{baseURL: defaultBaseURL}
}

// WithBaseURL overrides the API base URL, for proxies or test servers.
func (a *Adapter) WithBaseURL(baseURL string) *Adapter {
	a.baseURL = baseURL
	return a
}

func (a *Adapter) ID() ai.ProviderID { return ai.ProviderCohere }

func (a *Adapter) DefaultModel() string { return defaultModel }

func (a *Adapter) KnownModels() []string {
	return []string{"command", "command-light", "command-nightly"}
}

func (a *Adapter) SupportsStreaming() bool { return true }

func (a *Adapter) StreamFraming() ai.StreamFraming { return ai.FramingJSONLines }

// BuildRequest produces the generate wire request with the conversation
// flattened into a single prompt string.
func (a *Adapter) BuildRequest(request ai.CompletionRequest, credential ai.Credential) (*ai.WireRequest, error) {
	if err := ai.CheckModel(a.ID(), request.Model); err != nil {
		return nil, err
	}

	model := request.Model
	if model == "" {
		model = defaultModel
	}

	body, err := json.Marshal(generateRequest{
		Model:       model,
		Prompt:      buildPrompt(request.Messages),
		Temperature: request.EffectiveTemperature(),
		MaxTokens:   request.EffectiveMaxTokens(),
		Stream:      request.Stream,
	})
	if err != nil {
		return nil, ai.WrapProviderError(ai.KindInvalidRequest, a.ID(), err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Authorization", "Bearer "+string(credential))

	return &ai.WireRequest{
		Method: http.MethodPost,
		URL:    a.baseURL + generateEndpoint,
		Header: header,
		Body:   body,
	}, nil
}

// buildPrompt flattens the conversation into Cohere's single-prompt format:
// one "Role: content" line per message, closed with an "Assistant:" cue.
// Messages with no role are treated as user messages.
func buildPrompt(messages []ai.Message) string {
	var prompt strings.Builder
	for _, message := range messages {
		prompt.WriteString(capitalizeRole(message.Role))
		prompt.WriteString(": ")
		prompt.WriteString(message.Content)
		prompt.WriteString("\n")
	}
	prompt.WriteString("Assistant:")
	return prompt.String()
}

func capitalizeRole(role ai.MessageRole) string {
	if role == "" {
		role = ai.RoleUser
	}
	return strings.ToUpper(string(role)[:1]) + string(role)[1:]
}

// ParseResult extracts the uniform result from a buffered response, mapping
// Cohere's flat error envelope onto the taxonomy for non-2xx statuses.
func (a *Adapter) ParseResult(response *ai.WireResponse) (*ai.CompletionResult, error) {
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, parseErrorEnvelope(a.ID(), response)
	}

	var decoded generateResponse
	if err := json.Unmarshal(response.Body, &decoded); err != nil {
		return nil, ai.MalformedResponseError(a.ID(), err, response.Body)
	}

	if len(decoded.Generations) == 0 {
		return nil, ai.MalformedResponseError(a.ID(),
			fmt.Errorf("no generations in response"), response.Body)
	}

	generation := decoded.Generations[0]
	// Cohere does not echo the model name; the manager backfills it from
	// the request.
	return &ai.CompletionResult{
		Provider:     a.ID(),
		Text:         generation.Text,
		FinishReason: mapFinishReason(generation.FinishReason),
		Usage:        decoded.Meta.usage(),
	}, nil
}

// ParseStreamChunk decodes one JSON line. Text-bearing lines become deltas;
// the line with is_finished=true produces the final chunk carrying the
// finish reason.
func (a *Adapter) ParseStreamChunk(payload []byte) (*ai.CompletionChunk, error) {
	var decoded streamLine
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, ai.MalformedResponseError(a.ID(), err, payload)
	}

	if decoded.IsFinished {
		return &ai.CompletionChunk{
			Final:        true,
			FinishReason: mapFinishReason(decoded.FinishReason),
		}, nil
	}

	if decoded.Text == "" {
		return nil, nil
	}

	return &ai.CompletionChunk{Text: decoded.Text}, nil
}
