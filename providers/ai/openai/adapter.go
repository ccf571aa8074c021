// Package openai implements the completion adapter for OpenAI's Chat
// Completions API. Authentication uses a Bearer token; streaming uses SSE
// with the [DONE] sentinel.
package openai

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/subhobhai943/termux-ai-tool/providers/ai"
)

const (
	defaultBaseURL          = "https://api.openai.com/v1"
	chatCompletionsEndpoint = "/chat/completions"
	defaultModel            = "gpt-3.5-turbo"
)

// Adapter maps the uniform completion model onto OpenAI's wire protocol.
// It is stateless and safe for concurrent use.
type Adapter struct {
	baseURL string
}

// New returns an Adapter targeting the public OpenAI endpoint.
func New() *Adapter {
	return &Adapter{baseURL: defaultBaseURL}
}

// WithBaseURL overrides the API base URL, for proxies or test servers.
func (a *Adapter) WithBaseURL(baseURL string) *Adapter {
	a.baseURL = baseURL
	return a
}

func (a *Adapter) ID() ai.ProviderID { return ai.ProviderOpenAI }

func (a *Adapter) DefaultModel() string { return defaultModel }

func (a *Adapter) KnownModels() []string {
	return []string{"gpt-4", "gpt-4-turbo", "gpt-3.5-turbo", "gpt-3.5-turbo-16k"}
}

func (a *Adapter) SupportsStreaming() bool { return true }

func (a *Adapter) StreamFraming() ai.StreamFraming { return ai.FramingSSE }

// BuildRequest produces the chat-completions wire request. The credential
// travels only in the Authorization header of the returned request.
func (a *Adapter) BuildRequest(request ai.CompletionRequest, credential ai.Credential) (*ai.WireRequest, error) {
	if err := ai.CheckModel(a.ID(), request.Model); err != nil {
		return nil, err
	}

	model := request.Model
	if model == "" {
		model = defaultModel
	}

	body, err := json.Marshal(chatCompletionRequest{
		Model:       model,
		Messages:    buildMessages(request.Messages),
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
	if request.Stream {
		header.Set("Accept", "text/event-stream")
	}

	return &ai.WireRequest{
		Method: http.MethodPost,
		URL:    a.baseURL + chatCompletionsEndpoint,
		Header: header,
		Body:   body,
	}, nil
}

// ParseResult extracts the uniform result from a buffered response, mapping
// OpenAI's error envelope onto the taxonomy for non-2xx statuses.
func (a *Adapter) ParseResult(response *ai.WireResponse) (*ai.CompletionResult, error) {
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, parseErrorEnvelope(a.ID(), response)
	}

	var decoded chatCompletionResponse
	if err := json.Unmarshal(response.Body, &decoded); err != nil {
		return nil, ai.MalformedResponseError(a.ID(), err, response.Body)
	}

	if len(decoded.Choices) == 0 {
		return nil, ai.MalformedResponseError(a.ID(),
			fmt.Errorf("no choices in response"), response.Body)
	}

	return &ai.CompletionResult{
		Provider:     a.ID(),
		Model:        decoded.Model,
		Text:         decoded.Choices[0].Message.Content,
		FinishReason: mapFinishReason(decoded.Choices[0].FinishReason),
		Usage:        decoded.Usage.toGeneric(),
	}, nil
}

// ParseStreamChunk decodes one SSE data payload. Payloads carrying neither a
// content delta, a finish reason, nor usage are skipped (nil, nil). A payload
// with a finish reason produces the final chunk.
func (a *Adapter) ParseStreamChunk(payload []byte) (*ai.CompletionChunk, error) {
	var decoded chatCompletionChunk
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, ai.MalformedResponseError(a.ID(), err, payload)
	}

	chunk := &ai.CompletionChunk{Usage: decoded.Usage.toGeneric()}

	if len(decoded.Choices) > 0 {
		choice := decoded.Choices[0]
		chunk.Text = choice.Delta.Content
		if choice.FinishReason != "" {
			chunk.Final = true
			chunk.FinishReason = mapFinishReason(choice.FinishReason)
		}
	}

	if chunk.Text == "" && !chunk.Final && chunk.Usage == nil {
		return nil, nil
	}

	return chunk, nil
}
