// Package anthropic implements the completion adapter for Anthropic's
// Messages API. Authentication uses the x-api-key header (not a Bearer
// token) together with a pinned anthropic-version; streaming uses typed SSE
// events ending with message_stop.
package anthropic

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/subhobhai943/termux-ai-tool/providers/ai"
)

const (
	defaultBaseURL   = "https://api.anthropic.com/v1"
	messagesEndpoint = "/messages"

	// anthropicVersion is the required anthropic-version header value.
	// Anthropic uses it to version-lock response formats independently of
	// the URL.
	anthropicVersion = "2023-06-01"

	defaultModel = "claude-3-sonnet-20240229"
)

// Adapter maps the uniform completion model onto Anthropic's wire protocol.
// It is stateless and safe for concurrent use.
type Adapter struct {
	baseURL string
}

// New returns an Adapter targeting the public Anthropic endpoint.
func New() *Adapter {
	return &Adapter{baseURL: defaultBaseURL}
}

// WithBaseURL overrides the API base URL, for proxies or test servers.
func (a *Adapter) WithBaseURL(baseURL string) *Adapter {
	a.baseURL = baseURL
	return a
}

func (a *Adapter) ID() ai.ProviderID { return ai.ProviderAnthropic }

func (a *Adapter) DefaultModel() string { return defaultModel }

func (a *Adapter) KnownModels() []string {
	return []string{
		"claude-3-opus-20240229",
		"claude-3-sonnet-20240229",
		"claude-3-haiku-20240307",
		"claude-2.1",
		"claude-2.0",
	}
}

func (a *Adapter) SupportsStreaming() bool { return true }

func (a *Adapter) StreamFraming() ai.StreamFraming { return ai.FramingSSE }

// BuildRequest produces the Messages API wire request. System messages are
// lifted into the top-level system field because Anthropic rejects a system
// role inside the messages array. max_tokens is mandatory on every request.
func (a *Adapter) BuildRequest(request ai.CompletionRequest, credential ai.Credential) (*ai.WireRequest, error) {
	if err := ai.CheckModel(a.ID(), request.Model); err != nil {
		return nil, err
	}

	model := request.Model
	if model == "" {
		model = defaultModel
	}

	system, messages := splitSystem(request.Messages)

	body, err := json.Marshal(messagesRequest{
		Model:       model,
		System:      system,
		Messages:    messages,
		MaxTokens:   request.EffectiveMaxTokens(),
		Temperature: request.EffectiveTemperature(),
		Stream:      request.Stream,
	})
	if err != nil {
		return nil, ai.WrapProviderError(ai.KindInvalidRequest, a.ID(), err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("x-api-key", string(credential))
	header.Set("anthropic-version", anthropicVersion)
	if request.Stream {
		header.Set("Accept", "text/event-stream")
	}

	return &ai.WireRequest{
		Method: http.MethodPost,
		URL:    a.baseURL + messagesEndpoint,
		Header: header,
		Body:   body,
	}, nil
}

// ParseResult extracts the uniform result from a buffered response, mapping
// Anthropic's error envelope onto the taxonomy for non-2xx statuses.
func (a *Adapter) ParseResult(response *ai.WireResponse) (*ai.CompletionResult, error) {
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, parseErrorEnvelope(a.ID(), response)
	}

	var decoded messagesResponse
	if err := json.Unmarshal(response.Body, &decoded); err != nil {
		return nil, ai.MalformedResponseError(a.ID(), err, response.Body)
	}

	text := decoded.textContent()
	if text == "" && len(decoded.Content) == 0 {
		return nil, ai.MalformedResponseError(a.ID(),
			fmt.Errorf("no content blocks in response"), response.Body)
	}

	return &ai.CompletionResult{
		Provider:     a.ID(),
		Model:        decoded.Model,
		Text:         text,
		FinishReason: mapStopReason(decoded.StopReason),
		Usage:        decoded.Usage.toGeneric(),
	}, nil
}

// ParseStreamChunk decodes one SSE data payload. The Anthropic lifecycle is
//
//	message_start → content_block_start → content_block_delta(s) →
//	content_block_stop → message_delta → message_stop
//
// Text deltas come from content_block_delta, the stop reason and output
// token count from message_delta, and message_stop produces the final chunk.
// A mid-stream "error" event surfaces as a ProviderError.
func (a *Adapter) ParseStreamChunk(payload []byte) (*ai.CompletionChunk, error) {
	var event streamEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, ai.MalformedResponseError(a.ID(), err, payload)
	}

	switch event.Type {
	case "content_block_delta":
		if event.Delta != nil && event.Delta.Type == "text_delta" && event.Delta.Text != "" {
			return &ai.CompletionChunk{Text: event.Delta.Text}, nil
		}
		return nil, nil

	case "message_delta":
		chunk := &ai.CompletionChunk{}
		if event.Delta != nil && event.Delta.StopReason != "" {
			chunk.FinishReason = mapStopReason(event.Delta.StopReason)
		}
		if event.Usage != nil {
			chunk.Usage = &ai.Usage{CompletionTokens: event.Usage.OutputTokens}
		}
		if chunk.FinishReason == "" && chunk.Usage == nil {
			return nil, nil
		}
		return chunk, nil

	case "message_stop":
		return &ai.CompletionChunk{Final: true}, nil

	case "error":
		message := "unknown stream error"
		if event.Error != nil && event.Error.Message != "" {
			message = event.Error.Message
		}
		return nil, ai.NewProviderError(ai.KindMalformedResponse, a.ID(), message)
	}

	// message_start, content_block_start, content_block_stop, ping: no
	// caller-visible delta.
	return nil, nil
}
