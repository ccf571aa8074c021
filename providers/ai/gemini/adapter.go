// Package gemini implements the completion adapter for Google's Gemini
// generateContent API. Authentication uses the x-goog-api-key header, which
// keeps the credential out of the request URL so transport errors and logs
// never carry it; streaming uses streamGenerateContent with alt=sse, where
// every SSE event carries a GenerateContentResponse whose parts text is the
// delta for that event.
package gemini

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/subhobhai943/termux-ai-tool/providers/ai"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-pro"
)

// Adapter maps the uniform completion model onto Gemini's wire protocol.
// It is stateless and safe for concurrent use.
type Adapter struct {
	baseURL string
}

// New returns an Adapter targeting the public Gemini endpoint.
func New() *Adapter {
	return &Adapter{baseURL: defaultBaseURL}
}

// WithBaseURL overrides the API base URL, for proxies or test servers.
func (a *Adapter) WithBaseURL(baseURL string) *Adapter {
	a.baseURL = baseURL
	return a
}

func (a *Adapter) ID() ai.ProviderID { return ai.ProviderGemini }

func (a *Adapter) DefaultModel() string { return defaultModel }

func (a *Adapter) KnownModels() []string {
	return []string{"gemini-pro", "gemini-pro-vision"}
}

func (a *Adapter) SupportsStreaming() bool { return true }

func (a *Adapter) StreamFraming() ai.StreamFraming { return ai.FramingSSE }

// BuildRequest produces the generateContent wire request. The credential
// travels in the x-goog-api-key header, never in the URL.
func (a *Adapter) BuildRequest(request ai.CompletionRequest, credential ai.Credential) (*ai.WireRequest, error) {
	if err := ai.CheckModel(a.ID(), request.Model); err != nil {
		return nil, err
	}

	model := request.Model
	if model == "" {
		model = defaultModel
	}

	body, err := json.Marshal(generateContentRequest{
		Contents: buildContents(request.Messages),
		GenerationConfig: &generationConfig{
			Temperature:     request.EffectiveTemperature(),
			MaxOutputTokens: request.EffectiveMaxTokens(),
		},
	})
	if err != nil {
		return nil, ai.WrapProviderError(ai.KindInvalidRequest, a.ID(), err)
	}

	endpoint := "generateContent"
	query := ""
	if request.Stream {
		endpoint = "streamGenerateContent"
		query = "?alt=sse"
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("x-goog-api-key", string(credential))
	if request.Stream {
		header.Set("Accept", "text/event-stream")
	}

	return &ai.WireRequest{
		Method: http.MethodPost,
		URL:    fmt.Sprintf("%s/models/%s:%s%s", a.baseURL, model, endpoint, query),
		Header: header,
		Body:   body,
	}, nil
}

// ParseResult extracts the uniform result from a buffered response, mapping
// Google's error envelope onto the taxonomy for non-2xx statuses.
func (a *Adapter) ParseResult(response *ai.WireResponse) (*ai.CompletionResult, error) {
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, parseErrorEnvelope(a.ID(), response)
	}

	var decoded generateContentResponse
	if err := json.Unmarshal(response.Body, &decoded); err != nil {
		return nil, ai.MalformedResponseError(a.ID(), err, response.Body)
	}

	if len(decoded.Candidates) == 0 {
		return nil, ai.MalformedResponseError(a.ID(),
			fmt.Errorf("no candidates in response"), response.Body)
	}

	candidate := decoded.Candidates[0]
	return &ai.CompletionResult{
		Provider:     a.ID(),
		Model:        decoded.ModelVersion,
		Text:         candidate.text(),
		FinishReason: mapFinishReason(candidate.FinishReason),
		Usage:        decoded.UsageMetadata.toGeneric(),
	}, nil
}

// ParseStreamChunk decodes one SSE data payload, which carries a full
// generateContentResponse. The parts text of the event is the delta; an
// event with a finishReason produces the final chunk (Gemini sends no
// separate done sentinel).
func (a *Adapter) ParseStreamChunk(payload []byte) (*ai.CompletionChunk, error) {
	var decoded generateContentResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, ai.MalformedResponseError(a.ID(), err, payload)
	}

	if len(decoded.Candidates) == 0 {
		return nil, nil
	}

	candidate := decoded.Candidates[0]
	chunk := &ai.CompletionChunk{
		Text:  candidate.text(),
		Usage: decoded.UsageMetadata.toGeneric(),
	}

	if candidate.FinishReason != "" {
		chunk.Final = true
		chunk.FinishReason = mapFinishReason(candidate.FinishReason)
	}

	if chunk.Text == "" && !chunk.Final && chunk.Usage == nil {
		return nil, nil
	}

	return chunk, nil
}
