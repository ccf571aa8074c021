// Package huggingface implements the completion adapter for the Hugging Face
// Inference API. Authentication uses a Bearer token; the model name is part
// of the URL path. The Inference API has no streaming mode, so a stream=true
// request is rejected with a capability error before any network I/O.
package huggingface

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/subhobhai943/termux-ai-tool/providers/ai"
)

const (
	defaultBaseURL = "https://api-inference.huggingface.co/models"
	defaultModel   = "microsoft/DialoGPT-medium"
)

// Adapter maps the uniform completion model onto the Inference API.
// It is stateless and safe for concurrent use.
type Adapter struct {
	baseURL string
}

// New returns an Adapter targeting the public Inference API endpoint.
func New() *Adapter {
	return &Adapter{baseURL: defaultBaseURL}
}

// WithBaseURL overrides the API base URL, for proxies or test servers.
func (a *Adapter) WithBaseURL(baseURL string) *Adapter {
	a.baseURL = baseURL
	return a
}

func (a *Adapter) ID() ai.ProviderID { return ai.ProviderHuggingFace }

func (a *Adapter) DefaultModel() string { return defaultModel }

func (a *Adapter) KnownModels() []string {
	return []string{
		"microsoft/DialoGPT-medium",
		"microsoft/DialoGPT-large",
		"facebook/blenderbot-400M-distill",
		"gpt2",
	}
}

func (a *Adapter) SupportsStreaming() bool { return false }

func (a *Adapter) StreamFraming() ai.StreamFraming { return ai.FramingNone }

// BuildRequest produces the inference wire request. Only the last message is
// sent as input text; the Inference API models used here are single-turn.
func (a *Adapter) BuildRequest(request ai.CompletionRequest, credential ai.Credential) (*ai.WireRequest, error) {
	if request.Stream {
		return nil, ai.NewProviderError(ai.KindCapabilityUnsupported, a.ID(),
			"huggingface does not support streaming")
	}

	if err := ai.CheckModel(a.ID(), request.Model); err != nil {
		return nil, err
	}

	model := request.Model
	if model == "" {
		model = defaultModel
	}

	input := ""
	if len(request.Messages) > 0 {
		input = request.Messages[len(request.Messages)-1].Content
	}

	body, err := json.Marshal(inferenceRequest{
		Inputs: input,
		Parameters: &inferenceParameters{
			Temperature:  request.EffectiveTemperature(),
			MaxNewTokens: request.EffectiveMaxTokens(),
		},
	})
	if err != nil {
		return nil, ai.WrapProviderError(ai.KindInvalidRequest, a.ID(), err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Authorization", "Bearer "+string(credential))

	return &ai.WireRequest{
		Method: http.MethodPost,
		URL:    a.baseURL + "/" + model,
		Header: header,
		Body:   body,
	}, nil
}

// ParseResult extracts the generated text. The Inference API answers with
// either a list of generation objects or a flat error object; both shapes
// are handled explicitly so neither can fail silently.
func (a *Adapter) ParseResult(response *ai.WireResponse) (*ai.CompletionResult, error) {
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, parseErrorEnvelope(a.ID(), response)
	}

	var generations []inferenceGeneration
	if err := json.Unmarshal(response.Body, &generations); err != nil {
		return nil, ai.MalformedResponseError(a.ID(), err, response.Body)
	}

	if len(generations) == 0 {
		return nil, ai.MalformedResponseError(a.ID(),
			fmt.Errorf("empty generation list"), response.Body)
	}

	// The Inference API reports neither token usage nor a finish reason.
	return &ai.CompletionResult{
		Provider:     a.ID(),
		Text:         generations[0].GeneratedText,
		FinishReason: ai.FinishUnknown,
	}, nil
}

// ParseStreamChunk always fails: the Inference API does not stream. The
// manager's capability check rejects stream requests before this point; the
// error here guards against direct adapter misuse.
func (a *Adapter) ParseStreamChunk(payload []byte) (*ai.CompletionChunk, error) {
	return nil, ai.NewProviderError(ai.KindCapabilityUnsupported, a.ID(),
		"huggingface does not support streaming")
}

type inferenceRequest struct {
	Inputs     string               `json:"inputs"`
	Parameters *inferenceParameters `json:"parameters,omitempty"`
}

type inferenceParameters struct {
	Temperature  float32 `json:"temperature,omitempty"`
	MaxNewTokens int     `json:"max_new_tokens,omitempty"`
}

type inferenceGeneration struct {
	GeneratedText string `json:"generated_text"`
}

// errorEnvelope is the Inference API error body: {"error": "...", "estimated_time": n}.
type errorEnvelope struct {
	Error string `json:"error"`
}

func parseErrorEnvelope(provider ai.ProviderID, response *ai.WireResponse) *ai.ProviderError {
	message := ai.TruncateString(strings.TrimSpace(string(response.Body)), 200)

	var envelope errorEnvelope
	if err := json.Unmarshal(response.Body, &envelope); err == nil && envelope.Error != "" {
		message = envelope.Error
	}

	return ai.ClassifyStatus(provider, response.StatusCode, message, response.Header)
}
