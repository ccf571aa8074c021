package cohere

import (
	"encoding/json"

	"github.com/subhobhai943/termux-ai-tool/providers/ai"
)

// generateRequest is the wire body for POST /generate.
type generateRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Stream      bool    `json:"stream,omitempty"`
}

// generateResponse is the non-streaming response shape.
type generateResponse struct {
	ID          string `json:"id"`
	Generations []struct {
		ID           string `json:"id"`
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"generations"`
	Meta *generateMeta `json:"meta"`
}

type generateMeta struct {
	BilledUnits *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"billed_units"`
}

func (m *generateMeta) usage() *ai.Usage {
	if m == nil || m.BilledUnits == nil {
		return nil
	}
	return &ai.Usage{
		PromptTokens:     m.BilledUnits.InputTokens,
		CompletionTokens: m.BilledUnits.OutputTokens,
		TotalTokens:      m.BilledUnits.InputTokens + m.BilledUnits.OutputTokens,
	}
}

// streamLine is one newline-delimited JSON object of the generate stream.
type streamLine struct {
	Text         string `json:"text"`
	IsFinished   bool   `json:"is_finished"`
	FinishReason string `json:"finish_reason"`
}

// errorEnvelope is Cohere's flat error body: {"message": "..."}.
type errorEnvelope struct {
	Message string `json:"message"`
}

func parseErrorEnvelope(provider ai.ProviderID, response *ai.WireResponse) *ai.ProviderError {
	message := ai.TruncateString(string(response.Body), 200)

	var envelope errorEnvelope
	if err := json.Unmarshal(response.Body, &envelope); err == nil && envelope.Message != "" {
		message = envelope.Message
	}

	return ai.ClassifyStatus(provider, response.StatusCode, message, response.Header)
}

func mapFinishReason(reason string) ai.FinishReason {
	switch reason {
	case "COMPLETE":
		return ai.FinishStopped
	case "MAX_TOKENS":
		return ai.FinishLengthLimit
	case "ERROR_TOXIC":
		return ai.FinishContentFiltered
	default:
		return ai.FinishUnknown
	}
}
