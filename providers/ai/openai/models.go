package openai

import (
	"encoding/json"

	"github.com/subhobhai943/termux-ai-tool/providers/ai"
)

// chatCompletionRequest is the wire body for POST /chat/completions.
type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func buildMessages(messages []ai.Message) []chatMessage {
	wire := make([]chatMessage, 0, len(messages))
	for _, message := range messages {
		wire = append(wire, chatMessage{Role: string(message.Role), Content: message.Content})
	}
	return wire
}

// chatCompletionResponse is the non-streaming response shape.
type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage *chatUsage `json:"usage"`
}

// chatCompletionChunk is one streaming delta (object "chat.completion.chunk").
type chatCompletionChunk struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *chatUsage `json:"usage"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (u *chatUsage) toGeneric() *ai.Usage {
	if u == nil {
		return nil
	}
	return &ai.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}

// errorEnvelope is OpenAI's standard error body: {"error": {"message": ...}}.
// Cohere-style flat {"message": ...} envelopes are tolerated as a fallback
// because OpenAI-compatible proxies sometimes emit them.
type errorEnvelope struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
	Message string `json:"message"`
}

// parseErrorEnvelope converts a non-2xx response to a classified
// ProviderError, falling back to a truncated raw body when the envelope
// cannot be decoded.
func parseErrorEnvelope(provider ai.ProviderID, response *ai.WireResponse) *ai.ProviderError {
	message := ai.TruncateString(string(response.Body), 200)

	var envelope errorEnvelope
	if err := json.Unmarshal(response.Body, &envelope); err == nil {
		if envelope.Error != nil && envelope.Error.Message != "" {
			message = envelope.Error.Message
		} else if envelope.Message != "" {
			message = envelope.Message
		}
	}

	return ai.ClassifyStatus(provider, response.StatusCode, message, response.Header)
}

func mapFinishReason(reason string) ai.FinishReason {
	switch reason {
	case "stop":
		return ai.FinishStopped
	case "length":
		return ai.FinishLengthLimit
	case "content_filter":
		return ai.FinishContentFiltered
	default:
		return ai.FinishUnknown
	}
}
