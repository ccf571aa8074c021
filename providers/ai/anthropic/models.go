package anthropic

import (
	"encoding/json"

	"github.com/subhobhai943/termux-ai-tool/providers/ai"
)

// messagesRequest is the wire body for POST /messages.
type messagesRequest struct {
	Model       string        `json:"model"`
	System      string        `json:"system,omitempty"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float32       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// splitSystem lifts system messages out of the conversation into the
// top-level system string, concatenating multiple system entries with
// newlines. The remaining messages keep their order.
func splitSystem(messages []ai.Message) (string, []chatMessage) {
	system := ""
	wire := make([]chatMessage, 0, len(messages))

	for _, message := range messages {
		if message.Role == ai.RoleSystem {
			if system != "" {
				system += "\n"
			}
			system += message.Content
			continue
		}
		wire = append(wire, chatMessage{Role: string(message.Role), Content: message.Content})
	}

	return system, wire
}

// messagesResponse is the non-streaming response shape.
type messagesResponse struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      *messagesUsage `json:"usage"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// textContent concatenates the text of all text-typed content blocks.
func (r messagesResponse) textContent() string {
	text := ""
	for _, block := range r.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text
}

type messagesUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (u *messagesUsage) toGeneric() *ai.Usage {
	if u == nil {
		return nil
	}
	return &ai.Usage{
		PromptTokens:     u.InputTokens,
		CompletionTokens: u.OutputTokens,
		TotalTokens:      u.InputTokens + u.OutputTokens,
	}
}

// streamEvent is the envelope for Anthropic SSE events. The Type field
// discriminates which of the optional payloads is populated.
type streamEvent struct {
	Type  string `json:"type"`
	Delta *struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	Usage *struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// errorEnvelope is Anthropic's error body: {"error": {"type", "message"}}.
type errorEnvelope struct {
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func parseErrorEnvelope(provider ai.ProviderID, response *ai.WireResponse) *ai.ProviderError {
	message := ai.TruncateString(string(response.Body), 200)

	var envelope errorEnvelope
	if err := json.Unmarshal(response.Body, &envelope); err == nil {
		if envelope.Error != nil && envelope.Error.Message != "" {
			message = envelope.Error.Message
		}
	}

	return ai.ClassifyStatus(provider, response.StatusCode, message, response.Header)
}

func mapStopReason(reason string) ai.FinishReason {
	switch reason {
	case "end_turn", "stop_sequence":
		return ai.FinishStopped
	case "max_tokens":
		return ai.FinishLengthLimit
	case "refusal":
		return ai.FinishContentFiltered
	case "":
		return ai.FinishUnknown
	default:
		return ai.FinishUnknown
	}
}
