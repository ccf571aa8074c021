package gemini

import (
	"encoding/json"

	"github.com/subhobhai943/termux-ai-tool/providers/ai"
)

// generateContentRequest is the wire body for models/{model}:generateContent.
type generateContentRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float32 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

// buildContents converts the conversation into Gemini's contents array.
// Gemini only knows the roles user and model; assistant maps to model and
// everything else (including system) maps to user.
func buildContents(messages []ai.Message) []content {
	contents := make([]content, 0, len(messages))
	for _, message := range messages {
		role := "user"
		if message.Role == ai.RoleAssistant {
			role = "model"
		}
		contents = append(contents, content{
			Role:  role,
			Parts: []part{{Text: message.Content}},
		})
	}
	return contents
}

// generateContentResponse is both the non-streaming response shape and the
// per-event shape of the alt=sse stream.
type generateContentResponse struct {
	Candidates    []candidate    `json:"candidates"`
	UsageMetadata *usageMetadata `json:"usageMetadata"`
	ModelVersion  string         `json:"modelVersion"`
}

type candidate struct {
	Content struct {
		Parts []part `json:"parts"`
		Role  string `json:"role"`
	} `json:"content"`
	FinishReason string `json:"finishReason"`
}

// text concatenates all parts of the candidate into one string.
func (c candidate) text() string {
	text := ""
	for _, p := range c.Content.Parts {
		text += p.Text
	}
	return text
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

func (u *usageMetadata) toGeneric() *ai.Usage {
	if u == nil {
		return nil
	}
	return &ai.Usage{
		PromptTokens:     u.PromptTokenCount,
		CompletionTokens: u.CandidatesTokenCount,
		TotalTokens:      u.TotalTokenCount,
	}
}

// errorEnvelope is Google's error body: {"error": {"code", "message", "status"}}.
type errorEnvelope struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
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

func mapFinishReason(reason string) ai.FinishReason {
	switch reason {
	case "STOP":
		return ai.FinishStopped
	case "MAX_TOKENS":
		return ai.FinishLengthLimit
	case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT":
		return ai.FinishContentFiltered
	default:
		return ai.FinishUnknown
	}
}
