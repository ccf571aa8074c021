package manager

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/subhobhai943/termux-ai-tool/providers/ai"
	"github.com/subhobhai943/termux-ai-tool/providers/ai/gemini"
	"github.com/subhobhai943/termux-ai-tool/providers/ai/openai"
	"github.com/subhobhai943/termux-ai-tool/usage"
)

const testCredential = ai.Credential("sk-test-secret-token")

// fastRetry keeps retry wait times negligible in tests.
var fastRetry = RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

// newTestManager points the openai adapter at server and disables real
// backoff waits.
func newTestManager(server *httptest.Server, options ...Option) *Manager {
	base := []Option{
		WithAdapter(openai.New().WithBaseURL(server.URL)),
		WithHTTPClient(server.Client()),
		WithRetryConfig(fastRetry),
	}
	return New(append(base, options...)...)
}

func completionBody(text string) string {
	return fmt.Sprintf(`{
		"id": "chatcmpl-1",
		"model": "gpt-3.5-turbo",
		"choices": [{"message": {"role": "assistant", "content": %q}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 4, "completion_tokens": 2, "total_tokens": 6}
	}`, text)
}

func streamBody(parts ...string) string {
	var b strings.Builder
	for _, part := range parts {
		fmt.Fprintf(&b, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", part)
	}
	b.WriteString(`data: {"choices":[{"delta":{},"finish_reason":"stop"}]}` + "\n\n")
	b.WriteString("data: [DONE]\n\n")
	return b.String()
}

// TestComplete_Success verifies the full buffered path through transport and
// adapter.
func TestComplete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer "+string(testCredential) {
			t.Errorf("expected credential in auth header, got %q", got)
		}
		fmt.Fprint(w, completionBody("Hello!"))
	}))
	defer server.Close()

	mgr := newTestManager(server)
	result, err := mgr.Complete(context.Background(), ai.NewPromptRequest(ai.ProviderOpenAI, "hi"), testCredential)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if result.Text != "Hello!" {
		t.Errorf("expected completion text, got %q", result.Text)
	}
	if result.Provider != ai.ProviderOpenAI {
		t.Errorf("expected provider stamped, got %s", result.Provider)
	}
	if result.Usage == nil || result.Usage.TotalTokens != 6 {
		t.Errorf("unexpected usage %+v", result.Usage)
	}
}

// TestComplete_UnknownProvider verifies the closed provider set, with no
// network I/O for unknown names.
func TestComplete_UnknownProvider(t *testing.T) {
	mgr := New()

	_, err := mgr.Complete(context.Background(), ai.NewPromptRequest("invalid_provider", "hi"), testCredential)
	if !errors.Is(err, ai.ErrUnknownProvider) {
		t.Errorf("expected unknown provider error, got %v", err)
	}
}

// TestComplete_InvalidRequest verifies shape validation fails fast without
// touching the server.
func TestComplete_InvalidRequest_NoNetworkCall(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	mgr := newTestManager(server)

	for _, request := range []ai.CompletionRequest{
		{Provider: ai.ProviderOpenAI},
		{Provider: ai.ProviderOpenAI, Messages: []ai.Message{{Role: ai.RoleUser, Content: "hi"}}, Temperature: -1.0},
		{Provider: ai.ProviderOpenAI, Messages: []ai.Message{{Role: ai.RoleUser, Content: "hi"}}, Temperature: 3.0},
	} {
		if _, err := mgr.Complete(context.Background(), request, testCredential); !errors.Is(err, ai.ErrInvalidRequest) {
			t.Errorf("expected invalid request, got %v", err)
		}
	}

	if calls.Load() != 0 {
		t.Errorf("expected no network calls for invalid requests, got %d", calls.Load())
	}
}

// TestComplete_RetriesTransient verifies bounded retries: two 500s then
// success within the attempt budget.
func TestComplete_RetriesTransient_ThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":{"message":"upstream hiccup"}}`)
			return
		}
		fmt.Fprint(w, completionBody("recovered"))
	}))
	defer server.Close()

	mgr := newTestManager(server)
	result, err := mgr.Complete(context.Background(), ai.NewPromptRequest(ai.ProviderOpenAI, "hi"), testCredential)
	if err != nil {
		t.Fatalf("expected recovery within retry budget, got %v", err)
	}
	if result.Text != "recovered" {
		t.Errorf("unexpected text %q", result.Text)
	}
	if calls.Load() != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", calls.Load())
	}
}

// TestComplete_RetryBudgetExhausted verifies the attempt count is bounded
// and the final error keeps the underlying classification.
func TestComplete_RetryBudgetExhausted(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	mgr := newTestManager(server)
	_, err := mgr.Complete(context.Background(), ai.NewPromptRequest(ai.ProviderOpenAI, "hi"), testCredential)
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("expected retry exhaustion, got %v", err)
	}
	if !errors.Is(err, ai.ErrTransientTransport) {
		t.Errorf("expected underlying classification preserved, got %v", err)
	}
	if calls.Load() != int32(fastRetry.MaxAttempts) {
		t.Errorf("expected %d attempts, got %d", fastRetry.MaxAttempts, calls.Load())
	}
}

// TestComplete_AuthFailureNotRetried verifies non-retryable kinds make
// exactly one attempt.
func TestComplete_AuthFailure_SingleAttempt(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key"}}`)
	}))
	defer server.Close()

	mgr := newTestManager(server)
	_, err := mgr.Complete(context.Background(), ai.NewPromptRequest(ai.ProviderOpenAI, "hi"), testCredential)
	if !errors.Is(err, ai.ErrAuthenticationFailed) {
		t.Fatalf("expected authentication failure, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single attempt, got %d", calls.Load())
	}
}

// TestCompleteStreaming_ChunksInOrder verifies streamed deltas arrive in
// order and terminate with a final chunk.
func TestCompleteStreaming_ChunksInOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, streamBody("Hel", "lo", "!"))
	}))
	defer server.Close()

	mgr := newTestManager(server)
	stream, err := mgr.CompleteStreaming(context.Background(), ai.NewPromptRequest(ai.ProviderOpenAI, "hi"), testCredential)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	var text strings.Builder
	sawFinal := false
	for chunk, err := range stream.Iter() {
		if err != nil {
			t.Fatalf("unexpected stream error: %v", err)
		}
		if sawFinal {
			t.Fatal("chunk delivered after final chunk")
		}
		text.WriteString(chunk.Text)
		if chunk.Final {
			sawFinal = true
		}
	}

	if !sawFinal {
		t.Error("expected a final chunk")
	}
	if text.String() != "Hello!" {
		t.Errorf("expected concatenated text, got %q", text.String())
	}
}

// TestCompleteStreaming_MatchesBuffered verifies the concatenation property:
// streamed text equals the buffered result for the same content.
func TestCompleteStreaming_MatchesBufferedText(t *testing.T) {
	const answer = "The answer is 42."

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.Header.Get("Accept"), "event-stream") {
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, streamBody("The answer ", "is 42."))
			return
		}
		fmt.Fprint(w, completionBody(answer))
	}))
	defer server.Close()

	mgr := newTestManager(server)
	request := ai.NewPromptRequest(ai.ProviderOpenAI, "meaning of life?")

	buffered, err := mgr.Complete(context.Background(), request, testCredential)
	if err != nil {
		t.Fatalf("buffered call failed: %v", err)
	}

	stream, err := mgr.CompleteStreaming(context.Background(), request, testCredential)
	if err != nil {
		t.Fatalf("stream call failed: %v", err)
	}
	collected, err := stream.Collect()
	if err != nil {
		t.Fatalf("collecting stream failed: %v", err)
	}

	if collected.Text != buffered.Text {
		t.Errorf("streamed text %q differs from buffered %q", collected.Text, buffered.Text)
	}
}

// TestCompleteStreaming_HuggingFace verifies the capability error is raised
// before any network I/O.
func TestCompleteStreaming_HuggingFace_RejectedBeforeNetwork(t *testing.T) {
	mgr := New(WithHTTPClient(&http.Client{
		Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
			t.Error("no request may be sent for an unsupported stream")
			return nil, errors.New("unreachable")
		}),
	}))

	request := ai.NewPromptRequest(ai.ProviderHuggingFace, "hi")
	request.Stream = true

	_, err := mgr.CompleteStreaming(context.Background(), request, testCredential)
	if !errors.Is(err, ai.ErrCapabilityUnsupported) {
		t.Errorf("expected capability unsupported, got %v", err)
	}
}

// TestCompleteStreaming_ErrorStatus verifies a non-2xx stream response is
// classified through the adapter envelope before any chunk is produced.
func TestCompleteStreaming_ErrorStatus_Classified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limit reached"}}`)
	}))
	defer server.Close()

	mgr := newTestManager(server, WithRetryConfig(RetryConfig{MaxAttempts: 1}))
	_, err := mgr.CompleteStreaming(context.Background(), ai.NewPromptRequest(ai.ProviderOpenAI, "hi"), testCredential)
	if !errors.Is(err, ai.ErrRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}

	var providerErr *ai.ProviderError
	errors.As(err, &providerErr)
	if providerErr.RetryAfter != 3*time.Second {
		t.Errorf("expected retry-after hint, got %v", providerErr.RetryAfter)
	}
}

// TestCompleteStreaming_Cancellation verifies a raised cancellation stops
// chunk delivery promptly even though the server keeps writing.
func TestCompleteStreaming_Cancellation_StopsDelivery(t *testing.T) {
	disconnected := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(disconnected)
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for i := 0; ; i++ {
			if _, err := fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n"); err != nil {
				return
			}
			flusher.Flush()
			select {
			case <-r.Context().Done():
				return
			case <-time.After(5 * time.Millisecond):
			}
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr := newTestManager(server)
	stream, err := mgr.CompleteStreaming(ctx, ai.NewPromptRequest(ai.ProviderOpenAI, "hi"), testCredential)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	seen := 0
	for chunk, err := range stream.Iter() {
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
			break
		}
		_ = chunk
		seen++
		if seen == 3 {
			cancel()
		}
		if seen > 50 {
			t.Fatal("stream did not stop after cancellation")
		}
	}

	// The server handler must observe the disconnect.
	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Error("server connection was not closed after cancellation")
	}
}

// TestComplete_CredentialNeverLogged verifies debug logging omits the secret.
func TestComplete_CredentialNeverLogged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, completionBody("ok"))
	}))
	defer server.Close()

	var logBuffer bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuffer, &slog.HandlerOptions{Level: slog.LevelDebug}))

	mgr := newTestManager(server, WithLogger(logger))
	if _, err := mgr.Complete(context.Background(), ai.NewPromptRequest(ai.ProviderOpenAI, "hi"), testCredential); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if logBuffer.Len() == 0 {
		t.Fatal("expected debug log output")
	}
	if strings.Contains(logBuffer.String(), string(testCredential)) {
		t.Error("credential leaked into log output")
	}
}

// TestComplete_GeminiTransportErrorOmitsCredential verifies a dial failure
// against the Gemini endpoint never surfaces the key: transport errors embed
// the request URL, so the credential must not be part of it.
func TestComplete_GeminiTransportErrorOmitsCredential(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	var logBuffer bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuffer, &slog.HandlerOptions{Level: slog.LevelDebug}))

	mgr := New(
		WithAdapter(gemini.New().WithBaseURL(server.URL)),
		WithRetryConfig(fastRetry),
		WithLogger(logger),
	)

	_, err := mgr.Complete(context.Background(), ai.NewPromptRequest(ai.ProviderGemini, "hi"), testCredential)
	if err == nil {
		t.Fatal("expected a transport error")
	}
	if strings.Contains(err.Error(), string(testCredential)) {
		t.Errorf("credential leaked into error text: %v", err)
	}
	if strings.Contains(logBuffer.String(), string(testCredential)) {
		t.Error("credential leaked into log output")
	}
}

// TestComplete_UsageRecorded verifies the recorder receives token counts
// and that a panicking recorder cannot fail the call.
func TestComplete_UsageRecorded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, completionBody("ok"))
	}))
	defer server.Close()

	var records []usage.Record
	mgr := newTestManager(server, WithRecorder(func(record usage.Record) {
		records = append(records, record)
		panic("recorder bug")
	}))

	result, err := mgr.Complete(context.Background(), ai.NewPromptRequest(ai.ProviderOpenAI, "hi"), testCredential)
	if err != nil {
		t.Fatalf("expected the call to survive a recorder panic, got %v", err)
	}
	if result.Text != "ok" {
		t.Errorf("unexpected text %q", result.Text)
	}

	if len(records) != 1 {
		t.Fatalf("expected one usage record, got %d", len(records))
	}
	record := records[0]
	if !record.Success || record.TotalTokens != 6 || record.Provider != ai.ProviderOpenAI {
		t.Errorf("unexpected record %+v", record)
	}
}

// TestListProviders verifies the stable ordering and streaming flags.
func TestListProviders_OrderAndCapabilities(t *testing.T) {
	infos := New().ListProviders()

	ids := make([]ai.ProviderID, 0, len(infos))
	for _, info := range infos {
		ids = append(ids, info.ID)
	}
	want := []ai.ProviderID{
		ai.ProviderAnthropic, ai.ProviderCohere, ai.ProviderGemini,
		ai.ProviderHuggingFace, ai.ProviderOpenAI,
	}
	if len(ids) != len(want) {
		t.Fatalf("expected %d providers, got %v", len(want), ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], ids[i])
		}
	}

	for _, info := range infos {
		wantStreaming := info.ID != ai.ProviderHuggingFace
		if info.SupportsStreaming != wantStreaming {
			t.Errorf("%s: expected SupportsStreaming=%v", info.ID, wantStreaming)
		}
		if info.DefaultModel == "" {
			t.Errorf("%s: expected a default model", info.ID)
		}
	}
}

// TestKnownModels_UnknownProvider verifies listing fails for unregistered
// names.
func TestKnownModels_UnknownProvider(t *testing.T) {
	if _, err := New().KnownModels("invalid_provider"); !errors.Is(err, ai.ErrUnknownProvider) {
		t.Errorf("expected unknown provider, got %v", err)
	}
}

// roundTripperFunc adapts a function to http.RoundTripper.
type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
