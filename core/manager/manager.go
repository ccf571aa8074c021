// Package manager is the single entry point for issuing completions. It
// resolves the adapter for a requested provider, validates request shape
// before any network I/O, and applies cross-cutting policy (structured
// logging, bounded retries with backoff, per-request timeouts) around the
// transport.
package manager

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/subhobhai943/termux-ai-tool/internal/transport"
	"github.com/subhobhai943/termux-ai-tool/providers/ai"
	"github.com/subhobhai943/termux-ai-tool/providers/ai/anthropic"
	"github.com/subhobhai943/termux-ai-tool/providers/ai/cohere"
	"github.com/subhobhai943/termux-ai-tool/providers/ai/gemini"
	"github.com/subhobhai943/termux-ai-tool/providers/ai/huggingface"
	"github.com/subhobhai943/termux-ai-tool/providers/ai/openai"
	"github.com/subhobhai943/termux-ai-tool/usage"
)

// defaultTimeout bounds one completion call end to end, streaming included.
const defaultTimeout = 2 * time.Minute

// Recorder receives a read-only usage record after each completed call.
// Implementations must not block; the manager ignores anything they do.
type Recorder func(record usage.Record)

// ProviderInfo describes one registered provider for listing.
type ProviderInfo struct {
	ID                ai.ProviderID
	DefaultModel      string
	SupportsStreaming bool
}

// Manager holds the closed set of adapters and the policy chain. It keeps no
// per-request state and no credentials; Complete and CompleteStreaming are
// safe for concurrent use.
type Manager struct {
	adapters map[ai.ProviderID]ai.Adapter
	client   *transport.Client
	logger   *slog.Logger
	retry    RetryConfig
	timeout  time.Duration
	recorder Recorder

	send   SendFunc
	stream StreamFunc
}

// Option configures a Manager.
type Option func(*Manager)

// WithHTTPClient replaces the underlying HTTP client, e.g. for tests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(m *Manager) { m.client = transport.New(httpClient) }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithRetryConfig overrides the retry policy.
func WithRetryConfig(config RetryConfig) Option {
	return func(m *Manager) { m.retry = config }
}

// WithTimeout overrides the per-request deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(m *Manager) { m.timeout = timeout }
}

// WithRecorder sets the usage-tracking callback.
func WithRecorder(recorder Recorder) Option {
	return func(m *Manager) { m.recorder = recorder }
}

// WithAdapter replaces or adds a single adapter. Intended for tests and for
// pointing an adapter at a non-default base URL.
func WithAdapter(adapter ai.Adapter) Option {
	return func(m *Manager) { m.adapters[adapter.ID()] = adapter }
}

// New constructs a Manager with the five built-in adapters and the policy
// chain logging → retry → timeout around the transport call.
func New(options ...Option) *Manager {
	m := &Manager{
		adapters: map[ai.ProviderID]ai.Adapter{},
		client:   transport.New(nil),
		logger:   slog.Default(),
		timeout:  defaultTimeout,
	}

	for _, adapter := range []ai.Adapter{
		openai.New(), anthropic.New(), gemini.New(), cohere.New(), huggingface.New(),
	} {
		m.adapters[adapter.ID()] = adapter
	}

	for _, option := range options {
		option(m)
	}

	middlewares := []MiddlewareConfig{
		NewLoggingMiddleware(m.logger),
		NewRetryMiddleware(m.retry),
		NewTimeoutMiddleware(m.timeout),
	}

	m.send = buildSendChain(m.execute, middlewares)
	m.stream = buildStreamChain(m.executeStream, middlewares)

	return m
}

// ListProviders returns the registered providers ordered by identifier.
func (m *Manager) ListProviders() []ProviderInfo {
	infos := make([]ProviderInfo, 0, len(m.adapters))
	for _, id := range ai.ProviderIDs() {
		adapter, ok := m.adapters[id]
		if !ok {
			continue
		}
		infos = append(infos, ProviderInfo{
			ID:                adapter.ID(),
			DefaultModel:      adapter.DefaultModel(),
			SupportsStreaming: adapter.SupportsStreaming(),
		})
	}
	return infos
}

// KnownModels returns the advisory model list for one provider.
func (m *Manager) KnownModels(provider ai.ProviderID) ([]string, error) {
	adapter, ok := m.adapters[provider]
	if !ok {
		return nil, ai.NewProviderError(ai.KindUnknownProvider, provider, "no adapter registered")
	}
	return adapter.KnownModels(), nil
}

// Complete executes one non-streaming completion. The credential is read for
// this call only and discarded with it. Validation failures are returned
// before any network I/O.
func (m *Manager) Complete(ctx context.Context, request ai.CompletionRequest, credential ai.Credential) (*ai.CompletionResult, error) {
	request.Stream = false

	if err := m.precheck(request); err != nil {
		return nil, err
	}

	result, err := m.send(ctx, request, credential)
	m.record(request, result, err)
	return result, err
}

// CompleteStreaming executes one streaming completion and returns a lazy,
// finite, non-restartable chunk sequence. The first chunk is handed to the
// caller as soon as it is decoded; nothing is buffered ahead of consumption,
// so a caller that stops consuming also stops network reads. The usage
// record is emitted when the stream ends.
func (m *Manager) CompleteStreaming(ctx context.Context, request ai.CompletionRequest, credential ai.Credential) (*ai.ChunkStream, error) {
	request.Stream = true

	if err := m.precheck(request); err != nil {
		return nil, err
	}

	stream, err := m.stream(ctx, request, credential)
	if err != nil {
		m.record(request, nil, err)
		return nil, err
	}

	return m.wrapStreamWithRecord(request, stream), nil
}

// precheck resolves the adapter and validates the request shape, failing
// fast with no network I/O.
func (m *Manager) precheck(request ai.CompletionRequest) error {
	adapter, ok := m.adapters[request.Provider]
	if !ok {
		return ai.NewProviderError(ai.KindUnknownProvider, request.Provider, "no adapter registered")
	}

	if err := ai.ValidateRequest(request); err != nil {
		return err
	}

	if request.Stream && !adapter.SupportsStreaming() {
		return ai.NewProviderError(ai.KindCapabilityUnsupported, request.Provider,
			string(request.Provider)+" does not support streaming")
	}

	return nil
}

// execute is the base of the send chain: build the wire request, run it
// buffered, and let the adapter interpret the response.
func (m *Manager) execute(ctx context.Context, request ai.CompletionRequest, credential ai.Credential) (*ai.CompletionResult, error) {
	adapter := m.adapters[request.Provider]

	wireRequest, err := adapter.BuildRequest(request, credential)
	if err != nil {
		return nil, err
	}

	wireResponse, err := m.client.Do(ctx, wireRequest)
	if err != nil {
		return nil, withProvider(err, request.Provider)
	}

	result, err := adapter.ParseResult(wireResponse)
	if err != nil {
		return nil, err
	}

	// Some vendors do not echo the model; callers always get a non-empty one.
	if result.Model == "" {
		result.Model = request.Model
		if result.Model == "" {
			result.Model = adapter.DefaultModel()
		}
	}
	if result.Provider == "" {
		result.Provider = request.Provider
	}

	return result, nil
}

// executeStream is the base of the stream chain: run the wire request
// incrementally and decode framed payloads through the adapter as they
// arrive. The iterator owns the response body and closes it on exit.
func (m *Manager) executeStream(ctx context.Context, request ai.CompletionRequest, credential ai.Credential) (*ai.ChunkStream, error) {
	adapter := m.adapters[request.Provider]

	wireRequest, err := adapter.BuildRequest(request, credential)
	if err != nil {
		return nil, err
	}

	body, errResponse, err := m.client.DoStream(ctx, wireRequest)
	if err != nil {
		return nil, withProvider(err, request.Provider)
	}
	if errResponse != nil {
		// Non-2xx before any chunk: let the adapter classify the vendor
		// error envelope exactly as in the buffered path.
		if _, parseErr := adapter.ParseResult(errResponse); parseErr != nil {
			return nil, parseErr
		}
		return nil, ai.MalformedResponseError(request.Provider, io.ErrUnexpectedEOF, errResponse.Body)
	}

	scanner := newScanner(adapter.StreamFraming(), body)

	return ai.NewChunkStream(func(yield func(ai.CompletionChunk, error) bool) {
		defer body.Close()

		for {
			// A raised cancellation stops delivery within one read cycle.
			if ctx.Err() != nil {
				yield(ai.CompletionChunk{}, ctx.Err())
				return
			}

			payload, err := scanner.Next()
			if err == io.EOF {
				yield(ai.CompletionChunk{Final: true}, nil)
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					yield(ai.CompletionChunk{}, ctx.Err())
					return
				}
				yield(ai.CompletionChunk{}, ai.WrapProviderError(ai.KindTransientTransport, request.Provider, err))
				return
			}

			chunk, err := adapter.ParseStreamChunk([]byte(payload))
			if err != nil {
				yield(ai.CompletionChunk{}, err)
				return
			}
			if chunk == nil {
				continue
			}

			if !yield(*chunk, nil) {
				return
			}
			if chunk.Final {
				return
			}
		}
	}), nil
}

// newScanner picks the payload scanner matching the adapter's framing.
func newScanner(framing ai.StreamFraming, body io.Reader) transport.PayloadScanner {
	if framing == ai.FramingJSONLines {
		return transport.NewLineScanner(body)
	}
	return transport.NewSSEScanner(body)
}

// record hands a usage record to the recorder. Recorder panics are swallowed:
// usage tracking can never take down a completion.
func (m *Manager) record(request ai.CompletionRequest, result *ai.CompletionResult, err error) {
	if m.recorder == nil {
		return
	}

	record := usage.Record{
		Timestamp: time.Now(),
		Provider:  request.Provider,
		Model:     request.Model,
		Success:   err == nil,
	}
	if result != nil {
		record.Model = result.Model
		if result.Usage != nil {
			record.PromptTokens = result.Usage.PromptTokens
			record.CompletionTokens = result.Usage.CompletionTokens
			record.TotalTokens = result.Usage.TotalTokens
		}
	}

	defer func() { _ = recover() }()
	m.recorder(record)
}

// wrapStreamWithRecord emits the usage record once the stream ends, errors,
// or is abandoned by the caller.
func (m *Manager) wrapStreamWithRecord(request ai.CompletionRequest, stream *ai.ChunkStream) *ai.ChunkStream {
	if m.recorder == nil {
		return stream
	}

	return ai.NewChunkStream(func(yield func(ai.CompletionChunk, error) bool) {
		var usageSeen *ai.Usage
		var streamErr error

		defer func() {
			result := &ai.CompletionResult{Model: request.Model, Usage: usageSeen}
			m.record(request, result, streamErr)
		}()

		for chunk, err := range stream.Iter() {
			if err != nil {
				streamErr = err
			} else if chunk.Usage != nil {
				usageSeen = chunk.Usage
			}

			if !yield(chunk, err) {
				return
			}
			if err != nil || chunk.Final {
				return
			}
		}
	})
}

// withProvider stamps the provider onto transport-level errors that were
// classified before the adapter was known to the error site.
func withProvider(err error, provider ai.ProviderID) error {
	var providerErr *ai.ProviderError
	if e, ok := err.(*ai.ProviderError); ok && e.Provider == "" {
		providerErr = e
		providerErr.Provider = provider
		return providerErr
	}
	return err
}
