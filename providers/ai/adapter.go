package ai

// StreamFraming identifies how a provider frames its streaming payloads on
// the wire, so the transport can pick the matching scanner.
type StreamFraming int

const (
	// FramingNone means the provider does not stream.
	FramingNone StreamFraming = iota
	// FramingSSE means Server-Sent Events ("data:" lines, blank-line separated).
	FramingSSE
	// FramingJSONLines means newline-delimited JSON objects.
	FramingJSONLines
)

// Adapter translates between the uniform completion model and one vendor's
// wire protocol. Implementations are stateless and safe for concurrent use;
// all per-call mutable state (stream decoding buffers) lives in the transport
// scanners, never in the adapter.
type Adapter interface {
	// ID returns the provider identifier this adapter serves.
	ID() ProviderID

	// DefaultModel returns the model used when a request leaves Model empty.
	DefaultModel() string

	// KnownModels returns the vendor's documented model names, for display.
	// The list is advisory; BuildRequest passes through unknown models that
	// match the vendor's naming convention.
	KnownModels() []string

	// SupportsStreaming reports whether the vendor offers a streaming API.
	SupportsStreaming() bool

	// StreamFraming returns the wire framing of the vendor's stream.
	// FramingNone when SupportsStreaming is false.
	StreamFraming() StreamFraming

	// BuildRequest maps a uniform request to the vendor wire request,
	// embedding the credential in the vendor's auth location (header or
	// query parameter). It fails with an InvalidRequest error when the
	// supplied model name statically belongs to another vendor.
	BuildRequest(request CompletionRequest, credential Credential) (*WireRequest, error)

	// ParseResult extracts the uniform result from a buffered vendor
	// response. Vendor error envelopes (non-2xx with a JSON error body)
	// are converted to a *ProviderError; bodies that cannot be decoded
	// surface as MalformedResponse, never as a panic or a silent nil.
	ParseResult(response *WireResponse) (*CompletionResult, error)

	// ParseStreamChunk decodes one framed stream payload (a complete SSE
	// data value or one JSON line; fragmentation is already resolved by the
	// scanner). A nil chunk with nil error means the payload carries no
	// caller-visible delta and should be skipped. The returned chunk with
	// Final=true terminates the sequence.
	ParseStreamChunk(payload []byte) (*CompletionChunk, error)
}
