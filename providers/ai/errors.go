package ai

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ErrorKind classifies a provider failure. Every error that crosses the
// manager boundary carries exactly one kind so callers can branch on cause
// without string matching.
type ErrorKind string

const (
	// KindInvalidRequest means caller-supplied data violates a precondition.
	// Never retried, never sent over the network.
	KindInvalidRequest ErrorKind = "invalid_request"

	// KindUnknownProvider means no adapter matches the requested provider.
	KindUnknownProvider ErrorKind = "unknown_provider"

	// KindAuthenticationFailed means the credential is missing or rejected
	// (HTTP 401/403). Not retried.
	KindAuthenticationFailed ErrorKind = "authentication_failed"

	// KindRateLimited means the vendor returned HTTP 429. Retried with
	// backoff, honouring a Retry-After hint when present.
	KindRateLimited ErrorKind = "rate_limited"

	// KindTransientTransport means a connection/timeout error or HTTP 5xx.
	// Retried.
	KindTransientTransport ErrorKind = "transient_transport_failure"

	// KindMalformedResponse means the vendor returned an unparseable or
	// unexpected body. Not retried; the raw snippet is kept for diagnosis.
	KindMalformedResponse ErrorKind = "malformed_response"

	// KindCapabilityUnsupported means the request needs a feature the
	// provider does not offer (e.g. streaming from HuggingFace). Not retried.
	KindCapabilityUnsupported ErrorKind = "capability_unsupported"
)

// Sentinel errors, one per kind, for errors.Is checks.
var (
	ErrInvalidRequest        = errors.New("invalid request")
	ErrUnknownProvider       = errors.New("unknown provider")
	ErrAuthenticationFailed  = errors.New("authentication failed")
	ErrRateLimited           = errors.New("rate limited")
	ErrTransientTransport    = errors.New("transient transport failure")
	ErrMalformedResponse     = errors.New("malformed response")
	ErrCapabilityUnsupported = errors.New("capability not supported by provider")
)

// sentinelFor maps each kind to its sentinel so Unwrap supports errors.Is.
func sentinelFor(kind ErrorKind) error {
	switch kind {
	case KindInvalidRequest:
		return ErrInvalidRequest
	case KindUnknownProvider:
		return ErrUnknownProvider
	case KindAuthenticationFailed:
		return ErrAuthenticationFailed
	case KindRateLimited:
		return ErrRateLimited
	case KindTransientTransport:
		return ErrTransientTransport
	case KindMalformedResponse:
		return ErrMalformedResponse
	case KindCapabilityUnsupported:
		return ErrCapabilityUnsupported
	}
	return nil
}

// ProviderError is the typed failure surfaced to callers. It keeps the raw
// vendor status and message so terminal output can distinguish cause, and an
// optional body snippet for malformed-response diagnosis.
type ProviderError struct {
	Kind       ErrorKind
	Provider   ProviderID
	Status     int           // HTTP status when the failure came from a response, 0 otherwise
	Message    string        // Vendor-supplied or synthesized human-readable message
	Snippet    string        // Truncated raw body for MalformedResponse diagnosis
	RetryAfter time.Duration // Vendor retry-after hint, 0 when absent
	cause      error         // Underlying error, if any
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Provider != "" && e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Provider, e.Kind, e.Status, e.Message)
	}
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the kind sentinel (always) and the cause (when present) so
// both errors.Is(err, ai.ErrRateLimited) and cause inspection work.
func (e *ProviderError) Unwrap() []error {
	if e.cause != nil {
		return []error{sentinelFor(e.Kind), e.cause}
	}
	return []error{sentinelFor(e.Kind)}
}

// Retryable reports whether the failure class is expected to succeed on retry.
func (e *ProviderError) Retryable() bool {
	return e.Kind == KindRateLimited || e.Kind == KindTransientTransport
}

// NewProviderError builds a typed error for the given kind.
func NewProviderError(kind ErrorKind, provider ProviderID, message string) *ProviderError {
	return &ProviderError{Kind: kind, Provider: provider, Message: message}
}

// WrapProviderError builds a typed error around an underlying cause.
func WrapProviderError(kind ErrorKind, provider ProviderID, cause error) *ProviderError {
	return &ProviderError{Kind: kind, Provider: provider, Message: cause.Error(), cause: cause}
}

// snippetLen caps the raw body preview attached to malformed-response errors.
const snippetLen = 500

// MalformedResponseError builds a MalformedResponse error carrying a
// truncated body snippet for diagnosis.
func MalformedResponseError(provider ProviderID, cause error, body []byte) *ProviderError {
	return &ProviderError{
		Kind:     KindMalformedResponse,
		Provider: provider,
		Message:  cause.Error(),
		Snippet:  TruncateString(string(body), snippetLen),
		cause:    cause,
	}
}

// ClassifyStatus maps a non-2xx vendor response to the error taxonomy.
// message should be the vendor error-envelope message when one was decoded,
// or a truncated raw body otherwise.
func ClassifyStatus(provider ProviderID, status int, message string, header http.Header) *ProviderError {
	kind := KindMalformedResponse
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuthenticationFailed
	case status == http.StatusTooManyRequests:
		kind = KindRateLimited
	case status >= 500:
		kind = KindTransientTransport
	case status >= 400:
		kind = KindInvalidRequest
	}

	return &ProviderError{
		Kind:       kind,
		Provider:   provider,
		Status:     status,
		Message:    message,
		RetryAfter: parseRetryAfter(header),
	}
}

// parseRetryAfter reads a Retry-After header as delay seconds or an HTTP
// date. Malformed values are ignored rather than failing the classification.
func parseRetryAfter(header http.Header) time.Duration {
	if header == nil {
		return 0
	}
	value := header.Get("Retry-After")
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}

	if at, err := http.ParseTime(value); err == nil {
		if wait := time.Until(at); wait > 0 {
			return wait
		}
	}

	return 0
}

// TruncateString shortens s to at most maxLen runes, appending "..." when
// anything was removed.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
