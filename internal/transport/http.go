// Package transport executes single outbound HTTP requests for provider
// adapters. It supports a buffered mode (full body) and an incremental mode
// (raw bytes as they arrive) and owns timeout propagation and cancellation.
// It never interprets payload content; decoding belongs to the adapters.
package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/subhobhai943/termux-ai-tool/providers/ai"
)

// maxResponseBodySize is the maximum buffered response body size (10 MB).
// Enforced via io.LimitReader to prevent unbounded memory allocation from
// rogue responses.
const maxResponseBodySize int64 = 10 * 1024 * 1024

// Client executes wire requests. The zero value is not usable; call New.
type Client struct {
	httpClient *http.Client
}

// New creates a transport Client. A nil httpClient falls back to
// http.DefaultClient; per-request deadlines come from the context, so the
// inner client normally carries no timeout of its own.
func New(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{httpClient: httpClient}
}

// Do executes a wire request and buffers the complete response body.
// Context cancellation and deadline expiry are propagated as-is so the caller
// can distinguish them from network failures; every other transport-level
// error is classified as a transient failure.
func (c *Client) Do(ctx context.Context, wireRequest *ai.WireRequest) (*ai.WireResponse, error) {
	response, err := c.send(ctx, wireRequest)
	if err != nil {
		return nil, err
	}
	defer closeWithLog(response.Body, wireRequest.URL)

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBodySize))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, ai.WrapProviderError(ai.KindTransientTransport, "", err)
	}

	return &ai.WireResponse{
		StatusCode: response.StatusCode,
		Header:     response.Header,
		Body:       body,
	}, nil
}

// DoStream executes a wire request and leaves a 2xx response body open for
// incremental reading; the caller must close the returned body. For non-2xx
// responses the body is drained, closed, and returned buffered as a
// WireResponse so the adapter can classify the vendor error envelope.
func (c *Client) DoStream(ctx context.Context, wireRequest *ai.WireRequest) (io.ReadCloser, *ai.WireResponse, error) {
	response, err := c.send(ctx, wireRequest)
	if err != nil {
		return nil, nil, err
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		defer closeWithLog(response.Body, wireRequest.URL)

		body, readErr := io.ReadAll(io.LimitReader(response.Body, maxResponseBodySize))
		if readErr != nil {
			body = nil
		}
		return nil, &ai.WireResponse{
			StatusCode: response.StatusCode,
			Header:     response.Header,
			Body:       body,
		}, nil
	}

	return response.Body, nil, nil
}

// send builds and executes the HTTP request, mapping transport-level failures
// onto the error taxonomy.
func (c *Client) send(ctx context.Context, wireRequest *ai.WireRequest) (*http.Response, error) {
	request, err := http.NewRequestWithContext(ctx, wireRequest.Method, wireRequest.URL, bytes.NewReader(wireRequest.Body))
	if err != nil {
		return nil, ai.WrapProviderError(ai.KindInvalidRequest, "", err)
	}
	if wireRequest.Header != nil {
		request.Header = wireRequest.Header.Clone()
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		// A cancelled or expired context takes precedence over the wrapped
		// url.Error so retry loops stop immediately.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, ai.WrapProviderError(ai.KindTransientTransport, "", err)
	}

	return response, nil
}

// closeWithLog closes a response body, logging close errors without letting
// them override the primary result of the call.
func closeWithLog(body io.Closer, url string) {
	if err := body.Close(); err != nil {
		slog.Warn("failed to close response body", "error", err.Error(), "url", url)
	}
}
