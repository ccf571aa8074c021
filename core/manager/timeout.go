package manager

import (
	"context"
	"time"

	"github.com/subhobhai943/termux-ai-tool/providers/ai"
)

// NewTimeoutMiddleware creates a MiddlewareConfig that enforces a per-request
// deadline on both synchronous and streaming calls.
//
// For send requests the context is wrapped with context.WithTimeout and the
// cancel is deferred, covering the full call.
//
// For streaming requests the cancel function is NOT deferred immediately:
// it is called once the stream is fully consumed (final chunk), a mid-stream
// error occurs, or the iterator is abandoned. The timeout therefore governs
// the complete lifetime of the stream, not just the time to the first byte.
// A caller-supplied context with a shorter deadline wins as per normal
// context semantics.
func NewTimeoutMiddleware(timeout time.Duration) MiddlewareConfig {
	return MiddlewareConfig{
		Send: func(next SendFunc) SendFunc {
			return func(ctx context.Context, request ai.CompletionRequest, credential ai.Credential) (*ai.CompletionResult, error) {
				ctx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()

				return next(ctx, request, credential)
			}
		},
		Stream: func(next StreamFunc) StreamFunc {
			return func(ctx context.Context, request ai.CompletionRequest, credential ai.Credential) (*ai.ChunkStream, error) {
				ctx, cancel := context.WithTimeout(ctx, timeout)

				stream, err := next(ctx, request, credential)
				if err != nil {
					cancel()
					return nil, err
				}

				return wrapStreamWithCancel(stream, cancel), nil
			}
		},
	}
}

// wrapStreamWithCancel returns a ChunkStream whose iterator calls cancel once
// the stream finishes (final chunk), errors, or the caller breaks out of the
// range loop.
func wrapStreamWithCancel(stream *ai.ChunkStream, cancel context.CancelFunc) *ai.ChunkStream {
	return ai.NewChunkStream(func(yield func(ai.CompletionChunk, error) bool) {
		defer cancel()

		for chunk, err := range stream.Iter() {
			if !yield(chunk, err) {
				return
			}
			if err != nil || chunk.Final {
				return
			}
		}
	})
}
