package manager

import (
	"context"

	"github.com/subhobhai943/termux-ai-tool/providers/ai"
)

// SendFunc is a function that executes one non-streaming completion request.
// It is the base unit threaded through the send middleware chain.
type SendFunc func(ctx context.Context, request ai.CompletionRequest, credential ai.Credential) (*ai.CompletionResult, error)

// StreamFunc is a function that establishes one streaming completion request
// and returns its chunk sequence. It is the base unit threaded through the
// stream middleware chain.
type StreamFunc func(ctx context.Context, request ai.CompletionRequest, credential ai.Credential) (*ai.ChunkStream, error)

// Middleware intercepts and optionally transforms send requests. Each
// Middleware receives the next SendFunc in the chain and returns a new
// SendFunc that wraps it. Middlewares are applied outermost-first: the first
// entry in the slice is the outermost wrapper.
type Middleware func(next SendFunc) SendFunc

// StreamMiddleware is the streaming counterpart of Middleware. It may wrap
// the returned ChunkStream to observe the chunk sequence. A nil value in a
// MiddlewareConfig means streaming calls skip that entry.
type StreamMiddleware func(next StreamFunc) StreamFunc

// MiddlewareConfig pairs a send middleware with its optional streaming
// counterpart.
type MiddlewareConfig struct {
	Send   Middleware
	Stream StreamMiddleware
}

// buildSendChain constructs the linear send chain. Middlewares are applied
// in reverse so that the first entry in the slice is the outermost wrapper,
// i.e. the first to execute on an incoming request.
func buildSendChain(base SendFunc, middlewares []MiddlewareConfig) SendFunc {
	chain := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i].Send != nil {
			chain = middlewares[i].Send(chain)
		}
	}
	return chain
}

// buildStreamChain constructs the linear stream chain, skipping entries with
// a nil Stream field.
func buildStreamChain(base StreamFunc, middlewares []MiddlewareConfig) StreamFunc {
	chain := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i].Stream != nil {
			chain = middlewares[i].Stream(chain)
		}
	}
	return chain
}
