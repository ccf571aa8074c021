package manager

import (
	"context"
	"log/slog"
	"time"

	"github.com/subhobhai943/termux-ai-tool/providers/ai"
)

// NewLoggingMiddleware creates a MiddlewareConfig that emits structured slog
// entries before and after every provider call. For streams the completion
// entry is emitted once the iterator is fully consumed.
//
// The credential passed through the chain is never included in any log
// attribute; only the provider, model, timing and token counts appear.
func NewLoggingMiddleware(logger *slog.Logger) MiddlewareConfig {
	return MiddlewareConfig{
		Send: func(next SendFunc) SendFunc {
			return func(ctx context.Context, request ai.CompletionRequest, credential ai.Credential) (*ai.CompletionResult, error) {
				logger.DebugContext(ctx, "completion send",
					slog.String("provider", string(request.Provider)),
					slog.String("model", request.Model),
					slog.Int("messages", len(request.Messages)),
				)

				start := time.Now()
				result, err := next(ctx, request, credential)
				elapsed := time.Since(start)

				if err != nil {
					logger.ErrorContext(ctx, "completion failed",
						slog.String("provider", string(request.Provider)),
						slog.Duration("duration", elapsed),
						slog.String("error", err.Error()),
					)
					return nil, err
				}

				logger.DebugContext(ctx, "completion done",
					slog.String("provider", string(result.Provider)),
					slog.String("model", result.Model),
					slog.Duration("duration", elapsed),
					slog.String("finish_reason", string(result.FinishReason)),
					slog.Int("total_tokens", totalTokens(result.Usage)),
				)

				return result, nil
			}
		},
		Stream: func(next StreamFunc) StreamFunc {
			return func(ctx context.Context, request ai.CompletionRequest, credential ai.Credential) (*ai.ChunkStream, error) {
				logger.DebugContext(ctx, "completion stream start",
					slog.String("provider", string(request.Provider)),
					slog.String("model", request.Model),
				)

				start := time.Now()
				stream, err := next(ctx, request, credential)
				if err != nil {
					logger.ErrorContext(ctx, "completion stream failed",
						slog.String("provider", string(request.Provider)),
						slog.Duration("duration", time.Since(start)),
						slog.String("error", err.Error()),
					)
					return nil, err
				}

				return wrapStreamWithLogging(ctx, logger, request, stream, start), nil
			}
		},
	}
}

// wrapStreamWithLogging observes the chunk sequence and emits one completion
// entry when the stream ends, errors, or is abandoned.
func wrapStreamWithLogging(ctx context.Context, logger *slog.Logger, request ai.CompletionRequest, stream *ai.ChunkStream, start time.Time) *ai.ChunkStream {
	return ai.NewChunkStream(func(yield func(ai.CompletionChunk, error) bool) {
		chunks := 0
		var usage *ai.Usage

		defer func() {
			logger.DebugContext(ctx, "completion stream done",
				slog.String("provider", string(request.Provider)),
				slog.Duration("duration", time.Since(start)),
				slog.Int("chunks", chunks),
				slog.Int("total_tokens", totalTokens(usage)),
			)
		}()

		for chunk, err := range stream.Iter() {
			if err == nil {
				chunks++
				if chunk.Usage != nil {
					usage = chunk.Usage
				}
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

func totalTokens(usage *ai.Usage) int {
	if usage == nil {
		return 0
	}
	return usage.TotalTokens
}
