package manager

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/subhobhai943/termux-ai-tool/providers/ai"
)

// ErrRetryExhausted is returned when all attempts have been consumed without
// a success. It wraps the last provider error, so callers can still use
// errors.Is / errors.As to inspect the root cause.
var ErrRetryExhausted = errors.New("all retry attempts exhausted")

// RetryConfig holds the tuning parameters for the retry middleware. Zero
// values are replaced with the defaults documented below.
type RetryConfig struct {
	// MaxAttempts is the total number of tries, the first call included.
	// Default: 3.
	MaxAttempts int

	// BaseDelay is the wait before the first retry. Default: 500ms.
	BaseDelay time.Duration

	// MaxDelay caps the computed backoff. Default: 30s.
	MaxDelay time.Duration

	// Factor is the exponential growth multiplier applied on successive
	// retries (delay = min(BaseDelay * Factor^attempt, MaxDelay)).
	// Default: 2.0.
	Factor float64

	// JitterFraction adds random noise in [0, JitterFraction*delay] to avoid
	// synchronized retries. Default: 0.1.
	JitterFraction float64
}

func (c *RetryConfig) applyDefaults() {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay == 0 {
		c.BaseDelay = 500 * time.Millisecond
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.Factor == 0 {
		c.Factor = 2.0
	}
	if c.JitterFraction == 0 {
		c.JitterFraction = 0.1
	}
}

// backoff returns the wait before retry number attempt (0-indexed). A
// vendor-supplied retry-after hint overrides the computed delay.
func (c RetryConfig) backoff(attempt int, hint time.Duration) time.Duration {
	if hint > 0 {
		if hint > c.MaxDelay {
			return c.MaxDelay
		}
		return hint
	}

	base := float64(c.BaseDelay) * math.Pow(c.Factor, float64(attempt))
	if base > float64(c.MaxDelay) {
		base = float64(c.MaxDelay)
	}

	jitter := base * c.JitterFraction * rand.Float64() //nolint:gosec // non-cryptographic jitter is intentional
	return time.Duration(base + jitter)
}

// retryable reports whether err is worth retrying: rate limiting and
// transient transport failures only. Context cancellation is never retried.
func retryable(err error) bool {
	var providerErr *ai.ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Retryable()
	}
	return false
}

// retryHint extracts a vendor retry-after hint from err, 0 when absent.
func retryHint(err error) time.Duration {
	var providerErr *ai.ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.RetryAfter
	}
	return 0
}

// NewRetryMiddleware constructs a MiddlewareConfig that retries failed
// requests with exponential backoff. A cancellation signal takes precedence
// over a pending backoff sleep. On exhaustion the last observed error is
// returned wrapped with ErrRetryExhausted, never replaced with a generic
// message.
//
// For streaming requests the retry only covers establishing the stream;
// mid-stream errors surface through the iterator and are not retried.
func NewRetryMiddleware(config RetryConfig) MiddlewareConfig {
	config.applyDefaults()

	return MiddlewareConfig{
		Send: func(next SendFunc) SendFunc {
			return func(ctx context.Context, request ai.CompletionRequest, credential ai.Credential) (*ai.CompletionResult, error) {
				var lastErr error

				for attempt := 0; attempt < config.MaxAttempts; attempt++ {
					if attempt > 0 {
						if err := sleepBackoff(ctx, config.backoff(attempt-1, retryHint(lastErr))); err != nil {
							return nil, err
						}
					}

					result, err := next(ctx, request, credential)
					if err == nil {
						return result, nil
					}
					lastErr = err

					if !retryable(err) {
						return nil, err
					}
				}

				return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, config.MaxAttempts, lastErr)
			}
		},
		Stream: func(next StreamFunc) StreamFunc {
			return func(ctx context.Context, request ai.CompletionRequest, credential ai.Credential) (*ai.ChunkStream, error) {
				var lastErr error

				for attempt := 0; attempt < config.MaxAttempts; attempt++ {
					if attempt > 0 {
						if err := sleepBackoff(ctx, config.backoff(attempt-1, retryHint(lastErr))); err != nil {
							return nil, err
						}
					}

					stream, err := next(ctx, request, credential)
					if err == nil {
						return stream, nil
					}
					lastErr = err

					if !retryable(err) {
						return nil, err
					}
				}

				return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, config.MaxAttempts, lastErr)
			}
		},
	}
}

// sleepBackoff waits for the given delay, returning early with the context
// error when the caller cancels.
func sleepBackoff(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
