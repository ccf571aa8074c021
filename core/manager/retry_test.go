package manager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/subhobhai943/termux-ai-tool/providers/ai"
)

// TestBackoff verifies exponential growth, the cap, and hint precedence.
func TestBackoff_GrowthCapAndHint(t *testing.T) {
	config := RetryConfig{
		BaseDelay:      100 * time.Millisecond,
		MaxDelay:       time.Second,
		Factor:         2.0,
		JitterFraction: 0.1,
	}

	within := func(got, base time.Duration) bool {
		return got >= base && got <= base+base/10
	}

	if got := config.backoff(0, 0); !within(got, 100*time.Millisecond) {
		t.Errorf("attempt 0: expected ~100ms, got %v", got)
	}
	if got := config.backoff(1, 0); !within(got, 200*time.Millisecond) {
		t.Errorf("attempt 1: expected ~200ms, got %v", got)
	}
	if got := config.backoff(2, 0); !within(got, 400*time.Millisecond) {
		t.Errorf("attempt 2: expected ~400ms, got %v", got)
	}

	// Deep attempts hit the cap (plus jitter).
	if got := config.backoff(10, 0); got < time.Second || got > time.Second+100*time.Millisecond {
		t.Errorf("attempt 10: expected capped delay, got %v", got)
	}

	// A vendor hint overrides the computed delay.
	if got := config.backoff(0, 700*time.Millisecond); got != 700*time.Millisecond {
		t.Errorf("expected hint to win, got %v", got)
	}

	// Hints above the cap are clamped.
	if got := config.backoff(0, time.Minute); got != time.Second {
		t.Errorf("expected clamped hint, got %v", got)
	}
}

// TestRetryable verifies only typed retryable failures qualify.
func TestRetryable_Classification(t *testing.T) {
	if !retryable(ai.NewProviderError(ai.KindRateLimited, ai.ProviderOpenAI, "slow down")) {
		t.Error("expected rate limit to be retryable")
	}
	if !retryable(ai.NewProviderError(ai.KindTransientTransport, ai.ProviderOpenAI, "reset")) {
		t.Error("expected transient failure to be retryable")
	}
	if retryable(ai.NewProviderError(ai.KindAuthenticationFailed, ai.ProviderOpenAI, "bad key")) {
		t.Error("did not expect auth failure to be retryable")
	}
	if retryable(context.Canceled) {
		t.Error("did not expect cancellation to be retryable")
	}
	if retryable(errors.New("untyped")) {
		t.Error("did not expect untyped errors to be retryable")
	}
}

// TestRetryMiddleware_SendRetriesUntilSuccess exercises the chain directly.
func TestRetryMiddleware_SendRetriesUntilSuccess(t *testing.T) {
	attempts := 0
	base := func(ctx context.Context, request ai.CompletionRequest, credential ai.Credential) (*ai.CompletionResult, error) {
		attempts++
		if attempts < 3 {
			return nil, ai.NewProviderError(ai.KindTransientTransport, ai.ProviderOpenAI, "flaky")
		}
		return &ai.CompletionResult{Text: "done"}, nil
	}

	send := NewRetryMiddleware(fastRetry).Send(base)
	result, err := send(context.Background(), ai.CompletionRequest{}, "")
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if result.Text != "done" || attempts != 3 {
		t.Errorf("result=%+v attempts=%d", result, attempts)
	}
}

// TestRetryMiddleware_NonRetryableStopsImmediately verifies fail-fast kinds
// short-circuit the loop.
func TestRetryMiddleware_NonRetryableStopsImmediately(t *testing.T) {
	attempts := 0
	base := func(ctx context.Context, request ai.CompletionRequest, credential ai.Credential) (*ai.CompletionResult, error) {
		attempts++
		return nil, ai.NewProviderError(ai.KindInvalidRequest, ai.ProviderOpenAI, "bad shape")
	}

	send := NewRetryMiddleware(fastRetry).Send(base)
	_, err := send(context.Background(), ai.CompletionRequest{}, "")
	if !errors.Is(err, ai.ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
	if errors.Is(err, ErrRetryExhausted) {
		t.Error("non-retryable failure must not be wrapped as exhaustion")
	}
	if attempts != 1 {
		t.Errorf("expected a single attempt, got %d", attempts)
	}
}

// TestRetryMiddleware_CancellationBeatsBackoff verifies a cancelled context
// interrupts a pending sleep instead of waiting it out.
func TestRetryMiddleware_CancellationBeatsBackoff(t *testing.T) {
	base := func(ctx context.Context, request ai.CompletionRequest, credential ai.Credential) (*ai.CompletionResult, error) {
		return nil, ai.NewProviderError(ai.KindTransientTransport, ai.ProviderOpenAI, "flaky")
	}

	slow := RetryConfig{MaxAttempts: 3, BaseDelay: time.Hour, MaxDelay: time.Hour}
	send := NewRetryMiddleware(slow).Send(base)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := send(ctx, ai.CompletionRequest{}, "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancellation took %v, expected prompt return", elapsed)
	}
}

// TestRetryMiddleware_StreamEstablishmentRetried verifies the stream chain
// retries failed establishment the same way.
func TestRetryMiddleware_StreamEstablishmentRetried(t *testing.T) {
	attempts := 0
	base := func(ctx context.Context, request ai.CompletionRequest, credential ai.Credential) (*ai.ChunkStream, error) {
		attempts++
		if attempts < 2 {
			return nil, ai.NewProviderError(ai.KindTransientTransport, ai.ProviderOpenAI, "flaky")
		}
		return ai.NewChunkStream(func(yield func(ai.CompletionChunk, error) bool) {
			yield(ai.CompletionChunk{Text: "x", Final: true}, nil)
		}), nil
	}

	stream := NewRetryMiddleware(fastRetry).Stream(base)
	result, err := stream(context.Background(), ai.CompletionRequest{}, "")
	if err != nil {
		t.Fatalf("expected established stream, got %v", err)
	}
	collected, err := result.Collect()
	if err != nil || collected.Text != "x" {
		t.Errorf("collected=%+v err=%v", collected, err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 establishment attempts, got %d", attempts)
	}
}
