package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"golang.org/x/time/rate"

	"github.com/Epistemic-Technology/rfp-mcp/internal/logger"
)

const (
	// Self-hosted OpenAI-compatible endpoints are far slower than the hosted API.
	// 5k tokens/sec sustained keeps a single AnythingLLM instance responsive.
	defaultTokensPerSecond = 5000
	// Burst allows one full filtered RFP prompt through at once
	defaultBurstTokens = 60000

	// Worker pool size for drawing-page vision calls
	defaultMaxWorkers = 2

	// Rough chars-per-token ratio used to size limiter reservations
	charsPerToken = 4

	// Retry configuration
	defaultMaxRetries = 5
	baseRetryDelay    = 1 * time.Second
	maxRetryDelay     = 32 * time.Second
)

// Limiter is a token-bucket limiter with retry policy for LLM calls. A zero
// Limiter is not usable; use NewLimiter.
type Limiter struct {
	limiter    *rate.Limiter
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// NewLimiter builds a limiter. Non-positive arguments fall back to defaults.
func NewLimiter(tokensPerSecond, burst, maxRetries int) *Limiter {
	if tokensPerSecond <= 0 {
		tokensPerSecond = defaultTokensPerSecond
	}
	if burst <= 0 {
		burst = defaultBurstTokens
	}
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}
	return &Limiter{
		limiter:    rate.NewLimiter(rate.Limit(tokensPerSecond), burst),
		maxRetries: maxRetries,
		baseDelay:  baseRetryDelay,
		maxDelay:   maxRetryDelay,
	}
}

// EstimateTokens sizes a limiter reservation from prompt length.
func EstimateTokens(parts ...string) int {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	return n/charsPerToken + 1
}

// RateLimitedCall wraps an API call with rate limiting and retry logic.
// It waits for rate limiter approval before making the call, and retries on 429 errors.
func RateLimitedCall[T any](ctx context.Context, l *Limiter, estimatedTokens int, log logger.Logger, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	// reservations larger than the bucket would never be granted
	tokens := min(estimatedTokens, l.limiter.Burst())
	if err := l.limiter.WaitN(ctx, tokens); err != nil {
		return zero, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= l.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(l.baseDelay) * math.Pow(2, float64(attempt-1)))
			if delay > l.maxDelay {
				delay = l.maxDelay
			}

			log.Info("Retry attempt %d/%d after %v delay", attempt, l.maxRetries, delay)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}

		result, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				log.Info("Retry succeeded on attempt %d", attempt)
			}
			return result, nil
		}

		lastErr = err

		if !isRateLimitError(err) {
			return zero, err
		}

		log.Warn("Rate limit error (429) on attempt %d/%d: %v", attempt+1, l.maxRetries+1, err)
	}

	return zero, fmt.Errorf("max retries (%d) exceeded, last error: %w", l.maxRetries, lastErr)
}

// isRateLimitError checks for a 429 from the API client, or a message that
// says the same thing when a proxy rewrites the status.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == 429 {
		return true
	}
	msg := err.Error()
	for _, s := range []string{"429", "rate limit", "rate_limit_exceeded", "Too Many Requests"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// WorkerPool manages a pool of workers for parallel processing with rate limiting
type WorkerPool struct {
	maxWorkers int
	semaphore  chan struct{}
}

// NewWorkerPool creates a new worker pool with the specified maximum workers
func NewWorkerPool(maxWorkers int) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = defaultMaxWorkers
	}
	return &WorkerPool{
		maxWorkers: maxWorkers,
		semaphore:  make(chan struct{}, maxWorkers),
	}
}

// Acquire acquires a worker slot, blocking if all workers are busy
func (wp *WorkerPool) Acquire(ctx context.Context) error {
	select {
	case wp.semaphore <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release releases a worker slot, allowing another worker to proceed
func (wp *WorkerPool) Release() {
	<-wp.semaphore
}

// ParallelProcess runs processFn over items with at most maxWorkers in
// flight. Results keep item order; the first error wins.
func ParallelProcess[T any, R any](
	ctx context.Context,
	items []T,
	maxWorkers int,
	processFn func(context.Context, int, T) (R, error),
) ([]R, error) {
	if len(items) == 0 {
		return []R{}, nil
	}

	wp := NewWorkerPool(maxWorkers)
	results := make([]R, len(items))

	type result struct {
		index int
		value R
		err   error
	}
	resultChan := make(chan result, len(items))

	started := 0
	for i, item := range items {
		if err := wp.Acquire(ctx); err != nil {
			break
		}
		started++

		go func(idx int, itm T) {
			defer wp.Release()

			select {
			case <-ctx.Done():
				var zero R
				resultChan <- result{index: idx, value: zero, err: ctx.Err()}
				return
			default:
			}

			val, err := processFn(ctx, idx, itm)
			resultChan <- result{index: idx, value: val, err: err}
		}(i, item)
	}

	var firstError error
	for range started {
		res := <-resultChan
		if res.err != nil && firstError == nil {
			firstError = res.err
		}
		results[res.index] = res.value
	}
	if started < len(items) && firstError == nil {
		firstError = ctx.Err()
	}

	if firstError != nil {
		return nil, firstError
	}

	return results, nil
}
