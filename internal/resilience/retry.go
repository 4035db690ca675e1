// Package resilience provides the retry and circuit breaker policies used for upstream calls.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// RetryConfig configures exponential backoff retries.
type RetryConfig struct {
	MaxRetries  int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	JitterDelay time.Duration

	// ShouldRetry decides whether a failed attempt is retried. Nil retries every error except
	// context cancellation.
	ShouldRetry func(err error) bool
}

// DefaultRetryConfig retries twice with backoff between 500ms and 10s.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:  2,
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    10 * time.Second,
	JitterDelay: 250 * time.Millisecond,
}

// NewRetryPolicy builds a retry policy that returns the last failure once retries are
// exhausted, so callers see the real upstream error instead of a wrapper.
func NewRetryPolicy[R any](cfg RetryConfig) retrypolicy.RetryPolicy[R] {
	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = func(error) bool { return true }
	}

	builder := retrypolicy.NewBuilder[R]().
		HandleIf(func(_ R, err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return false
			}
			return shouldRetry(err)
		}).
		WithMaxRetries(cfg.MaxRetries).
		ReturnLastFailure()
	if cfg.BaseDelay > 0 {
		maxDelay := max(cfg.MaxDelay, cfg.BaseDelay)
		builder = builder.WithBackoff(cfg.BaseDelay, maxDelay)
	}
	if cfg.JitterDelay > 0 {
		builder = builder.WithJitter(cfg.JitterDelay)
	}
	return builder.Build()
}

// Executor runs a call under a retry policy and an optional circuit breaker. The breaker sees
// one outcome per call, after all retries.
type Executor[R any] struct {
	executor failsafe.Executor[R]
	breaker  *CircuitBreaker
}

// NewExecutor builds an executor. breaker may be nil.
func NewExecutor[R any](retryConfig RetryConfig, breaker *CircuitBreaker) *Executor[R] {
	return &Executor[R]{
		executor: failsafe.With(NewRetryPolicy[R](retryConfig)),
		breaker:  breaker,
	}
}

// Execute runs fn until it succeeds, retries are exhausted, or ctx is done.
func (e *Executor[R]) Execute(ctx context.Context, fn func() (R, error)) (R, error) {
	if e.breaker == nil {
		return e.executor.WithContext(ctx).Get(fn)
	}

	result, err := e.breaker.Execute(func() (any, error) {
		return e.executor.WithContext(ctx).Get(fn)
	})
	r, _ := result.(R)
	return r, err
}

// CircuitBreaker returns the executor's breaker, or nil.
func (e *Executor[R]) CircuitBreaker() *CircuitBreaker {
	return e.breaker
}
