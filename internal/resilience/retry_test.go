package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

var errTemporary = errors.New("temporary")

func TestExecutorRetriesUntilSuccess(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	executor := NewExecutor[string](cfg, nil)

	attempts := 0
	got, err := executor.Execute(context.Background(), func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", errTemporary
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("got %q, want %q", got, "ok")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestExecutorReturnsLastFailure(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	executor := NewExecutor[int](cfg, nil)

	attempts := 0
	_, err := executor.Execute(context.Background(), func() (int, error) {
		attempts++
		return 0, errTemporary
	})
	if !errors.Is(err, errTemporary) {
		t.Errorf("expected last failure to be returned, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3 (1 + 2 retries)", attempts)
	}
}

func TestExecutorSkipsNonRetryableErrors(t *testing.T) {
	errPermanent := errors.New("permanent")
	cfg := RetryConfig{
		MaxRetries:  5,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
		ShouldRetry: func(err error) bool { return !errors.Is(err, errPermanent) },
	}
	executor := NewExecutor[int](cfg, nil)

	attempts := 0
	_, err := executor.Execute(context.Background(), func() (int, error) {
		attempts++
		return 0, errPermanent
	})
	if !errors.Is(err, errPermanent) {
		t.Errorf("got %v, want errPermanent", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	stateChanges := make([]gobreaker.State, 0)
	cfg := DefaultBreakerConfig("test")
	cfg.FailureThreshold = 3
	cfg.OnStateChange = func(_ string, _, to gobreaker.State) {
		stateChanges = append(stateChanges, to)
	}

	breaker := NewCircuitBreaker(cfg)

	for range 3 {
		_, _ = breaker.Execute(func() (any, error) { return nil, errors.New("fail") })
	}

	if breaker.State() != gobreaker.StateOpen {
		t.Errorf("expected StateOpen, got %v", breaker.State())
	}
	if len(stateChanges) == 0 || stateChanges[len(stateChanges)-1] != gobreaker.StateOpen {
		t.Errorf("expected state change to Open, got %v", stateChanges)
	}

	_, err := breaker.Execute(func() (any, error) { return "unreachable", nil })
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected ErrOpenState while open, got %v", err)
	}
}

func TestCircuitBreakerIgnoresSuccessfulErrors(t *testing.T) {
	errClient := errors.New("bad request")
	cfg := DefaultBreakerConfig("test-client-errors")
	cfg.FailureThreshold = 2
	cfg.IsSuccessful = func(err error) bool { return err == nil || errors.Is(err, errClient) }

	breaker := NewCircuitBreaker(cfg)
	for range 5 {
		_, _ = breaker.Execute(func() (any, error) { return nil, errClient })
	}

	if breaker.State() != gobreaker.StateClosed {
		t.Errorf("client errors must not trip the breaker, state = %v", breaker.State())
	}
}

func TestExecutorWithBreaker(t *testing.T) {
	cfg := DefaultBreakerConfig("test-executor")
	cfg.FailureThreshold = 1
	breaker := NewCircuitBreaker(cfg)
	executor := NewExecutor[int](RetryConfig{MaxRetries: 0}, breaker)

	_, err := executor.Execute(context.Background(), func() (int, error) { return 0, errTemporary })
	if !errors.Is(err, errTemporary) {
		t.Fatalf("first call: got %v, want errTemporary", err)
	}

	calls := 0
	_, err = executor.Execute(context.Background(), func() (int, error) {
		calls++
		return 1, nil
	})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("second call: got %v, want ErrOpenState", err)
	}
	if calls != 0 {
		t.Errorf("open breaker must not run the call, ran %d times", calls)
	}
	if executor.CircuitBreaker() != breaker {
		t.Error("CircuitBreaker() should return the configured breaker")
	}
}
