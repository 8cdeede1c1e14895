package resilience

import (
	"context"
	"errors"
	"time"
)

// Policy is the full guard applied to one registry call.
type Policy struct {
	Timeout time.Duration
	Retry   RetryConfig
}

// Stats describes how a guarded call went.
type Stats struct {
	Attempts int
	Duration time.Duration
}

// Call runs fn through cb with retries, giving each attempt its own timeout.
// A nil cb disables the breaker. Attempts rejected by an open circuit are
// not counted.
func Call[T any](ctx context.Context, cb *CircuitBreaker, p Policy, fn func(ctx context.Context) (T, error)) (T, Stats, error) {
	start := time.Now()
	attempt := func(ctx context.Context) (T, error) {
		if p.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.Timeout)
			defer cancel()
		}
		if cb == nil {
			return fn(ctx)
		}
		return ExecuteVal(ctx, cb, fn)
	}

	retry := p.Retry
	if retry.ShouldRetry == nil {
		retry.ShouldRetry = func(err error) bool {
			return !errors.Is(err, ErrCircuitOpen) && IsTransient(err)
		}
	}
	v, n, err := doCounted(ctx, retry, attempt)
	if errors.Is(err, ErrCircuitOpen) && n > 0 {
		n--
	}
	return v, Stats{Attempts: n, Duration: time.Since(start)}, err
}
