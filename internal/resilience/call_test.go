package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCall_PerAttemptTimeout(t *testing.T) {
	p := Policy{Timeout: 10 * time.Millisecond, Retry: RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond}}
	_, stats, err := Call(context.Background(), nil, p, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, stats.Attempts)
}

func TestCall_OpenCircuitNotCounted(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour})
	p := Policy{Retry: RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond}}

	_, stats, err := Call(context.Background(), cb, p, func(_ context.Context) (int, error) {
		return 0, NewTransientError(errors.New("503"), 503)
	})
	require.Error(t, err)
	// First attempt fails and opens the circuit; the retry is rejected.
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 1, stats.Attempts)

	_, stats, err = Call(context.Background(), cb, p, func(_ context.Context) (int, error) {
		t.Error("must not be called")
		return 0, nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Zero(t, stats.Attempts)
}

func TestCall_Success(t *testing.T) {
	v, stats, err := Call(context.Background(), NewCircuitBreaker(DefaultCircuitBreakerConfig()), Policy{Timeout: time.Second},
		func(_ context.Context) (string, error) { return "75002", nil })
	require.NoError(t, err)
	assert.Equal(t, "75002", v)
	assert.Equal(t, 1, stats.Attempts)
}
