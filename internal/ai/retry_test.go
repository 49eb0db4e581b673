package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(retry RetryConfig) *Client {
	c := &Client{retry: retry}
	if retry.CircuitBreakerEnabled {
		c.breaker = newCircuitBreaker(retry.FailureThreshold, retry.SuccessThreshold, retry.OpenTimeout)
	}
	return c
}

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        2,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
		Timeout:           time.Second,
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	c := testClient(fastRetryConfig())

	attempts := 0
	err := c.retryWithBackoff(context.Background(), "test", func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryExhaustionReturnsLastError(t *testing.T) {
	c := testClient(fastRetryConfig())

	attempts := 0
	wantErr := errors.New("persistent failure")
	err := c.retryWithBackoff(context.Background(), "test", func(ctx context.Context) error {
		attempts++
		return wantErr
	})

	require.ErrorIs(t, err, wantErr)
	assert.Equal(t, 3, attempts) // initial attempt + 2 retries
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	c := testClient(fastRetryConfig())

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := c.retryWithBackoff(ctx, "test", func(context.Context) error {
		attempts++
		cancel()
		return errors.New("fail")
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := newCircuitBreaker(3, 1, time.Minute)

	for i := 0; i < 3; i++ {
		require.NoError(t, cb.allow())
		cb.recordFailure()
	}

	assert.Equal(t, circuitOpen, cb.currentState())
	assert.ErrorIs(t, cb.allow(), ErrCircuitOpen)
}

func TestCircuitBreakerRecovers(t *testing.T) {
	cb := newCircuitBreaker(1, 1, 10*time.Millisecond)

	cb.recordFailure()
	require.Equal(t, circuitOpen, cb.currentState())

	time.Sleep(20 * time.Millisecond)

	// First allow after the open timeout moves the breaker to half-open.
	require.NoError(t, cb.allow())
	assert.Equal(t, circuitHalfOpen, cb.currentState())

	cb.recordSuccess()
	assert.Equal(t, circuitClosed, cb.currentState())
}

func TestCircuitBreakerReopensOnHalfOpenFailure(t *testing.T) {
	cb := newCircuitBreaker(1, 2, 10*time.Millisecond)

	cb.recordFailure()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, cb.allow())
	require.Equal(t, circuitHalfOpen, cb.currentState())

	cb.recordFailure()
	assert.Equal(t, circuitOpen, cb.currentState())
}

func TestRetryFailsFastWhenCircuitOpen(t *testing.T) {
	cfg := fastRetryConfig()
	cfg.CircuitBreakerEnabled = true
	cfg.FailureThreshold = 1
	cfg.SuccessThreshold = 1
	cfg.OpenTimeout = time.Minute
	c := testClient(cfg)

	c.breaker.recordFailure()
	require.Equal(t, circuitOpen, c.breaker.currentState())

	attempts := 0
	err := c.retryWithBackoff(context.Background(), "test", func(context.Context) error {
		attempts++
		return nil
	})

	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Zero(t, attempts)
}
