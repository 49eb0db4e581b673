package ai

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// RetryConfig holds retry and resilience settings for API calls.
type RetryConfig struct {
	MaxRetries        int           // maximum retries after the first attempt
	InitialBackoff    time.Duration // backoff before the first retry
	MaxBackoff        time.Duration // backoff ceiling
	BackoffMultiplier float64       // backoff growth factor
	Timeout           time.Duration // per-attempt timeout

	CircuitBreakerEnabled bool
	FailureThreshold      int           // consecutive failures before opening
	SuccessThreshold      int           // half-open successes before closing
	OpenTimeout           time.Duration // how long the circuit stays open

	MaxConcurrentCalls int // in-flight call cap, 0 = unlimited
}

// DefaultRetryConfig returns the settings used in production.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:            3,
		InitialBackoff:        1 * time.Second,
		MaxBackoff:            30 * time.Second,
		BackoffMultiplier:     2.0,
		Timeout:               120 * time.Second,
		CircuitBreakerEnabled: true,
		FailureThreshold:      5,
		SuccessThreshold:      2,
		OpenTimeout:           30 * time.Second,
		MaxConcurrentCalls:    3,
	}
}

// ErrCircuitOpen is returned when the circuit breaker is rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

func (s circuitState) String() string {
	switch s {
	case circuitClosed:
		return "CLOSED"
	case circuitOpen:
		return "OPEN"
	case circuitHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// circuitBreaker fails fast once the API has rejected enough consecutive
// calls, then probes for recovery after OpenTimeout.
type circuitBreaker struct {
	mu sync.Mutex

	state            circuitState
	failureCount     int
	successCount     int
	lastFailureTime  time.Time
	failureThreshold int
	successThreshold int
	openTimeout      time.Duration
}

func newCircuitBreaker(failureThreshold, successThreshold int, openTimeout time.Duration) *circuitBreaker {
	return &circuitBreaker{
		state:            circuitClosed,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		openTimeout:      openTimeout,
	}
}

// allow reports whether a request may proceed.
func (cb *circuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case circuitClosed:
		return nil
	case circuitOpen:
		if time.Since(cb.lastFailureTime) > cb.openTimeout {
			cb.transition(circuitHalfOpen)
			return nil
		}
		return ErrCircuitOpen
	case circuitHalfOpen:
		// Allow a single probe through.
		return nil
	default:
		return ErrCircuitOpen
	}
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case circuitClosed:
		cb.failureCount = 0
	case circuitHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.transition(circuitClosed)
		}
	}
}

func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailureTime = time.Now()

	switch cb.state {
	case circuitClosed:
		cb.failureCount++
		if cb.failureCount >= cb.failureThreshold {
			cb.transition(circuitOpen)
		}
	case circuitHalfOpen:
		// Any failure while probing reopens the circuit.
		cb.transition(circuitOpen)
	}
}

// currentState returns the state for tests and logging.
func (cb *circuitBreaker) currentState() circuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// transition must be called with the lock held.
func (cb *circuitBreaker) transition(next circuitState) {
	prev := cb.state
	cb.state = next
	switch next {
	case circuitClosed:
		cb.failureCount = 0
		cb.successCount = 0
	case circuitOpen, circuitHalfOpen:
		cb.successCount = 0
	}
	slog.Info("circuit breaker state transition", "from", prev.String(), "to", next.String(), "failures", cb.failureCount)
}

// retryWithBackoff executes fn with exponential backoff and per-attempt
// timeouts. The circuit breaker is consulted before each attempt.
func (c *Client) retryWithBackoff(ctx context.Context, operation string, fn func(context.Context) error) error {
	var lastErr error
	backoff := c.retry.InitialBackoff

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if c.breaker != nil {
			if err := c.breaker.allow(); err != nil {
				slog.Warn("call blocked by circuit breaker",
					"operation", operation,
					"state", c.breaker.currentState().String())
				return err
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.retry.Timeout)
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			if c.breaker != nil {
				c.breaker.recordSuccess()
			}
			return nil
		}

		lastErr = err
		if c.breaker != nil {
			c.breaker.recordFailure()
		}

		// The parent context ending is not worth retrying against.
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if attempt < c.retry.MaxRetries {
			slog.Warn("completion attempt failed, backing off",
				"operation", operation,
				"attempt", attempt+1,
				"backoff", backoff,
				"error", err)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}

			backoff = time.Duration(float64(backoff) * c.retry.BackoffMultiplier)
			if backoff > c.retry.MaxBackoff {
				backoff = c.retry.MaxBackoff
			}
		}
	}

	return lastErr
}
