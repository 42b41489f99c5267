package interpreter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// retryConfig bounds the API call retry loop.
type retryConfig struct {
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	multiplier     float64
	attemptTimeout time.Duration
}

func defaultRetryConfig() retryConfig {
	return retryConfig{
		maxRetries:     3,
		initialBackoff: time.Second,
		maxBackoff:     30 * time.Second,
		multiplier:     2.0,
		attemptTimeout: 60 * time.Second,
	}
}

// Circuit breaker defaults: trip after five consecutive retriable failures,
// probe recovery after a minute, close again after two probe successes.
const (
	breakerFailureThreshold = 5
	breakerSuccessThreshold = 2
	breakerOpenTimeout      = time.Minute
)

// BreakerState is the circuit breaker's lifecycle state.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "CLOSED"
	case BreakerOpen:
		return "OPEN"
	case BreakerHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// ErrCircuitOpen fails calls fast while the upstream API is misbehaving.
var ErrCircuitOpen = errors.New("interpreter circuit breaker is open")

// CircuitBreaker trips open after consecutive retriable failures and lets a
// probe request through once the open timeout has elapsed.
type CircuitBreaker struct {
	mu sync.Mutex

	state            BreakerState
	failures         int
	successes        int
	lastFailure      time.Time
	failureThreshold int
	successThreshold int
	openTimeout      time.Duration
}

func NewCircuitBreaker(failureThreshold, successThreshold int, openTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:            BreakerClosed,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		openTimeout:      openTimeout,
	}
}

// Allow reports whether a request may proceed. An open circuit past its
// timeout moves to half-open and lets the request through as a probe.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed, BreakerHalfOpen:
		return nil
	case BreakerOpen:
		if time.Since(cb.lastFailure) > cb.openTimeout {
			cb.setState(BreakerHalfOpen)
			return nil
		}
		return ErrCircuitOpen
	default:
		return ErrCircuitOpen
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed:
		cb.failures = 0
	case BreakerHalfOpen:
		cb.successes++
		if cb.successes >= cb.successThreshold {
			cb.setState(BreakerClosed)
			cb.failures = 0
		}
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailure = time.Now()

	switch cb.state {
	case BreakerClosed:
		cb.failures++
		if cb.failures >= cb.failureThreshold {
			cb.setState(BreakerOpen)
		}
	case BreakerHalfOpen:
		// Any failure during a probe reopens immediately.
		cb.setState(BreakerOpen)
	}
}

func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// setState must be called with the lock held.
func (cb *CircuitBreaker) setState(next BreakerState) {
	if cb.state == next {
		return
	}
	slog.Info("interpreter circuit state change",
		"from", cb.state.String(), "to", next.String(), "failures", cb.failures)
	cb.state = next
	cb.successes = 0
}

// retryWithBackoff runs fn with exponential backoff. Non-retriable errors
// return immediately and do not count against the circuit breaker.
func (c *Client) retryWithBackoff(ctx context.Context, operation string, fn func(context.Context) error) error {
	var lastErr error
	backoff := c.retry.initialBackoff

	for attempt := 0; attempt <= c.retry.maxRetries; attempt++ {
		if err := c.breaker.Allow(); err != nil {
			return fmt.Errorf("%s: %w", operation, err)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.retry.attemptTimeout)
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			c.breaker.RecordSuccess()
			if attempt > 0 {
				slog.Info("interpreter call recovered", "operation", operation, "retries", attempt)
			}
			return nil
		}
		lastErr = err

		if !isRetriable(err) {
			return err
		}
		c.breaker.RecordFailure()

		if attempt == c.retry.maxRetries {
			break
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", operation, ctx.Err())
		}

		slog.Warn("interpreter call failed, backing off",
			"operation", operation, "attempt", attempt+1, "backoff", backoff, "error", err)

		select {
		case <-time.After(backoff):
			backoff = time.Duration(float64(backoff) * c.retry.multiplier)
			if backoff > c.retry.maxBackoff {
				backoff = c.retry.maxBackoff
			}
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", operation, ctx.Err())
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, c.retry.maxRetries+1, lastErr)
}

// isRetriable classifies transient API failures. Client-side mistakes (4xx
// other than rate limits) never retry.
func isRetriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "429"), strings.Contains(msg, "rate limit"):
		return true
	case strings.Contains(msg, "529"), strings.Contains(msg, "overloaded"):
		return true
	case strings.Contains(msg, "500"), strings.Contains(msg, "502"),
		strings.Contains(msg, "503"), strings.Contains(msg, "504"),
		strings.Contains(msg, "internal server error"),
		strings.Contains(msg, "bad gateway"),
		strings.Contains(msg, "service unavailable"):
		return true
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "network"):
		return true
	}
	return false
}
