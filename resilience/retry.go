// Package resilience provides retry and rate-limiting primitives for
// command execution.
package resilience

import (
	"fmt"
	"math"
	"time"
)

// RetryPolicy configures bounded retry of transient failures.
// A policy is pure configuration: it owns no clock and performs no I/O.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Must be at least 1.
	MaxAttempts int

	// InitialDelay is the base delay used to compute backoff waits.
	InitialDelay time.Duration

	// BackoffFactor is the multiplier applied per attempt. Values <= 0
	// are treated as 1 (constant delay).
	BackoffFactor float64

	// TotalBudget bounds the cumulative elapsed time across all attempts,
	// including backoff waits. Zero disables the budget.
	TotalBudget time.Duration
}

// DefaultRetryPolicy returns the policy applied when a caller does not
// override it: a small number of attempts with doubling backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   3,
		InitialDelay:  50 * time.Millisecond,
		BackoffFactor: 2.0,
		TotalBudget:   10 * time.Second,
	}
}

// NoRetry returns a single-attempt policy.
func NoRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

// Delay returns the wait consumed before the given attempt (1-based).
// The first attempt never waits; attempt n waits
// BackoffFactor^(n-1) * InitialDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	factor := p.BackoffFactor
	if factor <= 0 {
		factor = 1
	}
	return time.Duration(math.Pow(factor, float64(attempt-1)) * float64(p.InitialDelay))
}

// Validate checks the policy for usable values.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry policy: max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.InitialDelay < 0 {
		return fmt.Errorf("retry policy: initial delay must not be negative")
	}
	if p.TotalBudget < 0 {
		return fmt.Errorf("retry policy: total budget must not be negative")
	}
	return nil
}
