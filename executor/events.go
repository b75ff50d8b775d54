package executor

import (
	"time"

	"github.com/victoralfred/gitsafe/runtime"
)

// EventObserver receives lifecycle notifications for command execution.
// Implementations must be safe for concurrent use; audit trails and
// metrics collectors hang off this interface.
type EventObserver interface {
	// InvocationStarted notifies observers that a logical invocation is
	// beginning.
	InvocationStarted(op string, args []string, correlationID string)

	// AttemptCompleted reports one finished attempt, successful or not.
	AttemptCompleted(op string, correlationID string, attempt int, outcome runtime.ExitOutcome)

	// InvocationCompleted reports the final result of the invocation.
	InvocationCompleted(op string, correlationID string, err error, latency time.Duration)
}

// noopObserver discards all events.
type noopObserver struct{}

// InvocationStarted implements EventObserver.
func (noopObserver) InvocationStarted(string, []string, string) {}

// AttemptCompleted implements EventObserver.
func (noopObserver) AttemptCompleted(string, string, int, runtime.ExitOutcome) {}

// InvocationCompleted implements EventObserver.
func (noopObserver) InvocationCompleted(string, string, error, time.Duration) {}
