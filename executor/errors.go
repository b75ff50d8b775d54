package executor

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for common conditions.
var (
	// ErrMalformedArgument indicates an argument has the wrong shape.
	ErrMalformedArgument = errors.New("malformed argument")

	// ErrLimitExceeded indicates an argument size or count limit was hit.
	ErrLimitExceeded = errors.New("argument limit exceeded")

	// ErrCommandNotAllowed indicates the subcommand is not allow-listed.
	ErrCommandNotAllowed = errors.New("command not in allowlist")

	// ErrFlagNotAllowed indicates a prohibited or unregistered flag.
	ErrFlagNotAllowed = errors.New("flag not allowed")

	// ErrRepositoryLocked indicates transient lock contention.
	ErrRepositoryLocked = errors.New("repository lock contention")

	// ErrExecutionFailed indicates a terminal execution failure.
	ErrExecutionFailed = errors.New("command execution failed")

	// ErrTimedOut indicates the process exceeded its time budget.
	ErrTimedOut = errors.New("command timed out")

	// ErrBudgetExceeded indicates the cumulative retry budget ran out.
	ErrBudgetExceeded = errors.New("retry budget exceeded")

	// ErrClientShutdown indicates the client has been shut down.
	ErrClientShutdown = errors.New("client shut down")
)

// ErrorCode provides structured error classification.
type ErrorCode string

const (
	// CodeInput indicates a malformed argument.
	CodeInput ErrorCode = "INPUT"

	// CodeValidation indicates a size or count limit violation.
	CodeValidation ErrorCode = "VALIDATION"

	// CodeCommandDenied indicates a subcommand outside the allow-list.
	CodeCommandDenied ErrorCode = "COMMAND_DENIED"

	// CodeFlagDenied indicates a blocked flag.
	CodeFlagDenied ErrorCode = "FLAG_DENIED"

	// CodeLocked indicates retryable lock contention.
	CodeLocked ErrorCode = "LOCKED"

	// CodeExecution indicates a terminal execution failure.
	CodeExecution ErrorCode = "EXECUTION_FAILED"

	// CodeBudget indicates a total-timeout violation.
	CodeBudget ErrorCode = "BUDGET_EXCEEDED"
)

// InputError reports an argument with the wrong shape or type.
type InputError struct {
	// Argument is the offending token, possibly truncated.
	Argument string

	// Reason describes what is wrong with it.
	Reason string
}

// Error implements error.
func (e *InputError) Error() string {
	return fmt.Sprintf("malformed argument %q: %s", e.Argument, e.Reason)
}

// Unwrap returns the sentinel cause.
func (e *InputError) Unwrap() error { return ErrMalformedArgument }

// Code returns the structured error code.
func (e *InputError) Code() ErrorCode { return CodeInput }

// ValidationError reports a size or count limit violation.
type ValidationError struct {
	// What names the limited quantity.
	What string

	// Limit is the configured ceiling.
	Limit int

	// Actual is the observed value.
	Actual int
}

// Error implements error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s exceeds limit: %d > %d", e.What, e.Actual, e.Limit)
}

// Unwrap returns the sentinel cause.
func (e *ValidationError) Unwrap() error { return ErrLimitExceeded }

// Code returns the structured error code.
func (e *ValidationError) Code() ErrorCode { return CodeValidation }

// CommandNotAllowedError reports a subcommand outside the allow-list.
type CommandNotAllowedError struct {
	// Command is the rejected subcommand.
	Command string
}

// Error implements error.
func (e *CommandNotAllowedError) Error() string {
	return fmt.Sprintf("subcommand %q is not in the allowed command set", e.Command)
}

// Unwrap returns the sentinel cause.
func (e *CommandNotAllowedError) Unwrap() error { return ErrCommandNotAllowed }

// Code returns the structured error code.
func (e *CommandNotAllowedError) Code() ErrorCode { return CodeCommandDenied }

// FlagNotAllowedError reports a blocked flag, with remediation text.
type FlagNotAllowedError struct {
	// Command is the subcommand being invoked, if identified.
	Command string

	// Flag is the rejected flag token.
	Flag string

	// Remediation explains what to do instead.
	Remediation string
}

// Error implements error.
func (e *FlagNotAllowedError) Error() string {
	if e.Remediation != "" {
		return fmt.Sprintf("flag %q is not allowed for %q: %s", e.Flag, e.Command, e.Remediation)
	}
	return fmt.Sprintf("flag %q is not allowed for %q", e.Flag, e.Command)
}

// Unwrap returns the sentinel cause.
func (e *FlagNotAllowedError) Unwrap() error { return ErrFlagNotAllowed }

// Code returns the structured error code.
func (e *FlagNotAllowedError) Code() ErrorCode { return CodeFlagDenied }

// CommandError is the terminal execution failure. It carries enough
// structured context to diagnose without re-running.
type CommandError struct {
	// Op is the subcommand that was executed.
	Op string

	// Args are the full sanitized arguments.
	Args []string

	// Stderr is the captured diagnostic output, size-bounded.
	Stderr string

	// ExitCode is the process exit code, -1 when killed.
	ExitCode int

	// CorrelationID ties the failure to one logical invocation.
	CorrelationID string

	// Latency is the elapsed time of the failing attempt.
	Latency time.Duration

	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *CommandError) Error() string {
	diag := strings.TrimSpace(e.Stderr)
	if idx := strings.IndexByte(diag, '\n'); idx >= 0 {
		diag = diag[:idx]
	}
	if diag != "" {
		return fmt.Sprintf("git %s: exit %d: %s", e.Op, e.ExitCode, diag)
	}
	if e.Err != nil {
		return fmt.Sprintf("git %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("git %s: exit %d", e.Op, e.ExitCode)
}

// Unwrap returns the underlying cause.
func (e *CommandError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrExecutionFailed
}

// Code returns the structured error code.
func (e *CommandError) Code() ErrorCode { return CodeExecution }

// LockedError is the retryable failure raised when a concurrent process
// holds an exclusive repository lock.
type LockedError struct {
	CommandError

	// Remediation explains how to clear persistent contention.
	Remediation string
}

// Error implements error.
func (e *LockedError) Error() string {
	return fmt.Sprintf("git %s: repository locked (exit %d): %s", e.Op, e.ExitCode, e.Remediation)
}

// Unwrap returns the sentinel cause.
func (e *LockedError) Unwrap() error { return ErrRepositoryLocked }

// Code returns the structured error code.
func (e *LockedError) Code() ErrorCode { return CodeLocked }

// BudgetError reports that the cumulative retry budget was exhausted.
type BudgetError struct {
	// Budget is the configured total budget.
	Budget time.Duration

	// Elapsed is the time consumed when the budget check fired,
	// including any backoff wait that would have been consumed next.
	Elapsed time.Duration

	// CorrelationID ties the failure to one logical invocation.
	CorrelationID string

	// Cause is the last classified failure before the budget ran out,
	// when one exists.
	Cause error
}

// Error implements error.
func (e *BudgetError) Error() string {
	return fmt.Sprintf("retry budget exceeded: %s needed, %s allowed", e.Elapsed, e.Budget)
}

// Unwrap returns the sentinel cause.
func (e *BudgetError) Unwrap() error { return ErrBudgetExceeded }

// Code returns the structured error code.
func (e *BudgetError) Code() ErrorCode { return CodeBudget }

// NewCommandError creates a terminal execution failure.
func NewCommandError(op string, args []string, stderr string, exitCode int, correlationID string, latency time.Duration) *CommandError {
	return &CommandError{
		Op:            op,
		Args:          args,
		Stderr:        stderr,
		ExitCode:      exitCode,
		CorrelationID: correlationID,
		Latency:       latency,
	}
}

// NewLockedError creates a retryable lock-contention failure.
func NewLockedError(op string, args []string, stderr string, exitCode int, correlationID string, latency time.Duration) *LockedError {
	return &LockedError{
		CommandError: CommandError{
			Op:            op,
			Args:          args,
			Stderr:        stderr,
			ExitCode:      exitCode,
			CorrelationID: correlationID,
			Latency:       latency,
		},
		Remediation: "another process holds the repository lock; retry after it completes or remove a stale index.lock",
	}
}

// WrapError wraps an unexpected error into a CommandError, preserving
// the original message and the invocation context.
func WrapError(op string, args []string, correlationID string, latency time.Duration, err error) *CommandError {
	return &CommandError{
		Op:            op,
		Args:          args,
		ExitCode:      -1,
		CorrelationID: correlationID,
		Latency:       latency,
		Err:           err,
	}
}

// IsRetryable reports whether a failure may be retried. Only lock
// contention qualifies.
func IsRetryable(err error) bool {
	var locked *LockedError
	return errors.As(err, &locked)
}
