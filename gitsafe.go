package gitsafe

import (
	"context"

	"go.uber.org/zap"

	"github.com/victoralfred/gitsafe/config"
	"github.com/victoralfred/gitsafe/executor"
	"github.com/victoralfred/gitsafe/observability"
	"github.com/victoralfred/gitsafe/policy"
	"github.com/victoralfred/gitsafe/resilience"
	"github.com/victoralfred/gitsafe/runtime"
	"github.com/victoralfred/gitsafe/validation"
)

// =============================================================================
// Core Types
// =============================================================================

// Client is the primary interface for command execution. All git
// invocation MUST go through this interface so the security controls
// are applied consistently.
type Client = executor.Client

// Invocation represents one request to run git.
type Invocation = executor.Invocation

// InvocationBuilder creates invocations with a fluent interface.
type InvocationBuilder = executor.InvocationBuilder

// StatusResult is the outcome of ExecuteWithStatus.
type StatusResult = executor.StatusResult

// StreamResult is the outcome of ExecuteStream.
type StreamResult = executor.StreamResult

// Builder creates configured Client instances.
type Builder = executor.Builder

// RetryPolicy configures bounded retry of transient failures.
type RetryPolicy = resilience.RetryPolicy

// CommandSet is the mutable subcommand allow-list.
type CommandSet = validation.CommandSet

// Sanitizer validates argument sequences before anything runs.
type Sanitizer = validation.Sanitizer

// =============================================================================
// Error Types
// =============================================================================

// Typed failures surfaced by the library.
type (
	// InputError reports a malformed argument.
	InputError = executor.InputError

	// ValidationError reports a size or count limit violation.
	ValidationError = executor.ValidationError

	// CommandNotAllowedError reports a subcommand outside the allow-list.
	CommandNotAllowedError = executor.CommandNotAllowedError

	// FlagNotAllowedError reports a blocked flag.
	FlagNotAllowedError = executor.FlagNotAllowedError

	// LockedError reports retryable repository lock contention.
	LockedError = executor.LockedError

	// CommandError reports a terminal execution failure.
	CommandError = executor.CommandError

	// BudgetError reports an exhausted retry budget.
	BudgetError = executor.BudgetError
)

// Sentinel errors re-exported for errors.Is checks.
var (
	ErrMalformedArgument = executor.ErrMalformedArgument
	ErrLimitExceeded     = executor.ErrLimitExceeded
	ErrCommandNotAllowed = executor.ErrCommandNotAllowed
	ErrFlagNotAllowed    = executor.ErrFlagNotAllowed
	ErrRepositoryLocked  = executor.ErrRepositoryLocked
	ErrExecutionFailed   = executor.ErrExecutionFailed
	ErrTimedOut          = executor.ErrTimedOut
	ErrBudgetExceeded    = executor.ErrBudgetExceeded
	ErrClientShutdown    = executor.ErrClientShutdown
)

// IsRetryable reports whether a failure may be retried.
func IsRetryable(err error) bool {
	return executor.IsRetryable(err)
}

// =============================================================================
// Factory Functions
// =============================================================================

// New creates a Client with default settings: the local adapter, the
// default command set, and the default retry policy.
func New() (Client, error) {
	return FromConfig(config.DefaultConfig(), nil)
}

// NewBuilder creates a client builder pre-wired with the default
// sanitizer and environment policy. Advanced callers can swap any
// component before Build.
func NewBuilder() *Builder {
	return executor.NewBuilder().
		WithSanitizer(validation.NewSanitizer(nil, nil)).
		WithEnvironmentPolicy(EnvironmentPolicy())
}

// FromConfig creates a Client from a configuration. A nil logger
// disables logging.
func FromConfig(cfg config.Config, logger *zap.Logger) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := runtime.NewRegistry()
	adapter, err := registry.Lookup(cfg.Runtime)
	if err != nil {
		return nil, err
	}

	commands := validation.DefaultCommandSet()
	sanitizerConfig := cfg.Sanitizer
	if cfg.PolicyFile != "" {
		loader, err := policy.NewLoader(cfg.PolicyBasePath, cfg.PolicyFile)
		if err != nil {
			return nil, err
		}
		compiled, err := loader.Load(context.Background())
		if err != nil {
			return nil, err
		}
		commands = compiled.Commands()
		clone := *sanitizerConfig
		clone.RestrictedFlags = compiled.RestrictedFlags()
		sanitizerConfig = &clone
	}

	builder := executor.NewBuilder().
		WithBinary(cfg.Binary).
		WithAdapter(adapter).
		WithSanitizer(validation.NewSanitizer(commands, sanitizerConfig)).
		WithEnvironmentPolicy(EnvironmentPolicy()).
		WithRetryPolicy(cfg.Retry).
		WithDefaultTimeout(cfg.DefaultTimeout).
		WithOutputLimit(cfg.OutputLimit).
		WithStderrLimit(cfg.StderrLimit).
		WithLogger(logger)

	if cfg.EnableRateLimit {
		builder.WithRateLimiter(resilience.NewRateLimiter(cfg.RateLimiter))
	}
	if cfg.EnableTelemetry {
		telemetry, err := observability.NewTelemetry(cfg.Telemetry)
		if err != nil {
			return nil, err
		}
		builder.WithTelemetry(telemetry)
	}
	if cfg.EnableAudit {
		builder.WithObserver(observability.NewAuditObserver(logger, cfg.Audit))
	}

	return builder.Build()
}

// =============================================================================
// Invocation Construction
// =============================================================================

// Cmd creates a new InvocationBuilder for the argument sequence. Call
// Build on the returned builder to get the final Invocation.
//
//	inv, err := gitsafe.Cmd("cat-file", "-p", hash).Build()
func Cmd(args ...string) *InvocationBuilder {
	return executor.NewInvocation(args...)
}

// MustCmd creates an invocation and panics on error. Use only when the
// inputs are known constants.
func MustCmd(args ...string) *Invocation {
	return executor.NewInvocation(args...).MustBuild()
}

// =============================================================================
// Environment Policy
// =============================================================================

// EnvironmentPolicy returns the default child-environment builder: the
// ambient environment and the per-invocation overrides are both
// filtered through the allow-list, so the child always sees a strict
// subset of it.
func EnvironmentPolicy() executor.EnvironmentPolicy {
	return func(overrides map[string]string) []string {
		base := validation.FilterEnvironment(validation.AmbientEnvironment())
		merged := validation.MergeEnvironment(base, validation.FilterEnvironment(overrides))
		return validation.BuildEnviron(merged)
	}
}

// =============================================================================
// Convenience Functions
// =============================================================================

// Execute runs a one-off invocation with a fresh default client. For
// repeated executions, create a Client instead.
func Execute(ctx context.Context, args ...string) (string, error) {
	client, err := New()
	if err != nil {
		return "", err
	}
	defer func() {
		//nolint:errcheck // shutdown errors are non-critical in cleanup
		_ = client.Shutdown(context.Background())
	}()

	inv, err := Cmd(args...).Build()
	if err != nil {
		return "", err
	}
	return client.Execute(ctx, inv)
}

// DefaultRetryPolicy returns the retry policy applied when a caller
// does not override it.
func DefaultRetryPolicy() RetryPolicy {
	return resilience.DefaultRetryPolicy()
}

// NoRetry returns a single-attempt policy.
func NoRetry() RetryPolicy {
	return resilience.NoRetry()
}

// Version returns the library version.
func Version() string {
	return "1.0.0"
}
