package executor

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/victoralfred/gitsafe/resilience"
	"github.com/victoralfred/gitsafe/runtime"
	"github.com/victoralfred/gitsafe/stream"
)

// Client is the single entry point for running the external binary. All
// invocations go through it so sanitization, environment filtering, and
// retry handling are applied consistently.
type Client interface {
	// Execute runs an invocation, buffers and trims its output, and
	// retries transient lock contention under the client's retry policy
	// unless overridden per call.
	Execute(ctx context.Context, inv *Invocation, opts ...Option) (string, error)

	// ExecuteStream runs an invocation without retry or buffering. The
	// caller owns the stream and must consult the outcome after
	// draining it.
	ExecuteStream(ctx context.Context, inv *Invocation) (*StreamResult, error)

	// ExecuteWithStatus runs a single attempt and never fails on a
	// non-zero exit; the exit code is part of the result.
	ExecuteWithStatus(ctx context.Context, inv *Invocation) (*StatusResult, error)

	// ExecuteAsync runs Execute in the background, returning a future.
	ExecuteAsync(ctx context.Context, inv *Invocation, opts ...Option) Future[string]

	// Shutdown waits for in-flight invocations and rejects new ones.
	Shutdown(ctx context.Context) error
}

// Sanitizer validates argument sequences before anything runs.
type Sanitizer interface {
	Sanitize(args []string) error
}

// EnvironmentPolicy builds the complete child environment from the
// per-invocation overrides. The wiring layer installs the allow-list
// filter here; the client never reads the ambient environment itself.
type EnvironmentPolicy func(overrides map[string]string) []string

// RateLimiter bounds invocation dispatch per subcommand.
type RateLimiter interface {
	Wait(ctx context.Context, subcommand string) error
}

// Telemetry provides tracing and metrics around invocations.
type Telemetry interface {
	StartSpan(ctx context.Context, name string) (context.Context, func())
	RecordMetric(name string, value float64, labels map[string]string)
}

// Option adjusts one call.
type Option func(*callOptions)

type callOptions struct {
	retry resilience.RetryPolicy
}

// WithRetryPolicy overrides the client retry policy for one call.
func WithRetryPolicy(policy resilience.RetryPolicy) Option {
	return func(o *callOptions) {
		o.retry = policy
	}
}

// WithNoRetry disables retry for one call.
func WithNoRetry() Option {
	return func(o *callOptions) {
		o.retry = resilience.NoRetry()
	}
}

// DefaultOutputLimit caps buffered output per invocation.
const DefaultOutputLimit = 16 * 1024 * 1024

type client struct {
	binary         string
	adapter        runtime.Adapter
	sanitizer      Sanitizer
	envPolicy      EnvironmentPolicy
	classifier     *Classifier
	retry          resilience.RetryPolicy
	limiter        RateLimiter
	telemetry      Telemetry
	observer       EventObserver
	logger         *zap.Logger
	defaultTimeout time.Duration
	outputLimit    int
	stderrLimit    int
	wg             sync.WaitGroup
	mu             sync.RWMutex // makes the shutdown check and wg.Add atomic
	shutdown       int32
}

// Builder creates configured Client instances.
type Builder struct {
	binary         string
	adapter        runtime.Adapter
	sanitizer      Sanitizer
	envPolicy      EnvironmentPolicy
	classifier     *Classifier
	retry          resilience.RetryPolicy
	limiter        RateLimiter
	telemetry      Telemetry
	observer       EventObserver
	logger         *zap.Logger
	defaultTimeout time.Duration
	outputLimit    int
	stderrLimit    int
}

// NewBuilder creates a client builder with library defaults.
func NewBuilder() *Builder {
	return &Builder{
		binary:         "git",
		retry:          resilience.DefaultRetryPolicy(),
		defaultTimeout: 30 * time.Second,
		outputLimit:    DefaultOutputLimit,
		stderrLimit:    runtime.DefaultStderrLimit,
	}
}

// WithBinary sets the binary name resolved through the filtered PATH.
func (b *Builder) WithBinary(binary string) *Builder {
	b.binary = binary
	return b
}

// WithAdapter sets the runtime adapter.
func (b *Builder) WithAdapter(adapter runtime.Adapter) *Builder {
	b.adapter = adapter
	return b
}

// WithSanitizer sets the argument sanitizer.
func (b *Builder) WithSanitizer(sanitizer Sanitizer) *Builder {
	b.sanitizer = sanitizer
	return b
}

// WithEnvironmentPolicy sets the child-environment builder.
func (b *Builder) WithEnvironmentPolicy(policy EnvironmentPolicy) *Builder {
	b.envPolicy = policy
	return b
}

// WithClassifier sets the failure classifier.
func (b *Builder) WithClassifier(classifier *Classifier) *Builder {
	b.classifier = classifier
	return b
}

// WithRetryPolicy sets the default retry policy.
func (b *Builder) WithRetryPolicy(policy resilience.RetryPolicy) *Builder {
	b.retry = policy
	return b
}

// WithRateLimiter sets the dispatch rate limiter.
func (b *Builder) WithRateLimiter(limiter RateLimiter) *Builder {
	b.limiter = limiter
	return b
}

// WithTelemetry sets the telemetry provider.
func (b *Builder) WithTelemetry(telemetry Telemetry) *Builder {
	b.telemetry = telemetry
	return b
}

// WithObserver sets the execution event observer.
func (b *Builder) WithObserver(observer EventObserver) *Builder {
	b.observer = observer
	return b
}

// WithLogger sets the structured logger.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithDefaultTimeout sets the per-attempt timeout applied when an
// invocation carries none.
func (b *Builder) WithDefaultTimeout(timeout time.Duration) *Builder {
	b.defaultTimeout = timeout
	return b
}

// WithOutputLimit caps buffered output per invocation.
func (b *Builder) WithOutputLimit(limit int) *Builder {
	b.outputLimit = limit
	return b
}

// WithStderrLimit caps captured diagnostic output per process.
func (b *Builder) WithStderrLimit(limit int) *Builder {
	b.stderrLimit = limit
	return b
}

// Build creates the client.
func (b *Builder) Build() (Client, error) {
	if err := b.retry.Validate(); err != nil {
		return nil, err
	}

	adapter := b.adapter
	if adapter == nil {
		adapter = runtime.NewLocalAdapter()
	}
	classifier := b.classifier
	if classifier == nil {
		classifier = NewClassifier()
	}
	observer := b.observer
	if observer == nil {
		observer = noopObserver{}
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	envPolicy := b.envPolicy
	if envPolicy == nil {
		envPolicy = minimalEnvironmentPolicy
	}

	return &client{
		binary:         b.binary,
		adapter:        adapter,
		sanitizer:      b.sanitizer,
		envPolicy:      envPolicy,
		classifier:     classifier,
		retry:          b.retry,
		limiter:        b.limiter,
		telemetry:      b.telemetry,
		observer:       observer,
		logger:         logger,
		defaultTimeout: b.defaultTimeout,
		outputLimit:    b.outputLimit,
		stderrLimit:    b.stderrLimit,
	}, nil
}

// minimalEnvironmentPolicy is the fallback child environment used when
// no policy is wired in: a fixed safe base plus the overrides.
func minimalEnvironmentPolicy(overrides map[string]string) []string {
	env := []string{
		"PATH=/usr/bin:/bin",
		"LANG=C.UTF-8",
		"LC_ALL=C.UTF-8",
	}
	for key, value := range overrides {
		env = append(env, key+"="+value)
	}
	return env
}

// Execute implements Client.
func (c *client) Execute(ctx context.Context, inv *Invocation, opts ...Option) (string, error) {
	if err := c.begin(); err != nil {
		return "", err
	}
	defer c.wg.Done()

	options := callOptions{retry: c.retry}
	for _, opt := range opts {
		opt(&options)
	}

	if c.telemetry != nil {
		var endSpan func()
		ctx, endSpan = c.telemetry.StartSpan(ctx, "gitsafe.Execute")
		defer endSpan()
	}

	correlationID := uuid.New().String()
	op := inv.Subcommand()
	start := time.Now()

	c.observer.InvocationStarted(op, inv.Args, correlationID)
	c.logger.Debug("executing command",
		zap.String("op", op),
		zap.Strings("args", inv.Args),
		zap.String("correlation_id", correlationID),
	)

	output, err := c.run(ctx, inv, options.retry, op, correlationID)
	latency := time.Since(start)
	c.observer.InvocationCompleted(op, correlationID, err, latency)
	c.recordMetrics(op, latency, err)

	if err != nil {
		c.logger.Warn("command failed",
			zap.String("op", op),
			zap.String("correlation_id", correlationID),
			zap.Duration("latency", latency),
			zap.Error(err),
		)
		return "", err
	}

	c.logger.Debug("command completed",
		zap.String("op", op),
		zap.String("correlation_id", correlationID),
		zap.Duration("latency", latency),
	)
	return output, nil
}

// run applies sanitization and rate limiting, then drives the retry
// loop.
func (c *client) run(ctx context.Context, inv *Invocation, policy resilience.RetryPolicy, op, correlationID string) (string, error) {
	// Sanitizer failures are synchronous and pre-process; nothing has
	// been spawned yet and nothing needs cleanup.
	if c.sanitizer != nil {
		if err := c.sanitizer.Sanitize(inv.Args); err != nil {
			return "", err
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, op); err != nil {
			return "", WrapError(op, inv.Args, correlationID, 0, err)
		}
	}

	return c.orchestrate(ctx, inv, policy, op, correlationID)
}

// orchestrate is the attempt/backoff/timeout state machine. The budget
// rule is strict-greater and fires before a backoff wait is consumed:
// when elapsed + delay would exceed the total budget, the loop stops
// immediately instead of waiting.
func (c *client) orchestrate(ctx context.Context, inv *Invocation, policy resilience.RetryPolicy, op, correlationID string) (string, error) {
	start := time.Now()

	var failure error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if policy.TotalBudget > 0 && time.Since(start) > policy.TotalBudget {
			return "", &BudgetError{
				Budget:        policy.TotalBudget,
				Elapsed:       time.Since(start),
				CorrelationID: correlationID,
				Cause:         failure,
			}
		}

		output, outcome, err := c.runAttempt(ctx, inv)
		c.observer.AttemptCompleted(op, correlationID, attempt, outcome)
		if err != nil {
			// Anything outside the classified path is wrapped,
			// preserving the original message and invocation context.
			return "", WrapError(op, inv.Args, correlationID, time.Since(start), err)
		}

		if outcome.ExitCode == 0 && !outcome.TimedOut {
			return strings.TrimSpace(string(output)), nil
		}

		failure = c.classifier.Classify(outcome, OutcomeContext{
			Op:            op,
			Args:          inv.Args,
			CorrelationID: correlationID,
			Latency:       outcome.Duration,
		})
		if !IsRetryable(failure) || attempt == policy.MaxAttempts {
			return "", failure
		}

		delay := policy.Delay(attempt + 1)
		if policy.TotalBudget > 0 && time.Since(start)+delay > policy.TotalBudget {
			return "", &BudgetError{
				Budget:        policy.TotalBudget,
				Elapsed:       time.Since(start) + delay,
				CorrelationID: correlationID,
				Cause:         failure,
			}
		}

		c.logger.Debug("retrying after lock contention",
			zap.String("op", op),
			zap.String("correlation_id", correlationID),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			return "", WrapError(op, inv.Args, correlationID, time.Since(start), ctx.Err())
		case <-time.After(delay):
		}
	}

	return "", failure
}

// runAttempt spawns one process and fully consumes it. Exactly one
// handle exists per attempt and it is torn down before this function
// returns, success or not.
func (c *client) runAttempt(ctx context.Context, inv *Invocation) ([]byte, runtime.ExitOutcome, error) {
	handle, err := c.adapter.Run(ctx, c.buildSpec(inv))
	if err != nil {
		return nil, runtime.ExitOutcome{ExitCode: -1}, err
	}
	defer handle.Close()

	out := stream.New(handle.Stdout)
	output, err := out.Collect(c.outputLimit)
	if err != nil {
		return nil, runtime.ExitOutcome{ExitCode: -1}, err
	}

	outcome, err := handle.Wait(ctx)
	if err != nil {
		return nil, runtime.ExitOutcome{ExitCode: -1}, err
	}
	return output, outcome, nil
}

// ExecuteStream implements Client.
func (c *client) ExecuteStream(ctx context.Context, inv *Invocation) (*StreamResult, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.wg.Done()

	if c.sanitizer != nil {
		if err := c.sanitizer.Sanitize(inv.Args); err != nil {
			return nil, err
		}
	}

	handle, err := c.adapter.Run(ctx, c.buildSpec(inv))
	if err != nil {
		return nil, WrapError(inv.Subcommand(), inv.Args, uuid.New().String(), 0, err)
	}

	return &StreamResult{
		Stream: stream.New(handle.Stdout),
		handle: handle,
	}, nil
}

// ExecuteWithStatus implements Client.
func (c *client) ExecuteWithStatus(ctx context.Context, inv *Invocation) (*StatusResult, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.wg.Done()

	if c.sanitizer != nil {
		if err := c.sanitizer.Sanitize(inv.Args); err != nil {
			return nil, err
		}
	}

	output, outcome, err := c.runAttempt(ctx, inv)
	if err != nil {
		return nil, WrapError(inv.Subcommand(), inv.Args, uuid.New().String(), 0, err)
	}

	return &StatusResult{
		Output:   strings.TrimSpace(string(output)),
		ExitCode: outcome.ExitCode,
		TimedOut: outcome.TimedOut,
	}, nil
}

// ExecuteAsync implements Client.
func (c *client) ExecuteAsync(ctx context.Context, inv *Invocation, opts ...Option) Future[string] {
	asyncCtx, cancel := context.WithCancel(ctx)
	fut := newFuture[string](cancel)

	go func() {
		defer cancel()
		output, err := c.Execute(asyncCtx, inv, opts...)
		fut.complete(output, err)
	}()

	return fut
}

// Shutdown implements Client.
func (c *client) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	atomic.StoreInt32(&c.shutdown, 1)
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// begin registers an in-flight invocation, failing once shut down.
func (c *client) begin() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if atomic.LoadInt32(&c.shutdown) == 1 {
		return ErrClientShutdown
	}
	c.wg.Add(1)
	return nil
}

func (c *client) buildSpec(inv *Invocation) *runtime.Spec {
	timeout := inv.Timeout
	if timeout == 0 {
		timeout = c.defaultTimeout
	}
	return &runtime.Spec{
		Binary:      c.binary,
		Args:        inv.Args,
		Env:         c.envPolicy(inv.Env),
		Dir:         inv.WorkingDir,
		Stdin:       inv.Stdin,
		Timeout:     timeout,
		StderrLimit: c.stderrLimit,
	}
}

func (c *client) recordMetrics(op string, latency time.Duration, err error) {
	if c.telemetry == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
		if IsRetryable(err) {
			status = "locked"
		}
	}
	c.telemetry.RecordMetric("gitsafe.execution_duration_ms", float64(latency.Milliseconds()), map[string]string{
		"op":      op,
		"status":  status,
		"retries": strconv.FormatBool(IsRetryable(err)),
	})
}
