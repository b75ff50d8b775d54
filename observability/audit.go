package observability

import (
	"time"

	"go.uber.org/zap"

	"github.com/victoralfred/gitsafe/runtime"
)

// AuditConfig configures the audit trail.
type AuditConfig struct {
	// IncludeArgs controls whether full argument sequences are logged.
	// Disable where arguments may carry sensitive ref or path names.
	IncludeArgs bool

	// IncludeStderr controls whether diagnostic output is logged on
	// failed attempts.
	IncludeStderr bool

	// StderrSample caps logged diagnostic output.
	StderrSample int
}

// DefaultAuditConfig returns the default audit configuration.
func DefaultAuditConfig() AuditConfig {
	return AuditConfig{
		IncludeArgs:   true,
		IncludeStderr: true,
		StderrSample:  512,
	}
}

// AuditObserver writes a structured audit trail of every invocation and
// attempt. It satisfies the executor's EventObserver dependency.
type AuditObserver struct {
	logger *zap.Logger
	config AuditConfig
}

// NewAuditObserver creates an audit observer over a zap logger.
func NewAuditObserver(logger *zap.Logger, config AuditConfig) *AuditObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditObserver{logger: logger, config: config}
}

// InvocationStarted implements the executor event observer.
func (a *AuditObserver) InvocationStarted(op string, args []string, correlationID string) {
	fields := []zap.Field{
		zap.String("event", "invocation_started"),
		zap.String("op", op),
		zap.String("correlation_id", correlationID),
	}
	if a.config.IncludeArgs {
		fields = append(fields, zap.Strings("args", args))
	}
	a.logger.Info("audit", fields...)
}

// AttemptCompleted implements the executor event observer.
func (a *AuditObserver) AttemptCompleted(op string, correlationID string, attempt int, outcome runtime.ExitOutcome) {
	fields := []zap.Field{
		zap.String("event", "attempt_completed"),
		zap.String("op", op),
		zap.String("correlation_id", correlationID),
		zap.Int("attempt", attempt),
		zap.Int("exit_code", outcome.ExitCode),
		zap.Bool("timed_out", outcome.TimedOut),
		zap.Duration("duration", outcome.Duration),
	}
	if a.config.IncludeStderr && outcome.ExitCode != 0 {
		fields = append(fields, zap.String("stderr", sample(outcome.Stderr, a.config.StderrSample)))
	}
	a.logger.Info("audit", fields...)
}

// InvocationCompleted implements the executor event observer.
func (a *AuditObserver) InvocationCompleted(op string, correlationID string, err error, latency time.Duration) {
	fields := []zap.Field{
		zap.String("event", "invocation_completed"),
		zap.String("op", op),
		zap.String("correlation_id", correlationID),
		zap.Duration("latency", latency),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	a.logger.Info("audit", fields...)
}

func sample(text string, max int) string {
	if max > 0 && len(text) > max {
		return text[:max]
	}
	return text
}
