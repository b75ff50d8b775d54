// Package config provides configuration management for gitsafe.
package config

import (
	"time"

	"github.com/victoralfred/gitsafe/observability"
	"github.com/victoralfred/gitsafe/resilience"
	"github.com/victoralfred/gitsafe/runtime"
	"github.com/victoralfred/gitsafe/validation"
)

// Config is the main configuration for the library.
type Config struct {
	// Binary is the external tool name, resolved through the filtered
	// PATH.
	Binary string

	// Runtime names the adapter to execute under. Resolved once at
	// startup; auto-detected when empty.
	Runtime string

	// DefaultTimeout bounds one attempt when the invocation carries no
	// timeout of its own.
	DefaultTimeout time.Duration

	// OutputLimit caps buffered output per invocation.
	OutputLimit int

	// StderrLimit caps captured diagnostic output per process.
	StderrLimit int

	// Sanitizer bounds argument sequences.
	Sanitizer *validation.SanitizerConfig

	// Retry is the default retry policy.
	Retry resilience.RetryPolicy

	// RateLimiter configures dispatch throttling. Disabled when
	// EnableRateLimit is false.
	RateLimiter     resilience.RateLimiterConfig
	EnableRateLimit bool

	// Telemetry configures tracing and metrics. Disabled when
	// EnableTelemetry is false.
	Telemetry       observability.TelemetryConfig
	EnableTelemetry bool

	// Audit configures the structured audit trail.
	Audit       observability.AuditConfig
	EnableAudit bool

	// PolicyBasePath and PolicyFile locate an optional YAML capability
	// set replacing the built-in command allow-list.
	PolicyBasePath string
	PolicyFile     string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Binary:          "git",
		Runtime:         runtime.Detect(),
		DefaultTimeout:  30 * time.Second,
		OutputLimit:     16 * 1024 * 1024,
		StderrLimit:     runtime.DefaultStderrLimit,
		Sanitizer:       validation.DefaultSanitizerConfig(),
		Retry:           resilience.DefaultRetryPolicy(),
		RateLimiter:     resilience.DefaultRateLimiterConfig(),
		EnableRateLimit: false,
		Telemetry:       observability.DefaultTelemetryConfig(),
		EnableTelemetry: false,
		Audit:           observability.DefaultAuditConfig(),
		EnableAudit:     false,
	}
}

// Validate normalizes the configuration, replacing unusable values with
// defaults.
func (c *Config) Validate() error {
	if c.Binary == "" {
		c.Binary = "git"
	}
	if c.Runtime == "" {
		c.Runtime = runtime.Detect()
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 30 * time.Second
	}
	if c.OutputLimit <= 0 {
		c.OutputLimit = 16 * 1024 * 1024
	}
	if c.StderrLimit <= 0 {
		c.StderrLimit = runtime.DefaultStderrLimit
	}
	if c.Sanitizer == nil {
		c.Sanitizer = validation.DefaultSanitizerConfig()
	}
	return c.Retry.Validate()
}
