// Package executor provides the execution client: sanitization wiring,
// the retry orchestrator, failure classification, and the public entry
// points for running the external binary.
package executor

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Invocation is one request to run the external binary. Invocations are
// immutable once built; the argument sequence is copied at Build time
// and never mutated afterwards.
type Invocation struct {
	// Args is the ordered argument sequence, including the subcommand.
	Args []string

	// WorkingDir is the working directory, validated at Build time.
	WorkingDir string

	// Stdin is the optional input payload written to the child.
	Stdin []byte

	// Env holds environment overrides, filtered through the same
	// allow-list as the ambient environment.
	Env map[string]string

	// Timeout bounds a single attempt. Zero applies the client default.
	Timeout time.Duration
}

// Subcommand returns the first token that is not a flag, or "" when the
// sequence carries none.
func (inv *Invocation) Subcommand() string {
	for _, arg := range inv.Args {
		if arg == "--" {
			break
		}
		if len(arg) > 1 && arg[0] == '-' {
			continue
		}
		return arg
	}
	return ""
}

// Clone returns a deep copy of the invocation.
func (inv *Invocation) Clone() *Invocation {
	clone := &Invocation{
		Args:       append([]string(nil), inv.Args...),
		WorkingDir: inv.WorkingDir,
		Stdin:      append([]byte(nil), inv.Stdin...),
		Timeout:    inv.Timeout,
	}
	if inv.Env != nil {
		clone.Env = make(map[string]string, len(inv.Env))
		for key, value := range inv.Env {
			clone.Env[key] = value
		}
	}
	return clone
}

// String renders the invocation for logs.
func (inv *Invocation) String() string {
	return "git " + strings.Join(inv.Args, " ")
}

// InvocationBuilder provides a fluent API for constructing invocations.
type InvocationBuilder struct {
	inv *Invocation
	err error
}

// NewInvocation starts a builder for the given argument sequence.
func NewInvocation(args ...string) *InvocationBuilder {
	return &InvocationBuilder{
		inv: &Invocation{Args: append([]string(nil), args...)},
	}
}

// WithWorkingDir sets the working directory.
func (b *InvocationBuilder) WithWorkingDir(dir string) *InvocationBuilder {
	if b.err != nil {
		return b
	}
	b.inv.WorkingDir = dir
	return b
}

// WithInput sets a textual stdin payload.
func (b *InvocationBuilder) WithInput(text string) *InvocationBuilder {
	if b.err != nil {
		return b
	}
	b.inv.Stdin = []byte(text)
	return b
}

// WithInputBytes sets a raw stdin payload.
func (b *InvocationBuilder) WithInputBytes(payload []byte) *InvocationBuilder {
	if b.err != nil {
		return b
	}
	b.inv.Stdin = append([]byte(nil), payload...)
	return b
}

// WithEnv adds one environment override.
func (b *InvocationBuilder) WithEnv(key, value string) *InvocationBuilder {
	if b.err != nil {
		return b
	}
	if b.inv.Env == nil {
		b.inv.Env = make(map[string]string)
	}
	b.inv.Env[key] = value
	return b
}

// WithEnvMap adds multiple environment overrides.
func (b *InvocationBuilder) WithEnvMap(env map[string]string) *InvocationBuilder {
	if b.err != nil {
		return b
	}
	for key, value := range env {
		b.WithEnv(key, value)
	}
	return b
}

// WithTimeout sets the per-attempt timeout.
func (b *InvocationBuilder) WithTimeout(timeout time.Duration) *InvocationBuilder {
	if b.err != nil {
		return b
	}
	if timeout <= 0 {
		b.err = &InputError{Reason: "timeout must be positive"}
		return b
	}
	b.inv.Timeout = timeout
	return b
}

// Build validates and returns the invocation. The working directory is
// checked here, once, and never re-validated per call.
func (b *InvocationBuilder) Build() (*Invocation, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.inv.Args) == 0 {
		return nil, &InputError{Reason: "empty argument list"}
	}
	if b.inv.WorkingDir != "" {
		info, err := os.Stat(b.inv.WorkingDir)
		if err != nil {
			return nil, &InputError{
				Argument: b.inv.WorkingDir,
				Reason:   fmt.Sprintf("working directory not accessible: %v", err),
			}
		}
		if !info.IsDir() {
			return nil, &InputError{Argument: b.inv.WorkingDir, Reason: "working directory is not a directory"}
		}
	}
	return b.inv, nil
}

// MustBuild returns the invocation, panicking on error. Use only when
// the inputs are known constants.
func (b *InvocationBuilder) MustBuild() *Invocation {
	inv, err := b.Build()
	if err != nil {
		panic(err)
	}
	return inv
}
