// Package runtime provides host-environment adapters for spawning the
// external binary. Each adapter hides a native process-spawning primitive
// behind one narrow contract: Run an invocation, get back a handle with a
// lazy stdout reader and a completion signal.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// ErrAdapterNotFound indicates no adapter is registered under a name.
var ErrAdapterNotFound = errors.New("runtime adapter not found")

// DefaultStderrLimit caps captured diagnostic output per process.
const DefaultStderrLimit = 64 * 1024

// Spec describes one process to spawn. Validation and environment
// filtering happen before a Spec is built; adapters execute it verbatim.
type Spec struct {
	// Binary is the program name or path, resolved via the filtered PATH.
	Binary string

	// Args are the sanitized arguments, excluding the binary name.
	Args []string

	// Env is the complete child environment in KEY=VALUE form.
	Env []string

	// Dir is the working directory.
	Dir string

	// Stdin is written to the child's standard input, which is then
	// closed. When empty, standard input is closed immediately so the
	// child can never block on it.
	Stdin []byte

	// Timeout forcibly terminates the process when exceeded. Zero means
	// no adapter-enforced timeout beyond the context.
	Timeout time.Duration

	// StderrLimit caps the captured diagnostic buffer. Zero applies
	// DefaultStderrLimit. Overflow is silently dropped.
	StderrLimit int
}

// ExitOutcome is the terminal result of one spawned process.
type ExitOutcome struct {
	// ExitCode is the process exit code. -1 when the process was killed.
	ExitCode int

	// Stderr is the captured diagnostic output, size-bounded.
	Stderr string

	// TimedOut reports whether the process was terminated for exceeding
	// its time budget.
	TimedOut bool

	// Duration is the wall-clock time from spawn to exit.
	Duration time.Duration
}

// Handle is the live view of one spawned process. Exactly one handle
// exists per attempt; Stdout is consumed at most once and Close must be
// called when the handle is abandoned before the process exits.
type Handle struct {
	// Stdout is the lazy standard-output reader. It is never
	// pre-buffered; the process writes into it as the caller reads.
	Stdout io.ReadCloser

	done    chan struct{}
	once    sync.Once
	outcome ExitOutcome
	err     error
	abort   func()
}

// NewHandle creates a handle around a stdout reader. The abort function,
// when non-nil, forcibly terminates the underlying process; adapters
// install it so Close can tear the process down.
func NewHandle(stdout io.ReadCloser, abort func()) *Handle {
	return &Handle{
		Stdout: stdout,
		done:   make(chan struct{}),
		abort:  abort,
	}
}

// Resolve records the terminal outcome and releases waiters. Only the
// first call has any effect; terminal states resolve exactly once.
func (h *Handle) Resolve(outcome ExitOutcome, err error) {
	h.once.Do(func() {
		h.outcome = outcome
		h.err = err
		close(h.done)
	})
}

// Wait blocks until the process reaches a terminal state.
func (h *Handle) Wait(ctx context.Context) (ExitOutcome, error) {
	select {
	case <-h.done:
		return h.outcome, h.err
	case <-ctx.Done():
		return ExitOutcome{}, ctx.Err()
	}
}

// Done returns a channel closed once the outcome is available.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Close tears the handle down: the process is terminated if still
// running and the stdout reader is closed. Safe to call multiple times
// and after normal completion.
func (h *Handle) Close() error {
	if h.abort != nil {
		h.abort()
	}
	if h.Stdout != nil {
		return h.Stdout.Close()
	}
	return nil
}

// Adapter spawns processes for one host execution environment.
type Adapter interface {
	// Name identifies the adapter in the registry.
	Name() string

	// Run spawns the process described by the spec and returns its
	// handle. A non-nil error means the process never started.
	Run(ctx context.Context, spec *Spec) (*Handle, error)
}

// Registry holds named adapters. Callers install custom adapters (for
// example a remote-execution transport) without touching the execution
// core.
type Registry struct {
	adapters map[string]Adapter
	mu       sync.RWMutex
}

// NewRegistry creates a registry pre-populated with the local adapter.
func NewRegistry() *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	r.Register(NewLocalAdapter())
	return r
}

// Register installs an adapter under its name, replacing any previous
// adapter with the same name.
func (r *Registry) Register(adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.Name()] = adapter
}

// Lookup returns the adapter registered under the name.
func (r *Registry) Lookup(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrAdapterNotFound, name)
	}
	return adapter, nil
}

// Names returns the registered adapter names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Detect returns the adapter name for the current host environment. The
// result is resolved once at startup and injected through configuration;
// the execution core never probes the environment itself.
func Detect() string {
	return LocalAdapterName
}
