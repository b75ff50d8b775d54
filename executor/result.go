package executor

import (
	"context"

	"github.com/victoralfred/gitsafe/runtime"
	"github.com/victoralfred/gitsafe/stream"
)

// StatusResult is the outcome of ExecuteWithStatus: a non-zero exit is
// data, not an error.
type StatusResult struct {
	// Output is the trimmed standard output.
	Output string

	// ExitCode is the process exit code.
	ExitCode int

	// TimedOut reports whether the attempt was killed for exceeding its
	// time budget.
	TimedOut bool
}

// Success reports a zero exit without timeout.
func (r *StatusResult) Success() bool {
	return r.ExitCode == 0 && !r.TimedOut
}

// StreamResult is the outcome of ExecuteStream. The caller owns the
// stream and must consult Outcome after draining it.
type StreamResult struct {
	// Stream yields the process output lazily.
	Stream *stream.Stream

	handle *runtime.Handle
}

// Outcome blocks until the process reaches a terminal state.
func (r *StreamResult) Outcome(ctx context.Context) (runtime.ExitOutcome, error) {
	return r.handle.Wait(ctx)
}

// Close abandons the stream, terminating the process if it is still
// running. Idempotent.
func (r *StreamResult) Close() error {
	r.Stream.Close()
	return r.handle.Close()
}

// Future represents an asynchronous result.
type Future[T any] interface {
	// Wait blocks until the result is available or the context ends.
	Wait(ctx context.Context) (T, error)

	// Done returns a channel closed when the result is ready.
	Done() <-chan struct{}

	// Cancel attempts to cancel the operation.
	Cancel()
}

type future[T any] struct {
	value  T
	err    error
	done   chan struct{}
	cancel func()
}

func newFuture[T any](cancel func()) *future[T] {
	return &future[T]{
		done:   make(chan struct{}),
		cancel: cancel,
	}
}

func (f *future[T]) complete(value T, err error) {
	f.value = value
	f.err = err
	close(f.done)
}

// Wait implements Future.
func (f *future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done implements Future.
func (f *future[T]) Done() <-chan struct{} {
	return f.done
}

// Cancel implements Future.
func (f *future[T]) Cancel() {
	if f.cancel != nil {
		f.cancel()
	}
}
