package runtime

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"
)

// LocalAdapterName is the registry name of the local process adapter.
const LocalAdapterName = "local"

// LocalAdapter spawns processes on the local host through os/exec. This
// is the only file in the module that starts processes; every other
// component goes through the Adapter interface.
type LocalAdapter struct{}

// NewLocalAdapter creates the local adapter.
func NewLocalAdapter() *LocalAdapter {
	return &LocalAdapter{}
}

// Name implements Adapter.
func (a *LocalAdapter) Name() string {
	return LocalAdapterName
}

// Run implements Adapter. The child is placed in its own process group
// so a timeout kill also reaps any grandchildren.
func (a *LocalAdapter) Run(ctx context.Context, spec *Spec) (*Handle, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// #nosec G204 -- arguments are sanitized and the subcommand
	// allow-listed before a Spec reaches any adapter.
	cmd := exec.Command(spec.Binary, spec.Args...)
	cmd.Env = spec.Env
	cmd.Dir = spec.Dir
	setProcAttributes(cmd)

	limit := spec.StderrLimit
	if limit <= 0 {
		limit = DefaultStderrLimit
	}
	stderr := newCappedBuffer(limit)
	cmd.Stderr = stderr

	// Stdin: write the payload and close, or close immediately. os/exec
	// attaches the null device when Stdin is nil and closes the write
	// end after draining a reader, so the child can never block here.
	if len(spec.Stdin) > 0 {
		cmd.Stdin = bytes.NewReader(spec.Stdin)
	}

	// Stdout goes through an os.Pipe owned by the handle. The parent
	// closes its write end right after the spawn so the reader observes
	// EOF exactly when the child exits, independent of Wait.
	readEnd, writeEnd, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stdout = writeEnd

	start := time.Now()
	if err := cmd.Start(); err != nil {
		readEnd.Close()
		writeEnd.Close()
		return nil, fmt.Errorf("spawn %s: %w", spec.Binary, err)
	}
	writeEnd.Close()

	var killOnce sync.Once
	kill := func() {
		killOnce.Do(func() {
			killProcess(cmd)
		})
	}

	handle := NewHandle(readEnd, kill)
	go a.supervise(ctx, cmd, spec, handle, stderr, kill, start)
	return handle, nil
}

// supervise waits for the child and resolves the handle exactly once:
// Completed on exit, Killed on timeout or cancellation.
func (a *LocalAdapter) supervise(ctx context.Context, cmd *exec.Cmd, spec *Spec, handle *Handle, stderr *cappedBuffer, kill func(), start time.Time) {
	waitDone := make(chan error, 1)
	go func() {
		waitDone <- cmd.Wait()
	}()

	var timeoutCh <-chan time.Time
	if spec.Timeout > 0 {
		timer := time.NewTimer(spec.Timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	timedOut := false
	select {
	case <-waitDone:
	case <-timeoutCh:
		timedOut = true
		kill()
		<-waitDone
	case <-ctx.Done():
		timedOut = true
		kill()
		<-waitDone
	}

	outcome := ExitOutcome{
		ExitCode: -1,
		Stderr:   stderr.String(),
		TimedOut: timedOut,
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		outcome.ExitCode = cmd.ProcessState.ExitCode()
	}
	handle.Resolve(outcome, nil)
}

// cappedBuffer captures diagnostic output up to a hard limit, silently
// dropping the overflow. Writes never fail so the child is never
// back-pressured by its own error channel.
type cappedBuffer struct {
	limit   int
	buf     bytes.Buffer
	dropped int64
	mu      sync.Mutex
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

// Write implements io.Writer.
func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(p)
	remaining := b.limit - b.buf.Len()
	if remaining <= 0 {
		b.dropped += int64(n)
		return n, nil
	}
	if n > remaining {
		b.dropped += int64(n - remaining)
		p = p[:remaining]
	}
	b.buf.Write(p)
	return n, nil
}

// String returns the captured output.
func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Dropped returns how many bytes were discarded over the limit.
func (b *cappedBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
