package runtime

import (
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestHandleResolvesExactlyOnce(t *testing.T) {
	h := NewHandle(io.NopCloser(strings.NewReader("")), nil)

	h.Resolve(ExitOutcome{ExitCode: 0}, nil)
	h.Resolve(ExitOutcome{ExitCode: 99}, errors.New("late"))

	outcome, err := h.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if outcome.ExitCode != 0 {
		t.Errorf("second Resolve must not win: ExitCode = %d", outcome.ExitCode)
	}
}

func TestHandleWaitHonorsContext(t *testing.T) {
	h := NewHandle(io.NopCloser(strings.NewReader("")), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := h.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}

	// The handle itself is still usable once resolved.
	h.Resolve(ExitOutcome{ExitCode: 3}, nil)
	outcome, err := h.Wait(context.Background())
	if err != nil || outcome.ExitCode != 3 {
		t.Errorf("Wait after resolve = (%v, %v)", outcome, err)
	}
}

func TestHandleCloseInvokesAbort(t *testing.T) {
	aborted := false
	h := NewHandle(io.NopCloser(strings.NewReader("")), func() { aborted = true })

	if err := h.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !aborted {
		t.Error("Close should invoke the abort hook")
	}
}

type fakeAdapter struct{ name string }

func (f *fakeAdapter) Name() string { return f.name }
func (f *fakeAdapter) Run(context.Context, *Spec) (*Handle, error) {
	return nil, errors.New("not implemented")
}

func TestRegistryLookupAndReplace(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Lookup(LocalAdapterName); err != nil {
		t.Fatalf("local adapter should be pre-registered: %v", err)
	}
	if _, err := r.Lookup("ssh"); !errors.Is(err, ErrAdapterNotFound) {
		t.Errorf("expected ErrAdapterNotFound, got %v", err)
	}

	r.Register(&fakeAdapter{name: "ssh"})
	if _, err := r.Lookup("ssh"); err != nil {
		t.Errorf("registered adapter not found: %v", err)
	}

	want := []string{LocalAdapterName, "ssh"}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}

	// Re-registering under the same name replaces the adapter.
	replacement := &fakeAdapter{name: "ssh"}
	r.Register(replacement)
	adapter, _ := r.Lookup("ssh")
	if adapter != replacement {
		t.Error("later registration should replace the earlier adapter")
	}
}

func TestCappedBufferTruncatesSilently(t *testing.T) {
	b := newCappedBuffer(8)

	n, err := b.Write([]byte("0123456789"))
	if err != nil || n != 10 {
		t.Fatalf("Write = (%d, %v), want (10, nil)", n, err)
	}
	if b.String() != "01234567" {
		t.Errorf("String() = %q, want %q", b.String(), "01234567")
	}
	if b.Dropped() != 2 {
		t.Errorf("Dropped() = %d, want 2", b.Dropped())
	}

	// Writes past the limit report full success so the child never sees
	// a write error on its diagnostic channel.
	n, err = b.Write([]byte("more"))
	if err != nil || n != 4 {
		t.Fatalf("overflow Write = (%d, %v), want (4, nil)", n, err)
	}
	if b.Dropped() != 6 {
		t.Errorf("Dropped() = %d, want 6", b.Dropped())
	}
}
