package executor

import (
	"errors"
	"testing"
	"time"

	"github.com/victoralfred/gitsafe/runtime"
)

func testOutcomeContext() OutcomeContext {
	return OutcomeContext{
		Op:            "commit",
		Args:          []string{"commit", "-m", "msg"},
		CorrelationID: "test-correlation",
		Latency:       10 * time.Millisecond,
	}
}

func TestClassifyLockContention(t *testing.T) {
	c := NewClassifier()

	cases := []string{
		"fatal: Unable to create '/repo/.git/index.lock': File exists.",
		"error: could not lock config file .git/config",
		"Another git process seems to be running in this repository",
		"fatal: unable to create '/repo/.git/refs/heads/main.lock': File exists",
	}

	for _, stderr := range cases {
		err := c.Classify(runtime.ExitOutcome{ExitCode: 128, Stderr: stderr}, testOutcomeContext())

		var locked *LockedError
		if !errors.As(err, &locked) {
			t.Errorf("stderr %q: expected LockedError, got %T", stderr, err)
			continue
		}
		if !IsRetryable(err) {
			t.Errorf("stderr %q: lock contention must be retryable", stderr)
		}
		if locked.Remediation == "" {
			t.Errorf("stderr %q: lock error carries no remediation", stderr)
		}
		if !errors.Is(err, ErrRepositoryLocked) {
			t.Errorf("stderr %q: should unwrap to ErrRepositoryLocked", stderr)
		}
	}
}

func TestClassifyLockMarkerRequiresStateExit(t *testing.T) {
	c := NewClassifier()

	// A lock marker with the wrong exit code is not lock contention.
	err := c.Classify(runtime.ExitOutcome{ExitCode: 1, Stderr: "index.lock mentioned in passing"}, testOutcomeContext())
	if IsRetryable(err) {
		t.Error("lock marker without the repository-state exit must stay terminal")
	}

	// The repository-state exit without a lock marker is terminal too.
	err = c.Classify(runtime.ExitOutcome{ExitCode: 128, Stderr: "fatal: not a git repository"}, testOutcomeContext())
	if IsRetryable(err) {
		t.Error("state exit without a lock marker must stay terminal")
	}
}

func TestClassifyGenericFailure(t *testing.T) {
	c := NewClassifier()

	octx := testOutcomeContext()
	err := c.Classify(runtime.ExitOutcome{ExitCode: 1, Stderr: "fatal: bad revision 'nope'"}, octx)

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected CommandError, got %T", err)
	}
	if cmdErr.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", cmdErr.ExitCode)
	}
	if cmdErr.Op != octx.Op || cmdErr.CorrelationID != octx.CorrelationID {
		t.Error("classified failure must carry the invocation context")
	}
	if !errors.Is(err, ErrExecutionFailed) {
		t.Error("generic failure should unwrap to ErrExecutionFailed")
	}
}

func TestClassifyTimedOutFailure(t *testing.T) {
	c := NewClassifier()

	err := c.Classify(runtime.ExitOutcome{ExitCode: -1, TimedOut: true}, testOutcomeContext())
	if !errors.Is(err, ErrTimedOut) {
		t.Errorf("timed-out outcome should unwrap to ErrTimedOut, got %v", err)
	}
	if IsRetryable(err) {
		t.Error("timeouts are terminal")
	}
}

func TestClassifyCustomRulesRunFirst(t *testing.T) {
	sentinel := errors.New("remote rejected")
	c := NewClassifier(Rule{
		Match: func(outcome runtime.ExitOutcome, octx OutcomeContext) bool {
			return outcome.ExitCode == 128
		},
		New: func(outcome runtime.ExitOutcome, octx OutcomeContext) error {
			return sentinel
		},
	})

	// The custom rule claims exit 128 before the default lock rule sees it.
	err := c.Classify(runtime.ExitOutcome{ExitCode: 128, Stderr: "index.lock"}, testOutcomeContext())
	if !errors.Is(err, sentinel) {
		t.Errorf("custom rule should win over the default rule, got %v", err)
	}

	// Outcomes the custom rule declines fall through to the defaults.
	err = c.Classify(runtime.ExitOutcome{ExitCode: 1, Stderr: "fatal: nope"}, testOutcomeContext())
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Errorf("declined outcome should reach the default rule, got %T", err)
	}
}
