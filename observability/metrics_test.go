package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/victoralfred/gitsafe/runtime"
)

func TestMetricsCountsInvocations(t *testing.T) {
	m := NewMetrics()

	m.InvocationStarted("status", []string{"status"}, "cid-1")
	m.AttemptCompleted("status", "cid-1", 1, runtime.ExitOutcome{ExitCode: 0})
	m.InvocationCompleted("status", "cid-1", nil, 5*time.Millisecond)

	m.InvocationStarted("commit", []string{"commit"}, "cid-2")
	m.AttemptCompleted("commit", "cid-2", 1, runtime.ExitOutcome{ExitCode: 128})
	m.AttemptCompleted("commit", "cid-2", 2, runtime.ExitOutcome{ExitCode: -1, TimedOut: true})
	m.InvocationCompleted("commit", "cid-2", errors.New("failed"), 20*time.Millisecond)

	snap := m.Snapshot()
	if snap.TotalInvocations != 2 {
		t.Errorf("TotalInvocations = %d, want 2", snap.TotalInvocations)
	}
	if snap.FailedInvocations != 1 {
		t.Errorf("FailedInvocations = %d, want 1", snap.FailedInvocations)
	}
	if snap.RetriedAttempts != 1 {
		t.Errorf("RetriedAttempts = %d, want 1", snap.RetriedAttempts)
	}
	if snap.TimedOutAttempts != 1 {
		t.Errorf("TimedOutAttempts = %d, want 1", snap.TimedOutAttempts)
	}
	if snap.TotalLatency != 25*time.Millisecond {
		t.Errorf("TotalLatency = %v, want 25ms", snap.TotalLatency)
	}

	commit := snap.PerOp["commit"]
	if commit.TotalInvocations != 1 || commit.FailedInvocations != 1 {
		t.Errorf("commit stats = %+v", commit)
	}
	if commit.LastInvokedAt.IsZero() {
		t.Error("LastInvokedAt should be recorded")
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	m := NewMetrics()
	m.InvocationCompleted("status", "cid-1", nil, time.Millisecond)

	snap := m.Snapshot()
	m.InvocationCompleted("status", "cid-2", nil, time.Millisecond)

	if snap.PerOp["status"].TotalInvocations != 1 {
		t.Error("snapshot must not observe later mutations")
	}
}
