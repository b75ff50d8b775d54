package observability

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/victoralfred/gitsafe/runtime"
)

// Metrics is an in-process execution counter set, useful where an
// OpenTelemetry pipeline is not wired up. It satisfies the executor's
// EventObserver dependency.
type Metrics struct {
	totalInvocations  int64
	failedInvocations int64
	timedOutAttempts  int64
	retriedAttempts   int64
	totalLatency      int64

	opStats map[string]*OpStats
	mu      sync.RWMutex
}

// OpStats contains per-subcommand statistics.
type OpStats struct {
	Op                string
	TotalInvocations  int64
	FailedInvocations int64
	TotalLatency      time.Duration
	LastInvokedAt     time.Time
}

// NewMetrics creates a metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{opStats: make(map[string]*OpStats)}
}

// InvocationStarted implements the executor event observer.
func (m *Metrics) InvocationStarted(op string, args []string, correlationID string) {
	atomic.AddInt64(&m.totalInvocations, 1)
}

// AttemptCompleted implements the executor event observer.
func (m *Metrics) AttemptCompleted(op string, correlationID string, attempt int, outcome runtime.ExitOutcome) {
	if attempt > 1 {
		atomic.AddInt64(&m.retriedAttempts, 1)
	}
	if outcome.TimedOut {
		atomic.AddInt64(&m.timedOutAttempts, 1)
	}
}

// InvocationCompleted implements the executor event observer.
func (m *Metrics) InvocationCompleted(op string, correlationID string, err error, latency time.Duration) {
	atomic.AddInt64(&m.totalLatency, int64(latency))
	if err != nil {
		atomic.AddInt64(&m.failedInvocations, 1)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	stats, ok := m.opStats[op]
	if !ok {
		stats = &OpStats{Op: op}
		m.opStats[op] = stats
	}
	stats.TotalInvocations++
	if err != nil {
		stats.FailedInvocations++
	}
	stats.TotalLatency += latency
	stats.LastInvokedAt = time.Now()
}

// Snapshot summarizes collected counters.
type Snapshot struct {
	TotalInvocations  int64
	FailedInvocations int64
	TimedOutAttempts  int64
	RetriedAttempts   int64
	TotalLatency      time.Duration
	PerOp             map[string]OpStats
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	perOp := make(map[string]OpStats, len(m.opStats))
	for op, stats := range m.opStats {
		perOp[op] = *stats
	}
	return Snapshot{
		TotalInvocations:  atomic.LoadInt64(&m.totalInvocations),
		FailedInvocations: atomic.LoadInt64(&m.failedInvocations),
		TimedOutAttempts:  atomic.LoadInt64(&m.timedOutAttempts),
		RetriedAttempts:   atomic.LoadInt64(&m.retriedAttempts),
		TotalLatency:      time.Duration(atomic.LoadInt64(&m.totalLatency)),
		PerOp:             perOp,
	}
}
