package executor

import (
	"regexp"
	"time"

	"github.com/victoralfred/gitsafe/runtime"
)

// repositoryStateExit is the exit code the external tool uses for
// repository-state failures, including lock contention.
const repositoryStateExit = 128

// lockMarkerPattern recognizes diagnostic text produced while a
// concurrent process holds an exclusive on-disk lock.
var lockMarkerPattern = regexp.MustCompile(
	`(?i)(index\.lock|unable to create .*\.lock|could not lock|another git process)`,
)

// OutcomeContext carries the invocation context a classified failure is
// stamped with.
type OutcomeContext struct {
	// Op is the subcommand.
	Op string

	// Args is the full sanitized argument sequence.
	Args []string

	// CorrelationID identifies the logical invocation.
	CorrelationID string

	// Latency is the elapsed time of the failing attempt.
	Latency time.Duration
}

// Rule pairs a predicate with a failure constructor. Caller-supplied
// rules are consulted in order before the default rule.
type Rule struct {
	// Match reports whether this rule applies to the outcome.
	Match func(outcome runtime.ExitOutcome, octx OutcomeContext) bool

	// New constructs the classified failure.
	New func(outcome runtime.ExitOutcome, octx OutcomeContext) error
}

// Classifier turns a non-zero outcome into a typed failure.
type Classifier struct {
	rules []Rule
}

// NewClassifier creates a classifier with optional custom rules.
func NewClassifier(rules ...Rule) *Classifier {
	return &Classifier{rules: rules}
}

// Classify maps an outcome to a typed failure. Custom rules run first;
// the default rule maps repository-state exits with lock-marker
// diagnostics to the retryable LockedError and everything else to the
// terminal CommandError.
func (c *Classifier) Classify(outcome runtime.ExitOutcome, octx OutcomeContext) error {
	for _, rule := range c.rules {
		if rule.Match(outcome, octx) {
			return rule.New(outcome, octx)
		}
	}

	if outcome.ExitCode == repositoryStateExit && lockMarkerPattern.MatchString(outcome.Stderr) {
		return NewLockedError(octx.Op, octx.Args, outcome.Stderr, outcome.ExitCode, octx.CorrelationID, octx.Latency)
	}

	failure := NewCommandError(octx.Op, octx.Args, outcome.Stderr, outcome.ExitCode, octx.CorrelationID, octx.Latency)
	if outcome.TimedOut {
		failure.Err = ErrTimedOut
	}
	return failure
}
