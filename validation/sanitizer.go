// Package validation provides argument sanitization and environment
// filtering. Every invocation passes through here before any adapter is
// asked to spawn a process.
package validation

import (
	"sort"
	"strings"
	"sync"

	"github.com/victoralfred/gitsafe/executor"
)

// CommandSet is the mutable allow-list of subcommands. Extension is
// scoped to the instance a caller holds; separate clients never observe
// each other's registrations.
type CommandSet struct {
	names map[string]struct{}
	mu    sync.RWMutex
}

// NewCommandSet creates a command set containing the given subcommands.
func NewCommandSet(names ...string) *CommandSet {
	s := &CommandSet{names: make(map[string]struct{}, len(names))}
	for _, name := range names {
		s.names[name] = struct{}{}
	}
	return s
}

// DefaultCommandSet returns the subcommands needed by repository
// services: plumbing for object and ref manipulation plus the common
// read-oriented queries.
func DefaultCommandSet() *CommandSet {
	return NewCommandSet(
		"init", "status", "log", "show", "diff", "grep",
		"rev-parse", "rev-list", "cat-file", "hash-object",
		"ls-tree", "ls-files", "ls-remote", "for-each-ref", "show-ref",
		"write-tree", "commit-tree", "mktree", "mktag",
		"update-index", "update-ref", "symbolic-ref", "read-tree",
		"add", "commit", "branch", "tag", "checkout",
		"fetch", "push", "merge-base",
	)
}

// Register adds a subcommand to the set.
func (s *CommandSet) Register(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[name] = struct{}{}
}

// Remove deletes a subcommand from the set.
func (s *CommandSet) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.names, name)
}

// Contains reports whether a subcommand is allowed.
func (s *CommandSet) Contains(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.names[name]
	return ok
}

// Names returns the allowed subcommands, sorted.
func (s *CommandSet) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.names))
	for name := range s.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SanitizerConfig bounds argument sequences against resource-exhaustion
// attacks and sizes the validation cache.
type SanitizerConfig struct {
	// MaxArgs caps the number of tokens per invocation.
	MaxArgs int

	// MaxArgLength caps the length of a single token.
	MaxArgLength int

	// MaxTotalLength caps the aggregate length of all tokens.
	MaxTotalLength int

	// CacheSize bounds the validated-fingerprint cache.
	CacheSize int

	// RestrictedFlags overrides the built-in per-command flag
	// allow-lists when non-nil.
	RestrictedFlags map[string][]string
}

// DefaultSanitizerConfig returns the default limits.
func DefaultSanitizerConfig() *SanitizerConfig {
	return &SanitizerConfig{
		MaxArgs:        64,
		MaxArgLength:   4096,
		MaxTotalLength: 64 * 1024,
		CacheSize:      256,
	}
}

// Sanitizer validates argument sequences before anything runs. A nil
// return from Sanitize guarantees: the subcommand is allow-listed, no
// prohibited global flag appears anywhere, restricted subcommands carry
// only allow-listed flags, and all size limits hold.
type Sanitizer struct {
	config     *SanitizerConfig
	commands   *CommandSet
	restricted map[string]map[string]struct{}
	cache      *fingerprintCache
}

// NewSanitizer creates a sanitizer over the given command set. A nil
// config applies DefaultSanitizerConfig.
func NewSanitizer(commands *CommandSet, config *SanitizerConfig) *Sanitizer {
	if config == nil {
		config = DefaultSanitizerConfig()
	}
	if commands == nil {
		commands = DefaultCommandSet()
	}

	restricted := restrictedCommandFlags
	if config.RestrictedFlags != nil {
		restricted = make(map[string]map[string]struct{}, len(config.RestrictedFlags))
		for command, flags := range config.RestrictedFlags {
			restricted[command] = flagSet(flags...)
		}
	}

	return &Sanitizer{
		config:     config,
		commands:   commands,
		restricted: restricted,
		cache:      newFingerprintCache(config.CacheSize),
	}
}

// Commands returns the sanitizer's command set, for registration.
func (s *Sanitizer) Commands() *CommandSet {
	return s.commands
}

// Sanitize validates an argument sequence. The sequence is never
// mutated. Identical sequences validated before are accepted from the
// fingerprint cache without re-validation.
func (s *Sanitizer) Sanitize(args []string) error {
	if len(args) == 0 {
		return &executor.InputError{Reason: "empty argument list"}
	}

	key := fingerprint(args)
	if s.cache.Seen(key) {
		return nil
	}

	if err := s.checkLimits(args); err != nil {
		return err
	}

	// Prohibited global flags are rejected before anything else so a
	// hostile flag is reported as such regardless of surrounding tokens.
	if err := s.checkProhibited(args); err != nil {
		return err
	}

	subcommand, err := s.checkSubcommand(args)
	if err != nil {
		return err
	}

	if err := s.checkRestricted(subcommand, args); err != nil {
		return err
	}

	s.cache.Add(key)
	return nil
}

// checkLimits enforces count, per-token, and aggregate size bounds, and
// rejects tokens no argv can legally carry.
func (s *Sanitizer) checkLimits(args []string) error {
	if len(args) > s.config.MaxArgs {
		return &executor.ValidationError{What: "argument count", Limit: s.config.MaxArgs, Actual: len(args)}
	}

	total := 0
	for _, arg := range args {
		if strings.ContainsRune(arg, 0) {
			return &executor.InputError{Argument: truncateToken(arg), Reason: "contains NUL byte"}
		}
		if len(arg) > s.config.MaxArgLength {
			return &executor.ValidationError{What: "argument length", Limit: s.config.MaxArgLength, Actual: len(arg)}
		}
		total += len(arg)
	}
	if total > s.config.MaxTotalLength {
		return &executor.ValidationError{What: "aggregate argument length", Limit: s.config.MaxTotalLength, Actual: total}
	}
	return nil
}

// checkSubcommand identifies the subcommand as the first token that is
// not a flag and verifies it against the allow-list.
func (s *Sanitizer) checkSubcommand(args []string) (string, error) {
	for _, arg := range args {
		if isFlagToken(arg) {
			continue
		}
		if arg == EndOfOptions {
			break
		}
		if !s.commands.Contains(arg) {
			return "", &executor.CommandNotAllowedError{Command: arg}
		}
		return arg, nil
	}
	return "", &executor.InputError{Reason: "no subcommand present"}
}

// checkProhibited rejects prohibited global flags at any position.
// Flag checking stops at the end-of-options marker.
func (s *Sanitizer) checkProhibited(args []string) error {
	for _, arg := range args {
		if arg == EndOfOptions {
			break
		}
		if !isFlagToken(arg) {
			continue
		}
		if remediation, ok := prohibitedFlags[normalizeFlag(arg)]; ok {
			return &executor.FlagNotAllowedError{Flag: arg, Remediation: remediation}
		}
	}
	return nil
}

// checkRestricted enforces the per-command flag allow-list for the
// higher-risk read-oriented subcommands.
func (s *Sanitizer) checkRestricted(subcommand string, args []string) error {
	allowed, ok := s.restricted[subcommand]
	if !ok {
		return nil
	}

	for _, arg := range args {
		if arg == EndOfOptions {
			break
		}
		if !isFlagToken(arg) {
			continue
		}
		if _, ok := allowed[normalizeFlag(arg)]; !ok {
			return &executor.FlagNotAllowedError{
				Command:     subcommand,
				Flag:        arg,
				Remediation: "only the registered read-only flags are accepted for this subcommand",
			}
		}
	}
	return nil
}

func truncateToken(token string) string {
	const max = 64
	if len(token) <= max {
		return token
	}
	return token[:max] + "..."
}
