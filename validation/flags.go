package validation

import "strings"

// EndOfOptions is the marker after which tokens are positional data and
// are never interpreted as flags.
const EndOfOptions = "--"

// prohibitedFlags are global flags that redirect the working directory,
// override configuration, or relocate binary resolution. They are
// rejected at any position, in bare and flag=value form, matched
// case-insensitively. Values are remediation text.
var prohibitedFlags = map[string]string{
	"-c":             "pass configuration through the environment allow-list or trusted config files",
	"--git-dir":      "select the repository through the invocation working directory",
	"--work-tree":    "select the work tree through the invocation working directory",
	"--exec-path":    "binary resolution is fixed by the execution environment",
	"--namespace":    "ref namespacing must be configured outside the invocation",
	"--super-prefix": "internal flag, never valid from callers",
	"--config-env":   "pass configuration through the environment allow-list",
	"--upload-pack":  "transport program overrides are not permitted",
	"--receive-pack": "transport program overrides are not permitted",
	"--exec":         "transport program overrides are not permitted",
}

// restrictedCommandFlags lists higher-risk, read-oriented subcommands
// whose flags are restricted to a per-command allow-list. These commands
// accept flags that can write files or launch external programs, so
// anything unlisted is rejected.
var restrictedCommandFlags = map[string]map[string]struct{}{
	"log": flagSet(
		"--oneline", "--format", "--pretty", "--max-count", "-n",
		"--follow", "--all", "--graph", "--decorate", "--reverse",
		"--no-color", "--date", "-z",
	),
	"diff": flagSet(
		"--stat", "--numstat", "--shortstat", "--name-only",
		"--name-status", "--cached", "--staged", "--no-color", "-z",
	),
	"show": flagSet(
		"--format", "--pretty", "--stat", "--name-only", "--name-status",
		"--no-patch", "--no-color", "-s", "-z",
	),
	"grep": flagSet(
		"--line-number", "--count", "--name-only", "--fixed-strings",
		"--ignore-case", "--no-color", "-n", "-l", "-i", "-e", "-z",
	),
}

func flagSet(flags ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(flags))
	for _, flag := range flags {
		set[flag] = struct{}{}
	}
	return set
}

// normalizeFlag lowercases a flag token and strips any =value suffix,
// so "--Git-Dir=/tmp" and "--git-dir" compare equal.
func normalizeFlag(token string) string {
	if idx := strings.IndexByte(token, '='); idx >= 0 {
		token = token[:idx]
	}
	return strings.ToLower(token)
}

// isFlagToken reports whether a token is interpreted as a flag.
func isFlagToken(token string) bool {
	return len(token) > 1 && token[0] == '-' && token != EndOfOptions
}
