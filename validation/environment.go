package validation

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// allowedEnvironment names the only variables copied into a child
// process: author and committer identity, localization, and binary-path
// resolution.
var allowedEnvironment = map[string]struct{}{
	"GIT_AUTHOR_NAME":     {},
	"GIT_AUTHOR_EMAIL":    {},
	"GIT_AUTHOR_DATE":     {},
	"GIT_COMMITTER_NAME":  {},
	"GIT_COMMITTER_EMAIL": {},
	"GIT_COMMITTER_DATE":  {},
	"LANG":                {},
	"LANGUAGE":            {},
	"LC_ALL":              {},
	"LC_CTYPE":            {},
	"TZ":                  {},
	"PATH":                {},
	"HOME":                {},
}

// deniedEnvironmentPrefixes matches variables known to enable
// configuration injection. The deny list wins even for a name that
// collides with an allow-list entry, so extending the allow-list can
// never reopen an injection channel.
var deniedEnvironmentPrefixes = []string{
	"GIT_CONFIG",
	"GIT_DIR",
	"GIT_WORK_TREE",
	"GIT_NAMESPACE",
	"GIT_CEILING_DIRECTORIES",
	"GIT_EXEC_PATH",
	"GIT_SSH",
	"GIT_PROXY_COMMAND",
	"GIT_EDITOR",
	"GIT_PAGER",
	"GIT_INDEX_FILE",
	"GIT_OBJECT_DIRECTORY",
	"GIT_ALTERNATE_OBJECT_DIRECTORIES",
}

// FilterEnvironment copies only allow-listed variables out of a raw
// environment. Pure: the input map is never modified.
func FilterEnvironment(raw map[string]string) map[string]string {
	filtered := make(map[string]string)
	for key, value := range raw {
		if isDeniedEnvironment(key) {
			continue
		}
		if _, ok := allowedEnvironment[key]; ok {
			filtered[key] = value
		}
	}
	return filtered
}

func isDeniedEnvironment(key string) bool {
	upper := strings.ToUpper(key)
	for _, prefix := range deniedEnvironmentPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}

// AmbientEnvironment parses the process environment into a map.
func AmbientEnvironment() map[string]string {
	raw := make(map[string]string)
	for _, entry := range os.Environ() {
		if idx := strings.IndexByte(entry, '='); idx > 0 {
			raw[entry[:idx]] = entry[idx+1:]
		}
	}
	return raw
}

// MergeEnvironment merges base with overrides, overrides winning.
func MergeEnvironment(base, override map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(override))
	for key, value := range base {
		merged[key] = value
	}
	for key, value := range override {
		merged[key] = value
	}
	return merged
}

// BuildEnviron flattens a map into KEY=VALUE form, sorted for
// deterministic child environments.
func BuildEnviron(env map[string]string) []string {
	entries := make([]string, 0, len(env))
	for key, value := range env {
		entries = append(entries, fmt.Sprintf("%s=%s", key, value))
	}
	sort.Strings(entries)
	return entries
}
