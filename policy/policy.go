// Package policy loads command capability sets from YAML files and
// compiles them into the allow-lists the sanitizer enforces.
package policy

import (
	"fmt"

	"github.com/victoralfred/gitsafe/validation"
)

// Config is the YAML shape of a capability-set file.
//
// Example:
//
//	version: "1.0"
//	commands:
//	  - name: rev-parse
//	  - name: cat-file
//	  - name: log
//	    allowed_flags: ["--oneline", "--max-count", "-n"]
//	  - name: push
//	    enabled: false
type Config struct {
	// Version is the schema version.
	Version string `yaml:"version"`

	// Commands are the allow-listed subcommands.
	Commands []CommandPolicy `yaml:"commands"`
}

// CommandPolicy describes one allow-listed subcommand.
type CommandPolicy struct {
	// Name is the subcommand.
	Name string `yaml:"name"`

	// Enabled defaults to true; set false to keep an entry in the file
	// while disabling it.
	Enabled *bool `yaml:"enabled,omitempty"`

	// AllowedFlags, when present, restricts the subcommand to exactly
	// these flags.
	AllowedFlags []string `yaml:"allowed_flags,omitempty"`
}

// Validate checks the configuration for structural problems.
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("policy: version is required")
	}
	if len(c.Commands) == 0 {
		return fmt.Errorf("policy: at least one command is required")
	}
	seen := make(map[string]struct{}, len(c.Commands))
	for i, command := range c.Commands {
		if command.Name == "" {
			return fmt.Errorf("policy: command %d has no name", i)
		}
		if _, ok := seen[command.Name]; ok {
			return fmt.Errorf("policy: duplicate command %q", command.Name)
		}
		seen[command.Name] = struct{}{}
	}
	return nil
}

// CompiledPolicy is a ready-to-use capability set.
type CompiledPolicy struct {
	commands    *validation.CommandSet
	flagsByName map[string][]string
	hash        string
}

// Compile validates the configuration and builds the capability set.
func Compile(config *Config) (*CompiledPolicy, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	commands := validation.NewCommandSet()
	flagsByName := make(map[string][]string)
	for _, command := range config.Commands {
		if command.Enabled != nil && !*command.Enabled {
			continue
		}
		commands.Register(command.Name)
		if len(command.AllowedFlags) > 0 {
			flagsByName[command.Name] = append([]string(nil), command.AllowedFlags...)
		}
	}

	return &CompiledPolicy{
		commands:    commands,
		flagsByName: flagsByName,
	}, nil
}

// Commands returns the compiled command allow-list.
func (p *CompiledPolicy) Commands() *validation.CommandSet {
	return p.commands
}

// RestrictedFlags returns per-command flag allow-lists for the
// sanitizer configuration.
func (p *CompiledPolicy) RestrictedFlags() map[string][]string {
	out := make(map[string][]string, len(p.flagsByName))
	for name, flags := range p.flagsByName {
		out[name] = append([]string(nil), flags...)
	}
	return out
}

// Hash returns the content hash of the source file, when loaded from
// one.
func (p *CompiledPolicy) Hash() string {
	return p.hash
}
