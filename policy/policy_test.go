package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

const samplePolicy = `
version: "1.0"
commands:
  - name: rev-parse
  - name: cat-file
  - name: log
    allowed_flags: ["--oneline", "--max-count", "-n"]
  - name: push
    enabled: false
`

func TestCompileFromYAML(t *testing.T) {
	var config Config
	if err := yaml.Unmarshal([]byte(samplePolicy), &config); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	compiled, err := Compile(&config)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	commands := compiled.Commands()
	for _, name := range []string{"rev-parse", "cat-file", "log"} {
		if !commands.Contains(name) {
			t.Errorf("command %q should be enabled", name)
		}
	}
	if commands.Contains("push") {
		t.Error("disabled command must not be registered")
	}

	flags := compiled.RestrictedFlags()
	if len(flags["log"]) != 3 {
		t.Errorf("log should carry 3 allowed flags, got %v", flags["log"])
	}
	if _, ok := flags["rev-parse"]; ok {
		t.Error("commands without allowed_flags must stay unrestricted")
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			"valid",
			Config{Version: "1.0", Commands: []CommandPolicy{{Name: "status"}}},
			false,
		},
		{
			"missing version",
			Config{Commands: []CommandPolicy{{Name: "status"}}},
			true,
		},
		{
			"no commands",
			Config{Version: "1.0"},
			true,
		},
		{
			"unnamed command",
			Config{Version: "1.0", Commands: []CommandPolicy{{}}},
			true,
		},
		{
			"duplicate command",
			Config{Version: "1.0", Commands: []CommandPolicy{{Name: "status"}, {Name: "status"}}},
			true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.config.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestRestrictedFlagsReturnsCopies(t *testing.T) {
	compiled, err := Compile(&Config{
		Version:  "1.0",
		Commands: []CommandPolicy{{Name: "log", AllowedFlags: []string{"--oneline"}}},
	})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	first := compiled.RestrictedFlags()
	first["log"][0] = "mutated"
	second := compiled.RestrictedFlags()
	if second["log"][0] != "--oneline" {
		t.Error("RestrictedFlags must hand out copies")
	}
}

func TestLoaderReadsAndCaches(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "policy.yaml"), []byte(samplePolicy), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	loader, err := NewLoader(dir, "policy.yaml")
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}
	if loader.Get() != nil {
		t.Fatal("Get before Load should return nil")
	}

	compiled, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if compiled.Hash() == "" {
		t.Error("loaded policy should carry a content hash")
	}

	// Unchanged file: the cached compilation comes back.
	again, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if again != compiled {
		t.Error("unchanged file should return the cached policy")
	}
	if loader.Get() != compiled {
		t.Error("Get should return the last loaded policy")
	}
}

func TestLoaderRecompilesOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(path, []byte(samplePolicy), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	loader, err := NewLoader(dir, "policy.yaml")
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}
	first, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	updated := samplePolicy + "  - name: status\n"
	if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
		t.Fatalf("rewriting fixture: %v", err)
	}

	second, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if second == first {
		t.Fatal("changed file should produce a new compilation")
	}
	if !second.Commands().Contains("status") {
		t.Error("reloaded policy should reflect the new command")
	}
}

func TestLoaderRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "policy.yaml"), []byte("version: [broken"), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	loader, err := NewLoader(dir, "policy.yaml")
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}
	if _, err := loader.Load(context.Background()); err == nil {
		t.Error("malformed YAML should fail to load")
	}
}
