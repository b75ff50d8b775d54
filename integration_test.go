package gitsafe

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/victoralfred/gitsafe/stream"
)

// newGitClient skips the test when no git binary is installed and
// returns a default client otherwise.
func newGitClient(t *testing.T) Client {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not installed")
	}
	client, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Shutdown(context.Background())
	})
	return client
}

// initRepo creates an empty repository in a temporary directory.
func initRepo(t *testing.T, client Client) string {
	t.Helper()
	dir := t.TempDir()
	inv, err := Cmd("init").WithWorkingDir(dir).Build()
	if err != nil {
		t.Fatalf("building init invocation: %v", err)
	}
	if _, err := client.Execute(context.Background(), inv); err != nil {
		t.Fatalf("git init failed: %v", err)
	}
	return dir
}

func identityEnv() map[string]string {
	return map[string]string{
		"GIT_AUTHOR_NAME":     "Test Author",
		"GIT_AUTHOR_EMAIL":    "author@example.com",
		"GIT_COMMITTER_NAME":  "Test Committer",
		"GIT_COMMITTER_EMAIL": "committer@example.com",
	}
}

func TestIntegrationInitAndRevParse(t *testing.T) {
	client := newGitClient(t)
	dir := initRepo(t, client)

	inv, err := Cmd("rev-parse", "--is-inside-work-tree").WithWorkingDir(dir).Build()
	if err != nil {
		t.Fatalf("building invocation: %v", err)
	}
	out, err := client.Execute(context.Background(), inv)
	if err != nil {
		t.Fatalf("rev-parse failed: %v", err)
	}
	if out != "true" {
		t.Errorf("rev-parse output = %q, want %q", out, "true")
	}
}

func TestIntegrationUnknownFlagReachesProcess(t *testing.T) {
	client := newGitClient(t)
	dir := initRepo(t, client)

	// rev-parse is unrestricted, so the unknown flag passes sanitization
	// and the process itself rejects it.
	inv, err := Cmd("rev-parse", "--non-existent-flag").WithWorkingDir(dir).Build()
	if err != nil {
		t.Fatalf("building invocation: %v", err)
	}

	// The status path treats the non-zero exit as data.
	result, err := client.ExecuteWithStatus(context.Background(), inv)
	if err != nil {
		t.Fatalf("ExecuteWithStatus must not fail on a non-zero exit: %v", err)
	}
	if result.Success() {
		t.Error("unknown flag should produce a non-zero exit")
	}

	// The plain path classifies it as a terminal failure.
	_, err = client.Execute(context.Background(), inv)
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected CommandError, got %v", err)
	}
	if IsRetryable(err) {
		t.Error("an unknown flag is not lock contention")
	}
}

func TestIntegrationHashObjectRoundTrip(t *testing.T) {
	client := newGitClient(t)
	dir := initRepo(t, client)

	payload := strings.Repeat("alpha bravo charlie delta\n", 2000)

	write, err := Cmd("hash-object", "-w", "--stdin").
		WithWorkingDir(dir).
		WithInput(payload).
		Build()
	if err != nil {
		t.Fatalf("building invocation: %v", err)
	}
	hash, err := client.Execute(context.Background(), write)
	if err != nil {
		t.Fatalf("hash-object failed: %v", err)
	}
	if len(hash) < 40 {
		t.Fatalf("unexpected object hash %q", hash)
	}

	read, err := Cmd("cat-file", "-p", hash).WithWorkingDir(dir).Build()
	if err != nil {
		t.Fatalf("building invocation: %v", err)
	}
	result, err := client.ExecuteStream(context.Background(), read)
	if err != nil {
		t.Fatalf("cat-file failed: %v", err)
	}
	defer result.Close()

	out, err := io.ReadAll(result.Stream)
	if err != nil {
		t.Fatalf("draining stream: %v", err)
	}
	if string(out) != payload {
		t.Fatalf("round-trip corrupted payload: got %d bytes, want %d", len(out), len(payload))
	}

	outcome, err := result.Outcome(context.Background())
	if err != nil {
		t.Fatalf("Outcome failed: %v", err)
	}
	if outcome.ExitCode != 0 {
		t.Errorf("cat-file exited %d: %s", outcome.ExitCode, outcome.Stderr)
	}
}

func TestIntegrationCommitWithFilteredEnvironment(t *testing.T) {
	client := newGitClient(t)
	dir := initRepo(t, client)

	if err := os.WriteFile(filepath.Join(dir, "file.txt"), []byte("content\n"), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	add, err := Cmd("add", "file.txt").WithWorkingDir(dir).Build()
	if err != nil {
		t.Fatalf("building invocation: %v", err)
	}
	if _, err := client.Execute(context.Background(), add); err != nil {
		t.Fatalf("git add failed: %v", err)
	}

	// Identity flows through the environment allow-list; -c and
	// configuration variables are blocked, so this is the only channel.
	commit, err := Cmd("commit", "-m", "initial").
		WithWorkingDir(dir).
		WithEnvMap(identityEnv()).
		Build()
	if err != nil {
		t.Fatalf("building invocation: %v", err)
	}
	if _, err := client.Execute(context.Background(), commit); err != nil {
		t.Fatalf("git commit failed: %v", err)
	}

	log, err := Cmd("log", "--oneline").WithWorkingDir(dir).Build()
	if err != nil {
		t.Fatalf("building invocation: %v", err)
	}
	out, err := client.Execute(context.Background(), log)
	if err != nil {
		t.Fatalf("git log failed: %v", err)
	}
	if !strings.Contains(out, "initial") {
		t.Errorf("log output %q should mention the commit", out)
	}
}

func TestIntegrationOutputLimitTearsDown(t *testing.T) {
	client := newGitClient(t)
	dir := initRepo(t, client)

	payload := strings.Repeat("overflow line\n", 100)
	write, err := Cmd("hash-object", "-w", "--stdin").
		WithWorkingDir(dir).
		WithInput(payload).
		Build()
	if err != nil {
		t.Fatalf("building invocation: %v", err)
	}
	hash, err := client.Execute(context.Background(), write)
	if err != nil {
		t.Fatalf("hash-object failed: %v", err)
	}

	limited, err := NewBuilder().WithOutputLimit(64).Build()
	if err != nil {
		t.Fatalf("building client: %v", err)
	}
	defer limited.Shutdown(context.Background())

	read, err := Cmd("cat-file", "-p", hash).WithWorkingDir(dir).Build()
	if err != nil {
		t.Fatalf("building invocation: %v", err)
	}
	_, err = limited.Execute(context.Background(), read)
	if !errors.Is(err, stream.ErrOutputLimit) {
		t.Errorf("expected output-limit failure, got %v", err)
	}
}
