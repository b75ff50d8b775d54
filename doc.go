// Package gitsafe provides a secure, hardened execution layer for the
// git command-line tool.
//
// The library centralizes all git process invocation behind a minimal
// API so higher-level repository services never touch os/exec directly.
// Every invocation passes through one pipeline: argument sanitization
// against an allow-listed command set, environment filtering down to a
// strict allow-list, a host-environment adapter that spawns the process,
// a single-owner output stream, failure classification, and a bounded
// retry orchestrator for transient lock contention.
//
// # Quick Start
//
//	client, err := gitsafe.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Shutdown(context.Background())
//
//	inv, err := gitsafe.Cmd("rev-parse", "--is-inside-work-tree").
//	    WithWorkingDir("/srv/repos/app").
//	    Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	out, err := client.Execute(ctx, inv)
//
// # Security Model
//
//   - Command allow-listing: only registered subcommands can execute.
//   - Flag screening: global flags that redirect the working directory,
//     override configuration, or relocate binary resolution are
//     rejected at any position; higher-risk read commands are further
//     restricted to per-command flag allow-lists.
//   - Environment filtering: the child sees only allow-listed
//     variables; configuration-injection variables never pass, even
//     under colliding names.
//   - Resource bounds: argument counts and sizes, buffered output, and
//     captured diagnostics are all hard-capped.
//
// # Architecture
//
//   - gitsafe (this package): entry point and wiring
//   - executor: client, retry orchestrator, failure taxonomy
//   - validation: argument sanitization and environment filtering
//   - runtime: host-environment process adapters
//   - stream: single-owner output streams with bounded collection
//   - resilience: retry policy and rate limiting
//   - policy: YAML command capability sets
//   - observability: OpenTelemetry metrics and audit logging
//   - config: configuration
//
// # Thread Safety
//
// A Client is safe for concurrent use by multiple goroutines. Each
// invocation owns its own process and stream; no ordering guarantee
// exists between independently issued invocations.
package gitsafe
