// Package harness runs governance scenarios against the real tag engine.
//
// A scenario describes a build tree, the test summary the runner reports,
// the tags already in the repository and the paths changed since the last
// one. The harness lays the tree out in a temp directory, runs Tag over an
// in-memory VCS and a fresh ledger, and checks the outcome. Reruns repeats
// Tag against the same commit.
//
// # Scenario Format
//
//	name: beta_minor_bump
//	description: "A core change on a 0.36 build tags a beta minor release"
//	artifacts:
//	  - path: build/alpha
//	    content: "alpha\n"
//	  - path: build/delta
//	    missing: true
//	tests: { passed: 9, total: 10 }
//	tags: [v1.2.3-stable]
//	changed: [src/engine.c]
//	config:
//	  threshold: 0.3
//	dry_run: false
//	expect:
//	  state: done
//	  status: success
//	  tag: v1.3.0-beta
//	  sinphase: 0.36
//	  path: [verifying, computing, gated, tagging, done]
//	  writes: 1
//
// Only expect.state is required; other expectations are checked when set.
//
// # Determinism
//
// Every run uses HeadCommit, BuildTime, the run ID DefaultRunID (reruns
// append -2, -3 and so on) and an
// HMAC signer keyed with SigningKey, so the same scenario always produces
// the same annotation. RunWithGolden snapshots the state path and
// annotation to testdata/golden/{name}.golden.
package harness
