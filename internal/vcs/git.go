package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/roach88/govtag/internal/model"
)

// Git implements Backend by invoking the git binary in Dir.
type Git struct {
	// Dir is the repository work tree.
	Dir string

	// Env is appended to the process environment of every git call
	// (e.g. GIT_COMMITTER_NAME for the tagger identity).
	Env []string

	Logger *slog.Logger
}

// NewGit creates a Git backend for the repository at dir.
func NewGit(dir string) *Git {
	return &Git{Dir: dir}
}

// gitError carries git's stderr so callers can see why a command failed.
type gitError struct {
	args   []string
	stderr string
	err    error
}

func (e *gitError) Error() string {
	msg := strings.TrimSpace(e.stderr)
	if msg == "" {
		return fmt.Sprintf("git %s: %v", strings.Join(e.args, " "), e.err)
	}
	return fmt.Sprintf("git %s: %v: %s", strings.Join(e.args, " "), e.err, msg)
}

func (e *gitError) Unwrap() error { return e.err }

func (e *gitError) exitCode() int {
	var exitErr *exec.ExitError
	if errors.As(e.err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func (g *Git) run(ctx context.Context, stdin string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.Dir
	if len(g.Env) > 0 {
		cmd.Env = append(os.Environ(), g.Env...)
	}
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	g.logger().Debug("git", "args", strings.Join(args, " "), "error", err)
	if err != nil {
		return "", &gitError{args: args, stderr: stderr.String(), err: err}
	}
	return stdout.String(), nil
}

func (g *Git) logger() *slog.Logger {
	if g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

// HeadCommit implements Backend.
func (g *Git) HeadCommit(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "", "rev-parse", "HEAD")
	if err != nil {
		return "", vcsError("resolve HEAD", err)
	}
	return strings.TrimSpace(out), nil
}

// MostRecentTag implements Backend.
//
// Tags already on ref are passed to describe as --exclude patterns. Git
// ref names cannot contain glob characters, so each pattern matches
// exactly one tag.
func (g *Git) MostRecentTag(ctx context.Context, ref string) (string, bool, error) {
	if ref == "" {
		ref = "HEAD"
	}
	out, err := g.run(ctx, "", "tag", "--points-at", ref)
	if err != nil {
		return "", false, vcsError("list tags at "+ref, err)
	}

	args := []string{"describe", "--tags", "--abbrev=0"}
	for _, t := range splitLines(out) {
		args = append(args, "--exclude", t)
	}
	args = append(args, ref)

	out, err = g.run(ctx, "", args...)
	if err != nil {
		var ge *gitError
		if errors.As(err, &ge) && noTagsFound(ge.stderr) {
			return "", false, nil
		}
		return "", false, vcsError("find most recent tag", err)
	}
	return strings.TrimSpace(out), true, nil
}

func noTagsFound(stderr string) bool {
	return strings.Contains(stderr, "No names found") ||
		strings.Contains(stderr, "No tags can describe") ||
		strings.Contains(stderr, "cannot describe")
}

// ListChangedPaths implements Backend.
func (g *Git) ListChangedPaths(ctx context.Context, fromRef, toRef string) ([]string, error) {
	if toRef == "" {
		toRef = "HEAD"
	}
	var (
		out string
		err error
	)
	if fromRef == "" {
		out, err = g.run(ctx, "", "ls-tree", "-r", "--name-only", toRef)
	} else {
		out, err = g.run(ctx, "", "diff", "--name-only", "--no-renames", fromRef, toRef)
	}
	if err != nil {
		return nil, vcsError("list changed paths", err)
	}
	return splitLines(out), nil
}

// TagExists implements Backend.
func (g *Git) TagExists(ctx context.Context, name string) (bool, error) {
	_, err := g.run(ctx, "", "rev-parse", "-q", "--verify", "refs/tags/"+name)
	if err == nil {
		return true, nil
	}
	var ge *gitError
	if errors.As(err, &ge) && ge.exitCode() == 1 {
		return false, nil
	}
	return false, vcsError("check tag", err)
}

// CreateAnnotatedTag implements Backend.
//
// The annotation is passed verbatim on stdin; --cleanup=verbatim keeps git
// from rewriting it, so the stored text is byte-identical to the manifest.
func (g *Git) CreateAnnotatedTag(ctx context.Context, name, annotation, target string) error {
	exists, err := g.TagExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return model.NewTagExistsError(name)
	}

	_, err = g.run(ctx, annotation, "tag", "-a", "--cleanup=verbatim", "-F", "-", name, target)
	if err != nil {
		var ge *gitError
		if errors.As(err, &ge) && strings.Contains(ge.stderr, "already exists") {
			return model.NewTagExistsError(name)
		}
		return vcsError("create tag", err)
	}
	return nil
}

// TagAnnotation implements Backend.
func (g *Git) TagAnnotation(ctx context.Context, name string) (string, error) {
	out, err := g.run(ctx, "", "cat-file", "tag", "refs/tags/"+name)
	if err != nil {
		return "", vcsError("read tag", err)
	}
	// Tag object: header lines, blank line, message.
	if i := strings.Index(out, "\n\n"); i >= 0 {
		return out[i+2:], nil
	}
	return "", model.NewError(model.ErrCodeVCS, fmt.Sprintf("tag %q has no annotation", name))
}

// LockPath returns the advisory lock file used to serialize tagging runs
// against this repository.
func (g *Git) LockPath(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "", "rev-parse", "--git-dir")
	if err != nil {
		return "", vcsError("locate git dir", err)
	}
	dir := strings.TrimSpace(out)
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(g.Dir, dir)
	}
	return filepath.Join(dir, "govtag.lock"), nil
}

func vcsError(op string, err error) error {
	return model.WrapError(model.ErrCodeVCS, op, err)
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
