package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/govtag/internal/engine"
	"github.com/roach88/govtag/internal/metric"
	"github.com/roach88/govtag/internal/model"
	"github.com/roach88/govtag/internal/vcs"
)

// TagOptions holds flags for the tag command.
type TagOptions struct {
	*RootOptions
	DryRun           bool
	RequireArtifacts bool
	results          testResults
}

// NewTagCommand creates the tag command.
func NewTagCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TagOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Run the governance pipeline and tag HEAD",
		Long: `Run the full pipeline on HEAD: verify artifacts, compute sinphase and
tier, resolve the next version, build the sealed governance manifest and,
if sinphase meets the threshold, create one annotated tag.

Exit status is 0 on success, 1 when the tag was created but artifacts were
missing, and 2 on any failure (no tag is created).

The seal key is read from the environment variable or file named in the
config's signing section (default env GOVTAG_SIGNING_KEY).

Runs against a git repository hold .git/govtag.lock while they work. A lock
left by a killed run on the same host is removed automatically once its
process is gone; for a lock from another host, remove the file by hand after
checking that no tagging run is active.

Examples:
  govtag tag --passed 97 --total 100
  govtag tag --dry-run --format json
  govtag tag --require-artifacts`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTag(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "run through the gate and print the tag without creating it")
	cmd.Flags().BoolVar(&opts.RequireArtifacts, "require-artifacts", false, "fail if any declared artifact is missing")
	addTestResultFlags(cmd, &opts.results)

	return cmd
}

func runTag(opts *TagOptions, cmd *cobra.Command) error {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return reportError(s.out, nil, err)
	}

	cfg := s.file.Engine()
	if opts.RequireArtifacts {
		cfg.RequireArtifacts = true
	}

	runner, err := s.runner(cmd, &opts.results)
	if err != nil {
		return reportError(s.out, nil, err)
	}
	signer, err := s.signer()
	if err != nil {
		return reportError(s.out, nil, err)
	}

	ledger, err := s.openLedger()
	if err != nil {
		return reportError(s.out, nil, err)
	}
	defer s.closeLedger(ledger)

	var extra []engine.Option
	if ledger != nil {
		extra = append(extra, engine.WithRecorder(ledger))
	}
	eng, err := s.newEngine(cfg, runner, signer, extra...)
	if err != nil {
		return reportError(s.out, nil, err)
	}

	lock, err := s.acquireLock(ctx)
	if err != nil {
		return reportError(s.out, nil, err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			s.logger.Error("error releasing lock", "error", err)
		}
	}()

	rep, err := eng.Tag(ctx, engine.TagOptions{DryRun: opts.DryRun})
	s.out.TraceID = rep.RunID
	if s.out.Format != "json" {
		printTag(s.out, rep)
	}
	if err != nil {
		return reportError(s.out, rep, err)
	}
	if rep.Status != model.StatusSuccess {
		_ = s.out.Result(rep, missingWarning(rep))
		return NewExitError(ExitCodeFor(rep.Status), "tagged with missing artifacts")
	}
	return s.out.Result(rep, nil)
}

// acquireLock serializes tag runs per repository. Injected backends have
// no lock file.
func (s *session) acquireLock(ctx context.Context) (*vcs.Lock, error) {
	if s.git == nil {
		return nil, nil
	}
	path, err := s.git.LockPath(ctx)
	if err != nil {
		return nil, err
	}
	lock, err := vcs.AcquireLock(path)
	if err != nil {
		e := model.WrapError(model.ErrCodeVCS, "repository is locked", err).WithDetail("lock", path)
		var locked *vcs.LockedError
		if errors.As(err, &locked) {
			e = e.WithDetail("owner", locked.Owner.String())
		}
		return nil, e
	}
	s.logger.Debug("lock acquired", "path", path)
	return lock, nil
}

// missingWarning rebuilds the advisory error for a run that tagged despite
// missing artifacts, so it shows up in the output.
func missingWarning(rep *engine.TagReport) error {
	return model.NewArtifactMissingError(rep.Missing, len(rep.Missing)+rep.Manifest.ArtifactCount)
}

func printTag(f *OutputFormatter, rep *engine.TagReport) {
	switch {
	case rep.State == engine.StateDone && rep.DryRun:
		fmt.Fprintf(f.Writer, "dry run: would tag %s as %s\n", shortCommit(rep.Commit), rep.TagName)
	case rep.State == engine.StateDone:
		fmt.Fprintf(f.Writer, "tagged %s as %s\n", shortCommit(rep.Commit), rep.TagName)
	default:
		fmt.Fprintf(f.Writer, "not tagged (stopped in %s)\n", lastActiveState(rep))
	}

	if rep.Manifest != nil {
		fmt.Fprintf(f.Writer, "sinphase %s, tier %s, threshold %.4f", metric.Sinphase(rep.Sinphase), rep.Tier, rep.Threshold)
		if rep.Version != nil {
			fmt.Fprintf(f.Writer, ", %s bump %s -> %s", rep.Version.Bump, rep.Version.Previous, rep.Version.Next)
		}
		fmt.Fprintln(f.Writer)
	}
	if f.Verbose && rep.Annotation != "" {
		fmt.Fprintln(f.Writer)
		fmt.Fprint(f.Writer, rep.Annotation)
	}
}

// lastActiveState is the state the run failed in.
func lastActiveState(rep *engine.TagReport) engine.State {
	if n := len(rep.Transitions); n > 0 {
		return rep.Transitions[n-1].From
	}
	return rep.State
}

func shortCommit(c string) string {
	if len(c) > 12 {
		return c[:12]
	}
	return c
}
