package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/govtag/internal/config"
	"github.com/roach88/govtag/internal/engine"
	"github.com/roach88/govtag/internal/manifest"
	"github.com/roach88/govtag/internal/metric"
	"github.com/roach88/govtag/internal/model"
	"github.com/roach88/govtag/internal/store"
	"github.com/roach88/govtag/internal/vcs"
)

// session is the per-command wiring: logger, loaded config and backend.
type session struct {
	opts    *RootOptions
	file    *config.File
	backend vcs.Backend
	git     *vcs.Git // nil when Backend is overridden
	logger  *slog.Logger
	out     *OutputFormatter
}

// newLogger configures slog the same way for every command: text to
// stderr, debug when --verbose.
func newLogger(verbose bool, w io.Writer) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	return slog.New(handler)
}

func openSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	s := &session{
		opts:   opts,
		logger: newLogger(opts.Verbose, cmd.ErrOrStderr()),
		out: &OutputFormatter{
			Format:    opts.Format,
			Writer:    cmd.OutOrStdout(),
			ErrWriter: cmd.ErrOrStderr(),
			Verbose:   opts.Verbose,
		},
	}

	path := opts.Config
	if path == "" {
		found, err := config.Find(repoDir(opts))
		if err != nil {
			return s, err
		}
		path = found
	}
	s.logger.Debug("loading config", "path", path)
	file, err := config.Load(path)
	if err != nil {
		return s, err
	}
	s.file = file

	if opts.Backend != nil {
		s.backend = opts.Backend
	} else {
		s.git = vcs.NewGit(repoDir(opts))
		s.git.Logger = s.logger
		s.backend = s.git
	}
	return s, nil
}

func repoDir(opts *RootOptions) string {
	if opts.Repo == "" {
		return "."
	}
	return opts.Repo
}

func (s *session) lookupEnv() func(string) (string, bool) {
	if s.opts.LookupEnv != nil {
		return s.opts.LookupEnv
	}
	return os.LookupEnv
}

// signer loads the configured seal key.
func (s *session) signer() (manifest.Signer, error) {
	return s.file.Signer(s.lookupEnv())
}

// verifier is the seal checker for inspect; a configured public key means
// no secret is needed.
func (s *session) verifier() (manifest.Signer, error) {
	return s.file.Verifier(s.lookupEnv())
}

// testResults carries --passed/--total when given on the command line.
type testResults struct {
	passed, total int
}

func addTestResultFlags(cmd *cobra.Command, r *testResults) {
	cmd.Flags().IntVar(&r.passed, "passed", 0, "number of passed tests (skips test_command)")
	cmd.Flags().IntVar(&r.total, "total", 0, "total number of tests (skips test_command)")
}

// runner picks the test-result source: explicit flags win, then the
// configured test_command.
func (s *session) runner(cmd *cobra.Command, r *testResults) (metric.Runner, error) {
	passedSet, totalSet := cmd.Flags().Changed("passed"), cmd.Flags().Changed("total")
	switch {
	case passedSet && totalSet:
		return metric.StaticRunner{Passed: r.passed, Total: r.total}, nil
	case passedSet || totalSet:
		return nil, model.NewError(model.ErrCodeConfigInvalid, "--passed and --total must be given together")
	case len(s.file.TestCommand) > 0:
		return &metric.CommandRunner{Command: s.file.TestCommand, Dir: repoDir(s.opts), Logger: s.logger}, nil
	}
	return nil, model.NewError(model.ErrCodeNoTestData, "no test results: pass --passed/--total or set test_command")
}

// noTests is the runner for commands that never compute a metric.
type noTests struct{}

func (noTests) RunTests(context.Context) (model.TestSummary, error) {
	return model.TestSummary{}, model.NewError(model.ErrCodeNoTestData, "no test results")
}

// newEngine builds an engine over the session's config and backend.
// signer may be nil for commands that never tag.
func (s *session) newEngine(cfg engine.Config, runner metric.Runner, signer manifest.Signer, extra ...engine.Option) (*engine.Engine, error) {
	opts := []engine.Option{engine.WithLogger(s.logger)}
	if s.opts.RunIDs != nil {
		opts = append(opts, engine.WithRunIDs(s.opts.RunIDs))
	}
	if s.opts.Clock != nil {
		opts = append(opts, engine.WithClock(s.opts.Clock))
	}
	return engine.New(cfg, s.backend, runner, signer, append(opts, extra...)...)
}

// openLedger opens the configured ledger, or returns nil if none is set.
func (s *session) openLedger() (*store.Store, error) {
	path := s.file.LedgerPath()
	if path == "" {
		return nil, nil
	}
	s.logger.Debug("opening ledger", "path", path)
	st, err := store.Open(path)
	if err != nil {
		return nil, model.WrapError(model.ErrCodeConfigInvalid, "open ledger", err)
	}
	return st, nil
}

func (s *session) closeLedger(st *store.Store) {
	if st == nil {
		return
	}
	if err := st.Close(); err != nil {
		s.logger.Error("error closing ledger", "error", err)
	}
}
