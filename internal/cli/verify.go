package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/govtag/internal/engine"
)

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check declared build artifacts",
		Long: `Check that every declared artifact exists and hash the ones that do.

Missing artifacts are advisory: the command reports them and exits 1.

Examples:
  govtag verify
  govtag verify --config ci/governance.cue --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(rootOpts, cmd)
		},
	}
	return cmd
}

func runVerify(opts *RootOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := openSession(opts, cmd)
	if err != nil {
		return reportError(s.out, nil, err)
	}
	eng, err := s.newEngine(s.file.Engine(), noTests{}, nil)
	if err != nil {
		return reportError(s.out, nil, err)
	}

	rep, err := eng.Verify(ctx)
	if rep != nil {
		s.out.TraceID = rep.RunID
	}
	if s.out.Format != "json" && rep != nil {
		printVerify(s.out, rep)
	}
	if err != nil {
		return reportError(s.out, rep, err)
	}
	return s.out.Result(rep, nil)
}

func printVerify(f *OutputFormatter, rep *engine.VerifyReport) {
	for _, a := range rep.Artifacts {
		if a.Present {
			fmt.Fprintf(f.Writer, "  ok       %s  %s\n", a.Path, a.Hash)
		} else {
			fmt.Fprintf(f.Writer, "  MISSING  %s\n", a.Path)
		}
	}
	fmt.Fprintf(f.Writer, "%d/%d artifacts present\n", rep.PresentCount, rep.Declared)
}
