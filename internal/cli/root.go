package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/govtag/internal/engine"
	"github.com/roach88/govtag/internal/manifest"
	"github.com/roach88/govtag/internal/vcs"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // config file; empty means search Repo for a default name
	Repo    string // repository work tree

	// Backend overrides the git backend (for testing).
	Backend vcs.Backend

	// RunIDs overrides the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator

	// Clock overrides the manifest clock (for testing).
	Clock manifest.Clock

	// LookupEnv overrides os.LookupEnv for signing keys (for testing).
	LookupEnv func(string) (string, bool)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the govtag CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "govtag",
		Short: "govtag - governed release tagging",
		Long: `Verify build artifacts, score the build's stability (sinphase), and
create one sealed, annotated release tag when the score clears the
governance threshold.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "config file (default: governance.yaml|.yml|.cue in --repo)")
	cmd.PersistentFlags().StringVarP(&opts.Repo, "repo", "C", ".", "repository work tree")

	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewMetricCommand(opts))
	cmd.AddCommand(NewTagCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
