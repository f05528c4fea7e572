package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/govtag/internal/metric"
	"github.com/roach88/govtag/internal/model"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded tag runs",
		Long: `List tag runs recorded in the ledger, newest first.

Requires a ledger path in the config.

Examples:
  govtag history
  govtag history --limit 5 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum number of runs to show (0 = all)")
	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return reportError(s.out, nil, err)
	}
	ledger, err := s.openLedger()
	if err != nil {
		return reportError(s.out, nil, err)
	}
	if ledger == nil {
		return reportError(s.out, nil, model.NewError(model.ErrCodeConfigInvalid, "no ledger configured"))
	}
	defer s.closeLedger(ledger)

	runs, err := ledger.List(ctx, opts.Limit)
	if err != nil {
		return reportError(s.out, nil, err)
	}

	if s.out.Format == "json" {
		return s.out.Success(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(s.out.Writer, "No runs recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(s.out.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tSTATUS\tTAG\tSINPHASE\tTIER\tCODE")
	for _, r := range runs {
		tag := r.TagName
		if r.DryRun {
			tag += " (dry run)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.Status, dash(tag),
			metric.Sinphase(r.Sinphase), dash(r.Tier), dash(string(r.Code)))
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
