package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/govtag/internal/engine"
	"github.com/roach88/govtag/internal/metric"
	"github.com/roach88/govtag/internal/model"
)

// MetricOptions holds flags for the metric command.
type MetricOptions struct {
	*RootOptions
	results testResults
}

// NewMetricCommand creates the metric command.
func NewMetricCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MetricOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "metric",
		Short: "Compute sinphase and stability tier",
		Long: `Verify artifacts, obtain test results and compute the build's sinphase
score and stability tier. Nothing is written to the repository.

Test results come from --passed/--total or, if neither is given, from the
configured test_command.

Examples:
  govtag metric --passed 97 --total 100
  govtag metric --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMetric(opts, cmd)
		},
	}

	addTestResultFlags(cmd, &opts.results)
	return cmd
}

func runMetric(opts *MetricOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return reportError(s.out, nil, err)
	}
	runner, err := s.runner(cmd, &opts.results)
	if err != nil {
		return reportError(s.out, nil, err)
	}
	eng, err := s.newEngine(s.file.Engine(), runner, nil)
	if err != nil {
		return reportError(s.out, nil, err)
	}

	rep, err := eng.ComputeMetric(ctx)
	if rep != nil {
		s.out.TraceID = rep.RunID
	}
	if s.out.Format != "json" && rep != nil && model.StatusOf(err) != model.StatusFatal {
		printMetric(s.out, rep)
	}
	if err != nil {
		return reportError(s.out, rep, err)
	}
	return s.out.Result(rep, nil)
}

func printMetric(f *OutputFormatter, rep *engine.MetricReport) {
	gate := "below threshold"
	if rep.MeetsThreshold {
		gate = "meets threshold"
	}
	fmt.Fprintf(f.Writer, "artifacts present: %d\n", rep.PresentCount)
	fmt.Fprintf(f.Writer, "tests passed:      %d/%d\n", rep.Tests.Passed, rep.Tests.Total)
	fmt.Fprintf(f.Writer, "sinphase:          %s\n", metric.Sinphase(rep.Sinphase))
	fmt.Fprintf(f.Writer, "tier:              %s\n", rep.Tier)
	fmt.Fprintf(f.Writer, "threshold:         %.4f (%s)\n", rep.Threshold, gate)
}
