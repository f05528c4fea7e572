package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/govtag/internal/manifest"
	"github.com/roach88/govtag/internal/model"
)

// InspectResult is the output of the inspect command.
type InspectResult struct {
	Tag      string             `json:"tag"`
	Manifest *manifest.Manifest `json:"manifest"`

	// SealVerified is nil when no key was available to check the seal.
	SealVerified *bool  `json:"seal_verified"`
	Algorithm    string `json:"algorithm,omitempty"`

	// Run is the ledger entry that created the tag, if recorded.
	Run *model.RunRecord `json:"run,omitempty"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <tag>",
		Short: "Show and verify a governed tag's manifest",
		Long: `Read a tag's annotation, parse the governance manifest and verify its
aura seal with the configured key. With signing.public_key set, ed25519
seals are checked against the public key alone and no secret is read.

Exit status is 0 when the seal verifies, 1 when no key is available to
check it, and 2 when the annotation is malformed or the seal is invalid.

Examples:
  govtag inspect v1.3.0-beta
  govtag inspect v1.3.0-beta --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runInspect(opts *RootOptions, tag string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := openSession(opts, cmd)
	if err != nil {
		return reportError(s.out, nil, err)
	}

	annotation, err := s.backend.TagAnnotation(ctx, tag)
	if err != nil {
		return reportError(s.out, nil, err)
	}
	m, err := manifest.ParseAnnotation(annotation)
	if err != nil {
		return reportError(s.out, nil, model.WrapError(model.ErrCodeSealMismatch, "tag "+tag+" has no governance manifest", err))
	}

	result := &InspectResult{Tag: tag, Manifest: m}
	result.Run = s.lookupRun(ctx, tag)

	signer, keyErr := s.verifier()
	if keyErr != nil {
		s.logger.Warn("seal not verified", "reason", keyErr)
	} else {
		ok, err := manifest.VerifySeal(m, signer)
		if err != nil {
			return reportError(s.out, result, model.WrapError(model.ErrCodeSealMismatch, "malformed seal", err))
		}
		result.SealVerified = &ok
		result.Algorithm = signer.Algorithm()
	}

	if s.out.Format != "json" {
		printInspect(s.out, result)
	}

	switch {
	case result.SealVerified == nil:
		_ = s.out.Result(result, nil)
		return NewExitError(ExitFailure, "seal not verified: no signing key")
	case !*result.SealVerified:
		return reportError(s.out, result, model.NewError(model.ErrCodeSealMismatch, "aura seal does not match").
			WithDetail("tag", tag))
	}
	return s.out.Result(result, nil)
}

// lookupRun finds the ledger entry for tag. Ledger problems are logged and
// otherwise ignored; the tag annotation is the authoritative record.
func (s *session) lookupRun(ctx context.Context, tag string) *model.RunRecord {
	ledger, err := s.openLedger()
	if err != nil {
		s.logger.Warn("ledger unavailable", "error", err)
		return nil
	}
	if ledger == nil {
		return nil
	}
	defer s.closeLedger(ledger)

	rec, ok, err := ledger.FindByTag(ctx, tag)
	if err != nil {
		s.logger.Warn("ledger lookup failed", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	return &rec
}

func printInspect(f *OutputFormatter, r *InspectResult) {
	fmt.Fprintf(f.Writer, "tag %s\n\n", r.Tag)
	for _, line := range strings.Split(strings.TrimSuffix(r.Manifest.Annotation(), "\n"), "\n") {
		fmt.Fprintf(f.Writer, "  %s\n", line)
	}
	fmt.Fprintln(f.Writer)

	switch {
	case r.SealVerified == nil:
		fmt.Fprintln(f.Writer, "seal: not verified (no signing key)")
	case *r.SealVerified:
		fmt.Fprintf(f.Writer, "seal: valid (%s)\n", r.Algorithm)
	default:
		fmt.Fprintf(f.Writer, "seal: INVALID (%s)\n", r.Algorithm)
	}
	if r.Run != nil {
		fmt.Fprintf(f.Writer, "run:  %s at %s\n", r.Run.RunID, r.Run.StartedAt.Format("2006-01-02 15:04:05Z07:00"))
	}
}
