package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/govtag/internal/engine"
	"github.com/roach88/govtag/internal/manifest"
	"github.com/roach88/govtag/internal/metric"
	"github.com/roach88/govtag/internal/model"
	"github.com/roach88/govtag/internal/store"
	"github.com/roach88/govtag/internal/testutil"
	"github.com/roach88/govtag/internal/vcs"
)

// Fixed inputs shared by every scenario so runs are reproducible.
const (
	HeadCommit    = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"
	BaseCommit    = "9fceb02d0ae598e95dc970b74767f19372d61af8"
	SigningKey    = "test-key"
	DefaultRunID  = "scenario-run"
	defaultGovRef = "policy/governance-v1"
)

// BuildTime is the clock reading every scenario runs at.
var BuildTime = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

// Result contains the outcome of a scenario run.
type Result struct {
	// Report is the engine's tag report. Never nil.
	Report *engine.TagReport

	// Err is the error Tag returned, if any.
	Err error

	// Tags is the VCS tag list after the run, seeded tags included.
	Tags []vcs.MemoryTag

	// Writes is the number of tags the run created.
	Writes int

	// Runs is the ledger after the run, newest first.
	Runs []model.RunRecord
}

// Code returns the error code of the run, or "" on a clean success.
func (r *Result) Code() model.ErrorCode {
	if r.Err != nil {
		return model.CodeOf(r.Err)
	}
	if len(r.Report.Missing) > 0 {
		return model.ErrCodeArtifactMissing
	}
	return ""
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in its own temp directory with a fresh ledger, an
// in-memory VCS at HeadCommit with the scenario's tags on BaseCommit, a
// fixed clock and run ID, and an HMAC signer over SigningKey. With Reruns
// set, Tag runs again against the same commit and the last run is reported.
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "govtag-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario dir: %w", err)
	}
	defer os.RemoveAll(dir)

	cfg, err := scenarioConfig(scenario, dir)
	if err != nil {
		return nil, err
	}

	backend := vcs.NewMemory(HeadCommit, scenario.Changed...)
	for _, tag := range scenario.Tags {
		backend.SeedTag(tag, "", BaseCommit)
	}

	ledger, err := store.Open(filepath.Join(dir, "ledger.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	defer ledger.Close()

	signer, err := manifest.NewHMACSigner([]byte(SigningKey))
	if err != nil {
		return nil, err
	}

	runner := metric.StaticRunner{Passed: scenario.Tests.Passed, Total: scenario.Tests.Total}

	eng, err := engine.New(cfg, backend, runner, signer,
		engine.WithClock(testutil.NewFixedClock(BuildTime)),
		engine.WithRunIDs(&runIDs{}),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithRecorder(ledger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	ctx := context.Background()
	var (
		rep    *engine.TagReport
		tagErr error
	)
	for i := 0; i <= scenario.Reruns; i++ {
		rep, tagErr = eng.Tag(ctx, engine.TagOptions{DryRun: scenario.DryRun})
	}

	runs, err := ledger.List(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	return &Result{
		Report: rep,
		Err:    tagErr,
		Tags:   backend.Tags(),
		Writes: backend.Writes(),
		Runs:   runs,
	}, nil
}

// scenarioConfig writes the present artifacts under dir and returns the
// engine config for the scenario.
func scenarioConfig(s *Scenario, dir string) (engine.Config, error) {
	cfg := engine.DefaultConfig()
	cfg.ArtifactRoot = dir
	cfg.GovernanceRef = defaultGovRef

	for _, a := range s.Artifacts {
		cfg.Artifacts = append(cfg.Artifacts, a.Path)
		if a.Missing {
			continue
		}
		p := filepath.Join(dir, filepath.FromSlash(a.Path))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return cfg, fmt.Errorf("failed to create artifact dir: %w", err)
		}
		if err := os.WriteFile(p, []byte(a.Content), 0o644); err != nil {
			return cfg, fmt.Errorf("failed to write artifact %s: %w", a.Path, err)
		}
	}

	c := s.Config
	if c.Threshold != nil {
		cfg.Threshold = *c.Threshold
	}
	if c.TagPrefix != nil {
		cfg.TagPrefix = *c.TagPrefix
	}
	if c.TagTemplate != "" {
		cfg.TagTemplate = c.TagTemplate
	}
	if c.GovernanceRef != "" {
		cfg.GovernanceRef = c.GovernanceRef
	}
	if c.Areas != nil {
		cfg.Areas = *c.Areas
	}
	cfg.RequireArtifacts = c.RequireArtifacts
	return cfg, nil
}

// runIDs numbers runs DefaultRunID, DefaultRunID-2, DefaultRunID-3 and so on.
type runIDs struct{ n int }

func (g *runIDs) Generate() string {
	g.n++
	if g.n == 1 {
		return DefaultRunID
	}
	return fmt.Sprintf("%s-%d", DefaultRunID, g.n)
}
