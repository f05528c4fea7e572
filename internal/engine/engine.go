// Package engine orchestrates the tagging pipeline.
//
// A run verifies artifacts, computes sinphase, classifies the build,
// resolves the next version, builds the governance manifest and, only if
// sinphase clears the configured threshold, creates one annotated tag.
//
// INVARIANTS:
//   - A tag is never created unless the run passes the Gated state.
//   - Tagging is the only write; every earlier failure leaves no side effect.
//   - No retries: each failure is reported once and the run terminates.
//   - An existing tag is never overwritten (TAG_ALREADY_EXISTS).
//
// The engine assumes at most one concurrent Tag run per repository; callers
// serialize runs with an external lock (see vcs.AcquireLock).
package engine

import (
	"context"
	"log/slog"
	"text/template"
	"time"

	"github.com/roach88/govtag/internal/artifact"
	"github.com/roach88/govtag/internal/manifest"
	"github.com/roach88/govtag/internal/metric"
	"github.com/roach88/govtag/internal/model"
	"github.com/roach88/govtag/internal/stability"
	"github.com/roach88/govtag/internal/vcs"
	"github.com/roach88/govtag/internal/version"
)

// Recorder persists a summary of each Tag run. Implemented by store.Store.
type Recorder interface {
	Record(ctx context.Context, rec model.RunRecord) error
}

// Engine is the TagEngine. Construct with New.
type Engine struct {
	cfg      Config
	tmpl     *template.Template
	verifier *artifact.Verifier
	runner   metric.Runner
	backend  vcs.Backend
	resolver *version.Resolver
	builder  *manifest.Builder
	clock    manifest.Clock
	runIDs   RunIDGenerator
	logger   *slog.Logger
	recorder Recorder
}

// Option configures optional collaborators.
type Option func(*Engine)

// WithClock sets the clock used for manifest timestamps.
func WithClock(c manifest.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithRunIDs sets the run id generator. Default: UUIDv7Generator.
func WithRunIDs(g RunIDGenerator) Option {
	return func(e *Engine) { e.runIDs = g }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRecorder records every Tag run (success or failure).
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// New validates cfg and wires the pipeline.
//
// runner supplies test results; backend is the version-control store;
// signer seals manifests. signer may be nil for engines that only Verify
// or ComputeMetric; Tag then fails with CONFIG_INVALID.
func New(cfg Config, backend vcs.Backend, runner metric.Runner, signer manifest.Signer, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tmpl, err := cfg.tagTemplate()
	if err != nil {
		return nil, model.WrapError(model.ErrCodeConfigInvalid, "tag template", err)
	}
	if backend == nil || runner == nil {
		return nil, model.NewError(model.ErrCodeConfigInvalid, "engine requires a backend and a test runner")
	}

	artifacts := make([]string, len(cfg.Artifacts))
	copy(artifacts, cfg.Artifacts)
	cfg.Artifacts = artifacts

	e := &Engine{
		cfg:      cfg,
		tmpl:     tmpl,
		verifier: artifact.NewVerifier(cfg.ArtifactRoot),
		runner:   runner,
		backend:  backend,
		clock:    manifest.SystemClock{},
		runIDs:   UUIDv7Generator{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.resolver = &version.Resolver{Backend: backend, Areas: cfg.Areas, Logger: e.logger}
	if signer != nil {
		e.builder = manifest.NewBuilder(signer, e.clock)
	}
	return e, nil
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// VerifyReport is the result of Verify.
type VerifyReport struct {
	RunID        string            `json:"run_id"`
	Status       model.Status      `json:"status"`
	Declared     int               `json:"declared"`
	PresentCount int               `json:"present_count"`
	Missing      []string          `json:"missing,omitempty"`
	Artifacts    model.ArtifactSet `json:"artifacts"`
}

// Verify runs the artifact verifier on its own.
//
// Missing artifacts yield a complete report with Status advisory together
// with the ARTIFACT_MISSING error.
func (e *Engine) Verify(ctx context.Context) (*VerifyReport, error) {
	runID := e.runIDs.Generate()
	log := e.logger.With("run_id", runID)

	res, err := e.verifier.Verify(ctx, e.cfg.Artifacts)
	if res == nil {
		return &VerifyReport{RunID: runID, Status: model.StatusFatal, Declared: len(e.cfg.Artifacts)}, err
	}

	rep := &VerifyReport{
		RunID:        runID,
		Status:       model.StatusOf(err),
		Declared:     len(e.cfg.Artifacts),
		PresentCount: res.PresentCount,
		Missing:      res.Missing,
		Artifacts:    res.Artifacts,
	}
	log.Info("artifacts verified", "declared", rep.Declared, "present", rep.PresentCount, "missing", len(rep.Missing))
	return rep, err
}

// MetricReport is the result of ComputeMetric.
type MetricReport struct {
	RunID          string            `json:"run_id"`
	Status         model.Status      `json:"status"`
	PresentCount   int               `json:"present_count"`
	Missing        []string          `json:"missing,omitempty"`
	Tests          model.TestSummary `json:"tests"`
	Sinphase       float64           `json:"sinphase"`
	Tier           model.Tier        `json:"tier"`
	Threshold      float64           `json:"threshold"`
	MeetsThreshold bool              `json:"meets_threshold"`
}

// ComputeMetric verifies artifacts, obtains test results and computes
// sinphase and tier without touching version control.
//
// Missing artifacts are advisory: the metric is still computed and the
// ARTIFACT_MISSING error is returned with the complete report.
func (e *Engine) ComputeMetric(ctx context.Context) (*MetricReport, error) {
	runID := e.runIDs.Generate()
	log := e.logger.With("run_id", runID)
	rep := &MetricReport{RunID: runID, Status: model.StatusFatal, Threshold: e.cfg.Threshold}

	res, verr := e.verifier.Verify(ctx, e.cfg.Artifacts)
	if res == nil {
		return rep, verr
	}
	rep.PresentCount = res.PresentCount
	rep.Missing = res.Missing

	summary, err := e.runner.RunTests(ctx)
	if err != nil {
		return rep, err
	}
	rep.Tests = summary

	ratio, err := metric.Measure(res.PresentCount, summary)
	if err != nil {
		return rep, err
	}
	s := ratio.Rounded()
	rep.Sinphase = float64(s)
	rep.Tier = stability.Classify(ratio.Exact())
	rep.MeetsThreshold = ratio.Exact() >= e.cfg.Threshold
	rep.Status = model.StatusOf(verr)

	log.Info("metric computed",
		"present", rep.PresentCount,
		"passed", summary.Passed,
		"total", summary.Total,
		"sinphase", s.String(),
		"tier", rep.Tier,
	)
	return rep, verr
}

// TagOptions controls a Tag run.
type TagOptions struct {
	// DryRun runs through the gate and renders the tag without creating it.
	DryRun bool
}

// TagReport is the result of Tag.
type TagReport struct {
	RunID       string              `json:"run_id"`
	Status      model.Status        `json:"status"`
	State       State               `json:"state"`
	Transitions []Transition        `json:"transitions"`
	Commit      string              `json:"commit,omitempty"`
	TagName     string              `json:"tag,omitempty"`
	Sinphase    float64             `json:"sinphase"`
	Tier        model.Tier          `json:"tier"`
	Threshold   float64             `json:"threshold"`
	Missing     []string            `json:"missing,omitempty"`
	Version     *version.Resolution `json:"version,omitempty"`
	Manifest    *manifest.Manifest  `json:"manifest,omitempty"`
	Annotation  string              `json:"annotation,omitempty"`
	DryRun      bool                `json:"dry_run,omitempty"`
}

// Tag runs the full pipeline and, if the gate passes, creates the tag.
//
// On success the report's State is Done. Status is advisory when artifacts
// were missing but not required. Any error leaves State Failed, Status
// fatal, and no tag created.
func (e *Engine) Tag(ctx context.Context, opts TagOptions) (*TagReport, error) {
	runID := e.runIDs.Generate()
	log := e.logger.With("run_id", runID)
	started := e.clock.Now()

	m := newMachine(log)
	rep := &TagReport{RunID: runID, Threshold: e.cfg.Threshold, DryRun: opts.DryRun}

	err := e.runTag(ctx, m, rep, opts, log)

	rep.State = m.state
	rep.Transitions = m.transitions
	switch {
	case err != nil:
		rep.Status = model.StatusFatal
	case len(rep.Missing) > 0:
		rep.Status = model.StatusAdvisory
	default:
		rep.Status = model.StatusSuccess
	}

	e.record(ctx, rep, err, started, log)
	return rep, err
}

func (e *Engine) runTag(ctx context.Context, m *machine, rep *TagReport, opts TagOptions, log *slog.Logger) error {
	if e.builder == nil {
		return m.fail(model.NewError(model.ErrCodeConfigInvalid, "no signer configured"))
	}

	// Verifying
	m.advance(StateVerifying)
	res, err := e.verifier.Verify(ctx, e.cfg.Artifacts)
	if res == nil {
		return m.fail(err)
	}
	rep.Missing = res.Missing
	if err != nil {
		if e.cfg.RequireArtifacts {
			return m.fail(err)
		}
		log.Warn("artifacts missing, continuing", "missing", res.Missing)
	}

	// Computing
	m.advance(StateComputing)
	summary, err := e.runner.RunTests(ctx)
	if err != nil {
		return m.fail(err)
	}
	ratio, err := metric.Measure(res.PresentCount, summary)
	if err != nil {
		return m.fail(err)
	}
	s := ratio.Rounded()
	rep.Sinphase = float64(s)
	rep.Tier = stability.Classify(ratio.Exact())

	head, err := e.backend.HeadCommit(ctx)
	if err != nil {
		return m.fail(err)
	}
	rep.Commit = head

	resolution, err := e.resolver.Resolve(ctx, head)
	if err != nil {
		return m.fail(err)
	}
	rep.Version = resolution

	man, err := e.builder.Build(manifest.Input{
		Tier:          rep.Tier,
		Sinphase:      rep.Sinphase,
		Artifacts:     res.Artifacts,
		GovernanceRef: e.cfg.GovernanceRef,
	})
	if err != nil {
		return m.fail(err)
	}
	rep.Manifest = man
	rep.Annotation = man.Annotation()

	// Gated
	m.advance(StateGated)
	if ratio.Exact() < e.cfg.Threshold {
		return m.fail(model.NewBelowThresholdError(ratio.Exact(), e.cfg.Threshold))
	}

	// Tagging
	m.advance(StateTagging)
	name, err := renderTagName(e.tmpl, TagNameData{
		Prefix:  e.cfg.TagPrefix,
		Version: resolution.Next.String(),
		Tier:    rep.Tier.String(),
	})
	if err != nil {
		return m.fail(model.WrapError(model.ErrCodeConfigInvalid, "tag name", err))
	}
	rep.TagName = name

	exists, err := e.backend.TagExists(ctx, name)
	if err != nil {
		return m.fail(err)
	}
	if exists {
		return m.fail(model.NewTagExistsError(name))
	}

	if opts.DryRun {
		log.Info("dry run: tag not created", "tag", name)
	} else if err := e.backend.CreateAnnotatedTag(ctx, name, rep.Annotation, head); err != nil {
		return m.fail(err)
	}

	m.advance(StateDone)
	log.Info("build tagged",
		"tag", name,
		"commit", head,
		"sinphase", s.String(),
		"tier", rep.Tier,
		"bump", resolution.Bump,
		"dry_run", opts.DryRun,
	)
	return nil
}

func (e *Engine) record(ctx context.Context, rep *TagReport, err error, started time.Time, log *slog.Logger) {
	if e.recorder == nil {
		return
	}
	rec := model.RunRecord{
		RunID:     rep.RunID,
		StartedAt: started.UTC(),
		Commit:    rep.Commit,
		Status:    rep.Status,
		State:     string(rep.State),
		Code:      model.CodeOf(err),
		TagName:   rep.TagName,
		Sinphase:  rep.Sinphase,
		Threshold: rep.Threshold,
		DryRun:    rep.DryRun,
	}
	if rep.Version != nil {
		rec.Version = rep.Version.Next.String()
	}
	if rep.Manifest != nil {
		rec.Tier = rep.Tier.String()
		rec.Checksum = rep.Manifest.EntropyChecksum
	}
	// The tag is already the durable output; a ledger failure must not mask it.
	if rerr := e.recorder.Record(ctx, rec); rerr != nil {
		log.Error("failed to record run", "error", rerr)
	}
}
