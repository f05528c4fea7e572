package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/govtag/internal/manifest"
	"github.com/roach88/govtag/internal/metric"
	"github.com/roach88/govtag/internal/model"
	"github.com/roach88/govtag/internal/testutil"
	"github.com/roach88/govtag/internal/vcs"
)

var buildTime = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

const (
	headCommit   = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"
	parentCommit = "9fceb02d0ae598e95dc970b74767f19372d61af8"
)

type fakeRecorder struct {
	records []model.RunRecord
	err     error
}

func (r *fakeRecorder) Record(_ context.Context, rec model.RunRecord) error {
	r.records = append(r.records, rec)
	return r.err
}

type failingRunner struct{ err error }

func (r failingRunner) RunTests(context.Context) (model.TestSummary, error) {
	return model.TestSummary{}, r.err
}

// writeArtifacts creates one file per name under a temp dir, with content
// "<name>\n", and returns the directory.
func writeArtifacts(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		p := filepath.Join(dir, "build", n)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(n+"\n"), 0o644))
	}
	return dir
}

func declared(names ...string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = "build/" + n
	}
	return out
}

func testConfig(root string, artifacts []string) Config {
	cfg := DefaultConfig()
	cfg.Artifacts = artifacts
	cfg.ArtifactRoot = root
	cfg.GovernanceRef = "policy/governance-v1"
	return cfg
}

func testSigner(t *testing.T) manifest.Signer {
	t.Helper()
	s, err := manifest.NewHMACSigner([]byte("test-key"))
	require.NoError(t, err)
	return s
}

func newTestEngine(t *testing.T, cfg Config, backend vcs.Backend, runner metric.Runner, opts ...Option) *Engine {
	t.Helper()
	base := []Option{
		WithClock(testutil.NewFixedClock(buildTime)),
		WithRunIDs(testutil.FixedRunID("run-1")),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	e, err := New(cfg, backend, runner, testSigner(t), append(base, opts...)...)
	require.NoError(t, err)
	return e
}

var (
	fourNames  = []string{"alpha", "beta", "gamma", "delta"}
	eightNames = []string{"a", "b", "c", "d", "e", "f", "g", "h"}
)

func TestTagBetaBuild(t *testing.T) {
	root := writeArtifacts(t, fourNames...)
	cfg := testConfig(root, declared(fourNames...))
	cfg.Threshold = 0.3
	backend := vcs.NewMemory(headCommit, "src/engine.c")
	backend.SeedTag("v1.2.3-stable", "", parentCommit)

	e := newTestEngine(t, cfg, backend, metric.StaticRunner{Passed: 9, Total: 10})
	rep, err := e.Tag(context.Background(), TagOptions{})
	require.NoError(t, err)

	assert.Equal(t, StateDone, rep.State)
	assert.Equal(t, model.StatusSuccess, rep.Status)
	assert.Equal(t, "run-1", rep.RunID)
	assert.InDelta(t, 0.36, rep.Sinphase, 1e-9)
	assert.Equal(t, model.TierBeta, rep.Tier)
	assert.Equal(t, "v1.3.0-beta", rep.TagName)
	assert.Equal(t, model.BumpMinor, rep.Version.Bump)
	assert.Equal(t, headCommit, rep.Commit)

	require.NotNil(t, rep.Manifest)
	assert.Equal(t, "d1dd30a487a92f859dfbb2c3ff9d027192251b0bb39d7b0f5b6c7efda630c727", rep.Manifest.EntropyChecksum)
	assert.Equal(t, "aaf1d354c6d0c4c6cc811477c4527bbb7decc7057e50030210e5bcde9d518c3c", rep.Manifest.AuraSeal)

	require.Equal(t, 1, backend.Writes())
	tags := backend.Tags()
	created := tags[len(tags)-1]
	assert.Equal(t, "v1.3.0-beta", created.Name)
	assert.Equal(t, headCommit, created.Target)
	assert.Equal(t, rep.Annotation, created.Annotation)
	testutil.AssertGolden(t, "tag_beta_annotation", []byte(created.Annotation))
}

func TestTagTransitions(t *testing.T) {
	root := writeArtifacts(t, eightNames...)
	backend := vcs.NewMemory(headCommit)
	e := newTestEngine(t, testConfig(root, declared(eightNames...)), backend, metric.StaticRunner{Passed: 10, Total: 10})

	rep, err := e.Tag(context.Background(), TagOptions{})
	require.NoError(t, err)

	assert.Equal(t, []Transition{
		{From: StateIdle, To: StateVerifying},
		{From: StateVerifying, To: StateComputing},
		{From: StateComputing, To: StateGated},
		{From: StateGated, To: StateTagging},
		{From: StateTagging, To: StateDone},
	}, rep.Transitions)
}

func TestTagFirstReleaseFromBaseline(t *testing.T) {
	root := writeArtifacts(t, eightNames...)
	backend := vcs.NewMemory(headCommit, "include/api.h", "src/engine.c")
	e := newTestEngine(t, testConfig(root, declared(eightNames...)), backend, metric.StaticRunner{Passed: 10, Total: 10})

	rep, err := e.Tag(context.Background(), TagOptions{})
	require.NoError(t, err)

	// 8*10/(10*10) = 0.8
	assert.Equal(t, model.TierRelease, rep.Tier)
	assert.Equal(t, "v1.0.0-release", rep.TagName)
	assert.Empty(t, rep.Version.PreviousTag)
}

func TestTagBelowThreshold(t *testing.T) {
	names := []string{"a", "b", "c", "d", "e", "f", "g"}
	root := writeArtifacts(t, names...)
	backend := vcs.NewMemory(headCommit, "src/x.c")
	rec := &fakeRecorder{}
	e := newTestEngine(t, testConfig(root, declared(names...)), backend, metric.StaticRunner{Passed: 7, Total: 10}, WithRecorder(rec))

	rep, err := e.Tag(context.Background(), TagOptions{})
	require.Error(t, err)

	assert.True(t, model.HasCode(err, model.ErrCodeBelowThreshold))
	assert.InDelta(t, 0.49, rep.Sinphase, 1e-9)
	assert.Equal(t, StateFailed, rep.State)
	assert.Equal(t, model.StatusFatal, rep.Status)
	assert.Equal(t, 0, backend.Writes())
	assert.Empty(t, rep.TagName)

	last := rep.Transitions[len(rep.Transitions)-1]
	assert.Equal(t, Transition{From: StateGated, To: StateFailed, Reason: model.ErrCodeBelowThreshold}, last)

	require.Len(t, rec.records, 1)
	assert.Equal(t, model.ErrCodeBelowThreshold, rec.records[0].Code)
	assert.Equal(t, "failed", rec.records[0].State)
}

func TestTagAtThresholdPasses(t *testing.T) {
	names := []string{"a", "b", "c", "d", "e"}
	root := writeArtifacts(t, names...)
	backend := vcs.NewMemory(headCommit)
	// 5*10/(10*10) = 0.5
	e := newTestEngine(t, testConfig(root, declared(names...)), backend, metric.StaticRunner{Passed: 10, Total: 10})

	rep, err := e.Tag(context.Background(), TagOptions{})
	require.NoError(t, err)
	assert.Equal(t, model.TierRC, rep.Tier)
	assert.Equal(t, 1, backend.Writes())
}

func TestTagRerunOnSameCommit(t *testing.T) {
	root := writeArtifacts(t, eightNames...)
	backend := vcs.NewMemory(headCommit, "src/engine.c")
	backend.SeedTag("v1.2.3-stable", "", parentCommit)
	e := newTestEngine(t, testConfig(root, declared(eightNames...)), backend, metric.StaticRunner{Passed: 10, Total: 10})

	first, err := e.Tag(context.Background(), TagOptions{})
	require.NoError(t, err)
	assert.Equal(t, "v1.3.0-release", first.TagName)

	second, err := e.Tag(context.Background(), TagOptions{})
	require.Error(t, err)
	assert.True(t, model.HasCode(err, model.ErrCodeTagExists))
	assert.Equal(t, "v1.3.0-release", second.TagName)
	assert.Equal(t, "v1.2.3-stable", second.Version.PreviousTag)
	assert.Equal(t, StateFailed, second.State)

	assert.Equal(t, 1, backend.Writes())
	assert.Len(t, backend.Tags(), 2)
}

func TestTagRerunFromBaseline(t *testing.T) {
	root := writeArtifacts(t, eightNames...)
	backend := vcs.NewMemory(headCommit)
	e := newTestEngine(t, testConfig(root, declared(eightNames...)), backend, metric.StaticRunner{Passed: 10, Total: 10})

	_, err := e.Tag(context.Background(), TagOptions{})
	require.NoError(t, err)

	rep, err := e.Tag(context.Background(), TagOptions{})
	require.Error(t, err)
	assert.True(t, model.HasCode(err, model.ErrCodeTagExists))
	assert.Equal(t, "v0.0.1-release", rep.TagName)
	assert.Equal(t, 1, backend.Writes())
}

// gitRepo creates a repository with one commit touching src/engine.c.
func gitRepo(t *testing.T) *vcs.Git {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	g := vcs.NewGit(dir)
	g.Env = []string{
		"GIT_AUTHOR_NAME=govtag", "GIT_AUTHOR_EMAIL=govtag@example.com",
		"GIT_COMMITTER_NAME=govtag", "GIT_COMMITTER_EMAIL=govtag@example.com",
		"GIT_CONFIG_NOSYSTEM=1", "HOME=" + dir,
	}

	gitCmd := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(), g.Env...)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	gitCmd("init", "-q")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "engine.c"), []byte("int x;\n"), 0o644))
	gitCmd("add", ".")
	gitCmd("commit", "-q", "-m", "initial")
	return g
}

func TestTagRerunOnGitRepository(t *testing.T) {
	g := gitRepo(t)
	root := writeArtifacts(t, eightNames...)
	e := newTestEngine(t, testConfig(root, declared(eightNames...)), g, metric.StaticRunner{Passed: 10, Total: 10})
	ctx := context.Background()

	first, err := e.Tag(ctx, TagOptions{})
	require.NoError(t, err)
	// Baseline 0.0.0 with src/engine.c in the tree.
	assert.Equal(t, "v0.1.0-release", first.TagName)

	second, err := e.Tag(ctx, TagOptions{})
	require.Error(t, err)
	assert.True(t, model.HasCode(err, model.ErrCodeTagExists))
	assert.Equal(t, first.TagName, second.TagName)

	cmd := exec.Command("git", "tag", "--points-at", "HEAD")
	cmd.Dir = g.Dir
	out, err := cmd.Output()
	require.NoError(t, err)
	assert.Equal(t, "v0.1.0-release\n", string(out))

	annotation, err := g.TagAnnotation(ctx, first.TagName)
	require.NoError(t, err)
	assert.Equal(t, first.Annotation, annotation)
}

func TestTagJustUnderThresholdIsRefused(t *testing.T) {
	names := []string{"a", "b", "c", "d", "e"}
	root := writeArtifacts(t, names...)
	backend := vcs.NewMemory(headCommit)
	// 5*12499/(12500*10) = 0.49996, which rounds to 0.5 for display only.
	e := newTestEngine(t, testConfig(root, declared(names...)), backend, metric.StaticRunner{Passed: 12499, Total: 12500})

	rep, err := e.Tag(context.Background(), TagOptions{})
	require.Error(t, err)
	assert.True(t, model.HasCode(err, model.ErrCodeBelowThreshold))
	var gateErr *model.Error
	require.True(t, errors.As(err, &gateErr))
	assert.Equal(t, "0.49996", gateErr.Details["sinphase"])
	assert.Equal(t, 0.5, rep.Sinphase)
	assert.Equal(t, 0, backend.Writes())

	m, err := e.ComputeMetric(context.Background())
	require.NoError(t, err)
	assert.False(t, m.MeetsThreshold)
}

func TestTagTierUsesExactRatio(t *testing.T) {
	names := []string{"a", "b"}
	root := writeArtifacts(t, names...)
	cfg := testConfig(root, declared(names...))
	cfg.Threshold = 0.1
	backend := vcs.NewMemory(headCommit)
	// 2*9998/(10000*10) = 0.19996: alpha, although it displays as 0.2000.
	e := newTestEngine(t, cfg, backend, metric.StaticRunner{Passed: 9998, Total: 10000})

	rep, err := e.Tag(context.Background(), TagOptions{})
	require.NoError(t, err)
	assert.Equal(t, model.TierAlpha, rep.Tier)
	assert.Equal(t, "v0.0.1-alpha", rep.TagName)
	assert.Contains(t, rep.Annotation, "Policy-Tag: alpha\n")
}

func TestTagNoTestData(t *testing.T) {
	root := writeArtifacts(t, fourNames...)
	backend := vcs.NewMemory(headCommit)
	e := newTestEngine(t, testConfig(root, declared(fourNames...)), backend, metric.StaticRunner{Passed: 0, Total: 0})

	rep, err := e.Tag(context.Background(), TagOptions{})
	require.Error(t, err)

	assert.True(t, model.HasCode(err, model.ErrCodeNoTestData))
	assert.Equal(t, StateFailed, rep.State)
	assert.Nil(t, rep.Manifest)
	assert.Equal(t, 0, backend.Writes())
}

func TestTagRunnerError(t *testing.T) {
	root := writeArtifacts(t, fourNames...)
	backend := vcs.NewMemory(headCommit)
	runErr := model.NewError(model.ErrCodeTestSummaryParse, "no summary line")
	e := newTestEngine(t, testConfig(root, declared(fourNames...)), backend, failingRunner{err: runErr})

	rep, err := e.Tag(context.Background(), TagOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, runErr))
	assert.Equal(t, Transition{From: StateComputing, To: StateFailed, Reason: model.ErrCodeTestSummaryParse}, rep.Transitions[len(rep.Transitions)-1])
}

func TestTagMissingArtifactsAdvisory(t *testing.T) {
	root := writeArtifacts(t, "alpha", "beta")
	backend := vcs.NewMemory(headCommit)
	cfg := testConfig(root, declared(fourNames...))
	cfg.Threshold = 0.1
	e := newTestEngine(t, cfg, backend, metric.StaticRunner{Passed: 10, Total: 10})

	rep, err := e.Tag(context.Background(), TagOptions{})
	require.NoError(t, err)

	assert.Equal(t, model.StatusAdvisory, rep.Status)
	assert.Equal(t, StateDone, rep.State)
	assert.Equal(t, []string{"build/gamma", "build/delta"}, rep.Missing)
	// 2*10/(10*10) = 0.2
	assert.Equal(t, model.TierBeta, rep.Tier)
	assert.Equal(t, 2, rep.Manifest.ArtifactCount)
	assert.Equal(t, 1, backend.Writes())
}

func TestTagRequireArtifacts(t *testing.T) {
	root := writeArtifacts(t, "alpha")
	backend := vcs.NewMemory(headCommit)
	cfg := testConfig(root, declared(fourNames...))
	cfg.RequireArtifacts = true
	e := newTestEngine(t, cfg, backend, metric.StaticRunner{Passed: 10, Total: 10})

	rep, err := e.Tag(context.Background(), TagOptions{})
	require.Error(t, err)

	assert.True(t, model.HasCode(err, model.ErrCodeArtifactMissing))
	assert.Equal(t, model.StatusFatal, rep.Status)
	assert.Equal(t, []Transition{
		{From: StateIdle, To: StateVerifying},
		{From: StateVerifying, To: StateFailed, Reason: model.ErrCodeArtifactMissing},
	}, rep.Transitions)
	assert.Equal(t, 0, backend.Writes())
}

func TestTagDryRun(t *testing.T) {
	root := writeArtifacts(t, eightNames...)
	backend := vcs.NewMemory(headCommit)
	rec := &fakeRecorder{}
	e := newTestEngine(t, testConfig(root, declared(eightNames...)), backend, metric.StaticRunner{Passed: 10, Total: 10}, WithRecorder(rec))

	rep, err := e.Tag(context.Background(), TagOptions{DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, StateDone, rep.State)
	assert.Equal(t, "v0.0.1-release", rep.TagName)
	assert.True(t, rep.DryRun)
	assert.NotEmpty(t, rep.Annotation)
	assert.Equal(t, 0, backend.Writes())

	require.Len(t, rec.records, 1)
	assert.True(t, rec.records[0].DryRun)
}

func TestTagInvalidRenderedName(t *testing.T) {
	root := writeArtifacts(t, eightNames...)
	backend := vcs.NewMemory(headCommit)
	cfg := testConfig(root, declared(eightNames...))
	cfg.TagTemplate = "release {{.Version}}"
	e := newTestEngine(t, cfg, backend, metric.StaticRunner{Passed: 10, Total: 10})

	_, err := e.Tag(context.Background(), TagOptions{})
	require.Error(t, err)
	assert.True(t, model.HasCode(err, model.ErrCodeConfigInvalid))
	assert.Equal(t, 0, backend.Writes())
}

func TestTagCustomTemplate(t *testing.T) {
	root := writeArtifacts(t, eightNames...)
	backend := vcs.NewMemory(headCommit)
	cfg := testConfig(root, declared(eightNames...))
	cfg.TagPrefix = "build-"
	cfg.TagTemplate = "{{.Prefix}}{{.Tier}}/{{.Version}}"
	e := newTestEngine(t, cfg, backend, metric.StaticRunner{Passed: 10, Total: 10})

	rep, err := e.Tag(context.Background(), TagOptions{})
	require.NoError(t, err)
	assert.Equal(t, "build-release/0.0.1", rep.TagName)
}

func TestTagRecordsSuccess(t *testing.T) {
	root := writeArtifacts(t, eightNames...)
	backend := vcs.NewMemory(headCommit)
	rec := &fakeRecorder{err: fmt.Errorf("disk full")}
	e := newTestEngine(t, testConfig(root, declared(eightNames...)), backend, metric.StaticRunner{Passed: 10, Total: 10}, WithRecorder(rec))

	// A recorder failure does not fail the run.
	rep, err := e.Tag(context.Background(), TagOptions{})
	require.NoError(t, err)

	require.Len(t, rec.records, 1)
	got := rec.records[0]
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, buildTime, got.StartedAt)
	assert.Equal(t, model.StatusSuccess, got.Status)
	assert.Equal(t, "done", got.State)
	assert.Empty(t, got.Code)
	assert.Equal(t, rep.TagName, got.TagName)
	assert.Equal(t, "0.0.1", got.Version)
	assert.Equal(t, "release", got.Tier)
	assert.Equal(t, rep.Manifest.EntropyChecksum, got.Checksum)
	assert.Equal(t, headCommit, got.Commit)
}

func TestVerify(t *testing.T) {
	root := writeArtifacts(t, "alpha", "gamma")
	e := newTestEngine(t, testConfig(root, declared("alpha", "beta", "gamma")), vcs.NewMemory(headCommit), metric.StaticRunner{})

	rep, err := e.Verify(context.Background())
	require.Error(t, err)
	assert.True(t, model.IsAdvisory(err))
	assert.Equal(t, model.StatusAdvisory, rep.Status)
	assert.Equal(t, 3, rep.Declared)
	assert.Equal(t, 2, rep.PresentCount)
	assert.Equal(t, []string{"build/beta"}, rep.Missing)
	assert.Len(t, rep.Artifacts, 3)
}

func TestComputeMetric(t *testing.T) {
	root := writeArtifacts(t, fourNames...)
	backend := vcs.NewMemory(headCommit)
	e := newTestEngine(t, testConfig(root, declared(fourNames...)), backend, metric.StaticRunner{Passed: 9, Total: 10})

	rep, err := e.ComputeMetric(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, rep.Status)
	assert.InDelta(t, 0.36, rep.Sinphase, 1e-9)
	assert.Equal(t, model.TierBeta, rep.Tier)
	assert.False(t, rep.MeetsThreshold)
	assert.Empty(t, backend.Tags())
}

func TestComputeMetricNoTestData(t *testing.T) {
	root := writeArtifacts(t, fourNames...)
	e := newTestEngine(t, testConfig(root, declared(fourNames...)), vcs.NewMemory(headCommit), metric.StaticRunner{})

	rep, err := e.ComputeMetric(context.Background())
	require.Error(t, err)
	assert.True(t, model.HasCode(err, model.ErrCodeNoTestData))
	assert.Equal(t, model.StatusFatal, rep.Status)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no artifacts", func(c *Config) { c.Artifacts = nil }},
		{"empty artifact", func(c *Config) { c.Artifacts = []string{"a", " "} }},
		{"duplicate artifact", func(c *Config) { c.Artifacts = []string{"a", "a"} }},
		{"negative threshold", func(c *Config) { c.Threshold = -0.1 }},
		{"NaN threshold", func(c *Config) { c.Threshold = math.NaN() }},
		{"infinite threshold", func(c *Config) { c.Threshold = math.Inf(1) }},
		{"no governance ref", func(c *Config) { c.GovernanceRef = "" }},
		{"bad template", func(c *Config) { c.TagTemplate = "{{.Version" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t.TempDir(), []string{"a"})
			tt.mutate(&cfg)

			_, err := New(cfg, vcs.NewMemory(headCommit), metric.StaticRunner{}, testSigner(t))
			require.Error(t, err)
			assert.True(t, model.HasCode(err, model.ErrCodeConfigInvalid))
		})
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	cfg := testConfig(t.TempDir(), []string{"a"})
	_, err := New(cfg, nil, metric.StaticRunner{}, testSigner(t))
	assert.True(t, model.HasCode(err, model.ErrCodeConfigInvalid))

	_, err = New(cfg, vcs.NewMemory(headCommit), nil, testSigner(t))
	assert.True(t, model.HasCode(err, model.ErrCodeConfigInvalid))
}

func TestTagWithoutSigner(t *testing.T) {
	root := writeArtifacts(t, eightNames...)
	backend := vcs.NewMemory(headCommit)
	e, err := New(testConfig(root, declared(eightNames...)), backend, metric.StaticRunner{Passed: 10, Total: 10},
		nil, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	// Verify and ComputeMetric do not need a signer.
	_, err = e.ComputeMetric(context.Background())
	require.NoError(t, err)

	rep, err := e.Tag(context.Background(), TagOptions{})
	require.Error(t, err)
	assert.True(t, model.HasCode(err, model.ErrCodeConfigInvalid))
	assert.Equal(t, []Transition{{From: StateIdle, To: StateFailed, Reason: model.ErrCodeConfigInvalid}}, rep.Transitions)
	assert.Equal(t, 0, backend.Writes())
}

func TestConfigCopiesArtifacts(t *testing.T) {
	artifacts := []string{"a", "b"}
	e := newTestEngine(t, testConfig(t.TempDir(), artifacts), vcs.NewMemory(headCommit), metric.StaticRunner{})
	artifacts[0] = "mutated"
	assert.Equal(t, []string{"a", "b"}, e.Config().Artifacts)
}

func TestCheckRefName(t *testing.T) {
	for _, name := range []string{"v1.0.0-beta", "release/1.2.3", "build-rc_2"} {
		assert.NoError(t, checkRefName(name), name)
	}
	for _, name := range []string{"", "v1 beta", "v1..2", "-v1", "v1/", "v1.", "v1.lock", "v1^", "a@{b"} {
		assert.Error(t, checkRefName(name), name)
	}
}

func TestMachineRejectsSkippedState(t *testing.T) {
	m := newMachine(slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Panics(t, func() { m.advance(StateGated) })
}
