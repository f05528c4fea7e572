package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/govtag/internal/engine"
	"github.com/roach88/govtag/internal/manifest"
	"github.com/roach88/govtag/internal/model"
	"github.com/roach88/govtag/internal/version"
)

const yamlConfig = `artifacts:
  - build/lib.a
  - build/app
artifact_root: out
threshold: 0.6
tag_prefix: rel-
governance_ref: policy/governance-v1
areas:
  public: [include/]
  core: [src/, lib/]
signing:
  key_env: SEAL_KEY
test_command: [ctest, --output-on-failure]
require_artifacts: true
ledger: .govtag/ledger.db
`

const cueConfig = `artifacts: ["build/lib.a", "build/app"]
artifact_root: "out"
threshold: 0.6
tag_prefix: "rel-"
governance_ref: "policy/governance-v1"
areas: {
	public: ["include/"]
	core: ["src/", "lib/"]
}
signing: key_env: "SEAL_KEY"
test_command: ["ctest", "--output-on-failure"]
require_artifacts: true
ledger: ".govtag/ledger.db"
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func noEnv(string) (string, bool) { return "", false }

func envOf(kv map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := kv[k]
		return v, ok
	}
}

func TestLoadYAMLAndCUEAgree(t *testing.T) {
	for _, name := range []string{"governance.yaml", "governance.cue"} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			content := yamlConfig
			if filepath.Ext(name) == ".cue" {
				content = cueConfig
			}
			f, err := Load(writeFile(t, dir, name, content))
			require.NoError(t, err)

			cfg := f.Engine()
			assert.Equal(t, []string{"build/lib.a", "build/app"}, cfg.Artifacts)
			assert.Equal(t, filepath.Join(dir, "out"), cfg.ArtifactRoot)
			assert.Equal(t, 0.6, cfg.Threshold)
			assert.Equal(t, "rel-", cfg.TagPrefix)
			assert.Equal(t, engine.DefaultTagTemplate, cfg.TagTemplate)
			assert.Equal(t, "policy/governance-v1", cfg.GovernanceRef)
			assert.Equal(t, version.Areas{Public: []string{"include/"}, Core: []string{"src/", "lib/"}}, cfg.Areas)
			assert.True(t, cfg.RequireArtifacts)
			require.NoError(t, cfg.Validate())

			assert.Equal(t, []string{"ctest", "--output-on-failure"}, f.TestCommand)
			assert.Equal(t, filepath.Join(dir, ".govtag/ledger.db"), f.LedgerPath())
			assert.Equal(t, "SEAL_KEY", f.Signing.KeyEnv)
		})
	}
}

func TestEngineDefaults(t *testing.T) {
	dir := t.TempDir()
	f, err := Load(writeFile(t, dir, "governance.yaml", "artifacts: [a]\ngovernance_ref: ref\n"))
	require.NoError(t, err)

	cfg := f.Engine()
	assert.Equal(t, engine.DefaultThreshold, cfg.Threshold)
	assert.Equal(t, engine.DefaultTagPrefix, cfg.TagPrefix)
	assert.Equal(t, version.DefaultAreas, cfg.Areas)
	assert.Equal(t, dir, cfg.ArtifactRoot)
	assert.Empty(t, f.LedgerPath())
}

func TestExplicitZeroThresholdAndPrefix(t *testing.T) {
	f, err := ParseYAML([]byte("artifacts: [a]\ngovernance_ref: ref\nthreshold: 0\ntag_prefix: \"\"\n"))
	require.NoError(t, err)

	cfg := f.Engine()
	assert.Equal(t, 0.0, cfg.Threshold)
	assert.Equal(t, "", cfg.TagPrefix)
}

func TestNonFiniteThresholdIsRejected(t *testing.T) {
	for _, v := range []string{".nan", ".inf", "-.inf"} {
		t.Run(v, func(t *testing.T) {
			f, err := ParseYAML([]byte("artifacts: [a]\ngovernance_ref: ref\nthreshold: " + v + "\n"))
			require.NoError(t, err)

			err = f.Engine().Validate()
			require.Error(t, err)
			assert.True(t, model.HasCode(err, model.ErrCodeConfigInvalid))
			assert.Contains(t, err.Error(), "threshold")
		})
	}
}

func TestParseYAMLRejectsUnknownField(t *testing.T) {
	_, err := ParseYAML([]byte("artifacts: [a]\nthreshhold: 0.4\n"))
	require.Error(t, err)
	assert.True(t, model.HasCode(err, model.ErrCodeConfigInvalid))
}

func TestParseCUERejectsUnknownField(t *testing.T) {
	_, err := ParseCUE("governance.cue", []byte("artifacts: [\"a\"]\nthreshhold: 0.4\n"))
	require.Error(t, err)
	assert.True(t, model.HasCode(err, model.ErrCodeConfigInvalid))
	assert.Contains(t, err.Error(), "threshhold")
}

func TestParseCUEConstraints(t *testing.T) {
	src := "threshold: float & >=0 & <=1\nthreshold: 1.5\nartifacts: [\"a\"]\n"
	_, err := ParseCUE("governance.cue", []byte(src))
	require.Error(t, err)
	assert.True(t, model.HasCode(err, model.ErrCodeConfigInvalid))
}

func TestParseCUEIncomplete(t *testing.T) {
	_, err := ParseCUE("governance.cue", []byte("governance_ref: string\nartifacts: [\"a\"]\n"))
	require.Error(t, err)
	assert.True(t, model.HasCode(err, model.ErrCodeConfigInvalid))
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.True(t, model.HasCode(err, model.ErrCodeConfigInvalid))

	_, err = Load(writeFile(t, dir, "governance.toml", "x = 1"))
	assert.True(t, model.HasCode(err, model.ErrCodeConfigInvalid))
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	_, err := Find(dir)
	assert.True(t, model.HasCode(err, model.ErrCodeConfigInvalid))

	want := writeFile(t, dir, "governance.cue", cueConfig)
	got, err := Find(dir)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	want = writeFile(t, dir, "governance.yaml", yamlConfig)
	got, err = Find(dir)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSignerFromEnv(t *testing.T) {
	f := &File{Signing: Signing{KeyEnv: "SEAL_KEY"}}
	s, err := f.Signer(envOf(map[string]string{"SEAL_KEY": "test-key"}))
	require.NoError(t, err)
	assert.Equal(t, manifest.AlgHMACSHA256, s.Algorithm())

	want, err := manifest.NewHMACSigner([]byte("test-key"))
	require.NoError(t, err)
	a, err := s.Sign([]byte("data"))
	require.NoError(t, err)
	b, err := want.Sign([]byte("data"))
	require.NoError(t, err)
	assert.Equal(t, b, a)
}

func TestSignerDefaultEnv(t *testing.T) {
	f := &File{}
	_, err := f.Signer(noEnv)
	require.Error(t, err)
	assert.True(t, model.HasCode(err, model.ErrCodeConfigInvalid))
	assert.Contains(t, err.Error(), DefaultKeyEnv)

	_, err = f.Signer(envOf(map[string]string{DefaultKeyEnv: "k"}))
	assert.NoError(t, err)
}

func TestSignerFromFileEd25519(t *testing.T) {
	dir := t.TempDir()
	seed := "9d61b19deffd5a60ba844af492ec2cc44449c5697b326919703bac031cae7f60"
	writeFile(t, dir, "seal.key", seed+"\n")

	f, err := Load(writeFile(t, dir, "governance.yaml",
		"artifacts: [a]\ngovernance_ref: ref\nsigning:\n  key_file: seal.key\n  algorithm: ed25519\n"))
	require.NoError(t, err)

	s, err := f.Signer(noEnv)
	require.NoError(t, err)
	assert.Equal(t, manifest.AlgEd25519, s.Algorithm())
}

func TestSignerRejectsBadKeys(t *testing.T) {
	f := &File{Signing: Signing{Algorithm: manifest.AlgEd25519, KeyEnv: "K"}}
	_, err := f.Signer(envOf(map[string]string{"K": "not-hex"}))
	assert.True(t, model.HasCode(err, model.ErrCodeConfigInvalid))

	f = &File{Signing: Signing{Algorithm: "rsa", KeyEnv: "K"}}
	_, err = f.Signer(envOf(map[string]string{"K": "k"}))
	assert.True(t, model.HasCode(err, model.ErrCodeConfigInvalid))

	f = &File{Signing: Signing{KeyFile: "/nonexistent/seal.key"}}
	_, err = f.Signer(noEnv)
	assert.True(t, model.HasCode(err, model.ErrCodeConfigInvalid))
}

// RFC 8032 test 1 key pair.
const (
	testSeed   = "9d61b19deffd5a60ba844af492ec2cc44449c5697b326919703bac031cae7f60"
	testPublic = "d75a980182b10ab7d54bfed3c964073a0ee172f3daa62325af021a68f707511a"
)

func TestVerifierFromPublicKey(t *testing.T) {
	f, err := ParseYAML([]byte("artifacts: [a]\ngovernance_ref: ref\nsigning:\n  key_env: SEAL_SEED\n  algorithm: ed25519\n  public_key: " + testPublic + "\n"))
	require.NoError(t, err)
	assert.Equal(t, testPublic, f.Signing.PublicKey)

	s, err := f.Signer(envOf(map[string]string{"SEAL_SEED": testSeed}))
	require.NoError(t, err)
	seal, err := s.Sign([]byte("data"))
	require.NoError(t, err)

	// No secret in the environment: verification still works.
	v, err := f.Verifier(noEnv)
	require.NoError(t, err)
	assert.Equal(t, manifest.AlgEd25519, v.Algorithm())
	ok, err := v.Verify([]byte("data"), seal)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = v.Sign([]byte("data"))
	assert.Error(t, err, "a public key cannot seal")
}

func TestVerifierFallsBackToSigner(t *testing.T) {
	f := &File{Signing: Signing{KeyEnv: "SEAL_KEY"}}
	v, err := f.Verifier(envOf(map[string]string{"SEAL_KEY": "test-key"}))
	require.NoError(t, err)
	assert.Equal(t, manifest.AlgHMACSHA256, v.Algorithm())

	_, err = f.Verifier(noEnv)
	assert.True(t, model.HasCode(err, model.ErrCodeConfigInvalid))
}

func TestPublicKeyErrors(t *testing.T) {
	tests := []struct {
		name    string
		signing Signing
		want    string
	}{
		{
			name:    "hmac algorithm",
			signing: Signing{PublicKey: testPublic},
			want:    "requires algorithm ed25519",
		},
		{
			name:    "not hex",
			signing: Signing{Algorithm: manifest.AlgEd25519, PublicKey: "zz"},
			want:    "must be hex",
		},
		{
			name:    "short key",
			signing: Signing{Algorithm: manifest.AlgEd25519, PublicKey: "abcd"},
			want:    "must be 32 bytes",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &File{Signing: tt.signing}
			_, err := f.Verifier(noEnv)
			require.Error(t, err)
			assert.True(t, model.HasCode(err, model.ErrCodeConfigInvalid))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSignerRejectsMismatchedPublicKey(t *testing.T) {
	f := &File{Signing: Signing{
		Algorithm: manifest.AlgEd25519,
		KeyEnv:    "SEAL_SEED",
		PublicKey: "3d4017c3e843895a92b70aa74d1b7ebc9c982ccf2ec4968cc0cd55f12af4660c",
	}}
	_, err := f.Signer(envOf(map[string]string{"SEAL_SEED": testSeed}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match signing.public_key")
}
