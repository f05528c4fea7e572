// Package config loads governance.yaml / governance.cue into an
// engine.Config plus the CLI-only settings (signing key source, test
// command, ledger path).
package config

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/govtag/internal/engine"
	"github.com/roach88/govtag/internal/manifest"
	"github.com/roach88/govtag/internal/model"
	"github.com/roach88/govtag/internal/version"
)

// DefaultKeyEnv is consulted when neither signing.key_env nor
// signing.key_file is set.
const DefaultKeyEnv = "GOVTAG_SIGNING_KEY"

// DefaultNames are tried, in order, when no config path is given.
var DefaultNames = []string{"governance.yaml", "governance.yml", "governance.cue"}

// Signing describes where the seal key comes from. The secret key is never
// part of the config file; an ed25519 public key may be, so inspect can
// verify seals on machines that do not hold the seed.
type Signing struct {
	KeyEnv    string `yaml:"key_env" json:"key_env,omitempty"`
	KeyFile   string `yaml:"key_file" json:"key_file,omitempty"`
	Algorithm string `yaml:"algorithm" json:"algorithm,omitempty"`

	// PublicKey is a hex ed25519 public key.
	PublicKey string `yaml:"public_key" json:"public_key,omitempty"`
}

// File is the on-disk configuration.
type File struct {
	Artifacts        []string       `yaml:"artifacts" json:"artifacts"`
	ArtifactRoot     string         `yaml:"artifact_root" json:"artifact_root,omitempty"`
	Threshold        *float64       `yaml:"threshold" json:"threshold,omitempty"`
	TagPrefix        *string        `yaml:"tag_prefix" json:"tag_prefix,omitempty"`
	TagTemplate      string         `yaml:"tag_template" json:"tag_template,omitempty"`
	GovernanceRef    string         `yaml:"governance_ref" json:"governance_ref"`
	Areas            *version.Areas `yaml:"areas" json:"areas,omitempty"`
	Signing          Signing        `yaml:"signing" json:"signing,omitempty"`
	TestCommand      []string       `yaml:"test_command" json:"test_command,omitempty"`
	RequireArtifacts bool           `yaml:"require_artifacts" json:"require_artifacts,omitempty"`
	Ledger           string         `yaml:"ledger" json:"ledger,omitempty"`

	// dir is the directory the file was loaded from; relative paths
	// resolve against it.
	dir string
}

// knownFields is the set of top-level CUE labels; YAML gets the same
// check from KnownFields.
var knownFields = map[string]bool{
	"artifacts": true, "artifact_root": true, "threshold": true,
	"tag_prefix": true, "tag_template": true, "governance_ref": true,
	"areas": true, "signing": true, "test_command": true,
	"require_artifacts": true, "ledger": true,
}

// Find returns the first default config file present in dir.
func Find(dir string) (string, error) {
	for _, name := range DefaultNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", model.NewError(model.ErrCodeConfigInvalid,
		fmt.Sprintf("no config found in %s (tried %s)", dir, strings.Join(DefaultNames, ", ")))
}

// Load reads a YAML or CUE config, chosen by file extension.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.WrapError(model.ErrCodeConfigInvalid, "read config", err)
	}

	var f *File
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		f, err = ParseYAML(data)
	case ".cue":
		f, err = ParseCUE(path, data)
	default:
		return nil, model.NewError(model.ErrCodeConfigInvalid, fmt.Sprintf("unsupported config extension %q", ext))
	}
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, model.WrapError(model.ErrCodeConfigInvalid, "resolve config dir", err)
	}
	f.dir = abs
	return f, nil
}

// ParseYAML decodes YAML, rejecting unknown fields.
func ParseYAML(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, model.WrapError(model.ErrCodeConfigInvalid, "parse YAML", err)
	}
	return &f, nil
}

// ParseCUE compiles a single CUE file and decodes it. The value must be
// concrete; constraints in the file are checked by CUE itself.
func ParseCUE(filename string, data []byte) (*File, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, model.WrapError(model.ErrCodeConfigInvalid, "compile CUE", err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, model.WrapError(model.ErrCodeConfigInvalid, "validate CUE", err)
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, model.WrapError(model.ErrCodeConfigInvalid, "CUE config must be a struct", err)
	}
	for iter.Next() {
		if label := iter.Selector().String(); !knownFields[label] {
			return nil, model.NewError(model.ErrCodeConfigInvalid, fmt.Sprintf("unknown field %q", label))
		}
	}

	var f File
	if err := v.Decode(&f); err != nil {
		return nil, model.WrapError(model.ErrCodeConfigInvalid, "decode CUE", err)
	}
	return &f, nil
}

// Engine converts the file into an engine.Config with defaults applied.
// The result is validated by engine.New.
func (f *File) Engine() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.Artifacts = f.Artifacts
	cfg.ArtifactRoot = f.resolve(f.ArtifactRoot)
	if f.Threshold != nil {
		cfg.Threshold = *f.Threshold
	}
	if f.TagPrefix != nil {
		cfg.TagPrefix = *f.TagPrefix
	}
	if f.TagTemplate != "" {
		cfg.TagTemplate = f.TagTemplate
	}
	cfg.GovernanceRef = f.GovernanceRef
	if f.Areas != nil {
		cfg.Areas = *f.Areas
	}
	cfg.RequireArtifacts = f.RequireArtifacts
	return cfg
}

// LedgerPath returns the resolved ledger path, or "" when disabled.
func (f *File) LedgerPath() string {
	if f.Ledger == "" {
		return ""
	}
	return f.resolve(f.Ledger)
}

// Signer loads key material and builds the configured signer.
//
// lookup is os.LookupEnv in production. Ed25519 keys are hex-encoded
// (32-byte seed or 64-byte private key); HMAC keys are used as-is.
func (f *File) Signer(lookup func(string) (string, bool)) (manifest.Signer, error) {
	key, err := f.keyMaterial(lookup)
	if err != nil {
		return nil, err
	}
	if f.Signing.Algorithm == manifest.AlgEd25519 {
		key, err = hex.DecodeString(string(key))
		if err != nil {
			return nil, model.WrapError(model.ErrCodeConfigInvalid, "ed25519 key must be hex", err)
		}
	}
	s, err := manifest.NewSigner(f.Signing.Algorithm, key)
	if err != nil {
		return nil, model.WrapError(model.ErrCodeConfigInvalid, "signing", err)
	}
	if f.Signing.PublicKey != "" {
		pub, err := f.publicKey()
		if err != nil {
			return nil, err
		}
		if ed, ok := s.(*manifest.Ed25519Signer); ok && !ed.PublicKey().Equal(pub) {
			return nil, model.NewError(model.ErrCodeConfigInvalid, "signing key does not match signing.public_key")
		}
	}
	return s, nil
}

// Verifier returns a signer able to check seals. With signing.public_key
// set it needs no secret and never touches the environment; otherwise it
// is the same as Signer.
func (f *File) Verifier(lookup func(string) (string, bool)) (manifest.Signer, error) {
	if f.Signing.PublicKey == "" {
		return f.Signer(lookup)
	}
	pub, err := f.publicKey()
	if err != nil {
		return nil, err
	}
	v, err := manifest.NewEd25519Verifier(pub)
	if err != nil {
		return nil, model.WrapError(model.ErrCodeConfigInvalid, "signing.public_key", err)
	}
	return v, nil
}

func (f *File) publicKey() (ed25519.PublicKey, error) {
	if f.Signing.Algorithm != manifest.AlgEd25519 {
		return nil, model.NewError(model.ErrCodeConfigInvalid, "signing.public_key requires algorithm ed25519").
			WithDetail("algorithm", f.Signing.Algorithm)
	}
	pub, err := hex.DecodeString(f.Signing.PublicKey)
	if err != nil {
		return nil, model.WrapError(model.ErrCodeConfigInvalid, "signing.public_key must be hex", err)
	}
	if len(pub) != ed25519.PublicKeySize {
		return nil, model.NewError(model.ErrCodeConfigInvalid,
			fmt.Sprintf("signing.public_key must be %d bytes, got %d", ed25519.PublicKeySize, len(pub)))
	}
	return ed25519.PublicKey(pub), nil
}

func (f *File) keyMaterial(lookup func(string) (string, bool)) ([]byte, error) {
	if f.Signing.KeyFile != "" {
		data, err := os.ReadFile(f.resolve(f.Signing.KeyFile))
		if err != nil {
			return nil, model.WrapError(model.ErrCodeConfigInvalid, "read signing key", err)
		}
		return bytes.TrimRight(data, "\r\n"), nil
	}

	name := f.Signing.KeyEnv
	if name == "" {
		name = DefaultKeyEnv
	}
	val, ok := lookup(name)
	if !ok || val == "" {
		return nil, model.NewError(model.ErrCodeConfigInvalid, fmt.Sprintf("signing key env %s is not set", name)).
			WithDetail("env", name)
	}
	return []byte(val), nil
}

func (f *File) resolve(p string) string {
	if p == "" {
		return f.dir
	}
	if filepath.IsAbs(p) || f.dir == "" {
		return p
	}
	return filepath.Join(f.dir, p)
}
