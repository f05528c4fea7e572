// Package artifact checks declared build outputs and hashes their content.
package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/roach88/govtag/internal/model"
)

// Verifier confirms that a declared set of build outputs exists and is readable.
//
// Paths are checked in declaration order. The result preserves that order
// because the manifest's entropy checksum depends on it.
//
// Verification is read-only: nothing on disk is created or modified.
type Verifier struct {
	// Root is the directory relative paths resolve against.
	// Empty means the process working directory.
	Root string
}

// NewVerifier creates a Verifier rooted at dir.
func NewVerifier(root string) *Verifier {
	return &Verifier{Root: root}
}

// VerifyResult is the outcome of probing an ArtifactSet.
type VerifyResult struct {
	Artifacts    model.ArtifactSet `json:"artifacts"`
	PresentCount int               `json:"present_count"`
	Missing      []string          `json:"missing,omitempty"`
}

// Verify stats and hashes each declared path.
//
// A path counts as present only if it is a regular file that can be opened
// and read to the end; present artifacts carry their SHA-256 content hash.
//
// If any path is absent the full result is still returned together with an
// ARTIFACT_MISSING error. That error is advisory: the caller decides whether
// to proceed.
func (v *Verifier) Verify(ctx context.Context, paths []string) (*VerifyResult, error) {
	result := &VerifyResult{
		Artifacts: make(model.ArtifactSet, 0, len(paths)),
	}

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		art := model.Artifact{Path: p}
		hash, err := HashFile(v.resolve(p))
		if err == nil {
			art.Present = true
			art.Hash = hash
			result.PresentCount++
		} else {
			result.Missing = append(result.Missing, p)
		}
		result.Artifacts = append(result.Artifacts, art)
	}

	if len(result.Missing) > 0 {
		return result, model.NewArtifactMissingError(result.Missing, len(paths))
	}
	return result, nil
}

func (v *Verifier) resolve(p string) string {
	if filepath.IsAbs(p) || v.Root == "" {
		return p
	}
	return filepath.Join(v.Root, p)
}

// HashFile returns the lowercase hex SHA-256 of a regular file's content.
// Directories, missing files and unreadable files are errors.
func HashFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s: not a regular file", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
