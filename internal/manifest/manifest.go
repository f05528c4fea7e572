// Package manifest builds the signed governance record embedded in a tag.
//
// Build order is fixed for reproducibility:
//  1. per-artifact content hashes (from verification), then the entropy
//     checksum over their concatenation in declared order
//  2. the governance vector derived from sinphase
//  3. the aura seal over checksum ∥ timestamp
//  4. the flat key/value annotation text
//
// Any failure yields MANIFEST_BUILD_FAILED and no manifest.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/govtag/internal/model"
)

// RollbackCost is the fixed rollback_cost component of the governance vector.
const RollbackCost = 0.15

// TimestampFormat is the Build-Timestamp layout (ISO-8601, UTC, seconds).
const TimestampFormat = "2006-01-02T15:04:05Z"

// Annotation field names, in serialization order.
const (
	FieldPolicyTag       = "Policy-Tag"
	FieldGovernanceRef   = "Governance-Ref"
	FieldEntropyChecksum = "Entropy-Checksum"
	FieldVector          = "Governance-Vector"
	FieldAuraSeal        = "AuraSeal"
	FieldTimestamp       = "Build-Timestamp"
	FieldArtifactCount   = "Artifact-Count"
)

var fieldOrder = []string{
	FieldPolicyTag,
	FieldGovernanceRef,
	FieldEntropyChecksum,
	FieldVector,
	FieldAuraSeal,
	FieldTimestamp,
	FieldArtifactCount,
}

// Vector holds the governance risk components.
//
// AttackRisk is defined as 1 − sinphase, which treats instability as attack
// surface. The formula is kept for compatibility with existing tags; it is a
// policy simplification, not a security measurement. It is serialized under
// the key build_risk.
type Vector struct {
	AttackRisk      float64 `json:"attack_risk"`
	RollbackCost    float64 `json:"rollback_cost"`
	StabilityImpact float64 `json:"stability_impact"`
}

// Manifest is the immutable governance record for one build.
type Manifest struct {
	PolicyTag       model.Tier `json:"policy_tag"`
	GovernanceRef   string     `json:"governance_ref"`
	EntropyChecksum string     `json:"entropy_checksum"`
	Vector          Vector     `json:"governance_vector"`
	AuraSeal        string     `json:"aura_seal"`
	Timestamp       time.Time  `json:"timestamp"`
	ArtifactCount   int        `json:"artifact_count"`
}

// Clock supplies the build timestamp.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// Builder assembles manifests.
type Builder struct {
	Signer Signer
	Clock  Clock
}

// NewBuilder creates a Builder. A nil clock uses the wall clock.
func NewBuilder(signer Signer, clock Clock) *Builder {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Builder{Signer: signer, Clock: clock}
}

// Input is everything a manifest is derived from.
type Input struct {
	Tier          model.Tier
	Sinphase      float64
	Artifacts     model.ArtifactSet
	GovernanceRef string
}

// Build assembles and seals a manifest.
func (b *Builder) Build(in Input) (*Manifest, error) {
	if b.Signer == nil {
		return nil, buildError("no signer configured", nil)
	}

	ref, err := canonicalValue(FieldGovernanceRef, in.GovernanceRef)
	if err != nil {
		return nil, buildError("invalid governance reference", err)
	}
	if ref == "" {
		return nil, buildError("governance reference is empty", nil)
	}

	checksum, count, err := EntropyChecksum(in.Artifacts)
	if err != nil {
		return nil, buildError("hashing artifacts", err)
	}

	clock := b.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	ts := clock.Now().UTC().Truncate(time.Second)

	seal, err := b.Signer.Sign(SealInput(checksum, ts))
	if err != nil {
		return nil, buildError("signing manifest", err)
	}

	return &Manifest{
		PolicyTag:       in.Tier,
		GovernanceRef:   ref,
		EntropyChecksum: checksum,
		Vector:          DeriveVector(in.Sinphase),
		AuraSeal:        seal,
		Timestamp:       ts,
		ArtifactCount:   count,
	}, nil
}

// EntropyChecksum hashes the concatenation of the per-artifact hex hashes of
// present artifacts, in declared order. The result is order-dependent:
// declaring the same artifacts in a different order changes the checksum.
// With no present artifacts it is the hash of the empty string.
func EntropyChecksum(artifacts model.ArtifactSet) (string, int, error) {
	h := sha256.New()
	count := 0
	for _, a := range artifacts {
		if !a.Present {
			continue
		}
		if len(a.Hash) != sha256.Size*2 {
			return "", 0, fmt.Errorf("artifact %s has no valid content hash", a.Path)
		}
		h.Write([]byte(strings.ToLower(a.Hash)))
		count++
	}
	return hex.EncodeToString(h.Sum(nil)), count, nil
}

// DeriveVector computes the governance vector from sinphase.
func DeriveVector(sinphase float64) Vector {
	return Vector{
		AttackRisk:      round4(1 - sinphase),
		RollbackCost:    RollbackCost,
		StabilityImpact: round4(sinphase),
	}
}

// SealInput is the byte string the aura seal covers: checksum ∥ timestamp.
func SealInput(checksum string, ts time.Time) []byte {
	return []byte(checksum + ts.UTC().Format(TimestampFormat))
}

// VerifySeal checks the manifest's aura seal with signer.
func VerifySeal(m *Manifest, signer Signer) (bool, error) {
	return signer.Verify(SealInput(m.EntropyChecksum, m.Timestamp), m.AuraSeal)
}

// Annotation serializes the manifest as tag annotation text.
//
// Field order and number formatting are fixed; identical manifests always
// serialize to identical bytes. Lines end in LF, including the last.
func (m *Manifest) Annotation() string {
	var b strings.Builder
	for _, field := range fieldOrder {
		b.WriteString(field)
		b.WriteString(": ")
		b.WriteString(m.fieldValue(field))
		b.WriteByte('\n')
	}
	return b.String()
}

func (m *Manifest) fieldValue(field string) string {
	switch field {
	case FieldPolicyTag:
		return m.PolicyTag.String()
	case FieldGovernanceRef:
		return m.GovernanceRef
	case FieldEntropyChecksum:
		return m.EntropyChecksum
	case FieldVector:
		return fmt.Sprintf("build_risk=%s rollback_cost=%s stability_impact=%s",
			formatFloat(m.Vector.AttackRisk),
			formatFloat(m.Vector.RollbackCost),
			formatFloat(m.Vector.StabilityImpact))
	case FieldAuraSeal:
		return m.AuraSeal
	case FieldTimestamp:
		return m.Timestamp.UTC().Format(TimestampFormat)
	case FieldArtifactCount:
		return strconv.Itoa(m.ArtifactCount)
	}
	return ""
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 4, 64)
}

func round4(f float64) float64 {
	r := math.Round(f*10000) / 10000
	if r == 0 {
		return 0 // no "-0.0000"
	}
	return r
}

func buildError(msg string, err error) error {
	if err == nil {
		return model.NewError(model.ErrCodeManifestBuild, msg)
	}
	return model.WrapError(model.ErrCodeManifestBuild, msg, err)
}
