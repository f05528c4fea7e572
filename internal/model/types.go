package model

import (
	"fmt"
	"strings"
)

// TestSummary is the pass/fail count produced by an external test runner.
// Invariant: 0 <= Passed <= Total.
type TestSummary struct {
	Passed int `json:"passed"`
	Total  int `json:"total"`
}

// Validate checks the Passed <= Total invariant.
func (s TestSummary) Validate() error {
	if s.Passed < 0 || s.Total < 0 {
		return NewError(ErrCodeTestSummaryParse, fmt.Sprintf("negative test counts (passed=%d, total=%d)", s.Passed, s.Total))
	}
	if s.Passed > s.Total {
		return NewError(ErrCodeTestSummaryParse, fmt.Sprintf("passed %d exceeds total %d", s.Passed, s.Total))
	}
	return nil
}

// Tier is a discrete stability classification. Tiers are ordered.
type Tier int

const (
	TierAlpha Tier = iota
	TierBeta
	TierRC
	TierStable
	TierRelease
)

var tierNames = [...]string{"alpha", "beta", "rc", "stable", "release"}

// String returns the lowercase tier name used in tag names and annotations.
func (t Tier) String() string {
	if t < TierAlpha || t > TierRelease {
		return fmt.Sprintf("tier(%d)", int(t))
	}
	return tierNames[t]
}

// AtLeast reports whether t ranks at or above other.
func (t Tier) AtLeast(other Tier) bool {
	return t >= other
}

// ParseTier converts a tier name back into a Tier.
func ParseTier(s string) (Tier, error) {
	for i, name := range tierNames {
		if strings.EqualFold(s, name) {
			return Tier(i), nil
		}
	}
	return TierAlpha, fmt.Errorf("unknown stability tier %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// BumpClass is the semantic-version bump derived from changed code areas.
type BumpClass string

const (
	BumpMajor BumpClass = "major"
	BumpMinor BumpClass = "minor"
	BumpPatch BumpClass = "patch"
)

// Version is a semantic version core. Ordered lexicographically by (Major, Minor, Patch).
type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

// String renders the version as MAJOR.MINOR.PATCH.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or +1.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		return cmpInt(v.Major, o.Major)
	case v.Minor != o.Minor:
		return cmpInt(v.Minor, o.Minor)
	default:
		return cmpInt(v.Patch, o.Patch)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Artifact is one declared build output.
// Hash is the lowercase hex SHA-256 of the content, set only when Present.
type Artifact struct {
	Path    string `json:"path"`
	Present bool   `json:"present"`
	Hash    string `json:"hash,omitempty"`
}

// ArtifactSet is the ordered sequence of declared artifacts after verification.
// Order is the declaration order and is significant for the entropy checksum.
type ArtifactSet []Artifact

// PresentCount returns how many artifacts were found.
func (s ArtifactSet) PresentCount() int {
	n := 0
	for _, a := range s {
		if a.Present {
			n++
		}
	}
	return n
}

// Missing returns the declared paths that were not found, in declared order.
func (s ArtifactSet) Missing() []string {
	var out []string
	for _, a := range s {
		if !a.Present {
			out = append(out, a.Path)
		}
	}
	return out
}
