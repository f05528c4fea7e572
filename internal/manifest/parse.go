package manifest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/govtag/internal/model"
)

// ParseAnnotation reads annotation text produced by Manifest.Annotation.
//
// The seven fields must appear exactly once each, in serialization order.
// Trailing lines after Artifact-Count (e.g. a detached signature appended by
// git) are ignored.
func ParseAnnotation(text string) (*Manifest, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if len(lines) < len(fieldOrder) {
		return nil, fmt.Errorf("annotation has %d lines, want at least %d", len(lines), len(fieldOrder))
	}

	values := make(map[string]string, len(fieldOrder))
	for i, field := range fieldOrder {
		key, value, ok := strings.Cut(lines[i], ": ")
		if !ok || key != field {
			return nil, fmt.Errorf("line %d: want field %q, got %q", i+1, field, lines[i])
		}
		values[field] = value
	}

	m := &Manifest{
		GovernanceRef:   values[FieldGovernanceRef],
		EntropyChecksum: values[FieldEntropyChecksum],
		AuraSeal:        values[FieldAuraSeal],
	}

	var err error
	if m.PolicyTag, err = model.ParseTier(values[FieldPolicyTag]); err != nil {
		return nil, fmt.Errorf("%s: %w", FieldPolicyTag, err)
	}
	if m.Vector, err = parseVector(values[FieldVector]); err != nil {
		return nil, fmt.Errorf("%s: %w", FieldVector, err)
	}
	if m.Timestamp, err = time.Parse(TimestampFormat, values[FieldTimestamp]); err != nil {
		return nil, fmt.Errorf("%s: %w", FieldTimestamp, err)
	}
	if m.ArtifactCount, err = strconv.Atoi(values[FieldArtifactCount]); err != nil {
		return nil, fmt.Errorf("%s: %w", FieldArtifactCount, err)
	}
	return m, nil
}

func parseVector(s string) (Vector, error) {
	var v Vector
	targets := []struct {
		key string
		dst *float64
	}{
		{"build_risk", &v.AttackRisk},
		{"rollback_cost", &v.RollbackCost},
		{"stability_impact", &v.StabilityImpact},
	}

	parts := strings.Fields(s)
	if len(parts) != len(targets) {
		return v, fmt.Errorf("want %d components, got %d", len(targets), len(parts))
	}
	for i, target := range targets {
		key, raw, ok := strings.Cut(parts[i], "=")
		if !ok || key != target.key {
			return v, fmt.Errorf("component %d: want %q, got %q", i+1, target.key, parts[i])
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return v, fmt.Errorf("%s: %w", key, err)
		}
		*target.dst = f
	}
	return v, nil
}
