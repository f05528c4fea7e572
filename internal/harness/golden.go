package harness

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot is the golden-file view of a scenario run: where the pipeline
// went and the annotation it produced.
type Snapshot struct {
	Scenario   string   `json:"scenario"`
	State      string   `json:"state"`
	Status     string   `json:"status"`
	Code       string   `json:"code,omitempty"`
	Path       []string `json:"path"`
	Tag        string   `json:"tag,omitempty"`
	Annotation []string `json:"annotation,omitempty"`
}

// NewSnapshot builds the snapshot for a finished run.
func NewSnapshot(name string, result *Result) Snapshot {
	rep := result.Report
	snap := Snapshot{
		Scenario: name,
		State:    string(rep.State),
		Status:   string(rep.Status),
		Code:     string(result.Code()),
		Path:     statePath(rep.Transitions),
		Tag:      rep.TagName,
	}
	if rep.Annotation != "" {
		snap.Annotation = strings.Split(strings.TrimSuffix(rep.Annotation, "\n"), "\n")
	}
	return snap
}

// Marshal renders the snapshot as indented JSON with a trailing newline.
func (s Snapshot) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can check expectations as well.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := NewSnapshot(name, result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
