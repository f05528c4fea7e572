package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/govtag/internal/version"
)

// Scenario defines a governance conformance scenario: a build tree, a test
// summary, a VCS history and the outcome one tag run must produce.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Artifacts is the declared artifact set, in significant order.
	Artifacts []ArtifactStep `yaml:"artifacts"`

	// Tests is the summary the test runner reports.
	Tests TestStep `yaml:"tests"`

	// Tags are pre-existing tags, oldest first. All point at an ancestor
	// of the commit being tagged.
	Tags []string `yaml:"tags,omitempty"`

	// Changed lists the paths changed since the most recent tag.
	Changed []string `yaml:"changed,omitempty"`

	// Config overrides engine defaults.
	Config ConfigStep `yaml:"config,omitempty"`

	// DryRun runs the pipeline without creating the tag.
	DryRun bool `yaml:"dry_run,omitempty"`

	// Reruns is how many more times Tag runs against the same commit after
	// the first run. Expectations apply to the last run.
	Reruns int `yaml:"reruns,omitempty"`

	// Expect is the outcome the run must produce.
	Expect Expectation `yaml:"expect"`
}

// ArtifactStep is one declared artifact. Unless Missing is set the harness
// writes Content to Path before the run.
type ArtifactStep struct {
	Path    string `yaml:"path"`
	Content string `yaml:"content,omitempty"`
	Missing bool   `yaml:"missing,omitempty"`
}

// TestStep is the pass/fail count the fixed runner returns.
type TestStep struct {
	Passed int `yaml:"passed"`
	Total  int `yaml:"total"`
}

// ConfigStep holds the engine settings a scenario may override.
type ConfigStep struct {
	Threshold        *float64       `yaml:"threshold,omitempty"`
	TagPrefix        *string        `yaml:"tag_prefix,omitempty"`
	TagTemplate      string         `yaml:"tag_template,omitempty"`
	GovernanceRef    string         `yaml:"governance_ref,omitempty"`
	Areas            *version.Areas `yaml:"areas,omitempty"`
	RequireArtifacts bool           `yaml:"require_artifacts,omitempty"`
}

// Expectation is matched against the run result. Empty fields are not
// checked.
type Expectation struct {
	// State is the final pipeline state (done or failed). Required.
	State string `yaml:"state"`

	// Status is success, advisory or fatal.
	Status string `yaml:"status,omitempty"`

	// Code is the error code the run failed or warned with.
	Code string `yaml:"code,omitempty"`

	Tag      string   `yaml:"tag,omitempty"`
	Tier     string   `yaml:"tier,omitempty"`
	Sinphase *float64 `yaml:"sinphase,omitempty"`
	Version  string   `yaml:"version,omitempty"`
	Bump     string   `yaml:"bump,omitempty"`
	Missing  []string `yaml:"missing,omitempty"`

	// Path is the ordered list of states entered after idle.
	Path []string `yaml:"path,omitempty"`

	// Writes is the number of tags the run created.
	Writes *int `yaml:"writes,omitempty"`

	// Ledger is the number of runs recorded.
	Ledger *int `yaml:"ledger,omitempty"`
}

var validStates = map[string]bool{"done": true, "failed": true}

var validStatuses = map[string]bool{"": true, "success": true, "advisory": true, "fatal": true}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if strings.ContainsAny(s.Name, `/\ `) {
		return fmt.Errorf("name %q must be usable as a file name", s.Name)
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Artifacts) == 0 {
		return fmt.Errorf("artifacts list is required and must be non-empty")
	}

	seen := make(map[string]bool, len(s.Artifacts))
	for i, a := range s.Artifacts {
		if a.Path == "" {
			return fmt.Errorf("artifacts[%d]: path is required", i)
		}
		if seen[a.Path] {
			return fmt.Errorf("artifacts[%d]: duplicate path %q", i, a.Path)
		}
		seen[a.Path] = true
		if a.Missing && a.Content != "" {
			return fmt.Errorf("artifacts[%d]: missing artifact %q cannot have content", i, a.Path)
		}
	}

	if s.Reruns < 0 {
		return fmt.Errorf("reruns must not be negative")
	}

	if !validStates[s.Expect.State] {
		return fmt.Errorf("expect.state must be done or failed, got %q", s.Expect.State)
	}
	if !validStatuses[s.Expect.Status] {
		return fmt.Errorf("expect.status %q is not a valid status", s.Expect.Status)
	}
	return nil
}
