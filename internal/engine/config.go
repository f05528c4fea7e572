package engine

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"text/template"

	"github.com/roach88/govtag/internal/model"
	"github.com/roach88/govtag/internal/version"
)

// Defaults applied by DefaultConfig.
const (
	DefaultThreshold   = 0.5
	DefaultTagPrefix   = "v"
	DefaultTagTemplate = "{{.Prefix}}{{.Version}}-{{.Tier}}"
)

// Config is the explicit, per-engine configuration.
// It is passed to New and never read from global state.
type Config struct {
	// Artifacts is the declared ArtifactSet, in significant order.
	Artifacts []string

	// ArtifactRoot is the directory relative artifact paths resolve against.
	ArtifactRoot string

	// Threshold is the minimum sinphase a build needs to be tagged.
	Threshold float64

	// TagPrefix is exposed to the tag template as .Prefix.
	TagPrefix string

	// TagTemplate is a text/template over .Prefix, .Version and .Tier.
	TagTemplate string

	// GovernanceRef is embedded in the manifest as Governance-Ref.
	GovernanceRef string

	// Areas drive the version bump class.
	Areas version.Areas

	// RequireArtifacts turns ARTIFACT_MISSING into a fatal precondition for Tag.
	RequireArtifacts bool
}

// DefaultConfig returns a Config with defaults for everything except
// Artifacts and GovernanceRef.
func DefaultConfig() Config {
	return Config{
		Threshold:   DefaultThreshold,
		TagPrefix:   DefaultTagPrefix,
		TagTemplate: DefaultTagTemplate,
		Areas:       version.DefaultAreas,
	}
}

// Validate checks the configuration and parses the tag template.
func (c Config) Validate() error {
	var problems []string
	if len(c.Artifacts) == 0 {
		problems = append(problems, "no artifacts declared")
	}
	seen := make(map[string]bool, len(c.Artifacts))
	for _, a := range c.Artifacts {
		if strings.TrimSpace(a) == "" {
			problems = append(problems, "empty artifact path")
			continue
		}
		if seen[a] {
			problems = append(problems, fmt.Sprintf("artifact %q declared twice", a))
		}
		seen[a] = true
	}
	switch {
	case math.IsNaN(c.Threshold) || math.IsInf(c.Threshold, 0):
		// NaN would make every gate comparison pass.
		problems = append(problems, fmt.Sprintf("threshold %v is not a finite number", c.Threshold))
	case c.Threshold < 0:
		problems = append(problems, fmt.Sprintf("threshold %v is negative", c.Threshold))
	}
	if strings.TrimSpace(c.GovernanceRef) == "" {
		problems = append(problems, "governance_ref is required")
	}
	if _, err := c.tagTemplate(); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return model.NewError(model.ErrCodeConfigInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func (c Config) tagTemplate() (*template.Template, error) {
	text := c.TagTemplate
	if text == "" {
		text = DefaultTagTemplate
	}
	tmpl, err := template.New("tag").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("tag_template: %w", err)
	}
	return tmpl, nil
}

// TagNameData is the data the tag template is executed with.
type TagNameData struct {
	Prefix  string
	Version string
	Tier    string
}

// renderTagName executes tmpl and checks the result is a usable ref name.
func renderTagName(tmpl *template.Template, data TagNameData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render tag name: %w", err)
	}
	name := buf.String()
	if err := checkRefName(name); err != nil {
		return "", err
	}
	return name, nil
}

// checkRefName applies the subset of git's ref-name rules a rendered
// template can plausibly violate.
func checkRefName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("tag name is empty")
	case strings.ContainsAny(name, " \t\n~^:?*[\\"):
		return fmt.Errorf("tag name %q contains a forbidden character", name)
	case strings.Contains(name, ".."), strings.Contains(name, "@{"):
		return fmt.Errorf("tag name %q contains a forbidden sequence", name)
	case strings.HasPrefix(name, "-"), strings.HasPrefix(name, "/"),
		strings.HasSuffix(name, "/"), strings.HasSuffix(name, "."), strings.HasSuffix(name, ".lock"):
		return fmt.Errorf("tag name %q is not a valid ref name", name)
	}
	return nil
}
