// Package version derives the next semantic version from the code areas
// touched since the previous tag.
package version

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/roach88/govtag/internal/model"
)

// Baseline is the synthetic previous version used when no tag exists.
var Baseline = model.Version{}

var coreRe = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)`)

// Parse extracts the semantic version core from a tag name.
//
// A leading prefix up to the first digit is ignored, as is anything after
// MAJOR.MINOR.PATCH, so "v1.2.3-beta" and "release-1.2.3" both parse to
// 1.2.3. The core must be a valid semver version.
func Parse(tag string) (model.Version, error) {
	s := strings.TrimLeftFunc(tag, func(r rune) bool { return r < '0' || r > '9' })
	m := coreRe.FindStringSubmatch(s)
	if m == nil {
		return model.Version{}, fmt.Errorf("tag %q has no MAJOR.MINOR.PATCH version", tag)
	}
	if !semver.IsValid("v" + m[0]) {
		return model.Version{}, fmt.Errorf("tag %q: %q is not a valid semantic version", tag, m[0])
	}

	var v model.Version
	var err error
	if v.Major, err = strconv.Atoi(m[1]); err != nil {
		return model.Version{}, fmt.Errorf("tag %q: major: %w", tag, err)
	}
	if v.Minor, err = strconv.Atoi(m[2]); err != nil {
		return model.Version{}, fmt.Errorf("tag %q: minor: %w", tag, err)
	}
	if v.Patch, err = strconv.Atoi(m[3]); err != nil {
		return model.Version{}, fmt.Errorf("tag %q: patch: %w", tag, err)
	}
	return v, nil
}

// Increment applies a bump with semantic-versioning reset semantics:
// a major bump zeroes minor and patch, a minor bump zeroes patch, and a
// patch bump only increments patch.
func Increment(v model.Version, bump model.BumpClass) (model.Version, error) {
	switch bump {
	case model.BumpMajor:
		return model.Version{Major: v.Major + 1}, nil
	case model.BumpMinor:
		return model.Version{Major: v.Major, Minor: v.Minor + 1}, nil
	case model.BumpPatch:
		return model.Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}, nil
	}
	return v, fmt.Errorf("unknown bump class %q", bump)
}

// Areas names the path prefixes whose changes drive the bump class.
type Areas struct {
	// Public is the public-interface area; any change here is a major bump.
	Public []string `json:"public" yaml:"public"`

	// Core is the core-implementation area; any change here is a minor bump.
	Core []string `json:"core" yaml:"core"`
}

// DefaultAreas is used when configuration names no areas.
var DefaultAreas = Areas{
	Public: []string{"include/", "api/"},
	Core:   []string{"src/", "internal/"},
}

// Classify applies the precedence policy: major if any path is in the
// public area, else minor if any path is in the core area, else patch.
func (a Areas) Classify(paths []string) model.BumpClass {
	bump := model.BumpPatch
	for _, p := range paths {
		p = normalizePath(p)
		if underAny(p, a.Public) {
			return model.BumpMajor
		}
		if underAny(p, a.Core) {
			bump = model.BumpMinor
		}
	}
	return bump
}

func normalizePath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	p = path.Clean(p)
	return strings.TrimPrefix(p, "./")
}

// underAny reports whether p equals or lies beneath one of the prefixes.
// "src/" matches "src/a.c" and "src", but not "srcgen/a.c".
func underAny(p string, prefixes []string) bool {
	for _, prefix := range prefixes {
		prefix = strings.TrimSuffix(normalizePath(prefix), "/")
		if prefix == "" || prefix == "." {
			continue
		}
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}
	return false
}
