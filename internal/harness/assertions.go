package harness

import (
	"fmt"
	"math"
	"slices"

	"github.com/roach88/govtag/internal/engine"
)

// Check compares a run result against the scenario's expectations and
// returns one message per mismatch. An empty slice means the run matched.
func Check(expect Expectation, result *Result) []string {
	var failures []string
	mismatch := func(field string, want, got any) {
		failures = append(failures, fmt.Sprintf("%s: expected %v, got %v", field, want, got))
	}

	rep := result.Report
	if string(rep.State) != expect.State {
		mismatch("state", expect.State, rep.State)
	}
	if expect.Status != "" && string(rep.Status) != expect.Status {
		mismatch("status", expect.Status, rep.Status)
	}
	if expect.Code != "" && string(result.Code()) != expect.Code {
		mismatch("code", expect.Code, result.Code())
	}
	if expect.Tag != "" && rep.TagName != expect.Tag {
		mismatch("tag", expect.Tag, rep.TagName)
	}
	if expect.Tier != "" && rep.Tier.String() != expect.Tier {
		mismatch("tier", expect.Tier, rep.Tier)
	}
	if expect.Sinphase != nil && math.Abs(rep.Sinphase-*expect.Sinphase) > 1e-9 {
		mismatch("sinphase", *expect.Sinphase, rep.Sinphase)
	}

	if expect.Version != "" || expect.Bump != "" {
		if rep.Version == nil {
			failures = append(failures, "version: run did not resolve a version")
		} else {
			if expect.Version != "" && rep.Version.Next.String() != expect.Version {
				mismatch("version", expect.Version, rep.Version.Next)
			}
			if expect.Bump != "" && string(rep.Version.Bump) != expect.Bump {
				mismatch("bump", expect.Bump, rep.Version.Bump)
			}
		}
	}

	if expect.Missing != nil && !slices.Equal(rep.Missing, expect.Missing) {
		mismatch("missing", expect.Missing, rep.Missing)
	}
	if expect.Path != nil {
		if got := statePath(rep.Transitions); !slices.Equal(got, expect.Path) {
			mismatch("path", expect.Path, got)
		}
	}
	if expect.Writes != nil && result.Writes != *expect.Writes {
		mismatch("writes", *expect.Writes, result.Writes)
	}
	if expect.Ledger != nil && len(result.Runs) != *expect.Ledger {
		mismatch("ledger", *expect.Ledger, len(result.Runs))
	}
	return failures
}

// statePath lists the states a run entered, in order.
func statePath(transitions []engine.Transition) []string {
	path := make([]string, 0, len(transitions))
	for _, t := range transitions {
		path = append(path, string(t.To))
	}
	return path
}
