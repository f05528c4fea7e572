package version

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/govtag/internal/model"
	"github.com/roach88/govtag/internal/vcs"
)

// Resolution is the outcome of resolving the next version.
type Resolution struct {
	PreviousTag  string          `json:"previous_tag,omitempty"`
	Previous     model.Version   `json:"previous"`
	Bump         model.BumpClass `json:"bump"`
	Next         model.Version   `json:"next"`
	ChangedPaths []string        `json:"changed_paths"`
}

// Resolver derives the next version from the VCS history.
type Resolver struct {
	Backend vcs.Backend
	Areas   Areas
	Logger  *slog.Logger
}

// Resolve finds the most recent tag reachable from head (or the 0.0.0
// baseline when there is none), lists the paths changed since then, and
// applies the bump policy.
func (r *Resolver) Resolve(ctx context.Context, head string) (*Resolution, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	res := &Resolution{Previous: Baseline}

	tag, ok, err := r.Backend.MostRecentTag(ctx, head)
	if err != nil {
		return nil, err
	}
	if ok {
		prev, err := Parse(tag)
		if err != nil {
			return nil, model.WrapError(model.ErrCodeVCS, fmt.Sprintf("previous tag %q is not versioned", tag), err)
		}
		res.PreviousTag = tag
		res.Previous = prev
	}

	res.ChangedPaths, err = r.Backend.ListChangedPaths(ctx, res.PreviousTag, head)
	if err != nil {
		return nil, err
	}

	res.Bump = r.Areas.Classify(res.ChangedPaths)
	res.Next, err = Increment(res.Previous, res.Bump)
	if err != nil {
		return nil, err
	}

	logger.Debug("version resolved",
		"previous_tag", res.PreviousTag,
		"previous", res.Previous.String(),
		"changed", len(res.ChangedPaths),
		"bump", res.Bump,
		"next", res.Next.String(),
	)
	return res, nil
}
