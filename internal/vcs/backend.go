// Package vcs is the version-control boundary of the tagging pipeline.
//
// The pipeline reads tags and changed paths, and performs exactly one write:
// creating an annotated tag. Backend implementations must refuse to overwrite
// an existing tag and report TAG_ALREADY_EXISTS instead.
package vcs

import "context"

// Backend is the version-control collaborator.
type Backend interface {
	// HeadCommit resolves the commit the tag will point at.
	HeadCommit(ctx context.Context) (string, error)

	// MostRecentTag returns the most recent tag reachable from ref,
	// ignoring tags that point at ref itself, so a rerun against the same
	// commit resolves the same version as the run that tagged it.
	// ok is false when no other tag is reachable.
	MostRecentTag(ctx context.Context, ref string) (tag string, ok bool, err error)

	// ListChangedPaths returns paths changed between fromRef and toRef.
	// An empty fromRef means "since the root": every path tracked at toRef.
	ListChangedPaths(ctx context.Context, fromRef, toRef string) ([]string, error)

	// TagExists reports whether a tag with this name already exists.
	TagExists(ctx context.Context, name string) (bool, error)

	// CreateAnnotatedTag creates an immutable annotated tag.
	// Returns a TAG_ALREADY_EXISTS error rather than overwriting.
	CreateAnnotatedTag(ctx context.Context, name, annotation, target string) error

	// TagAnnotation returns the annotation text of an existing tag.
	TagAnnotation(ctx context.Context, name string) (string, error)
}
