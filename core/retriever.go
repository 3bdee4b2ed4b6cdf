package core

import (
	"context"
	"fmt"

	"github.com/nsoperations/depforge/version"
)

// Retriever answers the three questions resolution needs: which versions
// exist for a dependency, what a dependency requires at a given version,
// and which concrete version a git reference points at.
//
// Implementations may hit the network (git, binary-definition downloads)
// or a local store; all three methods are treated by the resolver as
// pure, idempotent reads that may suspend arbitrarily long. They must
// honor context cancellation.
type Retriever interface {
	// Versions lists every version token published for the dependency.
	// It fails with a TaggedVersionNotFoundError when the dependency has
	// no version tags at all.
	Versions(ctx context.Context, d Dependency) ([]version.Pinned, error)

	// Dependencies returns the requirements the dependency declares at
	// the given version.
	Dependencies(ctx context.Context, d Dependency, v version.Pinned) ([]Requirement, error)

	// ResolvedGitReference turns a branch, tag, or SHA into the concrete
	// pinned version it currently points at.
	ResolvedGitReference(ctx context.Context, d Dependency, ref string) (version.Pinned, error)
}

// TaggedVersionNotFoundError reports a dependency with no version tags.
type TaggedVersionNotFoundError struct {
	Dependency Dependency
}

func (e *TaggedVersionNotFoundError) Error() string {
	return fmt.Sprintf("no tagged versions found for %s", e.Dependency)
}

// GitReferenceNotFoundError reports a reference that cannot be resolved.
type GitReferenceNotFoundError struct {
	Dependency Dependency
	Ref        string
}

func (e *GitReferenceNotFoundError) Error() string {
	return fmt.Sprintf("no reference %q found for %s", e.Ref, e.Dependency)
}
