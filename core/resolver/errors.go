package resolver

import (
	"fmt"
	"strings"

	"github.com/nsoperations/depforge/core"
)

// RequiredVersionNotFoundError reports a dependency whose candidate set
// emptied with no remaining assignment anywhere in the search.
type RequiredVersionNotFoundError struct {
	Dependency core.Dependency

	// Conflict holds the incompatible constraint origins when they could
	// be identified: the constraint that emptied the set and the earlier
	// definition it clashes with.
	Conflict []Definition
}

func (e *RequiredVersionNotFoundError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "no available version satisfies all requirements for %s", e.Dependency)
	for _, def := range e.Conflict {
		sb.WriteString("\n\t")
		sb.WriteString(def.String())
	}
	return sb.String()
}

// UnknownDependenciesError reports names passed as update targets that
// do not occur in the manifest or prior resolution.
type UnknownDependenciesError struct {
	Names []string
}

func (e *UnknownDependenciesError) Error() string {
	return fmt.Sprintf("unknown dependencies requested for update: %s", strings.Join(e.Names, ", "))
}
