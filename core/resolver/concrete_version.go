// Package resolver implements backtracking dependency resolution over
// ordered candidate-version sets.
//
// Given a root manifest of requirements and a core.Retriever, the
// resolver searches for a single consistent version assignment across
// the transitive dependency graph, narrowing each dependency's ordered
// candidate set as constraints are discovered and backtracking through
// decision points when a set empties.
package resolver

import (
	"fmt"
	"strings"

	"github.com/nsoperations/depforge/core"
	"github.com/nsoperations/depforge/version"
)

// bound marks synthetic versions used only as range boundaries when
// querying the ordered set. Real candidates are always boundNone.
type bound int8

const (
	// boundBefore ranks ahead of every real version of equal rank.
	boundBefore bound = -1
	boundNone   bound = 0
	// boundAfter ranks behind every real version of equal rank.
	boundAfter bound = 1
)

// ConcreteVersion is a canonicalized, comparable wrapper around a pinned
// version: the raw token plus its semantic interpretation, parsed once.
//
// Ordering is descending relevance, matching the prefer-newest
// resolution policy: semantic versions rank before non-semantic ones,
// higher semantic versions rank first, and non-semantic versions fall
// back to lexical order of the raw token.
type ConcreteVersion struct {
	pinned version.Pinned
	sem    version.SemVer
	hasSem bool
	bound  bound
}

// NewConcreteVersion canonicalizes a pinned version.
func NewConcreteVersion(p version.Pinned) ConcreteVersion {
	sem, ok := version.Parse(p.Commitish)
	return ConcreteVersion{pinned: p, sem: sem, hasSem: ok}
}

// boundaryBefore builds a sentinel ranking just ahead of every real
// version ranking as v.
func boundaryBefore(v version.SemVer) ConcreteVersion {
	return ConcreteVersion{sem: v, hasSem: true, bound: boundBefore}
}

// boundaryAfter builds a sentinel ranking just behind every real
// version ranking as v.
func boundaryAfter(v version.SemVer) ConcreteVersion {
	return ConcreteVersion{sem: v, hasSem: true, bound: boundAfter}
}

// Pinned returns the underlying raw version token.
func (c ConcreteVersion) Pinned() version.Pinned {
	return c.pinned
}

// SemVer returns the semantic interpretation, if the token has one.
func (c ConcreteVersion) SemVer() (version.SemVer, bool) {
	return c.sem, c.hasSem
}

// IsSemantic reports whether the token parses as a semantic version.
func (c ConcreteVersion) IsSemantic() bool {
	return c.hasSem
}

// IsPreRelease reports whether the token is a semantic prerelease.
func (c ConcreteVersion) IsPreRelease() bool {
	return c.hasSem && c.sem.IsPreRelease()
}

// Compare orders by descending relevance: negative means c is preferred
// over o. Equal semantic rank is tie-broken by the raw token so that
// distinct tokens (differing build metadata, a leading "v") coexist in
// one ordered set with a stable total order.
func (c ConcreteVersion) Compare(o ConcreteVersion) int {
	switch {
	case c.hasSem && o.hasSem:
		if cmp := o.sem.Compare(c.sem); cmp != 0 {
			return cmp
		}
		if c.bound != o.bound {
			return int(c.bound) - int(o.bound)
		}
		return strings.Compare(c.pinned.Commitish, o.pinned.Commitish)
	case c.hasSem:
		return -1
	case o.hasSem:
		return 1
	default:
		return strings.Compare(c.pinned.Commitish, o.pinned.Commitish)
	}
}

func (c ConcreteVersion) String() string {
	return c.pinned.Commitish
}

// VersionedDependency identifies one candidate assignment: a dependency
// pinned to one concrete version.
type VersionedDependency struct {
	Dependency core.Dependency
	Version    ConcreteVersion
}

func (vd VersionedDependency) String() string {
	return fmt.Sprintf("%s @ %s", vd.Dependency, vd.Version)
}

// Definition records why a constraint applies to a version set: the
// dependent that contributed it, or nil for the root manifest. The
// definitions list is the audit trail conflict explanations are built
// from.
type Definition struct {
	// Dependent is the pinned dependency that imposed the constraint,
	// or nil when it came from the root manifest.
	Dependent *VersionedDependency

	// Specifier is the constraint contributed.
	Specifier version.Specifier
}

func (d Definition) String() string {
	if d.Dependent == nil {
		return fmt.Sprintf("root manifest requires %s", d.Specifier)
	}
	return fmt.Sprintf("%s requires %s", d.Dependent, d.Specifier)
}
