package resolver

import (
	"slices"

	"github.com/google/btree"

	"github.com/nsoperations/depforge/version"
)

const btreeDegree = 8

// VersionSet holds the currently-viable candidate versions for one
// dependency, partitioned into three ordered subsets: semantic releases,
// semantic prereleases, and non-semantic tokens. Iteration always yields
// strict preference order: releases descending, then prereleases
// descending, then non-semantic tokens lexically.
//
// Sets narrow monotonically as constraints arrive and are never widened.
// Clone is a cheap copy-on-write fork (structural sharing via btree
// clones), which is what makes backtracking snapshots affordable.
type VersionSet struct {
	semantic    *btree.BTreeG[ConcreteVersion]
	prerelease  *btree.BTreeG[ConcreteVersion]
	nonSemantic *btree.BTreeG[ConcreteVersion]

	// effective is the running intersection of every constraint applied.
	effective version.Specifier

	// definitions is the audit trail of constraint origins.
	definitions []Definition

	// pinned is set once the set has been collapsed to one mandatory
	// candidate (a prior resolution carried over, or a git reference).
	pinned bool
}

func versionLess(a, b ConcreteVersion) bool {
	return a.Compare(b) < 0
}

// NewVersionSet creates an empty set accepting anything.
func NewVersionSet() *VersionSet {
	return &VersionSet{
		semantic:    btree.NewG(btreeDegree, versionLess),
		prerelease:  btree.NewG(btreeDegree, versionLess),
		nonSemantic: btree.NewG(btreeDegree, versionLess),
		effective:   version.Any(),
	}
}

// Insert routes a candidate into its subset. O(log N).
func (s *VersionSet) Insert(cv ConcreteVersion) {
	s.subsetFor(cv).ReplaceOrInsert(cv)
}

// Remove drops a candidate. O(log N).
func (s *VersionSet) Remove(cv ConcreteVersion) {
	s.subsetFor(cv).Delete(cv)
}

func (s *VersionSet) subsetFor(cv ConcreteVersion) *btree.BTreeG[ConcreteVersion] {
	switch {
	case cv.IsPreRelease():
		return s.prerelease
	case cv.IsSemantic():
		return s.semantic
	default:
		return s.nonSemantic
	}
}

// Len returns the number of remaining candidates.
func (s *VersionSet) Len() int {
	return s.semantic.Len() + s.prerelease.Len() + s.nonSemantic.Len()
}

// First returns the most relevant remaining candidate.
func (s *VersionSet) First() (ConcreteVersion, bool) {
	for _, t := range []*btree.BTreeG[ConcreteVersion]{s.semantic, s.prerelease, s.nonSemantic} {
		if cv, ok := t.Min(); ok {
			return cv, true
		}
	}
	return ConcreteVersion{}, false
}

// All returns every remaining candidate in preference order.
func (s *VersionSet) All() []ConcreteVersion {
	out := make([]ConcreteVersion, 0, s.Len())
	collect := func(cv ConcreteVersion) bool {
		out = append(out, cv)
		return true
	}
	s.semantic.Ascend(collect)
	s.prerelease.Ascend(collect)
	s.nonSemantic.Ascend(collect)
	return out
}

// IsPinned reports whether the set was collapsed to a mandatory pin.
func (s *VersionSet) IsPinned() bool {
	return s.pinned
}

// EffectiveSpecifier returns the running intersection of all applied
// constraints.
func (s *VersionSet) EffectiveSpecifier() version.Specifier {
	return s.effective
}

// Definitions returns the constraint audit trail.
func (s *VersionSet) Definitions() []Definition {
	return s.definitions
}

// AddDefinition appends to the constraint audit trail.
func (s *VersionSet) AddDefinition(def Definition) {
	s.definitions = append(s.definitions, def)
}

// ConflictingDefinition returns the first recorded definition whose
// specifier is incompatible with the given one, for building a
// human-readable conflict explanation.
func (s *VersionSet) ConflictingDefinition(spec version.Specifier) *Definition {
	for i := range s.definitions {
		if version.Intersect(s.definitions[i].Specifier, spec).Kind() == version.KindEmpty {
			return &s.definitions[i]
		}
	}
	return nil
}

// Clone forks the set for a backtracking decision point. Mutating the
// clone never affects the original.
func (s *VersionSet) Clone() *VersionSet {
	return &VersionSet{
		semantic:    s.semantic.Clone(),
		prerelease:  s.prerelease.Clone(),
		nonSemantic: s.nonSemantic.Clone(),
		effective:   s.effective,
		definitions: slices.Clone(s.definitions),
		pinned:      s.pinned,
	}
}

// Contains reports whether the exact candidate remains in the set.
func (s *VersionSet) Contains(cv ConcreteVersion) bool {
	return s.subsetFor(cv).Has(cv)
}

// PinTo intersects a git-reference constraint into the running specifier
// and collapses the set to the resolved candidate, bypassing range
// narrowing. The set empties when the constraint is incompatible with
// what was already required or the candidate is no longer viable.
func (s *VersionSet) PinTo(spec version.Specifier, cv ConcreteVersion) {
	s.effective = version.Intersect(s.effective, spec)
	if s.effective.Kind() == version.KindEmpty || !s.Contains(cv) {
		s.clearSubsets()
		return
	}
	s.RemoveAll(&cv)
}

// RemoveAll deletes every candidate, optionally keeping one. A kept
// candidate marks the set as pinned.
func (s *VersionSet) RemoveAll(except *ConcreteVersion) {
	s.clearSubsets()
	if except != nil {
		s.Insert(*except)
		s.pinned = true
	}
}

func (s *VersionSet) clearSubsets() {
	s.semantic.Clear(false)
	s.prerelease.Clear(false)
	s.nonSemantic.Clear(false)
}

// Retain intersects the new constraint into the running specifier and
// drops every candidate it rejects. The filter works structurally on
// subset ranges computed from the specifier shape rather than testing
// each element, so narrowing costs O(log N) plus the discarded range.
func (s *VersionSet) Retain(spec version.Specifier) {
	s.effective = version.Intersect(s.effective, spec)
	if s.effective.Kind() == version.KindEmpty {
		s.clearSubsets()
		return
	}

	switch spec.Kind() {
	case version.KindAny:
		// Prereleases never satisfy an unconstrained requirement.
		s.prerelease.Clear(false)

	case version.KindAtLeast:
		s.retainFloor(spec.Version())

	case version.KindCompatibleWith:
		v := spec.Version()
		// Everything at or beyond the next incompatible series goes.
		deleteLessThan(s.semantic, boundaryAfter(nextIncompatible(v)))
		s.retainFloor(v)

	case version.KindExactly:
		s.retainExactly(spec.Version())

	case version.KindGitReference:
		s.retainGitReference(spec.Ref())

	case version.KindEmpty:
		s.clearSubsets()
	}
}

// retainFloor drops candidates ranking below v, applying the prerelease
// admission rule: a prerelease survives only within v's own
// (major, minor, patch) triple.
func (s *VersionSet) retainFloor(v version.SemVer) {
	deleteFrom(s.semantic, boundaryAfter(v))

	if !v.IsPreRelease() {
		// No prerelease can rank at or above a release of its own core,
		// and foreign cores are inadmissible outright.
		s.prerelease.Clear(false)
		return
	}
	// Admissible prereleases sit in the contiguous block below the
	// core's release position: drop higher cores, then the sub-floor
	// tail.
	deleteLessThan(s.prerelease, boundaryAfter(v.Core()))
	deleteFrom(s.prerelease, boundaryAfter(v))
}

func (s *VersionSet) retainExactly(v version.SemVer) {
	target := s.semantic
	if v.IsPreRelease() {
		target = s.prerelease
		s.semantic.Clear(false)
	} else {
		s.prerelease.Clear(false)
	}

	deleteLessThan(target, boundaryBefore(v))
	deleteFrom(target, boundaryAfter(v))

	// Within the equal-rank block, an exact pin still requires build
	// metadata to match.
	var mismatched []ConcreteVersion
	target.Ascend(func(cv ConcreteVersion) bool {
		if !slices.Equal(cv.sem.Build, v.Build) {
			mismatched = append(mismatched, cv)
		}
		return true
	})
	for _, cv := range mismatched {
		target.Delete(cv)
	}
}

func (s *VersionSet) retainGitReference(ref string) {
	// The non-semantic subset is ordered by raw token, so the pin is a
	// point lookup.
	probe := ConcreteVersion{pinned: version.NewPinned(ref)}
	kept, ok := s.nonSemantic.Get(probe)
	s.nonSemantic.Clear(false)
	if ok {
		s.nonSemantic.ReplaceOrInsert(kept)
	}

	// A ref that happens to be a version tag may live in a semantic
	// subset under its parsed rank.
	if v, isSem := version.Parse(ref); isSem {
		target := s.semantic
		if v.IsPreRelease() {
			target = s.prerelease
			s.semantic.Clear(false)
		} else {
			s.prerelease.Clear(false)
		}
		var match *ConcreteVersion
		target.AscendRange(boundaryBefore(v), boundaryAfter(v), func(cv ConcreteVersion) bool {
			if cv.pinned.Commitish == ref {
				match = &cv
				return false
			}
			return true
		})
		target.Clear(false)
		if match != nil {
			target.ReplaceOrInsert(*match)
		}
	} else {
		s.semantic.Clear(false)
		s.prerelease.Clear(false)
	}
}

// nextIncompatible returns the first version outside v's compatibility
// series: the next major, or the next minor in the 0.x series.
func nextIncompatible(v version.SemVer) version.SemVer {
	if v.Major == 0 {
		return version.SemVer{Major: 0, Minor: v.Minor + 1, Patch: 0}
	}
	return version.SemVer{Major: v.Major + 1, Minor: 0, Patch: 0}
}

// deleteFrom removes pivot and everything ranking after it.
func deleteFrom(t *btree.BTreeG[ConcreteVersion], pivot ConcreteVersion) {
	var doomed []ConcreteVersion
	t.AscendGreaterOrEqual(pivot, func(cv ConcreteVersion) bool {
		doomed = append(doomed, cv)
		return true
	})
	for _, cv := range doomed {
		t.Delete(cv)
	}
}

// deleteLessThan removes everything ranking ahead of pivot.
func deleteLessThan(t *btree.BTreeG[ConcreteVersion], pivot ConcreteVersion) {
	var doomed []ConcreteVersion
	t.AscendLessThan(pivot, func(cv ConcreteVersion) bool {
		doomed = append(doomed, cv)
		return true
	})
	for _, cv := range doomed {
		t.Delete(cv)
	}
}
