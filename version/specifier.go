package version

import (
	"fmt"
	"slices"
	"strings"
)

// SpecifierKind discriminates the constraint variants.
type SpecifierKind int

const (
	// KindAny accepts any release version.
	KindAny SpecifierKind = iota
	// KindAtLeast accepts versions at or above a floor.
	KindAtLeast
	// KindCompatibleWith accepts versions compatible per semantic-versioning
	// rules (same major, or same minor in the 0.x series).
	KindCompatibleWith
	// KindExactly accepts a single version.
	KindExactly
	// KindGitReference accepts exactly one raw commitish.
	KindGitReference
	// KindEmpty accepts nothing; it is the absorbing element of Intersect.
	KindEmpty
)

// Specifier is a constraint describing which versions are acceptable.
//
// The zero value is Any. Specifiers are immutable; construct them with
// Any, AtLeast, CompatibleWith, Exactly, GitReference, or Empty.
type Specifier struct {
	kind SpecifierKind
	ver  SemVer
	ref  string
}

// Any returns the constraint satisfied by every release version.
func Any() Specifier { return Specifier{kind: KindAny} }

// AtLeast returns the constraint "v or newer".
func AtLeast(v SemVer) Specifier { return Specifier{kind: KindAtLeast, ver: v} }

// CompatibleWith returns the constraint "v or newer, within v's
// compatibility series" (same major, or same minor when major is 0).
func CompatibleWith(v SemVer) Specifier { return Specifier{kind: KindCompatibleWith, ver: v} }

// Exactly returns the constraint satisfied only by v.
func Exactly(v SemVer) Specifier { return Specifier{kind: KindExactly, ver: v} }

// GitReference returns the constraint satisfied only by the given raw
// commitish (branch, tag, or SHA).
func GitReference(ref string) Specifier { return Specifier{kind: KindGitReference, ref: ref} }

// Empty returns the unsatisfiable constraint.
func Empty() Specifier { return Specifier{kind: KindEmpty} }

// Kind returns the variant of the specifier.
func (s Specifier) Kind() SpecifierKind { return s.kind }

// Version returns the version operand for AtLeast, CompatibleWith, and
// Exactly specifiers. It is the zero SemVer for other kinds.
func (s Specifier) Version() SemVer { return s.ver }

// Ref returns the commitish operand for GitReference specifiers.
func (s Specifier) Ref() string { return s.ref }

// SatisfiedBy reports whether the pinned version meets the constraint.
//
// Version tokens that do not parse as semver (branch names, SHAs)
// trivially satisfy every kind except GitReference and Empty; this is a
// deliberate escape hatch for unparseable tags.
func (s Specifier) SatisfiedBy(p Pinned) bool {
	switch s.kind {
	case KindGitReference:
		return p.Commitish == s.ref
	case KindEmpty:
		return false
	}

	v, ok := p.SemVer()
	if !ok {
		return true
	}

	switch s.kind {
	case KindAny:
		return !v.IsPreRelease()
	case KindAtLeast:
		return atLeastSatisfied(v, s.ver)
	case KindCompatibleWith:
		return compatibleSatisfied(v, s.ver)
	case KindExactly:
		return exactlySatisfied(v, s.ver)
	default:
		return false
	}
}

// atLeastSatisfied: candidate must rank at or above the floor, and a
// prerelease candidate is only admitted within the floor's own
// (major, minor, patch) triple.
func atLeastSatisfied(c, floor SemVer) bool {
	return c.Compare(floor) >= 0 && (!c.IsPreRelease() || c.SameCore(floor))
}

// compatibleSatisfied: same major series (same minor for 0.x), at or
// above the pivot, with the same prerelease admission rule as atLeast.
func compatibleSatisfied(c, pivot SemVer) bool {
	if c.Major == 0 || pivot.Major == 0 {
		if c.Major != pivot.Major || c.Minor != pivot.Minor {
			return false
		}
	} else if c.Major != pivot.Major {
		return false
	}
	return c.Compare(pivot) >= 0 && (!c.IsPreRelease() || c.SameCore(pivot))
}

// exactlySatisfied requires full equality including build metadata.
// SemVer ranking treats build metadata as cosmetic, but an exact pin
// keeps the stricter historical behavior: "1.0.0+a" does not satisfy
// Exactly("1.0.0").
func exactlySatisfied(c, want SemVer) bool {
	return c.Compare(want) == 0 && slices.Equal(c.Build, want.Build)
}

// Intersect returns the specifier satisfied by exactly the versions
// satisfying both operands, or Empty when they cannot be proven
// simultaneously satisfiable.
//
// Intersect is commutative; Any is its identity and Empty absorbs.
func Intersect(a, b Specifier) Specifier {
	if a.kind == KindEmpty || b.kind == KindEmpty {
		return Empty()
	}
	if a.kind == KindAny {
		return b
	}
	if b.kind == KindAny {
		return a
	}

	// Normalize operand order so each pair is handled once.
	if a.kind > b.kind {
		a, b = b, a
	}

	switch {
	case a.kind == KindGitReference || b.kind == KindGitReference:
		// A git reference pin only coexists with itself.
		if a.kind == KindGitReference && b.kind == KindGitReference && a.ref == b.ref {
			return a
		}
		return Empty()

	case a.kind == KindAtLeast && b.kind == KindAtLeast:
		if a.ver.Compare(b.ver) >= 0 {
			return a
		}
		return b

	case a.kind == KindAtLeast && b.kind == KindCompatibleWith:
		return intersectAtLeastCompatible(a.ver, b.ver)

	case a.kind == KindAtLeast && b.kind == KindExactly:
		if atLeastSatisfied(b.ver, a.ver) {
			return b
		}
		return Empty()

	case a.kind == KindCompatibleWith && b.kind == KindCompatibleWith:
		return intersectCompatible(a.ver, b.ver)

	case a.kind == KindCompatibleWith && b.kind == KindExactly:
		if compatibleSatisfied(b.ver, a.ver) {
			return b
		}
		return Empty()

	case a.kind == KindExactly && b.kind == KindExactly:
		if exactlySatisfied(a.ver, b.ver) {
			return a
		}
		return Empty()
	}

	return Empty()
}

func intersectAtLeastCompatible(floor, pivot SemVer) Specifier {
	if floor.Compare(pivot) <= 0 {
		return CompatibleWith(pivot)
	}
	// The floor is above the pivot: the combined constraint is the
	// compatibility series started at the floor, provided the floor is
	// still inside the pivot's series.
	if compatibleSatisfied(floor, pivot) {
		return CompatibleWith(floor)
	}
	return Empty()
}

func intersectCompatible(a, b SemVer) Specifier {
	if a.Major != b.Major {
		return Empty()
	}
	if a.Major == 0 && a.Minor != b.Minor {
		return Empty()
	}
	if a.Compare(b) >= 0 {
		return CompatibleWith(a)
	}
	return CompatibleWith(b)
}

// Equal reports whether two specifiers are the same constraint.
func (s Specifier) Equal(o Specifier) bool {
	if s.kind != o.kind {
		return false
	}
	switch s.kind {
	case KindAny, KindEmpty:
		return true
	case KindGitReference:
		return s.ref == o.ref
	default:
		return s.ver.Compare(o.ver) == 0 && slices.Equal(s.ver.Build, o.ver.Build)
	}
}

// ParseSpecifier parses the textual forms produced by String:
// "(any)" or "" for Any, ">= v", "~> v", "== v", a double-quoted
// commitish for GitReference, and "(empty)".
func ParseSpecifier(s string) (Specifier, bool) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || s == "(any)" || s == "any":
		return Any(), true
	case s == "(empty)":
		return Empty(), true
	case strings.HasPrefix(s, ">="):
		if v, ok := Parse(strings.TrimSpace(s[2:])); ok {
			return AtLeast(v), true
		}
	case strings.HasPrefix(s, "~>"):
		if v, ok := Parse(strings.TrimSpace(s[2:])); ok {
			return CompatibleWith(v), true
		}
	case strings.HasPrefix(s, "=="):
		if v, ok := Parse(strings.TrimSpace(s[2:])); ok {
			return Exactly(v), true
		}
	case len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"':
		if ref := s[1 : len(s)-1]; ref != "" {
			return GitReference(ref), true
		}
	default:
		// A bare version is shorthand for an exact pin.
		if v, ok := Parse(s); ok {
			return Exactly(v), true
		}
	}
	return Specifier{}, false
}

func (s Specifier) String() string {
	switch s.kind {
	case KindAny:
		return "(any)"
	case KindAtLeast:
		return fmt.Sprintf(">= %s", s.ver)
	case KindCompatibleWith:
		return fmt.Sprintf("~> %s", s.ver)
	case KindExactly:
		return fmt.Sprintf("== %s", s.ver)
	case KindGitReference:
		return fmt.Sprintf("%q", s.ref)
	case KindEmpty:
		return "(empty)"
	default:
		return "(unknown)"
	}
}
