// Package version provides semantic version parsing, ordering, and the
// constraint algebra used by the resolver.
//
// It supports SemVer 2.0 format (Major.Minor.Patch[-Prerelease][+Metadata])
// plus version tokens that do not parse as semver at all (branch names,
// commit SHAs), which are carried opaquely as Pinned values.
//
// Example:
//
//	v, ok := version.Parse("1.2.3-beta.1")
//	if !ok {
//	    // not a semantic version
//	}
//	fmt.Println(v.Major, v.Minor, v.Patch) // 1 2 3
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// SemVer represents a parsed semantic version.
//
// It is an immutable value type. Build metadata is preserved for string
// round-tripping but ignored by Compare and Equal, per SemVer 2.0.
type SemVer struct {
	// Major version number
	Major int

	// Minor version number
	Minor int

	// Patch version number
	Patch int

	// Prerelease contains prerelease identifiers
	// (e.g., ["beta", "1"] for "1.0.0-beta.1")
	Prerelease []string

	// Build contains build metadata identifiers
	// (e.g., ["20241019"] for "1.0.0+20241019")
	Build []string
}

// Parse parses a version string into a SemVer.
//
// A leading "v" and surrounding whitespace are accepted and not preserved.
// Exactly three numeric components are required. Malformed input is
// routine (branch names, commit SHAs) and is reported as ok=false rather
// than an error.
func Parse(s string) (SemVer, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "v")
	if s == "" {
		return SemVer{}, false
	}

	var v SemVer

	// Split off build metadata first, then prerelease.
	rest, build, hasBuild := strings.Cut(s, "+")
	if hasBuild {
		ids, ok := parseIdentifiers(build, false)
		if !ok {
			return SemVer{}, false
		}
		v.Build = ids
	}

	numbers, pre, hasPre := strings.Cut(rest, "-")
	if hasPre {
		ids, ok := parseIdentifiers(pre, true)
		if !ok {
			return SemVer{}, false
		}
		v.Prerelease = ids
	}

	parts := strings.Split(numbers, ".")
	if len(parts) != 3 {
		return SemVer{}, false
	}

	var ok bool
	if v.Major, ok = parseNumericComponent(parts[0]); !ok {
		return SemVer{}, false
	}
	if v.Minor, ok = parseNumericComponent(parts[1]); !ok {
		return SemVer{}, false
	}
	if v.Patch, ok = parseNumericComponent(parts[2]); !ok {
		return SemVer{}, false
	}

	return v, true
}

// MustParse parses a version string and panics on malformed input.
// Use this only when you know the version string is valid.
func MustParse(s string) SemVer {
	v, ok := Parse(s)
	if !ok {
		panic(fmt.Sprintf("version: malformed semantic version %q", s))
	}
	return v
}

// parseNumericComponent parses a major/minor/patch component.
// Leading zeros are rejected ("01" is not a valid component).
func parseNumericComponent(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	if len(s) > 1 && s[0] == '0' {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// parseIdentifiers validates and splits a dot-separated identifier list.
// Identifiers must be non-empty and alphanumeric-or-hyphen. When
// prerelease is true, numeric identifiers must not carry leading zeros.
func parseIdentifiers(s string, prerelease bool) ([]string, bool) {
	ids := strings.Split(s, ".")
	for _, id := range ids {
		if id == "" {
			return nil, false
		}
		numeric := true
		for i := 0; i < len(id); i++ {
			c := id[i]
			switch {
			case c >= '0' && c <= '9':
			case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '-':
				numeric = false
			default:
				return nil, false
			}
		}
		if prerelease && numeric && len(id) > 1 && id[0] == '0' {
			return nil, false
		}
	}
	return ids, true
}

// IsPreRelease reports whether the version carries prerelease identifiers.
func (v SemVer) IsPreRelease() bool {
	return len(v.Prerelease) > 0
}

// Core returns the version stripped of prerelease and build identifiers.
func (v SemVer) Core() SemVer {
	return SemVer{Major: v.Major, Minor: v.Minor, Patch: v.Patch}
}

// SameCore reports whether both versions share (major, minor, patch).
func (v SemVer) SameCore(other SemVer) bool {
	return v.Major == other.Major && v.Minor == other.Minor && v.Patch == other.Patch
}

// Compare returns -1, 0, or +1 ordering v against other.
//
// The numeric triple is compared first. A release version is greater
// than any prerelease of the same triple. Prerelease identifier lists
// compare element-wise: numeric identifiers compare numerically,
// alphanumeric lexically, and numeric sorts before alphanumeric. Build
// metadata never participates.
func (v SemVer) Compare(other SemVer) int {
	if c := compareInt(v.Major, other.Major); c != 0 {
		return c
	}
	if c := compareInt(v.Minor, other.Minor); c != 0 {
		return c
	}
	if c := compareInt(v.Patch, other.Patch); c != 0 {
		return c
	}
	return comparePrerelease(v.Prerelease, other.Prerelease)
}

// LessThan reports whether v orders strictly before other.
func (v SemVer) LessThan(other SemVer) bool {
	return v.Compare(other) < 0
}

// Equal reports whether v and other rank identically.
// Build metadata is ignored, so "1.0.0+a" equals "1.0.0+b".
func (v SemVer) Equal(other SemVer) bool {
	return v.Compare(other) == 0
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func comparePrerelease(a, b []string) int {
	// No prerelease outranks any prerelease.
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	if len(a) == 0 {
		return 1
	}
	if len(b) == 0 {
		return -1
	}

	for i := 0; i < len(a) && i < len(b); i++ {
		if c := comparePrereleaseID(a[i], b[i]); c != 0 {
			return c
		}
	}

	// All shared identifiers equal: the shorter list is smaller.
	return compareInt(len(a), len(b))
}

func comparePrereleaseID(a, b string) int {
	an, aNum := parseNumericID(a)
	bn, bNum := parseNumericID(b)
	switch {
	case aNum && bNum:
		return compareInt(an, bn)
	case aNum:
		// Numeric identifiers always sort before alphanumeric.
		return -1
	case bNum:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// parseNumericID recognizes purely numeric identifiers. A signed token
// like "-1" is alphanumeric under SemVer, so the digit check has to run
// before Atoi.
func parseNumericID(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// String renders the canonical major.minor.patch[-pre][+build] form.
// A leading "v" or surrounding whitespace in the original input is not
// preserved.
func (v SemVer) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d.%d.%d", v.Major, v.Minor, v.Patch)
	if len(v.Prerelease) > 0 {
		sb.WriteByte('-')
		sb.WriteString(strings.Join(v.Prerelease, "."))
	}
	if len(v.Build) > 0 {
		sb.WriteByte('+')
		sb.WriteString(strings.Join(v.Build, "."))
	}
	return sb.String()
}
