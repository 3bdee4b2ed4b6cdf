package version

// Pinned is an opaque, resolved version token for one dependency: a tag,
// a branch name, or a raw commit SHA.
//
// Two Pinned values are equal iff their commitish strings are equal, so
// Pinned is usable directly as a map key. The semantic interpretation is
// derived on demand and is nil-equivalent for tokens that do not parse.
type Pinned struct {
	// Commitish is the raw version token as reported by the retriever.
	Commitish string
}

// NewPinned wraps a raw version token.
func NewPinned(commitish string) Pinned {
	return Pinned{Commitish: commitish}
}

// SemVer returns the semantic interpretation of the token, if it has one.
func (p Pinned) SemVer() (SemVer, bool) {
	return Parse(p.Commitish)
}

// IsSemantic reports whether the token parses as a semantic version.
func (p Pinned) IsSemantic() bool {
	_, ok := Parse(p.Commitish)
	return ok
}

func (p Pinned) String() string {
	return p.Commitish
}
