package version

import "testing"

func TestSpecifierSatisfiedBy(t *testing.T) {
	tests := []struct {
		name string
		spec Specifier
		pin  string
		want bool
	}{
		{"any release", Any(), "1.4.0", true},
		{"any rejects prerelease", Any(), "1.4.0-beta", false},
		{"any accepts non-semantic", Any(), "development", true},

		{"atLeast below", AtLeast(MustParse("2.1.1")), "2.1.0", false},
		{"atLeast equal", AtLeast(MustParse("2.1.1")), "2.1.1", true},
		{"atLeast above", AtLeast(MustParse("2.1.1")), "2.2.0", true},
		{"atLeast rejects same-core prerelease", AtLeast(MustParse("2.1.1")), "2.1.1-alpha", false},
		{"atLeast rejects later prerelease", AtLeast(MustParse("2.1.1")), "2.2.0-alpha", false},
		{"atLeast accepts metadata", AtLeast(MustParse("2.1.1")), "2.1.1+build3345", true},
		{"atLeast prerelease floor", AtLeast(MustParse("1.2.0-alpha")), "1.2.0-beta", true},
		{"atLeast non-semantic", AtLeast(MustParse("2.1.1")), "trunk", true},

		{"compatible same major", CompatibleWith(MustParse("1.3.0")), "1.9.2", true},
		{"compatible below pivot", CompatibleWith(MustParse("1.3.0")), "1.2.9", false},
		{"compatible next major", CompatibleWith(MustParse("1.3.0")), "2.0.0", false},
		{"compatible 0.x same minor", CompatibleWith(MustParse("0.1.0")), "0.1.1", true},
		{"compatible 0.x next minor", CompatibleWith(MustParse("0.1.0")), "0.2.0", false},
		{"compatible rejects prerelease", CompatibleWith(MustParse("1.3.0")), "1.4.0-rc.1", false},
		{"compatible non-semantic", CompatibleWith(MustParse("1.3.0")), "5c977b1", true},

		{"exactly match", Exactly(MustParse("2.1.1")), "2.1.1", true},
		{"exactly leading v", Exactly(MustParse("2.1.1")), "v2.1.1", true},
		{"exactly mismatch", Exactly(MustParse("2.1.1")), "2.1.2", false},
		{"exactly prerelease mismatch", Exactly(MustParse("2.1.1")), "2.1.1-alpha", false},
		// Historical quirk: build metadata is cosmetic for ranking but an
		// exact pin still requires it to match.
		{"exactly rejects extra metadata", Exactly(MustParse("2.1.1")), "2.1.1+build3345", false},
		{"exactly matching metadata", Exactly(MustParse("2.1.1+build3345")), "2.1.1+build3345", true},
		{"exactly non-semantic", Exactly(MustParse("2.1.1")), "release-branch", true},

		{"gitReference match", GitReference("5c977b1"), "5c977b1", true},
		{"gitReference mismatch", GitReference("5c977b1"), "5c977b2", false},
		{"gitReference rejects semantic", GitReference("5c977b1"), "2.1.1", false},

		{"empty rejects everything", Empty(), "1.0.0", false},
		{"empty rejects non-semantic", Empty(), "trunk", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.spec.SatisfiedBy(NewPinned(tt.pin)); got != tt.want {
				t.Errorf("%s.SatisfiedBy(%q) = %v, want %v", tt.spec, tt.pin, got, tt.want)
			}
		})
	}
}

func TestIntersect(t *testing.T) {
	v := func(s string) SemVer { return MustParse(s) }

	tests := []struct {
		name string
		a, b Specifier
		want Specifier
	}{
		{"any identity atLeast", Any(), AtLeast(v("1.0.0")), AtLeast(v("1.0.0"))},
		{"any identity gitRef", Any(), GitReference("dev"), GitReference("dev")},
		{"any identity any", Any(), Any(), Any()},

		{"atLeast takes max", AtLeast(v("1.0.0")), AtLeast(v("1.2.0")), AtLeast(v("1.2.0"))},
		{"atLeast with compatible", AtLeast(v("1.2.0")), CompatibleWith(v("1.0.0")), CompatibleWith(v("1.2.0"))},
		{"atLeast below compatible", AtLeast(v("1.0.0")), CompatibleWith(v("1.2.0")), CompatibleWith(v("1.2.0"))},
		{"atLeast beyond series", AtLeast(v("2.0.0")), CompatibleWith(v("1.2.0")), Empty()},
		{"atLeast with exactly", AtLeast(v("1.0.0")), Exactly(v("1.5.0")), Exactly(v("1.5.0"))},
		{"atLeast above exactly", AtLeast(v("2.0.0")), Exactly(v("1.5.0")), Empty()},

		{"compatible same series", CompatibleWith(v("1.3.2")), CompatibleWith(v("1.5.0")), CompatibleWith(v("1.5.0"))},
		{"compatible different majors", CompatibleWith(v("1.3.2")), CompatibleWith(v("2.1.1")), Empty()},
		{"compatible 0.x different minors", CompatibleWith(v("0.1.0")), CompatibleWith(v("0.2.0")), Empty()},
		{"compatible with exactly", CompatibleWith(v("1.3.0")), Exactly(v("1.4.0")), Exactly(v("1.4.0"))},
		{"compatible rejects foreign exactly", CompatibleWith(v("1.3.0")), Exactly(v("2.0.0")), Empty()},

		{"exactly same", Exactly(v("2.2.0")), Exactly(v("2.2.0")), Exactly(v("2.2.0"))},
		{"exactly different", Exactly(v("2.2.0")), Exactly(v("2.3.0")), Empty()},
		{"exactly prerelease vs release", Exactly(v("2.2.0-alpha")), Exactly(v("2.2.0")), Empty()},

		{"gitRef same", GitReference("dev"), GitReference("dev"), GitReference("dev")},
		{"gitRef different", GitReference("dev"), GitReference("main"), Empty()},
		{"gitRef with range", GitReference("dev"), AtLeast(v("1.0.0")), Empty()},

		{"empty absorbs", Empty(), AtLeast(v("1.0.0")), Empty()},
		{"empty absorbs any", Empty(), Any(), Empty()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Intersect(tt.a, tt.b); !got.Equal(tt.want) {
				t.Errorf("Intersect(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
			}
			// Commutativity.
			if got := Intersect(tt.b, tt.a); !got.Equal(tt.want) {
				t.Errorf("Intersect(%s, %s) = %s, want %s", tt.b, tt.a, got, tt.want)
			}
		})
	}
}

// Intersect(X, X) == X for every kind.
func TestIntersectIdempotent(t *testing.T) {
	specs := []Specifier{
		Any(),
		AtLeast(MustParse("1.2.3")),
		CompatibleWith(MustParse("0.4.0")),
		Exactly(MustParse("2.0.0-rc.1")),
		GitReference("5c977b1"),
		Empty(),
	}
	for _, s := range specs {
		if got := Intersect(s, s); !got.Equal(s) {
			t.Errorf("Intersect(%s, %s) = %s", s, s, got)
		}
	}
}
