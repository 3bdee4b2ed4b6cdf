package resolver

import (
	"context"
	"errors"
	"maps"
	"testing"

	"github.com/nsoperations/depforge/core"
	"github.com/nsoperations/depforge/version"
)

// stubRetriever serves a fixed dependency graph from memory.
type stubRetriever struct {
	versions map[core.Dependency][]version.Pinned
	deps     map[core.Dependency]map[version.Pinned][]core.Requirement
	refs     map[core.Dependency]map[string]version.Pinned
}

func newStubRetriever() *stubRetriever {
	return &stubRetriever{
		versions: make(map[core.Dependency][]version.Pinned),
		deps:     make(map[core.Dependency]map[version.Pinned][]core.Requirement),
		refs:     make(map[core.Dependency]map[string]version.Pinned),
	}
}

func (s *stubRetriever) addVersions(d core.Dependency, tags ...string) {
	for _, tag := range tags {
		s.versions[d] = append(s.versions[d], version.NewPinned(tag))
	}
}

func (s *stubRetriever) require(d core.Dependency, tag string, reqs ...core.Requirement) {
	if s.deps[d] == nil {
		s.deps[d] = make(map[version.Pinned][]core.Requirement)
	}
	s.deps[d][version.NewPinned(tag)] = reqs
}

func (s *stubRetriever) addRef(d core.Dependency, ref, pin string) {
	if s.refs[d] == nil {
		s.refs[d] = make(map[string]version.Pinned)
	}
	s.refs[d][ref] = version.NewPinned(pin)
}

func (s *stubRetriever) Versions(_ context.Context, d core.Dependency) ([]version.Pinned, error) {
	pins, ok := s.versions[d]
	if !ok {
		return nil, &core.TaggedVersionNotFoundError{Dependency: d}
	}
	return pins, nil
}

func (s *stubRetriever) Dependencies(_ context.Context, d core.Dependency, v version.Pinned) ([]core.Requirement, error) {
	return s.deps[d][v], nil
}

func (s *stubRetriever) ResolvedGitReference(_ context.Context, d core.Dependency, ref string) (version.Pinned, error) {
	pin, ok := s.refs[d][ref]
	if !ok {
		return version.Pinned{}, &core.GitReferenceNotFoundError{Dependency: d, Ref: ref}
	}
	return pin, nil
}

func gh(repo string) core.Dependency {
	return core.GitHub("acme", repo)
}

func req(repo string, spec version.Specifier) core.Requirement {
	return core.Requirement{Dependency: gh(repo), Specifier: spec}
}

func pins(assignment map[string]string) map[core.Dependency]version.Pinned {
	out := make(map[core.Dependency]version.Pinned, len(assignment))
	for repo, tag := range assignment {
		out[gh(repo)] = version.NewPinned(tag)
	}
	return out
}

func checkResolved(t *testing.T, got map[core.Dependency]version.Pinned, want map[string]string) {
	t.Helper()
	if expected := pins(want); !maps.Equal(got, expected) {
		t.Errorf("resolved %v, want %v", got, expected)
	}
}

func TestResolvePicksNewestSatisfying(t *testing.T) {
	g := newStubRetriever()
	g.addVersions(gh("x"), "1.0.0", "1.5.0", "2.0.0")

	manifest := map[core.Dependency]version.Specifier{
		gh("x"): version.AtLeast(version.MustParse("1.0.0")),
	}
	got, err := New(g).Resolve(context.Background(), manifest, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	checkResolved(t, got, map[string]string{"x": "2.0.0"})
}

func TestResolveExactRootPin(t *testing.T) {
	g := newStubRetriever()
	g.addVersions(gh("y"), "1.0.0", "2.0.0")

	manifest := map[core.Dependency]version.Specifier{
		gh("y"): version.Exactly(version.MustParse("1.0.0")),
	}
	got, err := New(g).Resolve(context.Background(), manifest, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	checkResolved(t, got, map[string]string{"y": "1.0.0"})
}

// The newest satisfying x has no further requirements, so y never
// enters the resolution at all.
func TestResolveSkipsUnrequiredDependencies(t *testing.T) {
	g := newStubRetriever()
	g.addVersions(gh("x"), "1.0.0", "1.5.0", "2.0.0")
	g.addVersions(gh("y"), "1.0.0", "1.2.0", "2.0.0")
	g.require(gh("x"), "1.5.0", req("y", version.CompatibleWith(version.MustParse("1.0.0"))))

	manifest := map[core.Dependency]version.Specifier{
		gh("x"): version.AtLeast(version.MustParse("1.0.0")),
	}
	got, err := New(g).Resolve(context.Background(), manifest, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	checkResolved(t, got, map[string]string{"x": "2.0.0"})
}

func TestResolveRootForcesSharedDependency(t *testing.T) {
	g := newStubRetriever()
	g.addVersions(gh("x"), "1.0.0", "1.5.0", "2.0.0")
	g.addVersions(gh("y"), "1.0.0", "1.2.0", "2.0.0")
	// x 1.5.0 wants a y that the root's exact pin rules out; landing on
	// x 2.0.0 must not require visiting that chain at all.
	g.require(gh("x"), "1.5.0", req("y", version.CompatibleWith(version.MustParse("2.0.0"))))

	manifest := map[core.Dependency]version.Specifier{
		gh("x"): version.AtLeast(version.MustParse("1.0.0")),
		gh("y"): version.Exactly(version.MustParse("1.0.0")),
	}
	got, err := New(g).Resolve(context.Background(), manifest, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	checkResolved(t, got, map[string]string{"x": "2.0.0", "y": "1.0.0"})
}

func TestResolveTransitive(t *testing.T) {
	g := newStubRetriever()
	g.addVersions(gh("app"), "1.0.0")
	g.addVersions(gh("lib"), "1.0.0", "1.4.0", "2.0.0")
	g.require(gh("app"), "1.0.0", req("lib", version.CompatibleWith(version.MustParse("1.0.0"))))

	manifest := map[core.Dependency]version.Specifier{
		gh("app"): version.Any(),
	}
	got, err := New(g).Resolve(context.Background(), manifest, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	checkResolved(t, got, map[string]string{"app": "1.0.0", "lib": "1.4.0"})
}

// Pinning a at its newest version makes the shared dependency
// unsatisfiable; the search must back up and retry a's older version.
func TestResolveBacktracks(t *testing.T) {
	g := newStubRetriever()
	g.addVersions(gh("a"), "1.0.0", "2.0.0")
	g.addVersions(gh("b"), "1.0.0")
	g.addVersions(gh("c"), "1.0.0", "1.5.0", "2.0.0")
	g.require(gh("a"), "2.0.0", req("c", version.CompatibleWith(version.MustParse("2.0.0"))))
	g.require(gh("a"), "1.0.0", req("c", version.CompatibleWith(version.MustParse("1.0.0"))))
	g.require(gh("b"), "1.0.0", req("c", version.CompatibleWith(version.MustParse("1.0.0"))))

	manifest := map[core.Dependency]version.Specifier{
		gh("a"): version.Any(),
		gh("b"): version.Any(),
	}
	got, err := New(g).Resolve(context.Background(), manifest, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	checkResolved(t, got, map[string]string{"a": "1.0.0", "b": "1.0.0", "c": "1.5.0"})
}

func TestResolveRootConflictIsFatal(t *testing.T) {
	g := newStubRetriever()
	g.addVersions(gh("x"), "2.0.0", "2.1.0")

	manifest := map[core.Dependency]version.Specifier{
		gh("x"): version.CompatibleWith(version.MustParse("1.0.0")),
	}
	_, err := New(g).Resolve(context.Background(), manifest, nil, nil)

	var conflict *RequiredVersionNotFoundError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want RequiredVersionNotFoundError", err)
	}
	if conflict.Dependency != gh("x") {
		t.Errorf("conflict dependency = %s", conflict.Dependency)
	}
}

func TestResolveUnsatisfiableReportsBothDefinitions(t *testing.T) {
	g := newStubRetriever()
	g.addVersions(gh("a"), "1.0.0")
	g.addVersions(gh("b"), "1.0.0")
	g.addVersions(gh("shared"), "1.0.0", "2.0.0")
	g.require(gh("a"), "1.0.0", req("shared", version.CompatibleWith(version.MustParse("1.0.0"))))
	g.require(gh("b"), "1.0.0", req("shared", version.CompatibleWith(version.MustParse("2.0.0"))))

	manifest := map[core.Dependency]version.Specifier{
		gh("a"): version.Any(),
		gh("b"): version.Any(),
	}
	_, err := New(g).Resolve(context.Background(), manifest, nil, nil)

	var conflict *RequiredVersionNotFoundError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want RequiredVersionNotFoundError", err)
	}
	if conflict.Dependency != gh("shared") {
		t.Errorf("conflict dependency = %s", conflict.Dependency)
	}
	if len(conflict.Conflict) != 2 {
		t.Fatalf("conflict definitions = %v, want two", conflict.Conflict)
	}
}

func TestResolveGitReference(t *testing.T) {
	g := newStubRetriever()
	g.addRef(gh("tooling"), "main", "8f3c21a")
	g.addVersions(gh("app"), "1.0.0")
	g.addRef(gh("fork"), "develop", "d4c3b2a")
	g.require(gh("app"), "1.0.0", req("fork", version.GitReference("develop")))

	manifest := map[core.Dependency]version.Specifier{
		gh("tooling"): version.GitReference("main"),
		gh("app"):     version.Any(),
	}
	got, err := New(g).Resolve(context.Background(), manifest, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	checkResolved(t, got, map[string]string{
		"tooling": "8f3c21a",
		"app":     "1.0.0",
		"fork":    "d4c3b2a",
	})
}

// A git reference requirement arriving on a dependency already listed
// under an unconstrained root must pin the resolved commit, not fail:
// the commit never appears in the tag listing.
func TestResolveGitReferenceOverUnconstrainedDependency(t *testing.T) {
	g := newStubRetriever()
	g.addVersions(gh("app"), "1.0.0")
	g.addVersions(gh("fork"), "1.0.0", "2.0.0")
	g.addRef(gh("fork"), "develop", "d4c3b2a")
	g.require(gh("app"), "1.0.0", req("fork", version.GitReference("develop")))

	manifest := map[core.Dependency]version.Specifier{
		gh("app"):  version.Any(),
		gh("fork"): version.Any(),
	}
	got, err := New(g).Resolve(context.Background(), manifest, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	checkResolved(t, got, map[string]string{"app": "1.0.0", "fork": "d4c3b2a"})
}

func TestResolveGitReferenceConflictsWithRange(t *testing.T) {
	g := newStubRetriever()
	g.addVersions(gh("app"), "1.0.0")
	g.addVersions(gh("fork"), "1.0.0")
	g.addRef(gh("fork"), "develop", "d4c3b2a")
	g.require(gh("app"), "1.0.0", req("fork", version.GitReference("develop")))

	manifest := map[core.Dependency]version.Specifier{
		gh("app"):  version.Any(),
		gh("fork"): version.AtLeast(version.MustParse("1.0.0")),
	}
	_, err := New(g).Resolve(context.Background(), manifest, nil, nil)

	var conflict *RequiredVersionNotFoundError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want RequiredVersionNotFoundError", err)
	}
	if conflict.Dependency != gh("fork") {
		t.Errorf("conflict on %v, want %v", conflict.Dependency, gh("fork"))
	}
}

func TestResolveGitReferenceNotFound(t *testing.T) {
	g := newStubRetriever()

	manifest := map[core.Dependency]version.Specifier{
		gh("tooling"): version.GitReference("gone"),
	}
	_, err := New(g).Resolve(context.Background(), manifest, nil, nil)

	var notFound *core.GitReferenceNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want GitReferenceNotFoundError", err)
	}
	if notFound.Ref != "gone" {
		t.Errorf("ref = %q", notFound.Ref)
	}
}

func TestResolveNoTaggedVersions(t *testing.T) {
	g := newStubRetriever()

	manifest := map[core.Dependency]version.Specifier{
		gh("untagged"): version.Any(),
	}
	_, err := New(g).Resolve(context.Background(), manifest, nil, nil)

	var notFound *core.TaggedVersionNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want TaggedVersionNotFoundError", err)
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	g := newStubRetriever()
	g.addVersions(gh("a"), "1.0.0", "1.1.0")
	g.addVersions(gh("b"), "1.0.0", "2.0.0")
	g.addVersions(gh("c"), "0.3.0", "0.3.1")
	g.require(gh("a"), "1.1.0",
		req("b", version.AtLeast(version.MustParse("1.0.0"))),
		req("c", version.CompatibleWith(version.MustParse("0.3.0"))))

	manifest := map[core.Dependency]version.Specifier{
		gh("a"): version.Any(),
	}
	r := New(g)

	first, err := r.Resolve(context.Background(), manifest, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := r.Resolve(context.Background(), manifest, nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		if !maps.Equal(first, again) {
			t.Fatalf("run %d resolved %v, first run resolved %v", i, again, first)
		}
	}
}

func TestResolvePartialUpdateKeepsPriorPins(t *testing.T) {
	g := newStubRetriever()
	g.addVersions(gh("a"), "1.0.0", "2.0.0")
	g.addVersions(gh("b"), "1.0.0", "2.0.0")

	manifest := map[core.Dependency]version.Specifier{
		gh("a"): version.AtLeast(version.MustParse("1.0.0")),
		gh("b"): version.AtLeast(version.MustParse("1.0.0")),
	}
	prior := pins(map[string]string{"a": "1.0.0", "b": "1.0.0"})

	got, err := New(g).Resolve(context.Background(), manifest, prior, []string{"a"})
	if err != nil {
		t.Fatal(err)
	}
	checkResolved(t, got, map[string]string{"a": "2.0.0", "b": "1.0.0"})
}

// A branch-pinned dependency outside the update set must keep its
// previously recorded commit even after the branch has moved.
func TestResolvePartialUpdateKeepsGitReferencePin(t *testing.T) {
	g := newStubRetriever()
	g.addVersions(gh("a"), "1.0.0", "2.0.0")
	g.addRef(gh("tracker"), "main", "newsha1")

	manifest := map[core.Dependency]version.Specifier{
		gh("a"):       version.AtLeast(version.MustParse("1.0.0")),
		gh("tracker"): version.GitReference("main"),
	}
	prior := pins(map[string]string{"a": "1.0.0", "tracker": "oldsha1"})

	got, err := New(g).Resolve(context.Background(), manifest, prior, []string{"a"})
	if err != nil {
		t.Fatal(err)
	}
	checkResolved(t, got, map[string]string{"a": "2.0.0", "tracker": "oldsha1"})

	// Naming the tracked dependency for update re-resolves the ref and
	// follows the moved branch.
	got, err = New(g).Resolve(context.Background(), manifest, prior, []string{"tracker"})
	if err != nil {
		t.Fatal(err)
	}
	checkResolved(t, got, map[string]string{"a": "1.0.0", "tracker": "newsha1"})
}

func TestResolveUnknownUpdateTargets(t *testing.T) {
	g := newStubRetriever()
	g.addVersions(gh("a"), "1.0.0")

	manifest := map[core.Dependency]version.Specifier{
		gh("a"): version.Any(),
	}
	prior := pins(map[string]string{"a": "1.0.0"})

	_, err := New(g).Resolve(context.Background(), manifest, prior, []string{"zulu", "alpha"})

	var unknown *UnknownDependenciesError
	if !errors.As(err, &unknown) {
		t.Fatalf("err = %v, want UnknownDependenciesError", err)
	}
	if len(unknown.Names) != 2 || unknown.Names[0] != "alpha" || unknown.Names[1] != "zulu" {
		t.Errorf("names = %v, want sorted [alpha zulu]", unknown.Names)
	}
}

// Mutually dependent declarations are not a resolution cycle; the search
// must still terminate with both pinned.
func TestResolveMutualDependency(t *testing.T) {
	g := newStubRetriever()
	g.addVersions(gh("a"), "1.0.0")
	g.addVersions(gh("b"), "1.0.0")
	g.require(gh("a"), "1.0.0", req("b", version.CompatibleWith(version.MustParse("1.0.0"))))
	g.require(gh("b"), "1.0.0", req("a", version.CompatibleWith(version.MustParse("1.0.0"))))

	manifest := map[core.Dependency]version.Specifier{
		gh("a"): version.CompatibleWith(version.MustParse("1.0.0")),
	}
	got, err := New(g).Resolve(context.Background(), manifest, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	checkResolved(t, got, map[string]string{"a": "1.0.0", "b": "1.0.0"})
}

func TestResolveCancellation(t *testing.T) {
	g := newStubRetriever()
	g.addVersions(gh("a"), "1.0.0")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	manifest := map[core.Dependency]version.Specifier{
		gh("a"): version.Any(),
	}
	got, err := New(g).Resolve(ctx, manifest, nil, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if got != nil {
		t.Errorf("cancelled resolution surfaced a partial assignment: %v", got)
	}
}

func TestResolveRetryBudget(t *testing.T) {
	g := newStubRetriever()
	g.addVersions(gh("a"), "1.0.0", "2.0.0", "3.0.0")
	g.addVersions(gh("b"), "1.0.0")
	for _, tag := range []string{"1.0.0", "2.0.0", "3.0.0"} {
		g.require(gh("a"), tag, req("b", version.Exactly(version.MustParse("9.9.9"))))
	}

	manifest := map[core.Dependency]version.Specifier{
		gh("a"): version.Any(),
	}
	_, err := New(g, WithRetryBudget(1)).Resolve(context.Background(), manifest, nil, nil)

	var conflict *RequiredVersionNotFoundError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want RequiredVersionNotFoundError", err)
	}
	if conflict.Dependency != gh("b") {
		t.Errorf("conflict dependency = %s", conflict.Dependency)
	}
}

func TestResolveEmitsEvents(t *testing.T) {
	g := newStubRetriever()
	g.addVersions(gh("app"), "1.0.0")
	g.addVersions(gh("lib"), "1.0.0", "2.0.0")
	g.require(gh("app"), "1.0.0", req("lib", version.AtLeast(version.MustParse("1.0.0"))))

	var events []Event
	sink := EventSinkFunc(func(e Event) { events = append(events, e) })

	manifest := map[core.Dependency]version.Specifier{
		gh("app"): version.Any(),
	}
	got, err := New(g, WithEventSink(sink)).Resolve(context.Background(), manifest, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	checkResolved(t, got, map[string]string{"app": "1.0.0", "lib": "2.0.0"})

	if len(events) == 0 {
		t.Fatal("no events emitted")
	}
	session := events[0].Session
	if session == "" {
		t.Error("events carry no session id")
	}
	pinned := make(map[core.Dependency]version.Pinned)
	for _, e := range events {
		if e.Session != session {
			t.Errorf("event %s has session %q, want %q", e, e.Session, session)
		}
		if e.Kind == EventPinned {
			pinned[e.Dependency] = e.Version
		}
	}
	if !maps.Equal(pinned, got) {
		t.Errorf("pinned events %v disagree with result %v", pinned, got)
	}
}

func TestResolveBacktrackEmitsRejection(t *testing.T) {
	g := newStubRetriever()
	g.addVersions(gh("a"), "1.0.0", "2.0.0")
	g.addVersions(gh("b"), "1.0.0")
	g.require(gh("a"), "2.0.0", req("b", version.Exactly(version.MustParse("9.9.9"))))

	var rejected []Event
	sink := EventSinkFunc(func(e Event) {
		if e.Kind == EventRejected {
			rejected = append(rejected, e)
		}
	})

	manifest := map[core.Dependency]version.Specifier{
		gh("a"): version.Any(),
	}
	got, err := New(g, WithEventSink(sink)).Resolve(context.Background(), manifest, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	checkResolved(t, got, map[string]string{"a": "1.0.0"})

	if len(rejected) != 1 {
		t.Fatalf("rejection events = %v, want one", rejected)
	}
	if rejected[0].Dependency != gh("a") || rejected[0].Version != version.NewPinned("2.0.0") {
		t.Errorf("rejected %s @ %s", rejected[0].Dependency, rejected[0].Version)
	}
}
