package resolver

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nsoperations/depforge/core"
	"github.com/nsoperations/depforge/observability"
	"github.com/nsoperations/depforge/version"
)

// defaultRetryBudget caps how many candidates the search may reject
// before giving up on pathological graphs.
const defaultRetryBudget = 10000

// Resolver computes a consistent version assignment for a manifest of
// dependency requirements.
//
// One Resolver is safe for sequential reuse; each Resolve call owns its
// private search state. The search itself is single-threaded: only
// retriever lookups for independent dependencies run concurrently.
type Resolver struct {
	retriever   core.Retriever
	log         observability.Logger
	sink        EventSink
	fetchLimit  int
	retryBudget int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the structured logger.
func WithLogger(l observability.Logger) Option {
	return func(r *Resolver) { r.log = l }
}

// WithEventSink subscribes a diagnostic event consumer.
func WithEventSink(s EventSink) Option {
	return func(r *Resolver) { r.sink = s }
}

// WithFetchLimit bounds concurrent retriever lookups.
func WithFetchLimit(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.fetchLimit = n
		}
	}
}

// WithRetryBudget bounds how many candidate rejections the search will
// tolerate before giving up.
func WithRetryBudget(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.retryBudget = n
		}
	}
}

// New creates a Resolver over the given retriever.
func New(retriever core.Retriever, opts ...Option) *Resolver {
	r := &Resolver{
		retriever:   retriever,
		log:         observability.NewNullLogger(),
		fetchLimit:  defaultFetchLimit,
		retryBudget: defaultRetryBudget,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve computes a pinned version for every dependency transitively
// required by the manifest.
//
// lastResolved optionally carries a prior resolution. When toUpdate is
// also given, dependencies whose names are not listed keep their prior
// pin, shrinking the search space and keeping unrelated dependencies
// stable across partial updates.
//
// The result is complete or absent: cancellation and failure never
// surface a partial assignment.
func (r *Resolver) Resolve(
	ctx context.Context,
	dependencies map[core.Dependency]version.Specifier,
	lastResolved map[core.Dependency]version.Pinned,
	toUpdate []string,
) (map[core.Dependency]version.Pinned, error) {
	ctx, span := observability.StartResolveSpan(ctx, len(dependencies))
	defer span.End()

	start := time.Now()
	resolved, err := r.resolve(ctx, uuid.NewString(), dependencies, lastResolved, toUpdate)
	observability.ResolutionDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		observability.ResolutionsTotal.WithLabelValues("resolved").Inc()
		observability.DependenciesResolved.Observe(float64(len(resolved)))
	case ctx.Err() != nil:
		observability.ResolutionsTotal.WithLabelValues("cancelled").Inc()
	default:
		observability.ResolutionsTotal.WithLabelValues("conflict").Inc()
	}
	return resolved, err
}

// searchState is the mutable state of one search branch: candidate sets,
// discovery order, and committed pins. Cloning it snapshots a decision
// point; version-set clones share structure, so snapshots stay cheap.
type searchState struct {
	sets    map[core.Dependency]*VersionSet
	order   []core.Dependency
	pins    map[core.Dependency]version.Pinned
	prePins map[core.Dependency]version.Pinned // shared, read-only
}

func newSearchState(prePins map[core.Dependency]version.Pinned) *searchState {
	return &searchState{
		sets:    make(map[core.Dependency]*VersionSet),
		pins:    make(map[core.Dependency]version.Pinned),
		prePins: prePins,
	}
}

func (st *searchState) clone() *searchState {
	sets := make(map[core.Dependency]*VersionSet, len(st.sets))
	for dep, set := range st.sets {
		sets[dep] = set.Clone()
	}
	pins := make(map[core.Dependency]version.Pinned, len(st.pins))
	for dep, pin := range st.pins {
		pins[dep] = pin
	}
	return &searchState{
		sets:    sets,
		order:   slices.Clone(st.order),
		pins:    pins,
		prePins: st.prePins,
	}
}

func (st *searchState) addNode(dep core.Dependency) *VersionSet {
	set := NewVersionSet()
	st.sets[dep] = set
	st.order = append(st.order, dep)
	return set
}

// nextUnpinned returns the earliest-discovered dependency without a
// committed pin. Discovery order is deterministic, which keeps the whole
// search reproducible.
func (st *searchState) nextUnpinned() (core.Dependency, bool) {
	for _, dep := range st.order {
		if _, done := st.pins[dep]; !done {
			return dep, true
		}
	}
	return core.Dependency{}, false
}

func (st *searchState) flatten() map[core.Dependency]version.Pinned {
	out := make(map[core.Dependency]version.Pinned, len(st.pins))
	for dep, pin := range st.pins {
		out[dep] = pin
	}
	return out
}

// decision is one entry of the explicit backtracking stack: the
// tentative pin and the state snapshot taken before it was applied.
type decision struct {
	dep       core.Dependency
	candidate ConcreteVersion
	before    *searchState
}

func (r *Resolver) resolve(
	ctx context.Context,
	session string,
	dependencies map[core.Dependency]version.Specifier,
	lastResolved map[core.Dependency]version.Pinned,
	toUpdate []string,
) (map[core.Dependency]version.Pinned, error) {
	prePins, err := prePinnedVersions(dependencies, lastResolved, toUpdate)
	if err != nil {
		return nil, err
	}

	st := newSearchState(prePins)
	if err := r.seedRoots(ctx, st, dependencies); err != nil {
		return nil, err
	}

	var (
		stack        []decision
		rejections   int
		lastConflict *RequiredVersionNotFoundError
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dep, ok := st.nextUnpinned()
		if !ok {
			r.log.Debug("Resolution complete with {Count} dependencies", len(st.pins))
			return st.flatten(), nil
		}

		set := st.sets[dep]
		r.emit(Event{Session: session, Kind: EventConsidering, Dependency: dep, Remaining: set.Len()})

		candidate, ok := set.First()
		if !ok {
			// Out of candidates: unwind to the most recent decision
			// point that still has an alternative.
			if lastConflict == nil {
				lastConflict = conflictError(dep, set)
			}
			st = r.backtrack(session, st, &stack, &rejections)
			if st == nil {
				return nil, lastConflict
			}
			continue
		}

		r.emit(Event{Session: session, Kind: EventAttempting, Dependency: dep, Version: candidate.Pinned()})
		stack = append(stack, decision{dep: dep, candidate: candidate, before: st.clone()})

		conflicted, err := r.expand(ctx, st, dep, candidate)
		if err != nil {
			return nil, err
		}
		if conflicted != nil {
			lastConflict = conflictError(*conflicted, st.sets[*conflicted])

			// Revert the tentative pin and retire the failed candidate
			// for this search branch.
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			st = top.before
			st.sets[top.dep].Remove(top.candidate)
			r.reject(session, top, &rejections)
			if rejections > r.retryBudget {
				return nil, lastConflict
			}
			continue
		}

		st.pins[dep] = candidate.Pinned()
		set = st.sets[dep]
		set.RemoveAll(&candidate)
		r.emit(Event{Session: session, Kind: EventPinned, Dependency: dep, Version: candidate.Pinned()})
	}
}

// seedRoots applies the manifest's baseline constraints. These carry a
// nil defining dependency and can never be backtracked past: a root
// constraint that empties a set on arrival is immediately fatal.
func (r *Resolver) seedRoots(ctx context.Context, st *searchState, dependencies map[core.Dependency]version.Specifier) error {
	roots := make([]core.Dependency, 0, len(dependencies))
	for dep := range dependencies {
		roots = append(roots, dep)
	}
	slices.SortFunc(roots, compareDependencies)

	var plain []core.Dependency
	for _, dep := range roots {
		if dependencies[dep].Kind() != version.KindGitReference {
			if _, prePinned := st.prePins[dep]; !prePinned {
				plain = append(plain, dep)
			}
		}
	}
	fetched, err := r.prefetchVersions(ctx, plain)
	if err != nil {
		return err
	}

	for _, dep := range roots {
		spec := dependencies[dep]
		if err := r.applyConstraint(ctx, st, core.Requirement{Dependency: dep, Specifier: spec}, nil, fetched); err != nil {
			return err
		}
		if set := st.sets[dep]; set.Len() == 0 {
			return conflictError(dep, set)
		}
	}
	return nil
}

// expand tentatively accepts a pin and folds the pinned version's own
// requirements into the graph. It returns the dependency whose set
// emptied, if the pin proved inconsistent.
func (r *Resolver) expand(ctx context.Context, st *searchState, dep core.Dependency, candidate ConcreteVersion) (*core.Dependency, error) {
	reqs, err := r.retriever.Dependencies(ctx, dep, candidate.Pinned())
	if err != nil {
		return nil, err
	}
	observability.RetrieverLookupsTotal.WithLabelValues("dependencies").Inc()

	reqs = slices.Clone(reqs)
	slices.SortFunc(reqs, func(a, b core.Requirement) int {
		return compareDependencies(a.Dependency, b.Dependency)
	})

	// Version lists for freshly discovered dependencies are independent
	// lookups: fetch them concurrently before folding results in.
	var unseen []core.Dependency
	for _, req := range reqs {
		_, exists := st.sets[req.Dependency]
		_, prePinned := st.prePins[req.Dependency]
		if !exists && !prePinned && req.Specifier.Kind() != version.KindGitReference {
			unseen = append(unseen, req.Dependency)
		}
	}
	fetched, err := r.prefetchVersions(ctx, unseen)
	if err != nil {
		return nil, err
	}

	from := &VersionedDependency{Dependency: dep, Version: candidate}
	for _, req := range reqs {
		if err := r.applyConstraint(ctx, st, req, from, fetched); err != nil {
			return nil, err
		}
		if st.sets[req.Dependency].Len() == 0 {
			target := req.Dependency
			return &target, nil
		}
	}
	return nil, nil
}

// applyConstraint folds one requirement into the target dependency's
// candidate set, creating and populating the set on first encounter.
func (r *Resolver) applyConstraint(
	ctx context.Context,
	st *searchState,
	req core.Requirement,
	from *VersionedDependency,
	fetched map[core.Dependency][]version.Pinned,
) error {
	set, exists := st.sets[req.Dependency]

	// Git references bypass version listing entirely: the ref resolves
	// to one concrete pin and the set collapses around it. A dependency
	// carried over from the prior resolution keeps its recorded commit
	// instead of chasing the ref's current target.
	if req.Specifier.Kind() == version.KindGitReference {
		pin, prePinned := st.prePins[req.Dependency]
		if !prePinned {
			var err error
			pin, err = r.retriever.ResolvedGitReference(ctx, req.Dependency, req.Specifier.Ref())
			if err != nil {
				return err
			}
			observability.RetrieverLookupsTotal.WithLabelValues("git_reference").Inc()
		}
		cv := NewConcreteVersion(pin)
		if !exists {
			set = st.addNode(req.Dependency)
		}
		// The set only ever held candidates from the tag listing, so
		// the resolved commit must be introduced before collapsing. An
		// already-pinned set is left alone: a mismatched commit has to
		// empty it so the conflict surfaces.
		if !set.IsPinned() {
			set.Insert(cv)
		}
		set.AddDefinition(Definition{Dependent: from, Specifier: req.Specifier})
		set.PinTo(req.Specifier, cv)
		return nil
	}

	if !exists {
		set = st.addNode(req.Dependency)
		if pin, ok := st.prePins[req.Dependency]; ok {
			// Carried over from the prior resolution: collapse to the
			// previous pin without listing versions.
			cv := NewConcreteVersion(pin)
			set.RemoveAll(&cv)
		} else {
			pins, ok := fetched[req.Dependency]
			if !ok {
				var err error
				if pins, err = r.retriever.Versions(ctx, req.Dependency); err != nil {
					return err
				}
			}
			observability.RetrieverLookupsTotal.WithLabelValues("versions").Inc()
			for _, pin := range pins {
				set.Insert(NewConcreteVersion(pin))
			}
		}
	}

	set.AddDefinition(Definition{Dependent: from, Specifier: req.Specifier})
	set.Retain(req.Specifier)
	return nil
}

// backtrack unwinds the decision stack until a decision point with a
// remaining alternative is found, restoring its pre-decision snapshot
// and retiring the failed candidate. It returns nil when the stack is
// exhausted.
func (r *Resolver) backtrack(session string, st *searchState, stack *[]decision, rejections *int) *searchState {
	for len(*stack) > 0 {
		top := (*stack)[len(*stack)-1]
		*stack = (*stack)[:len(*stack)-1]

		observability.BacktracksTotal.Inc()
		r.emit(Event{Session: session, Kind: EventBacktracking, Dependency: top.dep})

		st = top.before
		st.sets[top.dep].Remove(top.candidate)
		r.reject(session, top, rejections)
		if *rejections > r.retryBudget {
			return nil
		}
		if st.sets[top.dep].Len() > 0 {
			return st
		}
	}
	return nil
}

func (r *Resolver) reject(session string, d decision, rejections *int) {
	*rejections++
	observability.CandidatesRejectedTotal.Inc()
	r.emit(Event{
		Session:    session,
		Kind:       EventRejected,
		Dependency: d.dep,
		Version:    d.candidate.Pinned(),
		Remaining:  d.before.sets[d.dep].Len(),
	})
	r.log.Verbose("Rejected {Dependency} at {Version}", d.dep.Name(), d.candidate.String())
}

func (r *Resolver) emit(e Event) {
	if r.sink != nil {
		r.sink.ResolutionEvent(e)
	}
}

// conflictError assembles the structured explanation for an emptied set:
// the newest recorded constraint plus the earliest one it cannot
// coexist with.
func conflictError(dep core.Dependency, set *VersionSet) *RequiredVersionNotFoundError {
	defs := set.Definitions()
	conflict := make([]Definition, 0, 2)
	if n := len(defs); n > 0 {
		last := defs[n-1]
		if earlier := set.ConflictingDefinition(last.Specifier); earlier != nil && !earlier.Specifier.Equal(last.Specifier) {
			conflict = append(conflict, *earlier)
		}
		conflict = append(conflict, last)
	}
	return &RequiredVersionNotFoundError{Dependency: dep, Conflict: conflict}
}

// prePinnedVersions selects the prior pins to carry into the search: the
// whole prior resolution minus the dependencies named for update.
func prePinnedVersions(
	dependencies map[core.Dependency]version.Specifier,
	lastResolved map[core.Dependency]version.Pinned,
	toUpdate []string,
) (map[core.Dependency]version.Pinned, error) {
	if toUpdate == nil || lastResolved == nil {
		return nil, nil
	}

	known := make(map[string]bool)
	for dep := range dependencies {
		known[dep.Name()] = true
	}
	for dep := range lastResolved {
		known[dep.Name()] = true
	}
	var unknown []string
	updating := make(map[string]bool, len(toUpdate))
	for _, name := range toUpdate {
		if !known[name] {
			unknown = append(unknown, name)
			continue
		}
		updating[name] = true
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		return nil, &UnknownDependenciesError{Names: unknown}
	}

	prePins := make(map[core.Dependency]version.Pinned)
	for dep, pin := range lastResolved {
		if !updating[dep.Name()] {
			prePins[dep] = pin
		}
	}
	return prePins, nil
}

func compareDependencies(a, b core.Dependency) int {
	return strings.Compare(a.Key(), b.Key())
}
