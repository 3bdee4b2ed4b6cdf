// Package restore turns a finished resolution into an executable build
// plan: dependencies ordered so that everything a project needs is built
// before the project itself, batched into levels that may build in
// parallel.
package restore

import (
	"context"
	"fmt"

	"github.com/nsoperations/depforge/core"
	"github.com/nsoperations/depforge/graph"
	"github.com/nsoperations/depforge/observability"
	"github.com/nsoperations/depforge/version"
)

// Step is one entry of a build plan: a resolved dependency at the level
// it becomes buildable.
type Step struct {
	Dependency core.Dependency
	Version    version.Pinned

	// Level is the earliest parallel batch the step can run in. Level 0
	// steps have no prerequisites inside the plan.
	Level int
}

func (s Step) String() string {
	return fmt.Sprintf("%s @ %s", s.Dependency.Name(), s.Version.Commitish)
}

// Plan is a build order over a resolution. Steps are sorted by level,
// then by name within a level.
type Plan struct {
	Steps []Step
}

// Batches groups the steps into per-level slices. Steps within one batch
// have no dependency relationship and may build concurrently.
func (p *Plan) Batches() [][]Step {
	var batches [][]Step
	for _, step := range p.Steps {
		if step.Level >= len(batches) {
			batches = append(batches, nil)
		}
		batches[step.Level] = append(batches[step.Level], step)
	}
	return batches
}

// Planner derives build plans from resolutions, consulting a retriever
// for the dependency edges between the pinned versions.
type Planner struct {
	retriever core.Retriever
	log       observability.Logger
}

// Option configures a Planner.
type Option func(*Planner)

// WithLogger sets the structured logger.
func WithLogger(l observability.Logger) Option {
	return func(p *Planner) { p.log = l }
}

// NewPlanner creates a Planner over the given retriever.
func NewPlanner(retriever core.Retriever, opts ...Option) *Planner {
	p := &Planner{
		retriever: retriever,
		log:       observability.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan computes the build order for a resolution. When only is
// non-empty, the plan is restricted to the named dependencies and
// everything they transitively require; levels are recomputed within
// the restricted subgraph.
//
// Edges referencing a dependency absent from the resolution indicate a
// stale or hand-edited input and fail with a MissingNodeError.
func (p *Planner) Plan(ctx context.Context, resolved map[core.Dependency]version.Pinned, only []string) (*Plan, error) {
	// Nodes are keyed by the dependency's full key: two origins sharing
	// a short name stay distinct in the graph.
	byKey := make(map[string]core.Dependency, len(resolved))
	edges := make(map[string]map[string]struct{}, len(resolved))
	for dep := range resolved {
		byKey[dep.Key()] = dep
		edges[dep.Key()] = make(map[string]struct{})
	}

	for dep, pin := range resolved {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		reqs, err := p.retriever.Dependencies(ctx, dep, pin)
		if err != nil {
			return nil, fmt.Errorf("loading dependencies of %s: %w", dep, err)
		}
		for _, req := range reqs {
			edges[dep.Key()][req.Dependency.Key()] = struct{}{}
		}
	}

	var filter map[string]struct{}
	if len(only) > 0 {
		filter = make(map[string]struct{}, len(only))
		for _, name := range only {
			matched := false
			for key, dep := range byKey {
				if dep.Name() == name {
					filter[key] = struct{}{}
					matched = true
				}
			}
			if !matched {
				return nil, &UnknownProjectError{Name: name}
			}
		}
	}

	ordered, err := graph.TopologicalSortWithLevels(edges, filter)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Steps: make([]Step, 0, len(ordered))}
	for _, nl := range ordered {
		dep := byKey[nl.Node]
		plan.Steps = append(plan.Steps, Step{
			Dependency: dep,
			Version:    resolved[dep],
			Level:      nl.Level,
		})
	}
	p.log.Debug("Planned {Steps} build steps in {Batches} batches", len(plan.Steps), len(plan.Batches()))
	return plan, nil
}

// UnknownProjectError reports a plan filter naming a dependency that is
// not part of the resolution.
type UnknownProjectError struct {
	Name string
}

func (e *UnknownProjectError) Error() string {
	return fmt.Sprintf("no dependency named %q in the resolution", e.Name)
}
