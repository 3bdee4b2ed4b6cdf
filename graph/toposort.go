// Package graph implements topological sorting with level assignment.
//
// Graphs are encoded as node -> set of incoming-edge source nodes: the
// value set of a key must be fully processed before the key itself.
// Levels batch nodes that can be processed independently: level 0 nodes
// have no incoming edges, and every other node sits one past its deepest
// incoming source.
package graph

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// NodeLevel pairs a node with its topological depth.
type NodeLevel[N cmp.Ordered] struct {
	// Level is the longest-path distance from any source node.
	Level int
	// Node is the graph node.
	Node N
}

// Less orders by (level, node) for deterministic output within a level.
func (nl NodeLevel[N]) Less(other NodeLevel[N]) bool {
	if nl.Level != other.Level {
		return nl.Level < other.Level
	}
	return nl.Node < other.Node
}

// CycleError reports a dependency cycle. Nodes holds the cycle members
// in traversal order.
type CycleError[N cmp.Ordered] struct {
	Nodes []N
}

func (e *CycleError[N]) Error() string {
	parts := make([]string, len(e.Nodes))
	for i, n := range e.Nodes {
		parts[i] = fmt.Sprint(n)
	}
	return "dependency cycle: " + strings.Join(parts, " -> ")
}

// MissingNodeError reports an incoming-edge source that is not itself a
// key in the graph.
type MissingNodeError[N cmp.Ordered] struct {
	Node N
}

func (e *MissingNodeError[N]) Error() string {
	return fmt.Sprintf("node referenced but not present in graph: %v", e.Node)
}

// TopologicalSort orders the graph so that every node appears after all
// of its incoming-edge sources.
//
// When only is non-nil, output is restricted to the requested nodes and
// their transitive incoming-edge closure, preserving order.
func TopologicalSort[N cmp.Ordered](g map[N]map[N]struct{}, only map[N]struct{}) ([]N, error) {
	leveled, err := TopologicalSortWithLevels(g, only)
	if err != nil {
		return nil, err
	}
	nodes := make([]N, len(leveled))
	for i, nl := range leveled {
		nodes[i] = nl.Node
	}
	return nodes, nil
}

// TopologicalSortWithLevels is TopologicalSort with each node's level
// attached. Output is sorted by (level ascending, node ascending).
func TopologicalSortWithLevels[N cmp.Ordered](g map[N]map[N]struct{}, only map[N]struct{}) ([]NodeLevel[N], error) {
	sorted, err := sortAll(g)
	if err != nil {
		return nil, err
	}
	if only == nil {
		return sorted, nil
	}

	// Restrict to the requested nodes plus everything they transitively
	// depend on. The unfiltered sort above already validated acyclicity
	// and completeness.
	keep := make(map[N]struct{})
	for n := range only {
		if _, ok := g[n]; !ok {
			return nil, &MissingNodeError[N]{Node: n}
		}
		collectAncestors(g, n, keep)
	}

	filtered := sorted[:0:0]
	for _, nl := range sorted {
		if _, ok := keep[nl.Node]; ok {
			filtered = append(filtered, nl)
		}
	}
	return filtered, nil
}

func collectAncestors[N cmp.Ordered](g map[N]map[N]struct{}, n N, keep map[N]struct{}) {
	if _, seen := keep[n]; seen {
		return
	}
	keep[n] = struct{}{}
	for src := range g[n] {
		collectAncestors(g, src, keep)
	}
}

func sortAll[N cmp.Ordered](g map[N]map[N]struct{}) ([]NodeLevel[N], error) {
	// Working copy of incoming-edge sets, plus the reverse adjacency so
	// processed nodes can release their dependents.
	incoming := make(map[N]map[N]struct{}, len(g))
	dependents := make(map[N][]N, len(g))
	for node, sources := range g {
		in := make(map[N]struct{}, len(sources))
		for src := range sources {
			if _, ok := g[src]; !ok {
				return nil, &MissingNodeError[N]{Node: src}
			}
			in[src] = struct{}{}
			dependents[src] = append(dependents[src], node)
		}
		incoming[node] = in
	}

	levels := make(map[N]int, len(g))
	queue := make([]N, 0, len(g))
	for node, in := range incoming {
		if len(in) == 0 {
			levels[node] = 0
			queue = append(queue, node)
		}
	}
	slices.Sort(queue)

	out := make([]NodeLevel[N], 0, len(g))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		out = append(out, NodeLevel[N]{Level: levels[node], Node: node})

		for _, dep := range dependents[node] {
			in := incoming[dep]
			if _, ok := in[node]; !ok {
				continue
			}
			delete(in, node)
			// A node sits one level past its deepest incoming source.
			if next := levels[node] + 1; next > levels[dep] {
				levels[dep] = next
			}
			if len(in) == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(out) != len(g) {
		return nil, &CycleError[N]{Nodes: findCycle(g, incoming)}
	}

	slices.SortFunc(out, func(a, b NodeLevel[N]) int {
		if a.Level != b.Level {
			return cmp.Compare(a.Level, b.Level)
		}
		return cmp.Compare(a.Node, b.Node)
	})
	return out, nil
}

// findCycle walks remaining incoming edges until a node repeats and
// returns the repeated segment. Edge choice is by node order so reports
// are stable across runs.
func findCycle[N cmp.Ordered](g map[N]map[N]struct{}, incoming map[N]map[N]struct{}) []N {
	remaining := make([]N, 0)
	for node, in := range incoming {
		if len(in) > 0 {
			remaining = append(remaining, node)
		}
	}
	slices.Sort(remaining)
	if len(remaining) == 0 {
		return nil
	}

	seen := make(map[N]int)
	path := make([]N, 0)
	node := remaining[0]
	for {
		if at, ok := seen[node]; ok {
			return path[at:]
		}
		seen[node] = len(path)
		path = append(path, node)

		sources := make([]N, 0, len(incoming[node]))
		for src := range incoming[node] {
			sources = append(sources, src)
		}
		slices.Sort(sources)
		node = sources[0]
	}
}
