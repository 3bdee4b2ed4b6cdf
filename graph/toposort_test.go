package graph

import (
	"errors"
	"slices"
	"testing"
)

func set(nodes ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		s[n] = struct{}{}
	}
	return s
}

func TestTopologicalSort(t *testing.T) {
	tests := []struct {
		name  string
		graph map[string]map[string]struct{}
		want  []string
	}{
		{
			"empty",
			map[string]map[string]struct{}{},
			[]string{},
		},
		{
			"single node",
			map[string]map[string]struct{}{"A": set()},
			[]string{"A"},
		},
		{
			"chain",
			map[string]map[string]struct{}{"A": set("B"), "B": set("C"), "C": set()},
			[]string{"C", "B", "A"},
		},
		{
			"diamond",
			map[string]map[string]struct{}{
				"A": set("B", "C"),
				"B": set("D"),
				"C": set("D"),
				"D": set(),
			},
			[]string{"D", "B", "C", "A"},
		},
		{
			"independent nodes sort by name within level",
			map[string]map[string]struct{}{"C": set(), "A": set(), "B": set()},
			[]string{"A", "B", "C"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TopologicalSort(tt.graph, nil)
			if err != nil {
				t.Fatalf("TopologicalSort: %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTopologicalSortWithLevels(t *testing.T) {
	g := map[string]map[string]struct{}{
		"A": set("B", "C"),
		"B": set("D"),
		"C": set("D"),
		"D": set(),
	}

	got, err := TopologicalSortWithLevels(g, nil)
	if err != nil {
		t.Fatalf("TopologicalSortWithLevels: %v", err)
	}

	want := []NodeLevel[string]{
		{Level: 0, Node: "D"},
		{Level: 1, Node: "B"},
		{Level: 1, Node: "C"},
		{Level: 2, Node: "A"},
	}
	if !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

// Level is the longest path from a source, not the shortest.
func TestLevelIsLongestPath(t *testing.T) {
	// A depends on B and D; B depends on C; C and D are sources.
	// A must land at level 2 even though D alone would put it at 1.
	g := map[string]map[string]struct{}{
		"A": set("B", "D"),
		"B": set("C"),
		"C": set(),
		"D": set(),
	}

	got, err := TopologicalSortWithLevels(g, nil)
	if err != nil {
		t.Fatalf("TopologicalSortWithLevels: %v", err)
	}

	levels := make(map[string]int)
	for _, nl := range got {
		levels[nl.Node] = nl.Level
	}
	for node, want := range map[string]int{"C": 0, "D": 0, "B": 1, "A": 2} {
		if levels[node] != want {
			t.Errorf("level of %s = %d, want %d", node, levels[node], want)
		}
	}
}

func TestTopologicalSortFiltered(t *testing.T) {
	g := map[string]map[string]struct{}{
		"A": set("B", "C"),
		"B": set("D"),
		"C": set("D"),
		"D": set(),
		"E": set("D"),
	}

	// Requesting B must pull in its transitive dependencies (D) but
	// nothing else.
	got, err := TopologicalSort(g, set("B"))
	if err != nil {
		t.Fatalf("TopologicalSort: %v", err)
	}
	if want := []string{"D", "B"}; !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	// Levels from the full graph are preserved in filtered output.
	leveled, err := TopologicalSortWithLevels(g, set("A"))
	if err != nil {
		t.Fatalf("TopologicalSortWithLevels: %v", err)
	}
	want := []NodeLevel[string]{
		{Level: 0, Node: "D"},
		{Level: 1, Node: "B"},
		{Level: 1, Node: "C"},
		{Level: 2, Node: "A"},
	}
	if !slices.Equal(leveled, want) {
		t.Errorf("got %v, want %v", leveled, want)
	}

	// Requesting an unknown node is an error.
	_, err = TopologicalSort(g, set("Z"))
	var missing *MissingNodeError[string]
	if !errors.As(err, &missing) || missing.Node != "Z" {
		t.Errorf("expected MissingNodeError for Z, got %v", err)
	}
}

func TestCycleDetection(t *testing.T) {
	g := map[string]map[string]struct{}{
		"A": set("B"),
		"B": set("A"),
	}

	_, err := TopologicalSort(g, nil)
	var cycle *CycleError[string]
	if !errors.As(err, &cycle) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	slices.Sort(cycle.Nodes)
	if !slices.Equal(cycle.Nodes, []string{"A", "B"}) {
		t.Errorf("cycle members = %v, want [A B]", cycle.Nodes)
	}
}

func TestCycleBelowValidNodes(t *testing.T) {
	// C depends on the A<->B cycle; no valid order exists.
	g := map[string]map[string]struct{}{
		"A": set("B"),
		"B": set("A"),
		"C": set("A"),
	}

	_, err := TopologicalSort(g, nil)
	var cycle *CycleError[string]
	if !errors.As(err, &cycle) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	for _, n := range cycle.Nodes {
		if n != "A" && n != "B" {
			t.Errorf("cycle must contain only A and B, got %v", cycle.Nodes)
		}
	}
}

func TestMissingNode(t *testing.T) {
	g := map[string]map[string]struct{}{
		"A": set("B"),
	}

	_, err := TopologicalSort(g, nil)
	var missing *MissingNodeError[string]
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingNodeError, got %v", err)
	}
	if missing.Node != "B" {
		t.Errorf("missing node = %v, want B", missing.Node)
	}
}
