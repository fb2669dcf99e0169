package cluster

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/graph/simple"
)

// twoCliqueGraph builds two triangles (1,2,3) and (10,11,12) with no edges
// between them, plus an isolated node 20.
func twoCliqueGraph() *simple.WeightedUndirectedGraph {
	m := membershipOf(map[CourseID][]UserID{
		1: {}, 2: {}, 3: {}, 10: {}, 11: {}, 12: {}, 20: {},
	})
	overlaps := Overlaps{Real: map[Pair]int{
		{A: 1, B: 2}:   3,
		{A: 1, B: 3}:   3,
		{A: 2, B: 3}:   3,
		{A: 10, B: 11}: 3,
		{A: 10, B: 12}: 3,
		{A: 11, B: 12}: 3,
	}}
	return buildGraph(m, overlaps, 1, zerolog.Nop())
}

func assertPartition(t *testing.T, g *simple.WeightedUndirectedGraph, clusters []Community) {
	t.Helper()
	seen := make(map[CourseID]int)
	for _, c := range clusters {
		for _, course := range c {
			seen[course]++
		}
	}
	it := g.Nodes()
	for it.Next() {
		id := CourseID(it.Node().ID())
		if seen[id] != 1 {
			t.Fatalf("node %d appears %d times across clusters, want exactly 1", id, seen[id])
		}
		delete(seen, id)
	}
	if len(seen) != 0 {
		t.Fatalf("clusters contain courses absent from the graph: %v", seen)
	}
}

func TestDetectZeroEdgesYieldsSingletons(t *testing.T) {
	m := membershipOf(map[CourseID][]UserID{1: {}, 2: {}, 3: {}})
	g := buildGraph(m, Overlaps{}, 1, zerolog.Nop())

	clusters, err := NewLouvainDetector().Detect(g)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(clusters) != 3 {
		t.Fatalf("expected 3 singleton clusters, got %d", len(clusters))
	}
	for _, c := range clusters {
		if len(c) != 1 {
			t.Fatalf("expected singleton, got %v", c)
		}
	}
	assertPartition(t, g, clusters)
}

func TestDetectSeparatesComponents(t *testing.T) {
	g := twoCliqueGraph()
	clusters, err := NewLouvainDetector().Detect(g)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertPartition(t, g, clusters)

	byCourse := make(map[CourseID]int)
	for i, c := range clusters {
		for _, course := range c {
			byCourse[course] = i
		}
	}
	if byCourse[1] != byCourse[2] || byCourse[2] != byCourse[3] {
		t.Fatalf("expected courses 1,2,3 in one community, got %v", clusters)
	}
	if byCourse[10] != byCourse[11] || byCourse[11] != byCourse[12] {
		t.Fatalf("expected courses 10,11,12 in one community, got %v", clusters)
	}
	if byCourse[1] == byCourse[10] {
		t.Fatalf("expected the two cliques in separate communities, got %v", clusters)
	}
}

func TestDetectIsDeterministic(t *testing.T) {
	g := twoCliqueGraph()
	det := NewLouvainDetector()

	first, err := det.Detect(g)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := det.Detect(g)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if canonicalizeClusters(first) != canonicalizeClusters(second) {
		t.Fatalf("repeated detection differs:\n%v\n%v", first, second)
	}
}

func TestEvaluateZeroEdgesIsZero(t *testing.T) {
	m := membershipOf(map[CourseID][]UserID{1: {}, 2: {}})
	g := buildGraph(m, Overlaps{}, 1, zerolog.Nop())
	clusters, _ := NewLouvainDetector().Detect(g)

	q := Evaluate(g, clusters)
	if q.Modularity != 0 {
		t.Fatalf("expected modularity 0 for an edgeless graph, got %g", q.Modularity)
	}
}

func TestEvaluateTwoCliques(t *testing.T) {
	g := twoCliqueGraph()
	clusters := []Community{{1, 2, 3}, {10, 11, 12}, {20}}

	q := Evaluate(g, clusters)
	if math.Abs(q.Modularity-0.5) > 1e-9 {
		t.Fatalf("expected modularity 0.5 for two equal disjoint cliques, got %g", q.Modularity)
	}
}

func canonicalizeClusters(clusters []Community) string {
	parts := make([]string, 0, len(clusters))
	for _, c := range clusters {
		ids := append(Community(nil), c...)
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		part := make([]string, len(ids))
		for i, id := range ids {
			part[i] = strconv.FormatInt(int64(id), 10)
		}
		parts = append(parts, strings.Join(part, ","))
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}
