package cluster

import (
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/graph/simple"
)

// buildGraph constructs the overlap graph: one node per course (isolated
// nodes included), one weighted edge per pair whose real overlap clears the
// threshold. Rescued pairs are added afterwards and bypass the threshold.
func buildGraph(membership Membership, overlaps Overlaps, threshold int, log zerolog.Logger) *simple.WeightedUndirectedGraph {
	g := simple.NewWeightedUndirectedGraph(0, 0)
	for _, course := range sortedCourses(membership) {
		g.AddNode(simple.Node(course))
		if len(membership[course]) == 0 {
			log.Warn().Int64("course_id", int64(course)).Msg("course has no member engagements")
		}
	}

	edges := 0
	for pair, weight := range overlaps.Real {
		if weight >= threshold {
			g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(pair.A), simple.Node(pair.B), float64(weight)))
			edges++
		}
	}
	for pair, weight := range overlaps.Rescued {
		g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(pair.A), simple.Node(pair.B), float64(weight)))
		edges++
	}

	log.Debug().Int("nodes", g.Nodes().Len()).Int("edges", edges).Msg("overlap graph built")
	return g
}

// adaptiveThreshold derives an edge threshold from the real overlap weight
// distribution: median, scaled by factor, floored, clamped to at least 1.
// With no observed overlaps the fixed fallback threshold applies.
func adaptiveThreshold(overlaps map[Pair]int, factor float64, fallback int) int {
	if len(overlaps) == 0 {
		return fallback
	}
	counts := make([]int, 0, len(overlaps))
	for _, weight := range overlaps {
		counts = append(counts, weight)
	}
	sort.Ints(counts)

	n := len(counts)
	var median float64
	if n%2 == 1 {
		median = float64(counts[n/2])
	} else {
		median = float64(counts[n/2-1]+counts[n/2]) / 2
	}

	threshold := int(median * factor)
	if threshold < 1 {
		threshold = 1
	}
	return threshold
}
