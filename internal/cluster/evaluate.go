package cluster

import (
	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/simple"
)

// Quality holds partition quality metrics. Currently just modularity.
type Quality struct {
	Modularity float64 `json:"modularity"`
}

// Evaluate scores a partition against the graph it was computed from, using
// the same edge weights. Pure function; usable on its own for diagnostics.
//
// A graph with zero edges has modularity 0 by convention (the usual formula
// divides by total edge weight).
func Evaluate(g *simple.WeightedUndirectedGraph, clusters []Community) Quality {
	if g.Edges().Len() == 0 {
		return Quality{Modularity: 0}
	}
	return Quality{Modularity: community.Q(g, communitiesToNodes(clusters), 1.0)}
}
