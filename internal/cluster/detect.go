package cluster

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/simple"
)

// Community is a detected set of strongly co-occurring courses. No ordering
// guarantee; deterministic ordering is imposed later by the label mapper.
type Community []CourseID

// Detector is the pluggable community-detection strategy. Implementations
// must return a partition: every graph node in exactly one community.
type Detector interface {
	Detect(g *simple.WeightedUndirectedGraph) ([]Community, error)
}

// DetectorFunc adapts a plain function to the Detector interface.
type DetectorFunc func(g *simple.WeightedUndirectedGraph) ([]Community, error)

func (f DetectorFunc) Detect(g *simple.WeightedUndirectedGraph) ([]Community, error) {
	return f(g)
}

// louvainSeed fixes the randomization source so repeated runs over identical
// input yield identical partitions.
const louvainSeed = 1

// louvainDetector is the default strategy: greedy modularity optimization
// over edge weights.
type louvainDetector struct{}

// NewLouvainDetector returns the default modularity-optimizing detector.
func NewLouvainDetector() Detector {
	return louvainDetector{}
}

func (louvainDetector) Detect(g *simple.WeightedUndirectedGraph) (clusters []Community, err error) {
	if g.Edges().Len() == 0 {
		// Fully disconnected population: every course is its own community.
		// Defined behavior, not an error.
		return singletonCommunities(g), nil
	}

	defer func() {
		if r := recover(); r != nil {
			clusters = nil
			err = fmt.Errorf("louvain community detection: %v", r)
		}
	}()

	reduced := community.Modularize(g, 1.0, rand.NewPCG(louvainSeed, louvainSeed))
	for _, nodes := range reduced.Communities() {
		c := make(Community, 0, len(nodes))
		for _, node := range nodes {
			c = append(c, CourseID(node.ID()))
		}
		clusters = append(clusters, c)
	}
	return clusters, nil
}

func singletonCommunities(g *simple.WeightedUndirectedGraph) []Community {
	clusters := make([]Community, 0, g.Nodes().Len())
	it := g.Nodes()
	for it.Next() {
		clusters = append(clusters, Community{CourseID(it.Node().ID())})
	}
	return clusters
}

func allNodesCommunity(g *simple.WeightedUndirectedGraph) Community {
	all := make(Community, 0, g.Nodes().Len())
	it := g.Nodes()
	for it.Next() {
		all = append(all, CourseID(it.Node().ID()))
	}
	return all
}

func communitiesToNodes(clusters []Community) [][]graph.Node {
	nodes := make([][]graph.Node, len(clusters))
	for i, c := range clusters {
		nodes[i] = make([]graph.Node, len(c))
		for j, course := range c {
			nodes[i][j] = simple.Node(course)
		}
	}
	return nodes
}
