package graph

import (
	"sort"

	"jobweaver/internal/engine"
)

type edgeIndex struct {
	from int
	to   int
}

// Graph is an immutable, validated dependency graph over emitted targets.
//
// It is safe for concurrent read access.
type Graph struct {
	nodesByName map[string]*Node
	nodes       []*Node // canonical order

	edges []edgeIndex // sorted

	outgoing [][]int // by canonical index, sorted ascending
	incoming [][]int // by canonical index, sorted ascending
	indeg    []int   // by canonical index
	depth    []int   // by canonical index (topological depth)

	hash Hash
}

// Build derives edges from the targets' files and validates the result.
//
// Validation rejects:
//   - empty or duplicate target names
//   - two targets producing the same output path
//   - a target consuming its own output
//   - any cycle (direct or indirect)
//
// Inputs no target produces are source files and add no edge.
func Build(targets []engine.Target) (*Graph, error) {
	nodesByName := make(map[string]*Node, len(targets))
	nodes := make([]*Node, 0, len(targets))
	producer := make(map[string]string)

	for _, t := range targets {
		if t.Name == "" {
			return nil, invalidf("target name is required")
		}
		if _, exists := nodesByName[t.Name]; exists {
			return nil, invalidf("duplicate target name: %q", t.Name)
		}
		for _, out := range t.FlatOutputs() {
			if prev, taken := producer[out]; taken && prev != t.Name {
				return nil, invalidf("output %q produced by both %q and %q", out, prev, t.Name)
			}
			producer[out] = t.Name
		}
		node := &Node{Name: t.Name, Target: t, DefinitionHash: computeDefHash(t)}
		nodesByName[t.Name] = node
		nodes = append(nodes, node)
	}

	// Canonicalize nodes: sort by definition hash primarily, then by name as stable tie-breaker.
	sort.Slice(nodes, func(i, j int) bool {
		ai, aj := nodes[i], nodes[j]
		if ai.DefinitionHash != aj.DefinitionHash {
			return ai.DefinitionHash < aj.DefinitionHash
		}
		return ai.Name < aj.Name
	})
	for i, n := range nodes {
		n.canonicalIndex = i
	}

	seen := make(map[edgeIndex]struct{})
	var mapped []edgeIndex
	for _, n := range nodes {
		for _, in := range n.Target.FlatInputs() {
			from, ok := producer[in]
			if !ok {
				continue
			}
			if from == n.Name {
				return nil, cycleError([]string{n.Name, n.Name})
			}
			pair := edgeIndex{from: nodesByName[from].canonicalIndex, to: n.canonicalIndex}
			if _, dup := seen[pair]; dup {
				continue
			}
			seen[pair] = struct{}{}
			mapped = append(mapped, pair)
		}
	}

	sort.Slice(mapped, func(i, j int) bool {
		a, b := mapped[i], mapped[j]
		if a.from != b.from {
			return a.from < b.from
		}
		return a.to < b.to
	})

	outgoing := make([][]int, len(nodes))
	incoming := make([][]int, len(nodes))
	indeg := make([]int, len(nodes))
	for _, e := range mapped {
		outgoing[e.from] = append(outgoing[e.from], e.to)
		incoming[e.to] = append(incoming[e.to], e.from)
		indeg[e.to]++
	}

	g := &Graph{
		nodesByName: nodesByName,
		nodes:       nodes,
		edges:       mapped,
		outgoing:    outgoing,
		incoming:    incoming,
		indeg:       indeg,
	}

	if err := g.validateAcyclic(); err != nil {
		return nil, err
	}

	g.depth = g.computeDepth()
	g.hash = g.computeHash()
	return g, nil
}

// Hash returns the stable identity for this graph.
func (g *Graph) Hash() Hash { return g.hash }

// Len returns the number of targets.
func (g *Graph) Len() int { return len(g.nodes) }

// Node returns a node by name.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.nodesByName[name]
	return n, ok
}

// Depth returns the length of the longest path from any root to the named target.
func (g *Graph) Depth(name string) (int, bool) {
	n, ok := g.nodesByName[name]
	if !ok {
		return 0, false
	}
	return g.depth[n.canonicalIndex], true
}

func (g *Graph) computeDepth() []int {
	depth := make([]int, len(g.nodes))
	for _, u := range g.topoOrderIndices() {
		maxParent := 0
		for _, p := range g.incoming[u] {
			if cand := depth[p] + 1; cand > maxParent {
				maxParent = cand
			}
		}
		depth[u] = maxParent
	}
	return depth
}
