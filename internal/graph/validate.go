package graph

import "container/heap"

// validateAcyclic runs Kahn's algorithm; when it cannot order every target the
// graph has a cycle and one witness path is reported.
func (g *Graph) validateAcyclic() error {
	if len(g.topoOrderIndices()) == len(g.nodes) {
		return nil
	}
	return cycleError(g.cycleWitness())
}

// readyQueue is a min-heap of canonical indices.
type readyQueue []int

func (q readyQueue) Len() int           { return len(q) }
func (q readyQueue) Less(i, j int) bool { return q[i] < q[j] }
func (q readyQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *readyQueue) Push(x any)        { *q = append(*q, x.(int)) }
func (q *readyQueue) Pop() any {
	old := *q
	x := old[len(old)-1]
	*q = old[:len(old)-1]
	return x
}

// topoOrderIndices returns a deterministic topological ordering of node indices.
// Ties are broken by canonical index.
func (g *Graph) topoOrderIndices() []int {
	indeg := append([]int(nil), g.indeg...)

	ready := &readyQueue{}
	for i, d := range indeg {
		if d == 0 {
			heap.Push(ready, i)
		}
	}

	out := make([]int, 0, len(indeg))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(int)
		out = append(out, n)
		for _, m := range g.outgoing[n] {
			indeg[m]--
			if indeg[m] == 0 {
				heap.Push(ready, m)
			}
		}
	}
	return out
}

// cycleWitness walks the graph depth-first in canonical order and returns the
// first cycle it closes, as target names with the start repeated at the end.
func (g *Graph) cycleWitness() []string {
	const (
		unvisited = iota
		onStack
		done
	)

	state := make([]int, len(g.nodes))
	var stack []int
	var cycle []int

	var visit func(u int) bool
	visit = func(u int) bool {
		state[u] = onStack
		stack = append(stack, u)
		for _, v := range g.outgoing[u] {
			switch state[v] {
			case unvisited:
				if visit(v) {
					return true
				}
			case onStack:
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == v {
						cycle = append(append([]int(nil), stack[i:]...), v)
						return true
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[u] = done
		return false
	}

	for i := range g.nodes {
		if state[i] == unvisited && visit(i) {
			break
		}
	}

	out := make([]string, 0, len(cycle))
	for _, idx := range cycle {
		out = append(out, g.nodes[idx].Name)
	}
	return out
}
