// Package graph validates the set of targets about to be emitted as a
// dependency graph.
//
// Edges are implied by files: target B depends on target A when one of A's
// outputs is among B's inputs. The graph identity (Hash) is computed from
// target definition content and the canonicalized edge structure, making it
// invariant to emission order.
package graph
