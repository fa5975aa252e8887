package graph

import "jobweaver/internal/engine"

// Hash is the deterministic identity of a Graph.
type Hash string

// DefHash is the deterministic identity of one target definition.
type DefHash string

// Node is an immutable node in the Graph.
type Node struct {
	Name           string
	Target         engine.Target
	DefinitionHash DefHash
	canonicalIndex int
}

// CanonicalIndex returns the node's deterministic position in the graph's canonical ordering.
func (n *Node) CanonicalIndex() int { return n.canonicalIndex }

func (h Hash) String() string { return string(h) }

func (h DefHash) String() string { return string(h) }
