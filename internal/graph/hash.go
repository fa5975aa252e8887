package graph

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sort"

	"jobweaver/internal/engine"
)

// fieldWriter writes length-prefixed fields so that concatenated values can
// never collide.
type fieldWriter struct {
	h hash.Hash
}

func (w fieldWriter) write(data []byte) {
	var prefix [8]byte
	binary.BigEndian.PutUint64(prefix[:], uint64(len(data)))
	w.h.Write(prefix[:])
	w.h.Write(data)
}

func (w fieldWriter) count(n int) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(n))
	w.write(b[:])
}

// computeDefHash hashes the declarative fields of a target: inputs, outputs,
// options and spec.
//
// Determinism rules:
//   - Inputs are treated as a set for identity and thus sorted.
//   - Outputs are sorted by name; each name's paths keep their flattened order.
//   - All fields are length-prefixed to avoid ambiguity.
func computeDefHash(t engine.Target) DefHash {
	w := fieldWriter{h: sha256.New()}

	inputs := t.FlatInputs()
	sort.Strings(inputs)
	w.count(len(inputs))
	for _, in := range inputs {
		w.write([]byte(in))
	}

	names := make([]string, 0, len(t.Outputs))
	for k := range t.Outputs {
		names = append(names, k)
	}
	sort.Strings(names)
	w.count(len(names))
	for _, k := range names {
		w.write([]byte(k))
		paths := (engine.Target{Outputs: map[string]any{k: t.Outputs[k]}}).FlatOutputs()
		w.count(len(paths))
		for _, p := range paths {
			w.write([]byte(p))
		}
	}

	w.write([]byte(t.Options.Memory))
	w.write([]byte(t.Options.Walltime))
	w.count(t.Options.Cores)
	w.write([]byte(t.Executor))
	w.write([]byte(t.Spec))

	return DefHash(hex.EncodeToString(w.h.Sum(nil)))
}

func (g *Graph) computeHash() Hash {
	w := fieldWriter{h: sha256.New()}

	// Nodes (canonical order)
	w.count(len(g.nodes))
	for _, n := range g.nodes {
		w.write([]byte(n.DefinitionHash))
	}

	// Edges (canonical order)
	w.count(len(g.edges))
	for _, e := range g.edges {
		w.count(e.from)
		w.count(e.to)
	}

	return Hash(hex.EncodeToString(w.h.Sum(nil)))
}
