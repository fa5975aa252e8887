package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"

	"jobweaver/internal/core"
)

type fieldWriter struct {
	h hash.Hash
}

func (w fieldWriter) write(s string) {
	var prefix [8]byte
	binary.BigEndian.PutUint64(prefix[:], uint64(len(s)))
	w.h.Write(prefix[:])
	w.h.Write([]byte(s))
}

func (w fieldWriter) count(n int) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(n))
	w.h.Write(b[:])
}

// ComputeDigest hashes the fingerprints in call order followed by the sorted
// leaf paths of outputs. Every field is length-prefixed.
func ComputeDigest(fingerprints []core.Fingerprinter, outputs core.Node) string {
	w := fieldWriter{h: sha256.New()}

	w.count(len(fingerprints))
	for _, fp := range fingerprints {
		w.write(fp.Digest())
	}

	paths := core.SortPaths(core.Flatten(outputs))
	w.count(len(paths))
	for _, p := range paths {
		w.write(string(p))
	}

	return hex.EncodeToString(w.h.Sum(nil))
}
