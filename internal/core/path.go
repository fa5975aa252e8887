// Package core defines the domain models for incremental job-graph construction.
package core

import (
	"path"
	"sort"
	"strings"
)

// Node is a path-bearing value as it appears in job inputs and outputs.
//
// The set of shapes is closed: Path (leaf), List (sequence) and Map (mapping).
// Values are trees built during construction; they never reference themselves.
type Node interface {
	isNode()
}

// Path is a single file-system path as declared by a job. Relative paths are
// resolved against the workflow root by the execution engine.
type Path string

// List is an ordered sequence of nodes.
type List []Node

// Map is a named collection of nodes.
type Map map[string]Node

func (Path) isNode() {}
func (List) isNode() {}
func (Map) isNode()  {}

// String returns the path exactly as the engine sees it.
func (p Path) String() string { return string(p) }

// IsAbs reports whether the path is absolute.
func (p Path) IsAbs() bool { return path.IsAbs(string(p)) }

// Dir returns the containing directory ("." for a bare file name).
func (p Path) Dir() string { return path.Dir(string(p)) }

// Under reports whether p lies inside the namespace root (e.g. "output").
func (p Path) Under(root string) bool {
	clean := path.Clean(string(p))
	root = path.Clean(root)
	return clean == root || strings.HasPrefix(clean, root+"/")
}

// Paths builds a List from plain path strings.
func Paths(ps ...string) List {
	out := make(List, 0, len(ps))
	for _, p := range ps {
		out = append(out, Path(p))
	}
	return out
}

// Flatten returns every leaf path in n.
//
// Lists are visited in order and maps in sorted key order, so the result is
// deterministic for a given tree. A nil node yields nil.
func Flatten(n Node) []Path {
	var out []Path
	flattenInto(n, &out)
	return out
}

func flattenInto(n Node, out *[]Path) {
	switch v := n.(type) {
	case nil:
	case Path:
		*out = append(*out, v)
	case List:
		for _, item := range v {
			flattenInto(item, out)
		}
	case Map:
		for _, k := range sortedKeys(v) {
			flattenInto(v[k], out)
		}
	}
}

// Plain casts every leaf to its string form while keeping container shape:
// Path becomes string, List becomes []any and Map becomes map[string]any.
func Plain(n Node) any {
	switch v := n.(type) {
	case Path:
		return string(v)
	case List:
		out := make([]any, 0, len(v))
		for _, item := range v {
			out = append(out, Plain(item))
		}
		return out
	case Map:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = Plain(item)
		}
		return out
	default:
		return nil
	}
}

// Merge copies every entry of src into dst, overwriting existing keys.
func (m Map) Merge(src Map) {
	for k, v := range src {
		m[k] = v
	}
}

// Keys returns the map keys in sorted order.
func (m Map) Keys() []string { return sortedKeys(m) }

func sortedKeys(m Map) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SortPaths sorts paths lexicographically in place and returns them.
func SortPaths(ps []Path) []Path {
	sort.Slice(ps, func(i, j int) bool { return ps[i] < ps[j] })
	return ps
}
