// Package sample models sequenced samples. A Sample's digest covers the read
// groups of its data, so a new lane or library invalidates every cached task
// of that sample.
package sample

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"jobweaver/internal/core"
)

var ErrInvalidSample = errors.New("invalid sample")

// ReadGroup is the SAM read group of one Data entry.
type ReadGroup struct {
	ID string
	SM string
	LB string
	PU string
	PL string
}

// String renders the read group as a header line body. With escapeTab the
// separators are written as a literal backslash-t, ready to be embedded in a
// shell argument.
func (rg ReadGroup) String(escapeTab bool) string {
	sep := "\t"
	if escapeTab {
		sep = `\t`
	}
	return strings.Join([]string{
		"ID:" + rg.ID,
		"SM:" + rg.SM,
		"LB:" + rg.LB,
		"PU:" + rg.PU,
		"PL:" + rg.PL,
	}, sep)
}

type Metadata map[string]string

// Sample is a named set of sequencing data.
type Sample struct {
	name     string
	data     []Data
	metadata Metadata
}

// New validates its arguments and returns a Sample. At least one Data entry
// is required.
func New(name string, data []Data, metadata Metadata) (*Sample, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidSample)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: sample %q must have at least one sequencing data entry", ErrInvalidSample, name)
	}
	for _, d := range data {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("sample %q: %w", name, err)
		}
	}
	md := make(Metadata, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	return &Sample{name: name, data: append([]Data(nil), data...), metadata: md}, nil
}

func (s *Sample) Name() string { return s.name }

// LegalName is the name as the execution engine accepts it in target names.
func (s *Sample) LegalName() string { return core.Legalize(s.name) }

func (s *Sample) Data() []Data { return append([]Data(nil), s.data...) }

// DataOfKind returns the entries of the given layouts.
func (s *Sample) DataOfKind(kinds ...Kind) []Data {
	var out []Data
	for _, d := range s.data {
		for _, k := range kinds {
			if d.Kind() == k {
				out = append(out, d)
				break
			}
		}
	}
	return out
}

// Metadata returns one metadata value.
func (s *Sample) Metadata(key string) (string, bool) {
	v, ok := s.metadata[key]
	return v, ok
}

// ReadGroup derives the read group of one of the sample's entries.
func (s *Sample) ReadGroup(d Data) ReadGroup {
	r := d.RunInfo()
	return ReadGroup{
		ID: fmt.Sprintf("%s.%s.%s.%s", s.name, r.Library, r.Flowcell, r.Lane),
		SM: s.name,
		LB: r.Library,
		PU: r.Flowcell + "." + r.Lane,
		PL: r.Technology,
	}
}

// ReadGroups returns the read group of every entry, in entry order.
func (s *Sample) ReadGroups() []ReadGroup {
	out := make([]ReadGroup, 0, len(s.data))
	for _, d := range s.data {
		out = append(out, s.ReadGroup(d))
	}
	return out
}

// Digest is a SHA-256 over the sorted, distinct read group ids.
func (s *Sample) Digest() string {
	seen := make(map[string]struct{}, len(s.data))
	ids := make([]string, 0, len(s.data))
	for _, rg := range s.ReadGroups() {
		if _, dup := seen[rg.ID]; dup {
			continue
		}
		seen[rg.ID] = struct{}{}
		ids = append(ids, rg.ID)
	}
	sort.Strings(ids)

	h := sha256.New()
	for _, id := range ids {
		h.Write([]byte(id))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// OutputFile returns output/samples/<name>/<parts...>.
func (s *Sample) OutputFile(parts ...string) core.Path {
	return core.Path(path.Join(append([]string{"output", "samples", s.name}, parts...)...))
}

// TempFile returns temp/samples/<name>/<parts...>.
func (s *Sample) TempFile(parts ...string) core.Path {
	return core.Path(path.Join(append([]string{"temp", "samples", s.name}, parts...)...))
}
