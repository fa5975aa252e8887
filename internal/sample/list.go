package sample

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// List is an ordered collection of samples with unique names.
type List struct {
	samples []*Sample
	byName  map[string]*Sample
}

// NewList rejects duplicate names.
func NewList(samples ...*Sample) (*List, error) {
	l := &List{byName: make(map[string]*Sample, len(samples))}
	for _, s := range samples {
		if err := l.Append(s); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Append adds s at the end of the list.
func (l *List) Append(s *Sample) error {
	if _, dup := l.byName[s.Name()]; dup {
		return fmt.Errorf("%w: duplicate sample name %q", ErrInvalidSample, s.Name())
	}
	l.byName[s.Name()] = s
	l.samples = append(l.samples, s)
	return nil
}

func (l *List) Len() int { return len(l.samples) }

// Samples returns the samples in list order.
func (l *List) Samples() []*Sample { return append([]*Sample(nil), l.samples...) }

func (l *List) Get(name string) (*Sample, bool) {
	s, ok := l.byName[name]
	return s, ok
}

// Names returns the sample names in list order.
func (l *List) Names() []string {
	out := make([]string, 0, len(l.samples))
	for _, s := range l.samples {
		out = append(out, s.Name())
	}
	return out
}

// SubsetByNames returns the named samples in the order given.
func (l *List) SubsetByNames(names ...string) (*List, error) {
	out := &List{byName: make(map[string]*Sample, len(names))}
	for _, n := range names {
		s, ok := l.byName[n]
		if !ok {
			return nil, fmt.Errorf("%w: unknown sample %q", ErrInvalidSample, n)
		}
		if err := out.Append(s); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// SubsetByMetadata returns the samples carrying every key/value in match.
func (l *List) SubsetByMetadata(match Metadata) *List {
	out := &List{byName: make(map[string]*Sample)}
	for _, s := range l.samples {
		keep := true
		for k, v := range match {
			if got, ok := s.Metadata(k); !ok || got != v {
				keep = false
				break
			}
		}
		if keep {
			_ = out.Append(s)
		}
	}
	return out
}

// Digest is a SHA-256 over the sample digests in name order.
func (l *List) Digest() string {
	sorted := l.Samples()
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name() < sorted[j].Name() })
	h := sha256.New()
	for _, s := range sorted {
		h.Write([]byte(s.Digest()))
	}
	return hex.EncodeToString(h.Sum(nil))
}
