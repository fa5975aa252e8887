package sample

import (
	"fmt"
	"sort"
	"strings"
)

// Schema restricts metadata values per key. Keys without a rule accept any
// value. A Schema is built once and not modified afterwards.
type Schema struct {
	allowed map[string]map[string]struct{}
}

// NewSchema copies rules into a Schema.
func NewSchema(rules map[string][]string) Schema {
	allowed := make(map[string]map[string]struct{}, len(rules))
	for k, vs := range rules {
		set := make(map[string]struct{}, len(vs))
		for _, v := range vs {
			set[v] = struct{}{}
		}
		allowed[k] = set
	}
	return Schema{allowed: allowed}
}

// Allowed returns the sorted values accepted for key.
func (s Schema) Allowed(key string) ([]string, bool) {
	set, ok := s.allowed[key]
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, true
}

// Validate checks every constrained key of md.
func (s Schema) Validate(md Metadata) error {
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		set, ok := s.allowed[k]
		if !ok {
			continue
		}
		if _, ok := set[md[k]]; !ok {
			valid, _ := s.Allowed(k)
			return fmt.Errorf("%w: invalid value %q for metadata key %q, valid options are: %s",
				ErrInvalidSample, md[k], k, strings.Join(valid, ", "))
		}
	}
	return nil
}
