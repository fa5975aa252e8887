// Package engine is the boundary to the external execution engine that
// schedules and runs emitted jobs.
package engine

import (
	"fmt"
	"sort"

	"jobweaver/internal/core"
)

// Engine accepts emitted targets. Implementations materialize or schedule
// them; nothing in this module runs job scripts itself.
//
// An engine that acts on a target as soon as it is received cannot take it
// back when a later target fails. Such engines should buffer until the
// manager commits (see manager.Committer) or drop what they hold on
// manager.Aborter.
type Engine interface {
	TargetFromTemplate(name string, target Target) error
}

// Target is a job template in the engine's exact representation: every path
// is a plain string and container shapes are preserved.
type Target struct {
	Name     string         `json:"name" yaml:"name"`
	Inputs   any            `json:"inputs" yaml:"inputs"`
	Outputs  map[string]any `json:"outputs" yaml:"outputs"`
	Options  core.Options   `json:"options" yaml:"options"`
	Spec     string         `json:"spec" yaml:"spec"`
	Executor string         `json:"executor,omitempty" yaml:"executor,omitempty"`

	// Depth is the longest chain of producers ahead of the target. It is
	// set once the graph has been validated and is not part of its identity.
	Depth int `json:"depth" yaml:"depth"`
}

// FromTemplate casts tpl into the engine representation under name.
func FromTemplate(name string, tpl *core.JobTemplate) Target {
	outputs := make(map[string]any, len(tpl.Outputs))
	for k, v := range tpl.Outputs {
		outputs[k] = core.Plain(v)
	}
	inputs := core.Plain(tpl.Inputs)
	if inputs == nil {
		inputs = []any{}
	}
	return Target{
		Name:     name,
		Inputs:   inputs,
		Outputs:  outputs,
		Options:  tpl.Options,
		Spec:     tpl.Spec,
		Executor: tpl.Executor,
	}
}

// FlatInputs returns every input path string.
func (t Target) FlatInputs() []string { return flattenPlain(t.Inputs) }

// FlatOutputs returns every output path string.
func (t Target) FlatOutputs() []string {
	out := []string{}
	keys := make([]string, 0, len(t.Outputs))
	for k := range t.Outputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, flattenPlain(t.Outputs[k])...)
	}
	return out
}

func flattenPlain(v any) []string {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return []string{x}
	case []any:
		var out []string
		for _, item := range x {
			out = append(out, flattenPlain(item)...)
		}
		return out
	case []string:
		return append([]string(nil), x...)
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var out []string
		for _, k := range keys {
			out = append(out, flattenPlain(x[k])...)
		}
		return out
	default:
		return []string{fmt.Sprint(x)}
	}
}
