// Package core defines the domain models for incremental job-graph construction.
package core

import (
	"fmt"
	"regexp"
	"strings"
)

// JobTemplate is a unit of work handed to the execution engine.
//
// Two templates registered under the same name must carry byte-identical
// specs. Outside of script rewriting by wrappers, a template is not mutated
// after it has been submitted.
type JobTemplate struct {
	// Inputs are the paths the job reads. Any nesting is allowed.
	Inputs Node `json:"inputs" yaml:"inputs"`

	// Outputs maps output names to the paths the job produces.
	Outputs Map `json:"outputs" yaml:"outputs"`

	// Options are opaque resource hints passed through to the engine.
	Options Options `json:"options" yaml:"options"`

	// Spec is the job's shell script body.
	Spec string `json:"spec" yaml:"spec"`

	// Executor optionally names the environment the engine runs Spec in.
	Executor string `json:"executor,omitempty" yaml:"executor,omitempty"`
}

// Options are resource hints. They are not enforced here.
type Options struct {
	Cores    int    `json:"cores" yaml:"cores" mapstructure:"cores"`
	Memory   string `json:"memory" yaml:"memory" mapstructure:"memory"`
	Walltime string `json:"walltime" yaml:"walltime" mapstructure:"walltime"`
}

// DefaultOptions is used for synthesized bookkeeping jobs.
var DefaultOptions = Options{Cores: 1, Memory: "1g", Walltime: "01:00:00"}

var walltimePattern = regexp.MustCompile(`^\d+:[0-5]\d:[0-5]\d$`)

// Validate checks the option shapes the engine relies on.
func (o Options) Validate() error {
	if o.Cores < 0 {
		return fmt.Errorf("cores must not be negative (got %d)", o.Cores)
	}
	if o.Walltime != "" && !walltimePattern.MatchString(o.Walltime) {
		return fmt.Errorf("walltime must be HH:MM:SS (got %q)", o.Walltime)
	}
	return nil
}

// WithDefaults fills zero-valued options from DefaultOptions.
func (o Options) WithDefaults() Options {
	if o.Cores == 0 {
		o.Cores = DefaultOptions.Cores
	}
	if o.Memory == "" {
		o.Memory = DefaultOptions.Memory
	}
	if o.Walltime == "" {
		o.Walltime = DefaultOptions.Walltime
	}
	return o
}

// Fingerprinter is implemented by values whose content identity feeds task
// digests, such as samples.
type Fingerprinter interface {
	Name() string
	Digest() string
}

// Legalize rewrites a target name into the character set the execution
// engine accepts.
func Legalize(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}
