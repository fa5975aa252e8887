// Package pipeline turns a declarative list of steps into job submissions.
//
// Steps are rendered with text/template. Per-sample steps run once for every
// sample; cached steps go through cache.Guard; scratch steps have their
// script rewritten by the scratch package.
package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"jobweaver/internal/core"
)

var ErrInvalidPipeline = errors.New("invalid pipeline")

// Scratch modes besides an explicit path template.
const (
	ScratchNone = ""
	ScratchAuto = "auto"
)

// Pipeline is an ordered list of steps.
type Pipeline struct {
	Steps []Step `yaml:"steps"`
}

// Step describes one job, or one job per sample.
type Step struct {
	Name      string `yaml:"name"`
	PerSample bool   `yaml:"per_sample"`
	Cache     bool   `yaml:"cache"`

	// Scratch is ScratchNone, ScratchAuto or a scratch path template.
	Scratch string `yaml:"scratch"`

	// Executor names a registered environment.
	Executor string `yaml:"executor"`

	// Resources is a key in the resources document whose value provides
	// default options.
	Resources string       `yaml:"resources"`
	Options   core.Options `yaml:"options"`

	// When restricts a per-sample step to samples with this metadata.
	When map[string]string `yaml:"when"`

	// Inputs are templates; each renders to one or more whitespace-separated
	// paths.
	Inputs []string `yaml:"inputs"`

	// Outputs are templates rendering to one path each.
	Outputs map[string]string `yaml:"outputs"`

	Spec string `yaml:"spec"`
}

// Load reads a pipeline file. Unknown fields are rejected.
func Load(fs afero.Fs, path string) (*Pipeline, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline: %w", err)
	}
	p, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes and validates a pipeline document.
func Parse(raw []byte) (*Pipeline, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var p Pipeline
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPipeline, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks step names and shapes.
func (p *Pipeline) Validate() error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidPipeline)
	}
	seen := make(map[string]struct{}, len(p.Steps))
	for i, s := range p.Steps {
		if s.Name == "" {
			return fmt.Errorf("%w: steps[%d].name is required", ErrInvalidPipeline, i)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("%w: duplicate step name %q", ErrInvalidPipeline, s.Name)
		}
		seen[s.Name] = struct{}{}
		if s.Spec == "" {
			return fmt.Errorf("%w: step %q has no spec", ErrInvalidPipeline, s.Name)
		}
		if len(s.When) > 0 && !s.PerSample {
			return fmt.Errorf("%w: step %q uses when without per_sample", ErrInvalidPipeline, s.Name)
		}
		if err := s.Options.Validate(); err != nil {
			return fmt.Errorf("%w: step %q: %v", ErrInvalidPipeline, s.Name, err)
		}
	}
	return nil
}
