package pipeline

import (
	"fmt"
	"path"
	"strings"
	"text/template"

	"jobweaver/internal/cache"
	"jobweaver/internal/config"
	"jobweaver/internal/core"
	"jobweaver/internal/manager"
	"jobweaver/internal/sample"
)

// scope is the data templates are executed with.
type scope struct {
	Step    string
	Sample  *sample.Sample
	Params  config.Document
	Inputs  []string
	Outputs map[string]string
}

type renderer struct {
	m     *manager.Manager
	docs  *config.Documents
	steps map[string]*Step
}

func (r *renderer) funcs(s *sample.Sample) template.FuncMap {
	needSample := func(fn string) error {
		if s == nil {
			return fmt.Errorf("%s is only available in per-sample steps", fn)
		}
		return nil
	}
	return template.FuncMap{
		"output": func(parts ...string) (string, error) {
			p, err := r.m.OutputFile(true, parts...)
			return string(p), err
		},
		"temp": func(parts ...string) (string, error) {
			p, err := r.m.TempFile(true, parts...)
			return string(p), err
		},
		"sampleOutput": func(parts ...string) (string, error) {
			if err := needSample("sampleOutput"); err != nil {
				return "", err
			}
			return r.mkdirParent(s.OutputFile(parts...))
		},
		"sampleTemp": func(parts ...string) (string, error) {
			if err := needSample("sampleTemp"); err != nil {
				return "", err
			}
			return r.mkdirParent(s.TempFile(parts...))
		},
		"taskOutput": func(step, key string) (string, error) {
			node, err := r.m.TaskOutput(r.taskID(step, s), key)
			if err != nil {
				return "", err
			}
			return joinPaths(node), nil
		},
		"param": func(keys ...string) (any, error) {
			return r.docs.Parameters.GetIn(keys...)
		},
		"ref": func(keys ...string) (string, error) {
			return r.docs.Reference.GetString(keys...)
		},
		"readGroup": func(i int) (string, error) {
			if err := needSample("readGroup"); err != nil {
				return "", err
			}
			data := s.Data()
			if i < 0 || i >= len(data) {
				return "", fmt.Errorf("sample %q has no data entry %d", s.Name(), i)
			}
			return s.ReadGroup(data[i]).String(true), nil
		},
		"reads": func() (string, error) {
			if err := needSample("reads"); err != nil {
				return "", err
			}
			var files []string
			for _, d := range s.Data() {
				files = append(files, d.Files()...)
			}
			return strings.Join(files, " "), nil
		},
		"join": strings.Join,
	}
}

func (r *renderer) mkdirParent(p core.Path) (string, error) {
	if err := r.m.Fs().MkdirAll(path.Dir(string(p)), 0o755); err != nil {
		return "", fmt.Errorf("create directory for %s: %w", p, err)
	}
	return string(p), nil
}

// taskID is the task a step's outputs are recorded under for sample s.
func (r *renderer) taskID(step string, s *sample.Sample) string {
	if st, ok := r.steps[step]; ok && st.PerSample && s != nil {
		return cache.TaskID(step, []core.Fingerprinter{s})
	}
	return step
}

func (r *renderer) render(name, src string, s *sample.Sample, data scope) (string, error) {
	tmpl, err := template.New(name).Funcs(r.funcs(s)).Option("missingkey=error").Parse(src)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", name, err)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return b.String(), nil
}

// jobTemplate renders step for sample s, which is nil for cohort steps.
func (r *renderer) jobTemplate(step *Step, s *sample.Sample) (*core.JobTemplate, error) {
	data := scope{Step: step.Name, Sample: s, Params: r.docs.Parameters}

	inputs := core.List{}
	for i, src := range step.Inputs {
		out, err := r.render(fmt.Sprintf("inputs[%d]", i), src, s, data)
		if err != nil {
			return nil, err
		}
		for _, p := range strings.Fields(out) {
			inputs = append(inputs, core.Path(p))
			data.Inputs = append(data.Inputs, p)
		}
	}

	outputs := core.Map{}
	data.Outputs = make(map[string]string, len(step.Outputs))
	for _, key := range sortedKeys(step.Outputs) {
		out, err := r.render("outputs."+key, step.Outputs[key], s, data)
		if err != nil {
			return nil, err
		}
		out = strings.TrimSpace(out)
		if out == "" || strings.ContainsAny(out, " \t\n") {
			return nil, fmt.Errorf("output %q must render to exactly one path, got %q", key, out)
		}
		outputs[key] = core.Path(out)
		data.Outputs[key] = out
	}

	spec, err := r.render("spec", step.Spec, s, data)
	if err != nil {
		return nil, err
	}

	opts, err := r.options(step)
	if err != nil {
		return nil, err
	}

	return &core.JobTemplate{
		Inputs:   inputs,
		Outputs:  outputs,
		Options:  opts,
		Spec:     strings.TrimSpace(spec),
		Executor: step.Executor,
	}, nil
}

// options layers the step's own options over its resources entry and the
// defaults.
func (r *renderer) options(step *Step) (core.Options, error) {
	var o core.Options
	if step.Resources != "" {
		if err := r.docs.Resources.Decode(&o, step.Resources); err != nil {
			return core.Options{}, err
		}
	}
	if step.Options.Cores != 0 {
		o.Cores = step.Options.Cores
	}
	if step.Options.Memory != "" {
		o.Memory = step.Options.Memory
	}
	if step.Options.Walltime != "" {
		o.Walltime = step.Options.Walltime
	}
	o = o.WithDefaults()
	if err := o.Validate(); err != nil {
		return core.Options{}, err
	}
	return o, nil
}

func joinPaths(n core.Node) string {
	paths := core.Flatten(n)
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = string(p)
	}
	return strings.Join(out, " ")
}
