package pipeline

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"jobweaver/internal/cache"
	"jobweaver/internal/config"
	"jobweaver/internal/core"
	"jobweaver/internal/executor"
	"jobweaver/internal/manager"
	"jobweaver/internal/sample"
	"jobweaver/internal/scratch"
)

// Env holds what a pipeline run reads from.
type Env struct {
	Manager   *manager.Manager
	Samples   *sample.List
	Docs      *config.Documents
	Executors *executor.Registry
}

// Run submits every step to env.Manager, in step order. It does not execute
// the manager.
func Run(ctx context.Context, p *Pipeline, env Env) error {
	if env.Manager == nil {
		return fmt.Errorf("%w: manager is required", cache.ErrConfiguration)
	}
	if env.Docs == nil {
		env.Docs = &config.Documents{}
	}
	if env.Samples == nil {
		empty, err := sample.NewList()
		if err != nil {
			return err
		}
		env.Samples = empty
	}

	r := &renderer{m: env.Manager, docs: env.Docs, steps: make(map[string]*Step, len(p.Steps))}
	for i := range p.Steps {
		r.steps[p.Steps[i].Name] = &p.Steps[i]
	}

	for i := range p.Steps {
		step := &p.Steps[i]
		if step.Executor != "" {
			if env.Executors == nil {
				return fmt.Errorf("step %s: %w: %q", step.Name, executor.ErrUnknownExecutor, step.Executor)
			}
			if _, err := env.Executors.Get(step.Executor); err != nil {
				return fmt.Errorf("step %s: %w", step.Name, err)
			}
		}
		if err := r.runStep(ctx, step, env.Samples); err != nil {
			return fmt.Errorf("step %s: %w", step.Name, err)
		}
	}
	return nil
}

func (r *renderer) runStep(ctx context.Context, step *Step, samples *sample.List) error {
	if !step.PerSample {
		return r.invoke(ctx, step, nil)
	}
	if len(step.When) > 0 {
		samples = samples.SubsetByMetadata(step.When)
	}
	r.m.Logger().Debug("Submitting per-sample step",
		zap.String("step", step.Name),
		zap.Int("samples", samples.Len()))
	for _, s := range samples.Samples() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.invoke(ctx, step, s); err != nil {
			return fmt.Errorf("sample %s: %w", s.Name(), err)
		}
	}
	return nil
}

func (r *renderer) invoke(ctx context.Context, step *Step, s *sample.Sample) error {
	build := scratch.Producer[*sample.Sample](func(s *sample.Sample) (*core.JobTemplate, error) {
		return r.jobTemplate(step, s)
	})
	switch step.Scratch {
	case ScratchNone:
	case ScratchAuto:
		build = scratch.WorkDir(step.Name, build)
	default:
		build = scratch.Custom(step.Scratch, build)
	}

	name := step.Name
	if s != nil {
		name = step.Name + "_" + s.Name()
	}

	produce := func(_ context.Context, call *cache.Call) (core.Node, error) {
		tpl, err := build(s)
		if err != nil {
			return nil, err
		}
		submitted, err := call.Manager.Submit(name, tpl, call.TaskID)
		if err != nil {
			return nil, err
		}
		return submitted.Outputs, nil
	}

	call := &cache.Call{Manager: r.m}
	if s != nil {
		call.Args = append(call.Args, cache.Arg{Name: "sample", Value: s})
	}

	if step.Cache {
		_, err := cache.Guard(step.Name, produce)(ctx, call)
		return err
	}

	out, err := produce(ctx, call)
	if err != nil {
		return err
	}
	r.m.UpdateTaskOutput(r.taskID(step.Name, s), out.(core.Map))
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
