// Package cache decides whether the jobs of a task can be left out of the
// next build.
//
// A guarded producer is always called. Its fingerprinted arguments and the
// output paths it returns make up the task digest; when that digest matches
// the one a previous build persisted, the task is marked as not to be
// submitted. A bookkeeping job that writes the new digest is submitted in
// either case.
package cache

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"jobweaver/internal/core"
	"jobweaver/internal/manager"
	"jobweaver/internal/trace"
)

// Arg is a named producer argument.
type Arg struct {
	Name  string
	Value any
}

// Call carries the arguments of one producer invocation.
type Call struct {
	// Manager receives the producer's submissions. When nil, the first
	// argument holding a *manager.Manager is used.
	Manager *manager.Manager

	// Args are the named arguments in call order.
	Args []Arg

	// TaskID is set by Guard before the wrapped producer runs.
	TaskID string
}

// Arg returns the value of the named argument.
func (c *Call) Arg(name string) (any, bool) {
	for _, a := range c.Args {
		if a.Name == name {
			return a.Value, true
		}
	}
	return nil, false
}

// Fingerprints returns every fingerprinted argument in call order.
func (c *Call) Fingerprints() []core.Fingerprinter {
	var out []core.Fingerprinter
	for _, a := range c.Args {
		if fp, ok := a.Value.(core.Fingerprinter); ok {
			out = append(out, fp)
		}
	}
	return out
}

func (c *Call) manager() *manager.Manager {
	if c.Manager != nil {
		return c.Manager
	}
	for _, a := range c.Args {
		if m, ok := a.Value.(*manager.Manager); ok && m != nil {
			return m
		}
	}
	return nil
}

// Producer submits jobs through the call's manager and returns the outputs it
// publishes. The result must be a core.Map or nil.
type Producer func(ctx context.Context, call *Call) (core.Node, error)

// Guard wraps fn so that its task is skipped when nothing it depends on has
// changed since the previous build. name identifies the producer and is the
// first part of the task id.
func Guard(name string, fn Producer) Producer {
	return func(ctx context.Context, call *Call) (core.Node, error) {
		if call == nil {
			return nil, fmt.Errorf("%w: %s called without arguments", ErrConfiguration, name)
		}
		m := call.manager()
		if m == nil {
			return nil, fmt.Errorf("%w: %s requires a manager argument", ErrConfiguration, name)
		}

		fingerprints := call.Fingerprints()
		taskID := TaskID(name, fingerprints)
		log := m.Logger().With(zap.String("task_id", taskID))

		store := NewDigestStore(m.Fs())
		digestFile, err := m.OutputFile(true, "cache", taskID+".digest")
		if err != nil {
			return nil, err
		}
		prior, hasPrior, err := store.Load(taskID)
		if err != nil {
			return nil, err
		}

		m.EnsureTask(taskID)
		inner := *call
		inner.Manager = m
		inner.TaskID = taskID

		result, err := fn(ctx, &inner)
		if err != nil {
			return nil, err
		}
		outputs, err := asOutputs(taskID, result)
		if err != nil {
			return nil, err
		}

		digest := ComputeDigest(fingerprints, outputs)
		switch {
		case hasPrior && digest == prior:
			m.SkipTask(taskID)
			log.Debug("Task is up to date")
			m.Record(trace.Event{Kind: trace.EventTaskCached, TaskID: taskID, Reason: trace.ReasonDigestMatched})
		case hasPrior:
			log.Debug("Task digest changed")
			m.Record(trace.Event{Kind: trace.EventTaskInvalidated, TaskID: taskID, Reason: trace.ReasonDigestChanged})
		default:
			log.Debug("Task has no prior digest")
			m.Record(trace.Event{Kind: trace.EventTaskInvalidated, TaskID: taskID, Reason: trace.ReasonNoDigest})
		}

		tpl := digestJob(m.TaskTargets(taskID), digest, digestFile)
		if _, err := m.Submit("task_"+taskID, tpl, manager.NoTask); err != nil {
			return nil, err
		}

		m.UpdateTaskOutput(taskID, outputs)
		return result, nil
	}
}

// TaskID derives the task id from the producer name and the first
// fingerprinted argument.
func TaskID(name string, fingerprints []core.Fingerprinter) string {
	if len(fingerprints) == 0 {
		return name
	}
	return name + "_" + fingerprints[0].Name()
}

func asOutputs(taskID string, result core.Node) (core.Map, error) {
	switch v := result.(type) {
	case nil:
		return core.Map{}, nil
	case core.Map:
		if v == nil {
			return core.Map{}, nil
		}
		return v, nil
	default:
		return nil, &TaskOutputError{TaskID: taskID, Got: fmt.Sprintf("%T", result)}
	}
}

// digestJob writes the task digest once every job of the task is done. It
// waits on the task's terminal outputs, those no job of the task consumes,
// and on everything the task publishes under output.
func digestJob(targets []*core.JobTemplate, digest string, file core.Path) *core.JobTemplate {
	consumed := make(map[core.Path]struct{})
	var outs []core.Path
	for _, t := range targets {
		for _, p := range core.Flatten(t.Inputs) {
			consumed[p] = struct{}{}
		}
		outs = append(outs, core.Flatten(t.Outputs)...)
	}

	set := make(map[core.Path]struct{})
	for _, p := range outs {
		if _, ok := consumed[p]; !ok || p.Under(manager.OutputRoot) {
			set[p] = struct{}{}
		}
	}

	inputs := make([]string, 0, len(set))
	for p := range set {
		inputs = append(inputs, string(p))
	}
	sort.Strings(inputs)

	return &core.JobTemplate{
		Inputs:  core.Paths(inputs...),
		Outputs: core.Map{"digest_file": file},
		Options: core.DefaultOptions,
		Spec:    fmt.Sprintf("echo '%s' > %s", digest, file),
	}
}
