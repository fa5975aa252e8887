package manager

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"jobweaver/internal/core"
	"jobweaver/internal/engine"
	"jobweaver/internal/graph"
	"jobweaver/internal/trace"
)

// CleanUpName is the target name of the synthesized clean-up job.
const CleanUpName = "clean_up"

// Committer is implemented by engines that buffer emitted targets and persist
// them in one step once the whole graph has been handed over.
type Committer interface {
	Commit(graphHash string) error
}

// Aborter is implemented by engines that can drop the targets handed over by
// an Execute that failed partway.
type Aborter interface {
	Abort()
}

// Execute emits the graph to the engine. It may be called once.
//
// Targets of tasks that must run are always emitted. Targets only reachable
// through skipped tasks are left out, unless they are shared with a task that
// must run. Free-standing targets are always emitted. Emission happens in
// registration order, followed by the clean-up job.
//
// The full set of targets is validated as a graph before the engine sees the
// first one, so a failing Execute emits nothing.
func (m *Manager) Execute(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.executed {
		return ErrAlreadyExecuted
	}
	m.executed = true

	mustRun := make(map[*core.JobTemplate]struct{})
	skip := make(map[*core.JobTemplate]struct{})
	inTask := make(map[*core.JobTemplate]struct{})
	for _, id := range m.taskOrder {
		t := m.tasks[id]
		dest := mustRun
		if !t.shouldSubmit {
			dest = skip
		}
		for _, tpl := range t.targets {
			dest[tpl] = struct{}{}
			inTask[tpl] = struct{}{}
		}
	}
	for tpl := range mustRun {
		delete(skip, tpl)
	}

	var (
		emit      []engine.Target
		freeOuts  []core.Path
		skipCount int
	)
	for _, name := range m.order {
		tpl := m.targets[name]
		if _, ok := skip[tpl]; ok {
			skipCount++
			m.logger.Debug("Skipping target", zap.String("target", name))
			trace.SafeRecord(m.sink, trace.Event{
				Kind:   trace.EventTargetSkipped,
				Target: name,
				Reason: trace.ReasonDigestMatched,
			})
			continue
		}
		if _, ok := inTask[tpl]; !ok {
			freeOuts = append(freeOuts, core.Flatten(tpl.Outputs)...)
		}
		emit = append(emit, engine.FromTemplate(core.Legalize(name), tpl))
	}

	if m.cleanUp {
		cleanup, err := m.cleanUpTemplate(freeOuts)
		if err != nil {
			return err
		}
		emit = append(emit, engine.FromTemplate(CleanUpName, cleanup))
	}

	g, err := graph.Build(emit)
	if err != nil {
		return fmt.Errorf("validate graph: %w", err)
	}
	m.graphHash = g.Hash().String()
	for i := range emit {
		emit[i].Depth, _ = g.Depth(emit[i].Name)
	}

	for _, t := range emit {
		if err := ctx.Err(); err != nil {
			m.abort()
			return err
		}
		if err := m.engine.TargetFromTemplate(t.Name, t); err != nil {
			m.abort()
			return fmt.Errorf("emit target %s: %w", t.Name, err)
		}
		ev := trace.Event{Kind: trace.EventTargetEmitted, Target: t.Name}
		if m.cleanUp && t.Name == CleanUpName {
			ev = trace.Event{Kind: trace.EventCleanupEmitted, Target: t.Name, Paths: t.FlatInputs()}
		}
		trace.SafeRecord(m.sink, ev)
	}

	if c, ok := m.engine.(Committer); ok {
		if err := c.Commit(m.graphHash); err != nil {
			m.abort()
			return fmt.Errorf("commit workflow: %w", err)
		}
	}

	m.logger.Info("Emitted job graph",
		zap.Int("emitted", len(emit)),
		zap.Int("skipped", skipCount),
		zap.String("graph_hash", m.graphHash))
	return nil
}

func (m *Manager) abort() {
	if a, ok := m.engine.(Aborter); ok {
		a.Abort()
	}
	m.logger.Warn("Emission aborted")
}

// cleanUpTemplate builds the job that runs after every free-standing job and
// removes the ephemeral directories.
func (m *Manager) cleanUpTemplate(inputs []core.Path) (*core.JobTemplate, error) {
	flag, err := m.namespaced(OutputRoot, true, true, []string{"flags", "done.flag"})
	if err != nil {
		return nil, err
	}

	seen := make(map[core.Path]struct{}, len(inputs))
	in := make(core.List, 0, len(inputs))
	for _, p := range core.SortPaths(append([]core.Path(nil), inputs...)) {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		in = append(in, p)
	}

	spec := strings.Join([]string{
		"rm -rf " + TempRoot,
		"rm -rf " + ScratchRoot,
		fmt.Sprintf("date > %s", flag),
	}, "\n")

	return &core.JobTemplate{
		Inputs:  in,
		Outputs: core.Map{"done_flag": flag},
		Options: core.DefaultOptions,
		Spec:    spec,
	}, nil
}
