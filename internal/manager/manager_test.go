package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobweaver/internal/core"
	"jobweaver/internal/engine"
	"jobweaver/internal/graph"
	"jobweaver/internal/trace"
)

func newTestManager(t *testing.T, opts ...Option) (*Manager, *engine.Recorder, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	rec := engine.NewRecorder()
	m := New(rec, append([]Option{WithFs(fs)}, opts...)...)
	return m, rec, fs
}

func job(spec string, inputs core.Node, outputs core.Map) *core.JobTemplate {
	return &core.JobTemplate{Inputs: inputs, Outputs: outputs, Options: core.DefaultOptions, Spec: spec}
}

func TestSubmit_SameSpecReturnsCanonicalInstance(t *testing.T) {
	m, _, _ := newTestManager(t)

	first, err := m.Submit("index", job("index ref", nil, core.Map{"fai": core.Path("output/ref.fai")}), "align_s1")
	require.NoError(t, err)
	second, err := m.Submit("index", job("index ref", nil, core.Map{"fai": core.Path("output/ref.fai")}), "align_s2")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, []*core.JobTemplate{first}, m.TaskTargets("align_s1"))
	assert.Equal(t, []*core.JobTemplate{first}, m.TaskTargets("align_s2"))
	assert.Equal(t, []string{"index"}, m.TargetNames())
}

func TestSubmit_DifferingSpecFails(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, err := m.Submit("index", job("index ref", nil, nil), NoTask)
	require.NoError(t, err)
	_, err = m.Submit("index", job("index other", nil, nil), "t1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateTarget))
	var dup *DuplicateTargetError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "index", dup.Name)
	assert.Equal(t, "t1", dup.TaskID)
}

func TestSubmit_SameTaskTwiceKeepsIdentitySet(t *testing.T) {
	m, _, _ := newTestManager(t)
	tpl := job("x", nil, nil)

	_, err := m.Submit("x", tpl, "t")
	require.NoError(t, err)
	_, err = m.Submit("x", job("x", nil, nil), "t")
	require.NoError(t, err)

	assert.Len(t, m.TaskTargets("t"), 1)
}

func TestSubmit_RejectsInvalidAndLateSubmissions(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, err := m.Submit("", job("x", nil, nil), NoTask)
	assert.ErrorIs(t, err, ErrInvalidSubmission)
	_, err = m.Submit("x", nil, NoTask)
	assert.ErrorIs(t, err, ErrInvalidSubmission)

	require.NoError(t, m.Execute(context.Background()))
	_, err = m.Submit("late", job("x", nil, nil), NoTask)
	assert.ErrorIs(t, err, ErrAlreadyExecuted)
	assert.ErrorIs(t, m.Execute(context.Background()), ErrAlreadyExecuted)
}

func TestSkipTask_IsOneWay(t *testing.T) {
	m, _, _ := newTestManager(t)

	assert.True(t, m.ShouldSubmit("t"), "unknown tasks must run")
	m.EnsureTask("t")
	assert.True(t, m.ShouldSubmit("t"))
	m.SkipTask("t")
	m.SkipTask("t")
	assert.False(t, m.ShouldSubmit("t"))
}

func TestTaskOutputs(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, err := m.TaskOutput("nope", "bam")
	assert.ErrorIs(t, err, ErrTaskNotFound)

	m.UpdateTaskOutput("t", core.Map{"bam": core.Path("output/a.bam"), "bai": core.Path("output/a.bai")})
	m.UpdateTaskOutput("t", core.Map{"bam": core.Path("output/b.bam")})

	got, err := m.TaskOutput("t", "bam")
	require.NoError(t, err)
	assert.Equal(t, core.Path("output/b.bam"), got)

	_, err = m.TaskOutput("t", "vcf")
	assert.ErrorIs(t, err, ErrOutputNotFound)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "vcf", nf.Key)

	all, err := m.TaskOutputs("t")
	require.NoError(t, err)
	assert.Equal(t, []string{"bai", "bam"}, all.Keys())
}

func TestExecute_SkipsCachedTasksButKeepsSharedTargets(t *testing.T) {
	rec := trace.NewRecorder()
	m, eng, _ := newTestManager(t, WithTrace(rec))

	shared := job("index ref", core.Paths("ref.fa"), core.Map{"fai": core.Path("output/ref.fai")})
	_, err := m.Submit("index", shared, "align_s1")
	require.NoError(t, err)
	_, err = m.Submit("align-s1", job("align s1", core.Paths("output/ref.fai"), core.Map{"bam": core.Path("output/s1.bam")}), "align_s1")
	require.NoError(t, err)
	_, err = m.Submit("index", job("index ref", core.Paths("ref.fa"), core.Map{"fai": core.Path("output/ref.fai")}), "align_s2")
	require.NoError(t, err)
	_, err = m.Submit("align-s2", job("align s2", core.Paths("output/ref.fai"), core.Map{"bam": core.Path("output/s2.bam")}), "align_s2")
	require.NoError(t, err)

	m.SkipTask("align_s1")
	require.NoError(t, m.Execute(context.Background()))

	assert.Equal(t, []string{"index", "align_s2", CleanUpName}, eng.Names())
	assert.NotEmpty(t, m.GraphHash())

	events := rec.Snapshot()
	require.NotEmpty(t, events)
	assert.Equal(t, trace.EventTargetSkipped, events[0].Kind)
	assert.Equal(t, "align-s1", events[0].Target)
}

func TestExecute_SkipsEveryTargetOfAFullyCachedTask(t *testing.T) {
	m, eng, _ := newTestManager(t)

	_, err := m.Submit("a", job("a", nil, core.Map{"o": core.Path("temp/a")}), "t")
	require.NoError(t, err)
	_, err = m.Submit("b", job("b", core.Paths("temp/a"), core.Map{"o": core.Path("output/b")}), "t")
	require.NoError(t, err)
	m.SkipTask("t")

	require.NoError(t, m.Execute(context.Background()))
	assert.Equal(t, []string{CleanUpName}, eng.Names())
}

func TestExecute_CleanUpConsumesFreeStandingOutputs(t *testing.T) {
	m, eng, fs := newTestManager(t)

	_, err := m.Submit("free-1", job("f1", nil, core.Map{"o": core.Paths("output/z", "output/y")}), NoTask)
	require.NoError(t, err)
	_, err = m.Submit("in-task", job("t", nil, core.Map{"o": core.Path("output/t")}), "t")
	require.NoError(t, err)
	_, err = m.Submit("free_2", job("f2", nil, core.Map{"o": core.Path("output/x")}), NoTask)
	require.NoError(t, err)

	require.NoError(t, m.Execute(context.Background()))

	names := eng.Names()
	assert.Equal(t, []string{"free_1", "in_task", "free_2", CleanUpName}, names)

	cleanup, ok := eng.Target(CleanUpName)
	require.True(t, ok)
	assert.Equal(t, []string{"output/x", "output/y", "output/z"}, cleanup.FlatInputs())
	assert.Equal(t, "output/flags/done.flag", cleanup.Outputs["done_flag"])
	assert.Equal(t, "rm -rf temp\nrm -rf scratch\ndate > output/flags/done.flag", cleanup.Spec)
	assert.Equal(t, core.DefaultOptions, cleanup.Options)

	isDir, err := afero.DirExists(fs, "output/flags")
	require.NoError(t, err)
	assert.True(t, isDir)
}

func TestExecute_CleanUpCanBeDisabled(t *testing.T) {
	m, eng, _ := newTestManager(t, WithCleanUp(false))

	_, err := m.Submit("a", job("a", nil, core.Map{"o": core.Path("output/a")}), NoTask)
	require.NoError(t, err)
	require.NoError(t, m.Execute(context.Background()))

	assert.Equal(t, []string{"a"}, eng.Names())
}

func TestExecute_InvalidGraphEmitsNothing(t *testing.T) {
	m, eng, _ := newTestManager(t)

	_, err := m.Submit("a", job("a", core.Paths("temp/b"), core.Map{"o": core.Path("temp/a")}), NoTask)
	require.NoError(t, err)
	_, err = m.Submit("b", job("b", core.Paths("temp/a"), core.Map{"o": core.Path("temp/b")}), NoTask)
	require.NoError(t, err)

	err = m.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, graph.ErrCycleFound)
	assert.Empty(t, eng.Names())
}

func TestExecute_WorkflowWriterIsCommitted(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := engine.NewWorkflowWriter(fs, "build/workflow.yaml")
	m := New(w, WithFs(fs))

	_, err := m.Submit("a", job("a", nil, core.Map{"o": core.Path("output/a")}), NoTask)
	require.NoError(t, err)
	require.NoError(t, m.Execute(context.Background()))

	doc, err := engine.ReadWorkflow(fs, "build/workflow.yaml")
	require.NoError(t, err)
	assert.Equal(t, m.GraphHash(), doc.GraphHash)
	require.Len(t, doc.Targets, 2)
	assert.Equal(t, "a", doc.Targets[0].Name)
	assert.Equal(t, 0, doc.Targets[0].Depth)
	assert.Equal(t, CleanUpName, doc.Targets[1].Name)
	assert.Equal(t, 1, doc.Targets[1].Depth)
}

// failingEngine records targets until it reaches failOn.
type failingEngine struct {
	*engine.Recorder
	failOn string
}

func (e failingEngine) TargetFromTemplate(name string, t engine.Target) error {
	if name == e.failOn {
		return errors.New("engine unavailable")
	}
	return e.Recorder.TargetFromTemplate(name, t)
}

func TestExecute_EngineFailureDropsEmittedTargets(t *testing.T) {
	rec := engine.NewRecorder()
	m := New(failingEngine{Recorder: rec, failOn: "b"}, WithFs(afero.NewMemMapFs()))

	_, err := m.Submit("a", job("a", nil, core.Map{"o": core.Path("output/a")}), NoTask)
	require.NoError(t, err)
	_, err = m.Submit("b", job("b", nil, core.Map{"o": core.Path("output/b")}), NoTask)
	require.NoError(t, err)

	err = m.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "emit target b")
	assert.Empty(t, rec.Names())
}

func TestSubmit_ConcurrentCallersShareOneInstance(t *testing.T) {
	m, _, _ := newTestManager(t)
	const workers = 16

	results := make([][]*core.JobTemplate, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			taskID := fmt.Sprintf("align_s%d", w)
			for i := 0; i < 5; i++ {
				name := fmt.Sprintf("index_%d", i)
				tpl, err := m.Submit(name, job("index "+name, nil, core.Map{"fai": core.Path("output/" + name)}), taskID)
				if err != nil {
					t.Error(err)
					return
				}
				results[w] = append(results[w], tpl)
				m.UpdateTaskOutput(taskID, core.Map{name: core.Path("output/" + name)})
			}
		}(w)
	}
	wg.Wait()

	assert.Len(t, m.TargetNames(), 5)
	for i := 0; i < 5; i++ {
		canonical, ok := m.Target(fmt.Sprintf("index_%d", i))
		require.True(t, ok)
		for w := 0; w < workers; w++ {
			require.Len(t, results[w], 5)
			assert.Same(t, canonical, results[w][i])
		}
	}
	for w := 0; w < workers; w++ {
		outs, err := m.TaskOutputs(fmt.Sprintf("align_s%d", w))
		require.NoError(t, err)
		assert.Len(t, outs, 5)
		assert.Len(t, m.TaskTargets(fmt.Sprintf("align_s%d", w)), 5)
	}
}

func TestBuild_FailingBlockEmitsNothing(t *testing.T) {
	m, eng, _ := newTestManager(t)
	boom := errors.New("boom")

	err := m.Build(context.Background(), func(m *Manager) error {
		if _, err := m.Submit("a", job("a", nil, nil), NoTask); err != nil {
			return err
		}
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Empty(t, eng.Names())
}

func TestPathHelpers(t *testing.T) {
	m, _, fs := newTestManager(t)

	p, err := m.OutputDir(false, "s1", "bam")
	require.NoError(t, err)
	assert.Equal(t, core.Path("output/s1/bam"), p)
	exists, _ := afero.DirExists(fs, "output/s1/bam")
	assert.False(t, exists)

	p, err = m.OutputDir(true, "s1", "bam")
	require.NoError(t, err)
	exists, _ = afero.DirExists(fs, string(p))
	assert.True(t, exists)

	p, err = m.TempFile(true, "s1", "x.tmp")
	require.NoError(t, err)
	assert.Equal(t, core.Path("temp/s1/x.tmp"), p)
	exists, _ = afero.DirExists(fs, "temp/s1")
	assert.True(t, exists)
	exists, _ = afero.Exists(fs, "temp/s1/x.tmp")
	assert.False(t, exists, "file helpers create the parent only")

	p, err = m.OutputFile(true, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, core.Path("output/a.txt"), p)

	p, err = m.TempDir(true)
	require.NoError(t, err)
	assert.Equal(t, core.Path("temp"), p)

	_, err = m.TempDir(true)
	assert.NoError(t, err, "directory creation is idempotent")
}
