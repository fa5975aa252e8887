// Package manager keeps track of job templates and task groupings during
// graph construction and emits the final graph to the execution engine.
//
// Manager.Submit is the single aggregation point: every job producer routes
// its templates through it and never talks to the engine directly.
package manager

import (
	"context"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"jobweaver/internal/core"
	"jobweaver/internal/engine"
	"jobweaver/internal/trace"
)

// NoTask is the task id used for templates that belong to no task. Such
// templates are never subject to skipping.
const NoTask = ""

// Namespace roots for published and temporary files.
const (
	OutputRoot  = "output"
	TempRoot    = "temp"
	ScratchRoot = "scratch"
)

// Task groups the templates that share one cache digest and skip decision.
type Task struct {
	ID string

	targets []*core.JobTemplate
	member  map[*core.JobTemplate]struct{}
	outputs core.Map

	shouldSubmit bool
}

func newTask(id string) *Task {
	return &Task{
		ID:           id,
		member:       make(map[*core.JobTemplate]struct{}),
		outputs:      core.Map{},
		shouldSubmit: true,
	}
}

func (t *Task) add(tpl *core.JobTemplate) {
	if _, ok := t.member[tpl]; ok {
		return
	}
	t.member[tpl] = struct{}{}
	t.targets = append(t.targets, tpl)
}

// Manager is the process-wide registry of named templates and tasks.
//
// All mutations are serialized by a single mutex, so producers may run
// concurrently if a host chooses to; ordering of emission still follows
// registration order.
type Manager struct {
	fs      afero.Fs
	engine  engine.Engine
	logger  *zap.Logger
	sink    trace.Sink
	cleanUp bool

	mu        sync.Mutex
	targets   map[string]*core.JobTemplate
	order     []string
	tasks     map[string]*Task
	taskOrder []string

	executed  bool
	graphHash string
}

// Option configures a Manager.
type Option func(*Manager)

// WithFs sets the filesystem directory creation happens on. It must be
// anchored at the workflow root. Defaults to the OS filesystem relative to
// the process working directory.
func WithFs(fs afero.Fs) Option {
	return func(m *Manager) { m.fs = fs }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithTrace sets the sink build decisions are recorded into.
func WithTrace(s trace.Sink) Option {
	return func(m *Manager) { m.sink = s }
}

// WithCleanUp toggles the synthesized clean-up job. Enabled by default.
func WithCleanUp(enabled bool) Option {
	return func(m *Manager) { m.cleanUp = enabled }
}

// New returns a Manager that emits into eng.
func New(eng engine.Engine, opts ...Option) *Manager {
	m := &Manager{
		fs:      afero.NewOsFs(),
		engine:  eng,
		logger:  zap.NewNop(),
		sink:    trace.NopSink{},
		cleanUp: true,
		targets: make(map[string]*core.JobTemplate),
		tasks:   make(map[string]*Task),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Fs returns the filesystem anchored at the workflow root.
func (m *Manager) Fs() afero.Fs { return m.fs }

// Logger returns the manager's logger.
func (m *Manager) Logger() *zap.Logger { return m.logger }

// Record forwards a build decision to the trace sink.
func (m *Manager) Record(e trace.Event) { trace.SafeRecord(m.sink, e) }

// Build runs fn as a scoped construction block and executes the graph only
// if fn succeeds. A failing fn leaves nothing emitted.
func (m *Manager) Build(ctx context.Context, fn func(*Manager) error) error {
	if err := fn(m); err != nil {
		return err
	}
	return m.Execute(ctx)
}

// Submit registers tpl under name and returns the canonical template.
//
// The first submission under a name wins. Later submissions must carry an
// identical spec and get the original instance back; a differing spec fails
// with a *DuplicateTargetError. When taskID is not NoTask the canonical
// template joins that task's target set.
func (m *Manager) Submit(name string, tpl *core.JobTemplate, taskID string) (*core.JobTemplate, error) {
	if name == "" || tpl == nil {
		return nil, ErrInvalidSubmission
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.executed {
		return nil, ErrAlreadyExecuted
	}

	if existing, ok := m.targets[name]; ok {
		if existing.Spec != tpl.Spec {
			return nil, &DuplicateTargetError{Name: name, TaskID: taskID}
		}
		tpl = existing
	} else {
		m.targets[name] = tpl
		m.order = append(m.order, name)
	}

	if taskID != NoTask {
		m.taskLocked(taskID).add(tpl)
	}

	m.logger.Debug("Submitted target",
		zap.String("target", name),
		zap.String("task_id", taskID))
	return tpl, nil
}

// Target returns the canonical template registered under name.
func (m *Manager) Target(name string) (*core.JobTemplate, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tpl, ok := m.targets[name]
	return tpl, ok
}

// TargetNames returns registered names in registration order.
func (m *Manager) TargetNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

// GraphHash returns the identity of the emitted graph; empty before Execute.
func (m *Manager) GraphHash() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.graphHash
}

func (m *Manager) taskLocked(id string) *Task {
	t, ok := m.tasks[id]
	if !ok {
		t = newTask(id)
		m.tasks[id] = t
		m.taskOrder = append(m.taskOrder, id)
	}
	return t
}
