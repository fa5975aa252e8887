package manager

import (
	"jobweaver/internal/core"
)

// EnsureTask creates the task if it does not exist yet.
func (m *Manager) EnsureTask(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.taskLocked(taskID)
}

// TaskTargets returns the task's templates in the order they joined it.
func (m *Manager) TaskTargets(taskID string) []*core.JobTemplate {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return nil
	}
	return append([]*core.JobTemplate(nil), t.targets...)
}

// ShouldSubmit reports whether the task's targets are to be emitted. Unknown
// tasks report true.
func (m *Manager) ShouldSubmit(taskID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	return !ok || t.shouldSubmit
}

// SkipTask marks the task as not to be submitted. The flag only ever moves
// from true to false.
func (m *Manager) SkipTask(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.taskLocked(taskID).shouldSubmit = false
}

// UpdateTaskOutput merges outputs into the task's accumulated outputs.
// Later keys overwrite earlier ones.
func (m *Manager) UpdateTaskOutput(taskID string, outputs core.Map) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.taskLocked(taskID).outputs.Merge(outputs)
}

// TaskOutput returns one accumulated output of a task.
func (m *Manager) TaskOutput(taskID, key string) (core.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return nil, &NotFoundError{Kind: ErrTaskNotFound, TaskID: taskID}
	}
	v, ok := t.outputs[key]
	if !ok {
		return nil, &NotFoundError{Kind: ErrOutputNotFound, TaskID: taskID, Key: key}
	}
	return v, nil
}

// TaskOutputs returns a copy of all accumulated outputs of a task.
func (m *Manager) TaskOutputs(taskID string) (core.Map, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return nil, &NotFoundError{Kind: ErrTaskNotFound, TaskID: taskID}
	}
	out := core.Map{}
	out.Merge(t.outputs)
	return out, nil
}
