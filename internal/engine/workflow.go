package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"jobweaver/internal/fsutil"
)

// WorkflowDocument is the on-disk handoff to the execution engine.
//
// NOTE: field names are part of the stable contract with engine adapters.
type WorkflowDocument struct {
	RunID     string              `yaml:"run_id"`
	GraphHash string              `yaml:"graph_hash,omitempty"`
	Executors map[string][]string `yaml:"executors,omitempty"`
	Targets   []Target            `yaml:"targets"`
}

// WorkflowWriter is an Engine that buffers targets and writes them as one
// YAML workflow document on Commit. Nothing reaches disk before Commit, so a
// failed construction never leaves a partial workflow behind.
type WorkflowWriter struct {
	fs    afero.Fs
	path  string
	runID string

	mu        sync.Mutex
	executors map[string][]string
	targets   []Target
	seen      map[string]struct{}
	committed bool
}

// NewWorkflowWriter returns a writer for path. The run id is a fresh UUID.
func NewWorkflowWriter(fs afero.Fs, path string) *WorkflowWriter {
	return &WorkflowWriter{
		fs:    fs,
		path:  path,
		runID: uuid.NewString(),
		seen:  make(map[string]struct{}),
	}
}

// RunID identifies this build in the emitted document and in build records.
func (w *WorkflowWriter) RunID() string { return w.runID }

// SetExecutors records the command prefix of every executor targets may name.
func (w *WorkflowWriter) SetExecutors(prefixes map[string][]string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.executors = prefixes
}

func (w *WorkflowWriter) TargetFromTemplate(name string, target Target) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.committed {
		return errors.New("workflow already committed")
	}
	if _, exists := w.seen[name]; exists {
		return fmt.Errorf("target %q already emitted", name)
	}
	w.seen[name] = struct{}{}
	target.Name = name
	w.targets = append(w.targets, target)
	return nil
}

// Abort drops the buffered targets. It has no effect after Commit.
func (w *WorkflowWriter) Abort() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.committed {
		return
	}
	w.targets = nil
	w.seen = make(map[string]struct{})
}

// Document returns the workflow as it would be written.
func (w *WorkflowWriter) Document(graphHash string) WorkflowDocument {
	w.mu.Lock()
	defer w.mu.Unlock()
	targets := make([]Target, len(w.targets))
	copy(targets, w.targets)
	return WorkflowDocument{RunID: w.runID, GraphHash: graphHash, Executors: w.executors, Targets: targets}
}

// Commit writes the buffered targets atomically. It may be called once.
func (w *WorkflowWriter) Commit(graphHash string) error {
	doc := w.Document(graphHash)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.committed {
		return errors.New("workflow already committed")
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshal workflow: %w", err)
	}
	if err := fsutil.WriteFileAtomic(w.fs, w.path, data, 0o644); err != nil {
		return fmt.Errorf("write workflow %s: %w", w.path, err)
	}
	w.committed = true
	return nil
}

// ReadWorkflow loads a previously committed workflow document.
func ReadWorkflow(fs afero.Fs, path string) (*WorkflowDocument, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read workflow: %w", err)
	}
	var doc WorkflowDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse workflow: %w", err)
	}
	return &doc, nil
}
