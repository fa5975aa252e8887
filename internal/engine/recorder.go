package engine

import (
	"fmt"
	"sync"
)

// Recorder is an in-memory Engine that keeps targets in emission order.
// It backs dry runs and tests.
type Recorder struct {
	mu      sync.Mutex
	targets []Target
	byName  map[string]int
}

func NewRecorder() *Recorder {
	return &Recorder{byName: make(map[string]int)}
}

func (r *Recorder) TargetFromTemplate(name string, target Target) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("target %q already emitted", name)
	}
	target.Name = name
	r.byName[name] = len(r.targets)
	r.targets = append(r.targets, target)
	return nil
}

// Abort drops every target received so far.
func (r *Recorder) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets = nil
	r.byName = make(map[string]int)
}

// Targets returns a copy of the emitted targets in emission order.
func (r *Recorder) Targets() []Target {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Target, len(r.targets))
	copy(out, r.targets)
	return out
}

// Names returns emitted target names in emission order.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.targets))
	for _, t := range r.targets {
		out = append(out, t.Name)
	}
	return out
}

// Target returns an emitted target by name.
func (r *Recorder) Target(name string) (Target, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.byName[name]
	if !ok {
		return Target{}, false
	}
	return r.targets[i], true
}
