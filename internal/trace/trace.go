// Package trace records the logical decisions taken while building a job
// graph: which tasks were found cached, which targets were emitted or skipped.
package trace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// BuildTrace is the canonical, deterministic record of one graph build.
//
// Invariants:
//   - It carries the GraphHash of what was emitted and an ordered list of events.
//   - It contains logical decisions only: no timestamps, run ids or error strings.
//
// Canonical representation:
//   - Events are sorted via Canonicalize() using a fully-specified ordering.
//   - JSON serialization uses a custom marshaler to fix field order and omit absent optional fields.
//
// The trace is observational only and must never affect which targets are emitted.
type BuildTrace struct {
	GraphHash string
	Events    []Event
}

// EventKind is the stable discriminator for Event.
// The string values are part of the trace's canonical bytes; do not rename.
type EventKind string

const (
	EventTaskInvalidated EventKind = "TaskInvalidated"
	EventTaskCached      EventKind = "TaskCached"
	EventTargetEmitted   EventKind = "TargetEmitted"
	EventTargetSkipped   EventKind = "TargetSkipped"
	EventCleanupEmitted  EventKind = "CleanupEmitted"
)

// Reason codes used by producers. Producers must keep them stable.
const (
	ReasonNoDigest      = "NoPriorDigest"
	ReasonDigestChanged = "DigestChanged"
	ReasonDigestMatched = "DigestMatched"
	ReasonSharedTarget  = "SharedWithSubmittedTask"
	ReasonFreeStanding  = "FreeStanding"
)

// Event is a single logical decision.
//
// Determinism constraints:
//   - No timestamps.
//   - No error strings / stack traces.
//   - No fields derived from pointer identity or map iteration.
type Event struct {
	Kind EventKind

	// TaskID identifies the cached task the event refers to, if any.
	TaskID string

	// Target is the registered target name the event refers to, if any.
	Target string

	// Reason is a stable, logical reason code.
	Reason string

	// Paths lists file paths relevant to the decision (e.g. cleanup inputs).
	Paths []string
}

// Validate checks basic invariants and returns a descriptive error.
func (t *BuildTrace) Validate() error {
	if t == nil {
		return errors.New("trace is nil")
	}
	if t.GraphHash == "" {
		return errors.New("graphHash is required")
	}
	for i, e := range t.Events {
		if e.Kind == "" {
			return fmt.Errorf("events[%d].kind is required", i)
		}
		if isTaskEvent(e.Kind) && e.TaskID == "" {
			return fmt.Errorf("events[%d].taskId is required for kind %q", i, e.Kind)
		}
		if isTargetEvent(e.Kind) && e.Target == "" {
			return fmt.Errorf("events[%d].target is required for kind %q", i, e.Kind)
		}
		for j, p := range e.Paths {
			if p == "" {
				return fmt.Errorf("events[%d].paths[%d] is empty", i, j)
			}
		}
	}
	return nil
}

func isTaskEvent(kind EventKind) bool {
	return kind == EventTaskInvalidated || kind == EventTaskCached
}

func isTargetEvent(kind EventKind) bool {
	return kind == EventTargetEmitted || kind == EventTargetSkipped || kind == EventCleanupEmitted
}

// Canonicalize normalizes and sorts the trace into its canonical form.
//
// Canonicalization rules:
//   - Paths are copied and sorted; empty Paths slices are normalized to nil.
//   - Events are stably sorted by (kindOrder, taskId, target, reason, pathsLex).
func (t *BuildTrace) Canonicalize() {
	if t == nil {
		return
	}
	for i := range t.Events {
		t.Events[i].Paths = sortedCopy(t.Events[i].Paths)
	}

	sort.SliceStable(t.Events, func(i, j int) bool {
		a, b := t.Events[i], t.Events[j]
		if kindOrder(a.Kind) != kindOrder(b.Kind) {
			return kindOrder(a.Kind) < kindOrder(b.Kind)
		}
		if a.TaskID != b.TaskID {
			return a.TaskID < b.TaskID
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		if a.Reason != b.Reason {
			return a.Reason < b.Reason
		}
		return compareStringSlices(a.Paths, b.Paths)
	})
}

func kindOrder(k EventKind) int {
	switch k {
	case EventTaskInvalidated:
		return 10
	case EventTaskCached:
		return 20
	case EventTargetSkipped:
		return 30
	case EventTargetEmitted:
		return 40
	case EventCleanupEmitted:
		return 50
	default:
		return 1000
	}
}

func sortedCopy(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}

func compareStringSlices(a, b []string) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// CanonicalJSON returns the canonical JSON encoding of the trace.
// It canonicalizes a copy of the trace to avoid mutating the caller's slices.
func (t BuildTrace) CanonicalJSON() ([]byte, error) {
	c := BuildTrace{GraphHash: t.GraphHash, Events: make([]Event, len(t.Events))}
	copy(c.Events, t.Events)
	c.Canonicalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(&c)
}

// Hash returns the deterministic trace hash (sha256 hex) of the canonical JSON bytes.
func (t BuildTrace) Hash() (string, error) {
	b, err := t.CanonicalJSON()
	if err != nil {
		return "", err
	}
	return ComputeTraceHash(b), nil
}

// MarshalJSON ensures canonical field ordering.
func (t BuildTrace) MarshalJSON() ([]byte, error) {
	if t.GraphHash == "" {
		return nil, errors.New("graphHash is required")
	}
	var buf bytes.Buffer
	buf.WriteString(`{"graphHash":`)
	writeJSON(&buf, t.GraphHash)
	buf.WriteString(`,"events":[`)
	for i := range t.Events {
		if i > 0 {
			buf.WriteByte(',')
		}
		eb, err := json.Marshal(t.Events[i])
		if err != nil {
			return nil, err
		}
		buf.Write(eb)
	}
	buf.WriteString("]}")
	return buf.Bytes(), nil
}

// MarshalJSON ensures canonical field ordering and omission of empty optional fields.
func (e Event) MarshalJSON() ([]byte, error) {
	if e.Kind == "" {
		return nil, errors.New("kind is required")
	}
	var buf bytes.Buffer
	buf.WriteString(`{"kind":`)
	writeJSON(&buf, string(e.Kind))

	optional := []struct {
		key string
		val string
	}{
		{"taskId", e.TaskID},
		{"target", e.Target},
		{"reason", e.Reason},
	}
	for _, f := range optional {
		if f.val == "" {
			continue
		}
		buf.WriteString(`,"` + f.key + `":`)
		writeJSON(&buf, f.val)
	}

	if paths := sortedCopy(e.Paths); len(paths) > 0 {
		buf.WriteString(`,"paths":`)
		writeJSON(&buf, paths)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v any) {
	b, _ := json.Marshal(v)
	buf.Write(b)
}
