package state

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the outcome of a build.
type Status string

const (
	StatusEmitted Status = "emitted"
	StatusDryRun  Status = "dry_run"
	StatusFailed  Status = "failed"
)

// Run is the persisted record of one graph build.
//
// Schema constraints: run_id, start_time and status are always present.
// graph_hash is empty only for failed builds. emitted and skipped are arrays,
// never null.
type Run struct {
	RunID     string    `json:"run_id"`
	GraphHash string    `json:"graph_hash"`
	StartTime time.Time `json:"start_time"`
	Pipeline  string    `json:"pipeline"`
	Status    Status    `json:"status"`
	Emitted   []string  `json:"emitted"`
	Skipped   []string  `json:"skipped"`
	Error     string    `json:"error,omitempty"`
}

func (r Run) Validate() error {
	var errs []error
	if strings.TrimSpace(r.RunID) == "" {
		errs = append(errs, errors.New("run_id is required"))
	}
	if r.StartTime.IsZero() {
		errs = append(errs, errors.New("start_time is required"))
	}
	switch r.Status {
	case StatusEmitted, StatusDryRun:
		if strings.TrimSpace(r.GraphHash) == "" {
			errs = append(errs, errors.New("graph_hash is required"))
		}
	case StatusFailed:
		if strings.TrimSpace(r.Error) == "" {
			errs = append(errs, errors.New("error is required for failed runs"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid status %q", r.Status))
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

func (r *Run) normalize() {
	if r.Emitted == nil {
		r.Emitted = []string{}
	}
	if r.Skipped == nil {
		r.Skipped = []string{}
	}
}
