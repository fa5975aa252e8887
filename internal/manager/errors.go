package manager

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateTarget   = errors.New("duplicate target")
	ErrTaskNotFound      = errors.New("task not found")
	ErrOutputNotFound    = errors.New("task output not found")
	ErrAlreadyExecuted   = errors.New("manager already executed")
	ErrInvalidSubmission = errors.New("invalid submission")
)

// DuplicateTargetError reports a resubmission under an existing name whose
// spec differs from the registered one.
type DuplicateTargetError struct {
	Name   string
	TaskID string
}

func (e *DuplicateTargetError) Error() string {
	if e == nil {
		return ""
	}
	if e.TaskID != NoTask {
		return fmt.Sprintf("differing spec of resubmitted target %q in task %q", e.Name, e.TaskID)
	}
	return fmt.Sprintf("differing spec of resubmitted target %q", e.Name)
}

func (e *DuplicateTargetError) Unwrap() error { return ErrDuplicateTarget }

// NotFoundError reports a query against an unknown task or output key.
type NotFoundError struct {
	Kind   error
	TaskID string
	Key    string
}

func (e *NotFoundError) Error() string {
	if e == nil {
		return ""
	}
	if e.Kind == ErrOutputNotFound {
		return fmt.Sprintf("output %q does not exist for task %q", e.Key, e.TaskID)
	}
	return fmt.Sprintf("task %q does not exist", e.TaskID)
}

func (e *NotFoundError) Unwrap() error { return e.Kind }
