package cache

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration = errors.New("cache guard misconfigured")
	ErrTaskOutput    = errors.New("invalid task output")
)

// TaskOutputError reports a producer result that is neither a mapping of
// output names to paths nor empty.
type TaskOutputError struct {
	TaskID string
	Got    string
}

func (e *TaskOutputError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("task %q must return a mapping or nothing, got %s", e.TaskID, e.Got)
}

func (e *TaskOutputError) Unwrap() error { return ErrTaskOutput }
