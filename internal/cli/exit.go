package cli

import (
	"context"
	"errors"
	"fmt"
)

const (
	ExitSuccess           = 0
	ExitGraphFailure      = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
)

// InvocationError reports a malformed command line.
type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

// codedError attaches an exit code to an error from a later stage.
type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

func configError(err error) error {
	if err == nil {
		return nil
	}
	return &codedError{code: ExitConfigError, err: err}
}

func graphError(err error) error {
	if err == nil {
		return nil
	}
	return &codedError{code: ExitGraphFailure, err: err}
}

// ExitCode maps an error returned by a command to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var inv *InvocationError
	if errors.As(err, &inv) {
		return inv.ExitCode
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ExitInternalError
	}
	var coded *codedError
	if errors.As(err, &coded) {
		return coded.code
	}
	return ExitInternalError
}
