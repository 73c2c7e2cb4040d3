package cmd

import (
	"errors"
	"fmt"

	sharedErrors "github.com/khanhnv2901/tlsprofiler/internal/shared/errors"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitNotOK       = 1
	ExitConfig      = 2
	ExitUnreachable = 3
)

var (
	errNotCompliant = errors.New("one or more targets are not compliant")
	errUnreachable  = errors.New("one or more targets were unreachable")
	errIncomplete   = errors.New("one or more targets could not be fully measured")
)

// ExitError carries the process exit code for a command failure. Silent
// errors have already been reported to the user.
type ExitError struct {
	Code   int
	Err    error
	Silent bool
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func configError(format string, args ...any) error {
	return &ExitError{Code: ExitConfig, Err: fmt.Errorf(format, args...)}
}

// exitCodeFor maps a command error onto an exit code. Configuration
// problems are detected from the shared sentinel errors.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	switch {
	case errors.Is(err, sharedErrors.ErrProfileNotFound),
		errors.Is(err, sharedErrors.ErrProfileSourceUnavailable),
		errors.Is(err, sharedErrors.ErrEmptyTarget),
		errors.Is(err, sharedErrors.ErrInvalidTarget):
		return ExitConfig
	case errors.Is(err, sharedErrors.ErrTargetUnreachable):
		return ExitUnreachable
	default:
		return ExitNotOK
	}
}

func isSilent(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.Silent
}
