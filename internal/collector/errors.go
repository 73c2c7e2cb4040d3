package collector

import (
	"fmt"

	sharedErrors "github.com/khanhnv2901/tlsprofiler/internal/shared/errors"
)

// ConnectivityError means no TLS connection could be made, so the target
// was not scanned at all.
type ConnectivityError struct {
	Target string
	Cause  error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("could not connect to %s: %v", e.Target, e.Cause)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Cause
}

// Is lets callers match with errors.Is(err, ErrTargetUnreachable).
func (e *ConnectivityError) Is(target error) bool {
	return target == sharedErrors.ErrTargetUnreachable
}
