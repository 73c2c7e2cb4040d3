package profile

import (
	"fmt"
	"strings"

	sharedErrors "github.com/khanhnv2901/tlsprofiler/internal/shared/errors"
)

// NotFoundError indicates the profile document has no profile by that name.
type NotFoundError struct {
	Name      string
	Available []string
}

func (e *NotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("profile %q not found", e.Name)
	}
	return fmt.Sprintf("profile %q not found (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

func (e *NotFoundError) Is(target error) bool {
	return target == sharedErrors.ErrProfileNotFound
}
