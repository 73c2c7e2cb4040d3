package probe

import (
	"fmt"
	"strconv"
	"strings"

	sharedErrors "github.com/khanhnv2901/tlsprofiler/internal/shared/errors"
)

// ParseHSTSMaxAge extracts max-age from a Strict-Transport-Security header
// value (RFC 6797 section 6.1). An empty header yields nil. A header without
// a usable max-age, or with max-age repeated, is invalid.
func ParseHSTSMaxAge(header string) (*int64, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, nil
	}

	var maxAge *int64
	for _, directive := range strings.Split(header, ";") {
		directive = strings.TrimSpace(directive)
		if directive == "" {
			continue
		}

		name, value, _ := strings.Cut(directive, "=")
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "max-age" {
			continue
		}
		if maxAge != nil {
			return nil, fmt.Errorf("%w: max-age given more than once", sharedErrors.ErrInvalidHSTS)
		}

		value = strings.Trim(strings.TrimSpace(value), `"`)
		seconds, err := strconv.ParseInt(value, 10, 64)
		if err != nil || seconds < 0 {
			return nil, fmt.Errorf("%w: bad max-age %q", sharedErrors.ErrInvalidHSTS, value)
		}
		maxAge = &seconds
	}

	if maxAge == nil {
		return nil, fmt.Errorf("%w: max-age missing", sharedErrors.ErrInvalidHSTS)
	}
	return maxAge, nil
}
