package errors

import "errors"

// Domain errors
var (
	// Profile errors
	ErrProfileNotFound          = errors.New("profile not found")
	ErrProfileSourceUnavailable = errors.New("profile source unavailable")
	ErrInvalidDocument          = errors.New("invalid profile document")
	ErrUnknownProtocol          = errors.New("unknown protocol identifier")

	// Target errors
	ErrEmptyTarget       = errors.New("target cannot be empty")
	ErrInvalidTarget     = errors.New("invalid target")
	ErrTargetUnreachable = errors.New("target unreachable")

	// Probe errors
	ErrNotTestable    = errors.New("measurement not supported by this backend")
	ErrInvalidHSTS    = errors.New("invalid Strict-Transport-Security header")
	ErrBackendFailure = errors.New("scan backend failed")

	// Repository errors
	ErrResultNotFound        = errors.New("audit result not found")
	ErrSerializationFailed   = errors.New("serialization failed")
	ErrDeserializationFailed = errors.New("deserialization failed")
)
