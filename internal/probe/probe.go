// Package probe defines the collaborators an audit relies on to observe a
// TLS endpoint. Each interface returns plain data; no compliance decisions
// are made here.
//
// Backends live in sub-packages: native uses Go's crypto/tls, sslyze wraps
// the external sslyze scanner. A backend that cannot take a measurement
// returns an error wrapping ErrNotTestable.
package probe

import (
	"context"

	"github.com/khanhnv2901/tlsprofiler/internal/observation"
	sharedErrors "github.com/khanhnv2901/tlsprofiler/internal/shared/errors"
)

// ErrNotTestable is returned when a backend cannot take a measurement at all.
var ErrNotTestable = sharedErrors.ErrNotTestable

// Connectivity reports whether a TLS connection to the target can be made.
type Connectivity interface {
	Check(ctx context.Context, target Target) error
}

// CipherScanner returns the cipher suites (OpenSSL names) the target
// accepts for one protocol version. An empty result means the version is
// not supported.
type CipherScanner interface {
	Scan(ctx context.Context, target Target, protocol observation.Protocol) ([]string, error)
}

// CertificateInspector validates the target's certificate chain.
type CertificateInspector interface {
	Inspect(ctx context.Context, target Target) (observation.CertificateFlags, error)
}

// HeaderFetcher returns the HSTS max-age the target sends, or nil when the
// header is absent.
type HeaderFetcher interface {
	FetchHSTS(ctx context.Context, target Target) (*int64, error)
}

// VulnerabilityProber runs the protocol attack checks.
type VulnerabilityProber interface {
	Heartbleed(ctx context.Context, target Target) (bool, error)
	CCSInjection(ctx context.Context, target Target) (bool, error)
	Robot(ctx context.Context, target Target) (observation.RobotVerdict, error)
}

// Suite groups one implementation of every collaborator.
type Suite struct {
	Connectivity    Connectivity
	Ciphers         CipherScanner
	Certificate     CertificateInspector
	Headers         HeaderFetcher
	Vulnerabilities VulnerabilityProber
}
