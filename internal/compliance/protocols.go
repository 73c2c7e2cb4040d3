package compliance

import (
	"fmt"

	"github.com/khanhnv2901/tlsprofiler/internal/observation"
	"github.com/khanhnv2901/tlsprofiler/internal/profile"
)

// CheckProtocolsAndCiphers reports every observed protocol and cipher the
// profile does not allow. Allowed but unobserved entries are fine.
// Protocols come first in version order, then ciphers sorted by name.
func CheckProtocolsAndCiphers(snap *observation.Snapshot, p profile.Profile) []string {
	var errs []string

	for _, protocol := range snap.SupportedProtocols.Difference(p.AllowedProtocols).Sorted() {
		errs = append(errs, mustNotSupport(protocol.String()))
	}
	for _, cipher := range snap.SupportedCiphers.Difference(p.AllowedCiphers).Sorted() {
		errs = append(errs, mustNotSupport(cipher))
	}

	for _, f := range snap.ProbeFailures {
		if f.Probe == observation.ProbeCipherScan {
			errs = append(errs, fmt.Sprintf("could not determine cipher support for %s: %s", f.Protocol, f.Err))
		}
	}
	return errs
}

func mustNotSupport(id string) string {
	return fmt.Sprintf("must not support %q", id)
}
