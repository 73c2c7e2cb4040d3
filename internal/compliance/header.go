package compliance

import (
	"fmt"

	"github.com/khanhnv2901/tlsprofiler/internal/observation"
	"github.com/khanhnv2901/tlsprofiler/internal/profile"
)

// MsgHSTSNotSet is reported when the target sends no usable HSTS header.
const MsgHSTSNotSet = "HSTS header not set"

// CheckHSTS compares the observed max-age with the profile minimum. It
// yields at most one message.
func CheckHSTS(maxAge *int64, p profile.Profile) []string {
	switch {
	case maxAge == nil:
		return []string{MsgHSTSNotSet}
	case *maxAge < p.MinHSTSAge:
		return []string{fmt.Sprintf("wrong HSTS age %d", *maxAge)}
	default:
		return nil
	}
}

func headerErrors(snap *observation.Snapshot, p profile.Profile) []string {
	if f, failed := snap.Failure(observation.ProbeHeader); failed {
		return []string{fmt.Sprintf("could not fetch HSTS header: %s", f.Err)}
	}
	for _, s := range snap.Skipped {
		if s.Probe == observation.ProbeHeader {
			return nil
		}
	}
	return CheckHSTS(snap.HSTSMaxAge, p)
}
