package compliance

import (
	"fmt"
	"strings"

	"github.com/khanhnv2901/tlsprofiler/internal/observation"
	"github.com/khanhnv2901/tlsprofiler/internal/shared/constants"
)

// Certificate messages.
const (
	MsgHostnameMismatch  = "Leaf certificate subject does not match hostname!"
	MsgWrongChainOrder   = "Certificate chain has wrong order."
	MsgSHA1Signature     = "SHA1 signature found in chain."
	MsgLegacySymantec    = "Symantec legacy certificate found in chain."
	msgValidationFailed  = "validation not successful: %s (trust store %s)"
	msgChainErrors       = "Validation failed: %s"
	msgNotEnoughSCTs     = "Not enough SCTs in certificate, only found %d."
	msgInspectionFailure = "certificate inspection failed: %s"
)

// CheckCertificate applies the certificate rules. They do not depend on the
// profile, and each rule is evaluated on its own so one chain can fail
// several at once. A nil flags value yields no errors.
func CheckCertificate(flags *observation.CertificateFlags) []string {
	if flags == nil {
		return nil
	}

	var errs []string
	for _, store := range flags.TrustStores {
		if !store.OK {
			errs = append(errs, fmt.Sprintf(msgValidationFailed, store.Reason, store.Store))
		}
	}
	if len(flags.ChainErrors) > 0 {
		errs = append(errs, fmt.Sprintf(msgChainErrors, strings.Join(flags.ChainErrors, ", ")))
	}
	if !flags.HostnameMatches {
		errs = append(errs, MsgHostnameMismatch)
	}
	if !flags.ChainOrderValid {
		errs = append(errs, MsgWrongChainOrder)
	}
	if flags.HasSHA1Signature {
		errs = append(errs, MsgSHA1Signature)
	}
	if flags.HasLegacySymantecAnchor {
		errs = append(errs, MsgLegacySymantec)
	}
	if flags.SCTCount < constants.MinSCTCount {
		errs = append(errs, fmt.Sprintf(msgNotEnoughSCTs, flags.SCTCount))
	}
	return errs
}

func certificateErrors(snap *observation.Snapshot) []string {
	if f, failed := snap.Failure(observation.ProbeCertificate); failed {
		return []string{fmt.Sprintf(msgInspectionFailure, f.Err)}
	}
	return CheckCertificate(snap.Certificate)
}
