package compliance

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/khanhnv2901/tlsprofiler/internal/observation"
	"github.com/khanhnv2901/tlsprofiler/internal/profile"
)

// Report is the outcome of one evaluation. Build it with BuildReport; the
// booleans are derived from the three lists.
type Report struct {
	ValidationErrors    []string `json:"validation_errors" yaml:"validation_errors"`
	ProfileErrors       []string `json:"profile_errors" yaml:"profile_errors"`
	VulnerabilityErrors []string `json:"vulnerability_errors" yaml:"vulnerability_errors"`
	Validated           bool     `json:"validated" yaml:"validated"`
	ProfileMatched      bool     `json:"profile_matched" yaml:"profile_matched"`
	Vulnerable          bool     `json:"vulnerable" yaml:"vulnerable"`
	AllOK               bool     `json:"all_ok" yaml:"all_ok"`
}

// BuildReport combines checker output. Profile errors are the protocol and
// cipher errors followed by the header errors.
func BuildReport(validation, protocolCipher, header, vulnerability []string) *Report {
	profileErrs := make([]string, 0, len(protocolCipher)+len(header))
	profileErrs = append(profileErrs, protocolCipher...)
	profileErrs = append(profileErrs, header...)

	r := &Report{
		ValidationErrors:    nonNil(validation),
		ProfileErrors:       profileErrs,
		VulnerabilityErrors: nonNil(vulnerability),
	}
	r.Validated = len(r.ValidationErrors) == 0
	r.ProfileMatched = len(r.ProfileErrors) == 0
	r.Vulnerable = len(r.VulnerabilityErrors) > 0
	r.AllOK = r.Validated && r.ProfileMatched && !r.Vulnerable
	return r
}

// Evaluate runs the four checkers on snap and builds the report.
func Evaluate(snap *observation.Snapshot, p profile.Profile) *Report {
	return BuildReport(
		certificateErrors(snap),
		CheckProtocolsAndCiphers(snap, p),
		headerErrors(snap, p),
		vulnerabilityErrors(snap),
	)
}

func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Validation Errors: %s\n\n", formatList(r.ValidationErrors))
	fmt.Fprintf(&b, "Profile Errors: %s\n\n", formatList(r.ProfileErrors))
	fmt.Fprintf(&b, "Vulnerability Errors: %s\n\n", formatList(r.VulnerabilityErrors))
	fmt.Fprintf(&b, "Validated: %t\n\n", r.Validated)
	fmt.Fprintf(&b, "Profile Matched: %t\n\n", r.ProfileMatched)
	fmt.Fprintf(&b, "Vulnerable: %t\n\n", r.Vulnerable)
	fmt.Fprintf(&b, "All ok: %t", r.AllOK)
	return b.String()
}

func formatList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = strconv.Quote(item)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
