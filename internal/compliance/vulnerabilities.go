package compliance

import (
	"fmt"

	"github.com/khanhnv2901/tlsprofiler/internal/observation"
)

// Vulnerability messages.
const (
	MsgHeartbleed   = "Server is vulnerable to Heartbleed attack"
	MsgCCSInjection = "Server is vulnerable to OpenSSL CCS Injection (CVE-2014-0224)"
	MsgRobot        = "Server is vulnerable to ROBOT attack."
)

// CheckVulnerabilities maps positive verdicts to messages.
func CheckVulnerabilities(v *observation.Verdicts) []string {
	if v == nil {
		return nil
	}

	var errs []string
	if v.Heartbleed {
		errs = append(errs, MsgHeartbleed)
	}
	if v.CCSInjection {
		errs = append(errs, MsgCCSInjection)
	}
	switch v.Robot {
	case observation.RobotWeakOracle, observation.RobotStrongOracle:
		errs = append(errs, MsgRobot)
	case observation.RobotNotVulnerable, observation.RobotUnknown:
	}
	return errs
}

var attackNames = map[observation.ProbeKind]string{
	observation.ProbeHeartbleed:   "Heartbleed",
	observation.ProbeCCSInjection: "OpenSSL CCS Injection",
	observation.ProbeRobot:        "ROBOT",
}

func vulnerabilityErrors(snap *observation.Snapshot) []string {
	errs := CheckVulnerabilities(snap.Vulnerabilities)
	for _, f := range snap.ProbeFailures {
		if name, ok := attackNames[f.Probe]; ok {
			errs = append(errs, fmt.Sprintf("could not test for %s: %s", name, f.Err))
		}
	}
	return errs
}
