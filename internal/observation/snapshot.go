package observation

import (
	"fmt"
	"sort"
	"strings"
)

// TrustStoreResult is the outcome of validating the received chain against
// one trust store.
type TrustStoreResult struct {
	Store  string `json:"store"`
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// CertificateFlags are the certificate properties reported by an inspector.
type CertificateFlags struct {
	TrustStores             []TrustStoreResult `json:"trust_stores"`
	ChainErrors             []string           `json:"chain_errors,omitempty"`
	HostnameMatches         bool               `json:"hostname_matches"`
	ChainOrderValid         bool               `json:"chain_order_valid"`
	HasSHA1Signature        bool               `json:"has_sha1_signature"`
	HasLegacySymantecAnchor bool               `json:"has_legacy_symantec_anchor"`
	SCTCount                int                `json:"sct_count"`
}

// RobotVerdict is the oracle strength reported by a ROBOT probe.
type RobotVerdict int

const (
	RobotUnknown RobotVerdict = iota
	RobotNotVulnerable
	RobotWeakOracle
	RobotStrongOracle
)

func (r RobotVerdict) String() string {
	switch r {
	case RobotNotVulnerable:
		return "not_vulnerable"
	case RobotWeakOracle:
		return "weak_oracle"
	case RobotStrongOracle:
		return "strong_oracle"
	default:
		return "unknown"
	}
}

func (r RobotVerdict) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *RobotVerdict) UnmarshalText(text []byte) error {
	switch string(text) {
	case "not_vulnerable":
		*r = RobotNotVulnerable
	case "weak_oracle":
		*r = RobotWeakOracle
	case "strong_oracle":
		*r = RobotStrongOracle
	default:
		*r = RobotUnknown
	}
	return nil
}

// Verdicts holds the results of the protocol attack probes.
type Verdicts struct {
	Heartbleed   bool         `json:"heartbleed"`
	CCSInjection bool         `json:"ccs_injection"`
	Robot        RobotVerdict `json:"robot"`
}

// ProtocolScan is the set of cipher suites one protocol version accepted.
type ProtocolScan struct {
	Protocol        Protocol `json:"protocol"`
	AcceptedCiphers []string `json:"accepted_ciphers"`
}

// ProbeKind names a single measurement taken during collection.
type ProbeKind int

const (
	ProbeCipherScan ProbeKind = iota + 1
	ProbeCertificate
	ProbeHeader
	ProbeHeartbleed
	ProbeCCSInjection
	ProbeRobot
)

func (k ProbeKind) String() string {
	switch k {
	case ProbeCipherScan:
		return "cipher_scan"
	case ProbeCertificate:
		return "certificate"
	case ProbeHeader:
		return "hsts_header"
	case ProbeHeartbleed:
		return "heartbleed"
	case ProbeCCSInjection:
		return "ccs_injection"
	case ProbeRobot:
		return "robot"
	default:
		return fmt.Sprintf("ProbeKind(%d)", int(k))
	}
}

func (k ProbeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *ProbeKind) UnmarshalText(text []byte) error {
	for kind := ProbeCipherScan; kind <= ProbeRobot; kind++ {
		if kind.String() == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown probe kind %q", text)
}

// ProbeFailure records a measurement that produced no data.
// Protocol is set only for cipher scans.
type ProbeFailure struct {
	Probe    ProbeKind `json:"probe"`
	Protocol Protocol  `json:"protocol,omitempty"`
	Err      string    `json:"error"`
}

func (f ProbeFailure) String() string {
	if f.Probe == ProbeCipherScan && f.Protocol.Valid() {
		return fmt.Sprintf("%s %s: %s", f.Probe, f.Protocol, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Probe, f.Err)
}

// Snapshot is everything observed about one target in one audit run.
// Nil pointer fields mean the measurement produced no data; the reason is
// in ProbeFailures or Skipped.
type Snapshot struct {
	Target             string            `json:"target"`
	SupportedProtocols ProtocolSet       `json:"supported_protocols"`
	SupportedCiphers   StringSet         `json:"supported_ciphers"`
	Certificate        *CertificateFlags `json:"certificate,omitempty"`
	HSTSMaxAge         *int64            `json:"hsts_max_age,omitempty"`
	Vulnerabilities    *Verdicts         `json:"vulnerabilities,omitempty"`
	ProbeFailures      []ProbeFailure    `json:"probe_failures,omitempty"`
	Skipped            []ProbeFailure    `json:"skipped,omitempty"`
}

// Failure returns the first failure recorded for the given probe kind.
func (s *Snapshot) Failure(kind ProbeKind) (ProbeFailure, bool) {
	for _, f := range s.ProbeFailures {
		if f.Probe == kind {
			return f, true
		}
	}
	return ProbeFailure{}, false
}

// SortFailures orders failures and skips by probe kind, then protocol.
func SortFailures(failures []ProbeFailure) {
	sort.SliceStable(failures, func(i, j int) bool {
		if failures[i].Probe != failures[j].Probe {
			return failures[i].Probe < failures[j].Probe
		}
		if failures[i].Protocol != failures[j].Protocol {
			return failures[i].Protocol < failures[j].Protocol
		}
		return strings.Compare(failures[i].Err, failures[j].Err) < 0
	})
}
