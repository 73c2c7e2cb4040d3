package sslyze

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/khanhnv2901/tlsprofiler/internal/observation"
	sharedErrors "github.com/khanhnv2901/tlsprofiler/internal/shared/errors"
)

// Output is the document sslyze writes with --json_out.
type Output struct {
	ServerScanResults []ServerScanResult `json:"server_scan_results"`
}

type ServerLocation struct {
	Hostname string `json:"hostname"`
	Port     int    `json:"port"`
}

// ServerScanResult holds everything sslyze learned about one server.
type ServerScanResult struct {
	ServerLocation         ServerLocation `json:"server_location"`
	ConnectivityStatus     string         `json:"connectivity_status"`
	ConnectivityErrorTrace string         `json:"connectivity_error_trace"`
	ScanStatus             string         `json:"scan_status"`
	ScanResult             *ScanResult    `json:"scan_result"`
}

type ScanResult struct {
	CertificateInfo     commandResult[certificateInfo]    `json:"certificate_info"`
	SSL20CipherSuites   commandResult[cipherSuitesResult] `json:"ssl_2_0_cipher_suites"`
	SSL30CipherSuites   commandResult[cipherSuitesResult] `json:"ssl_3_0_cipher_suites"`
	TLS10CipherSuites   commandResult[cipherSuitesResult] `json:"tls_1_0_cipher_suites"`
	TLS11CipherSuites   commandResult[cipherSuitesResult] `json:"tls_1_1_cipher_suites"`
	TLS12CipherSuites   commandResult[cipherSuitesResult] `json:"tls_1_2_cipher_suites"`
	TLS13CipherSuites   commandResult[cipherSuitesResult] `json:"tls_1_3_cipher_suites"`
	HTTPHeaders         commandResult[httpHeaders]        `json:"http_headers"`
	Heartbleed          commandResult[heartbleed]         `json:"heartbleed"`
	OpenSSLCCSInjection commandResult[ccsInjection]       `json:"openssl_ccs_injection"`
	Robot               commandResult[robot]              `json:"robot"`
}

// commandResult wraps each scan command's outcome.
type commandResult[T any] struct {
	Status      string `json:"status"`
	ErrorReason string `json:"error_reason"`
	ErrorTrace  string `json:"error_trace"`
	Result      *T     `json:"result"`
}

func (c commandResult[T]) value(command string) (*T, error) {
	switch {
	case c.Status == "" || c.Status == "NOT_SCHEDULED":
		return nil, fmt.Errorf("%w: %s was not scheduled", sharedErrors.ErrBackendFailure, command)
	case c.Status != "COMPLETED":
		reason := c.ErrorReason
		if reason == "" {
			reason = lastLine(c.ErrorTrace)
		}
		return nil, fmt.Errorf("%w: %s: %s", sharedErrors.ErrBackendFailure, command, reason)
	case c.Result == nil:
		return nil, fmt.Errorf("%w: %s returned no result", sharedErrors.ErrBackendFailure, command)
	}
	return c.Result, nil
}

type cipherSuitesResult struct {
	AcceptedCipherSuites []struct {
		CipherSuite struct {
			Name        string `json:"name"`
			OpenSSLName string `json:"openssl_name"`
		} `json:"cipher_suite"`
	} `json:"accepted_cipher_suites"`
}

// names prefers OpenSSL spelling, which the Mozilla documents use.
func (r cipherSuitesResult) names() []string {
	names := make([]string, 0, len(r.AcceptedCipherSuites))
	for _, accepted := range r.AcceptedCipherSuites {
		name := accepted.CipherSuite.OpenSSLName
		if name == "" {
			name = accepted.CipherSuite.Name
		}
		names = append(names, name)
	}
	return names
}

type certificateInfo struct {
	CertificateDeployments []certificateDeployment `json:"certificate_deployments"`
}

type certificateDeployment struct {
	LeafSubjectMatchesHostname *bool                  `json:"leaf_certificate_subject_matches_hostname"`
	ReceivedChainHasValidOrder *bool                  `json:"received_chain_has_valid_order"`
	VerifiedChainHasSHA1       *bool                  `json:"verified_chain_has_sha1_signature"`
	VerifiedChainHasSymantec   *bool                  `json:"verified_chain_has_legacy_symantec_anchor"`
	SCTCount                   *int                   `json:"leaf_certificate_signed_certificate_timestamps_count"`
	PathValidationResults      []pathValidationResult `json:"path_validation_results"`
	PathValidationErrors       []struct {
		TrustStore   trustStore `json:"trust_store"`
		ErrorMessage string     `json:"error_message"`
	} `json:"path_validation_error_list"`
}

type trustStore struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type pathValidationResult struct {
	TrustStore              trustStore `json:"trust_store"`
	WasValidationSuccessful bool       `json:"was_validation_successful"`
	OpenSSLErrorString      string     `json:"openssl_error_string"`
	ValidationError         string     `json:"validation_error"`
}

func (d certificateDeployment) flags() observation.CertificateFlags {
	flags := observation.CertificateFlags{
		HostnameMatches:         boolOr(d.LeafSubjectMatchesHostname, false),
		ChainOrderValid:         boolOr(d.ReceivedChainHasValidOrder, true),
		HasSHA1Signature:        boolOr(d.VerifiedChainHasSHA1, false),
		HasLegacySymantecAnchor: boolOr(d.VerifiedChainHasSymantec, false),
	}
	if d.SCTCount != nil {
		flags.SCTCount = *d.SCTCount
	}

	for _, r := range d.PathValidationResults {
		result := observation.TrustStoreResult{Store: r.TrustStore.Name, OK: r.WasValidationSuccessful}
		if !result.OK {
			result.Reason = r.OpenSSLErrorString
			if result.Reason == "" {
				result.Reason = r.ValidationError
			}
		}
		flags.TrustStores = append(flags.TrustStores, result)
	}
	for _, e := range d.PathValidationErrors {
		flags.ChainErrors = append(flags.ChainErrors, e.ErrorMessage)
	}
	return flags
}

type httpHeaders struct {
	HTTPErrorTrace string `json:"http_error_trace"`
	HSTS           *struct {
		MaxAge *int64 `json:"max_age"`
	} `json:"strict_transport_security_header"`
}

type heartbleed struct {
	IsVulnerable bool `json:"is_vulnerable_to_heartbleed"`
}

type ccsInjection struct {
	IsVulnerable bool `json:"is_vulnerable_to_ccs_injection"`
}

type robot struct {
	Result string `json:"robot_result"`
}

func (r robot) verdict() observation.RobotVerdict {
	switch r.Result {
	case "VULNERABLE_WEAK_ORACLE":
		return observation.RobotWeakOracle
	case "VULNERABLE_STRONG_ORACLE":
		return observation.RobotStrongOracle
	case "NOT_VULNERABLE_NO_ORACLE", "NOT_VULNERABLE_RSA_NOT_SUPPORTED":
		return observation.RobotNotVulnerable
	default:
		return observation.RobotUnknown
	}
}

// ParseOutput decodes sslyze JSON output.
func ParseOutput(data []byte) (*Output, error) {
	var out Output
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: sslyze output: %v", sharedErrors.ErrDeserializationFailed, err)
	}
	return &out, nil
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

func lastLine(trace string) string {
	lines := strings.Split(strings.TrimSpace(trace), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
