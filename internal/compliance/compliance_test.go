package compliance

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanhnv2901/tlsprofiler/internal/observation"
	"github.com/khanhnv2901/tlsprofiler/internal/profile"
)

var intermediate = profile.Profile{
	Name:             "intermediate",
	AllowedProtocols: observation.NewProtocolSet(observation.TLSv1_2, observation.TLSv1_3),
	AllowedCiphers: observation.NewStringSet(
		"TLS_AES_128_GCM_SHA256", "TLS_AES_256_GCM_SHA384", "TLS_CHACHA20_POLY1305_SHA256",
		"ECDHE-ECDSA-AES128-GCM-SHA256", "ECDHE-RSA-AES128-GCM-SHA256",
		"ECDHE-ECDSA-AES256-GCM-SHA384", "ECDHE-RSA-AES256-GCM-SHA384",
		"ECDHE-ECDSA-CHACHA20-POLY1305", "ECDHE-RSA-CHACHA20-POLY1305",
		"DHE-RSA-AES128-GCM-SHA256", "DHE-RSA-AES256-GCM-SHA384",
	),
	MinHSTSAge: 31536000,
}

func goodFlags() *observation.CertificateFlags {
	return &observation.CertificateFlags{
		TrustStores:     []observation.TrustStoreResult{{Store: "Mozilla", OK: true}, {Store: "Apple", OK: true}},
		HostnameMatches: true,
		ChainOrderValid: true,
		SCTCount:        2,
	}
}

func int64Ptr(v int64) *int64 { return &v }

func goodSnapshot() *observation.Snapshot {
	return &observation.Snapshot{
		Target:             "example.com:443",
		SupportedProtocols: observation.NewProtocolSet(observation.TLSv1_2, observation.TLSv1_3),
		SupportedCiphers:   observation.NewStringSet("ECDHE-RSA-AES128-GCM-SHA256", "TLS_AES_128_GCM_SHA256"),
		Certificate:        goodFlags(),
		HSTSMaxAge:         int64Ptr(31536000),
		Vulnerabilities:    &observation.Verdicts{Robot: observation.RobotNotVulnerable},
	}
}

func TestCheckProtocolsAndCiphers(t *testing.T) {
	snap := goodSnapshot()
	snap.SupportedProtocols.Add(observation.SSLv3)
	snap.SupportedProtocols.Add(observation.TLSv1_0)
	snap.SupportedCiphers.Add("RC4-SHA")
	snap.SupportedCiphers.Add("DES-CBC3-SHA")

	assert.Equal(t, []string{
		`must not support "SSLv3"`,
		`must not support "TLSv1"`,
		`must not support "DES-CBC3-SHA"`,
		`must not support "RC4-SHA"`,
	}, CheckProtocolsAndCiphers(snap, intermediate))
}

func TestCheckProtocolsAndCiphersStricterServer(t *testing.T) {
	snap := goodSnapshot()
	snap.SupportedProtocols = observation.NewProtocolSet(observation.TLSv1_3)
	snap.SupportedCiphers = observation.NewStringSet("TLS_AES_256_GCM_SHA384")

	assert.Empty(t, CheckProtocolsAndCiphers(snap, intermediate))
}

// Property: no errors iff observed protocols and ciphers are subsets of the
// allowed ones.
func TestCheckProtocolsAndCiphersSubsetProperty(t *testing.T) {
	ciphers := []string{"ECDHE-RSA-AES128-GCM-SHA256", "TLS_AES_128_GCM_SHA256", "RC4-SHA", "AES128-SHA", "DHE-RSA-AES256-GCM-SHA384"}
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		snap := &observation.Snapshot{
			SupportedProtocols: observation.NewProtocolSet(),
			SupportedCiphers:   observation.NewStringSet(),
		}
		for _, p := range observation.AllProtocols {
			if rng.Intn(3) == 0 {
				snap.SupportedProtocols.Add(p)
			}
		}
		for _, c := range ciphers {
			if rng.Intn(2) == 0 {
				snap.SupportedCiphers.Add(c)
			}
		}

		subset := len(snap.SupportedProtocols.Difference(intermediate.AllowedProtocols)) == 0 &&
			len(snap.SupportedCiphers.Difference(intermediate.AllowedCiphers)) == 0
		errs := CheckProtocolsAndCiphers(snap, intermediate)
		require.Equal(t, subset, len(errs) == 0, "iteration %d: %v", i, errs)
		require.Len(t, errs,
			len(snap.SupportedProtocols.Difference(intermediate.AllowedProtocols))+
				len(snap.SupportedCiphers.Difference(intermediate.AllowedCiphers)))
	}
}

func TestCheckProtocolsAndCiphersScanFailure(t *testing.T) {
	snap := goodSnapshot()
	snap.ProbeFailures = []observation.ProbeFailure{
		{Probe: observation.ProbeCipherScan, Protocol: observation.TLSv1_1, Err: "connection reset"},
		{Probe: observation.ProbeHeader, Err: "timeout"},
	}

	assert.Equal(t, []string{"could not determine cipher support for TLSv1.1: connection reset"},
		CheckProtocolsAndCiphers(snap, intermediate))
}

func TestCheckCertificateAllGood(t *testing.T) {
	assert.Empty(t, CheckCertificate(goodFlags()))
	assert.Empty(t, CheckCertificate(nil))
}

func TestCheckCertificateSingleFlagFlips(t *testing.T) {
	tests := []struct {
		name string
		flip func(f *observation.CertificateFlags)
		want string
	}{
		{
			name: "trust store fails",
			flip: func(f *observation.CertificateFlags) {
				f.TrustStores[1] = observation.TrustStoreResult{Store: "Apple", Reason: "certificate has expired"}
			},
			want: "validation not successful: certificate has expired (trust store Apple)",
		},
		{
			name: "chain errors",
			flip: func(f *observation.CertificateFlags) {
				f.ChainErrors = []string{"Java: store unreadable", "Windows: timeout"}
			},
			want: "Validation failed: Java: store unreadable, Windows: timeout",
		},
		{
			name: "hostname mismatch",
			flip: func(f *observation.CertificateFlags) { f.HostnameMatches = false },
			want: "Leaf certificate subject does not match hostname!",
		},
		{
			name: "wrong order",
			flip: func(f *observation.CertificateFlags) { f.ChainOrderValid = false },
			want: "Certificate chain has wrong order.",
		},
		{
			name: "sha1",
			flip: func(f *observation.CertificateFlags) { f.HasSHA1Signature = true },
			want: "SHA1 signature found in chain.",
		},
		{
			name: "symantec",
			flip: func(f *observation.CertificateFlags) { f.HasLegacySymantecAnchor = true },
			want: "Symantec legacy certificate found in chain.",
		},
		{
			name: "too few SCTs",
			flip: func(f *observation.CertificateFlags) { f.SCTCount = 1 },
			want: "Not enough SCTs in certificate, only found 1.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := goodFlags()
			tt.flip(flags)
			assert.Equal(t, []string{tt.want}, CheckCertificate(flags))
		})
	}
}

func TestCheckCertificateNoShortCircuit(t *testing.T) {
	flags := &observation.CertificateFlags{
		TrustStores:      []observation.TrustStoreResult{{Store: "Mozilla", Reason: "self signed certificate"}},
		HasSHA1Signature: true,
	}

	assert.Equal(t, []string{
		"validation not successful: self signed certificate (trust store Mozilla)",
		MsgHostnameMismatch,
		MsgWrongChainOrder,
		MsgSHA1Signature,
		"Not enough SCTs in certificate, only found 0.",
	}, CheckCertificate(flags))
}

func TestCheckHSTS(t *testing.T) {
	assert.Equal(t, []string{"HSTS header not set"}, CheckHSTS(nil, intermediate))
	assert.Equal(t, []string{"wrong HSTS age 31535999"}, CheckHSTS(int64Ptr(intermediate.MinHSTSAge-1), intermediate))
	assert.Empty(t, CheckHSTS(int64Ptr(intermediate.MinHSTSAge), intermediate))
	assert.Empty(t, CheckHSTS(int64Ptr(63072000), intermediate))
}

func TestCheckVulnerabilities(t *testing.T) {
	tests := []struct {
		name     string
		verdicts *observation.Verdicts
		want     []string
	}{
		{"none", &observation.Verdicts{Robot: observation.RobotNotVulnerable}, nil},
		{"no data", nil, nil},
		{"heartbleed only", &observation.Verdicts{Heartbleed: true, Robot: observation.RobotNotVulnerable}, []string{MsgHeartbleed}},
		{"ccs", &observation.Verdicts{CCSInjection: true}, []string{MsgCCSInjection}},
		{"robot weak", &observation.Verdicts{Robot: observation.RobotWeakOracle}, []string{MsgRobot}},
		{"robot strong", &observation.Verdicts{Robot: observation.RobotStrongOracle}, []string{MsgRobot}},
		{"robot unknown", &observation.Verdicts{Robot: observation.RobotUnknown}, nil},
		{"all", &observation.Verdicts{Heartbleed: true, CCSInjection: true, Robot: observation.RobotStrongOracle}, []string{MsgHeartbleed, MsgCCSInjection, MsgRobot}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckVulnerabilities(tt.verdicts))
		})
	}
}

func TestBuildReport(t *testing.T) {
	r := BuildReport(nil, []string{"p1"}, []string{"h1"}, nil)

	assert.Equal(t, []string{}, r.ValidationErrors)
	assert.Equal(t, []string{"p1", "h1"}, r.ProfileErrors)
	assert.True(t, r.Validated)
	assert.False(t, r.ProfileMatched)
	assert.False(t, r.Vulnerable)
	assert.False(t, r.AllOK)

	r = BuildReport(nil, nil, nil, []string{MsgRobot})
	assert.True(t, r.Vulnerable)
	assert.False(t, r.AllOK)
}

func TestEvaluateAllOK(t *testing.T) {
	r := Evaluate(goodSnapshot(), intermediate)

	assert.True(t, r.AllOK, r.String())
	assert.True(t, r.Validated)
	assert.True(t, r.ProfileMatched)
	assert.False(t, r.Vulnerable)
}

func TestEvaluateSSLv3(t *testing.T) {
	snap := goodSnapshot()
	snap.SupportedProtocols.Add(observation.SSLv3)

	r := Evaluate(snap, intermediate)

	assert.Contains(t, r.ProfileErrors, `must not support "SSLv3"`)
	assert.False(t, r.AllOK)
	assert.True(t, r.Validated)
}

func TestEvaluateIdempotent(t *testing.T) {
	snap := goodSnapshot()
	snap.SupportedProtocols.Add(observation.TLSv1_1)
	snap.SupportedCiphers.Add("AES128-SHA")
	snap.Certificate.SCTCount = 0
	snap.HSTSMaxAge = nil
	snap.Vulnerabilities.Heartbleed = true

	first := Evaluate(snap, intermediate)
	second := Evaluate(snap, intermediate)
	assert.Equal(t, first, second)
	assert.Equal(t, first.String(), second.String())
}

func TestEvaluateProbeFailures(t *testing.T) {
	snap := goodSnapshot()
	snap.Certificate = nil
	snap.HSTSMaxAge = nil
	snap.Vulnerabilities = &observation.Verdicts{}
	snap.ProbeFailures = []observation.ProbeFailure{
		{Probe: observation.ProbeCertificate, Err: "handshake timeout"},
		{Probe: observation.ProbeHeader, Err: "connection refused"},
		{Probe: observation.ProbeRobot, Err: "no RSA cipher"},
	}

	r := Evaluate(snap, intermediate)

	assert.Equal(t, []string{"certificate inspection failed: handshake timeout"}, r.ValidationErrors)
	assert.Equal(t, []string{"could not fetch HSTS header: connection refused"}, r.ProfileErrors)
	assert.Equal(t, []string{"could not test for ROBOT: no RSA cipher"}, r.VulnerabilityErrors)
	assert.False(t, r.AllOK)
}

func TestEvaluateSkippedProbes(t *testing.T) {
	snap := goodSnapshot()
	snap.Vulnerabilities = nil
	snap.Skipped = []observation.ProbeFailure{
		{Probe: observation.ProbeCipherScan, Protocol: observation.SSLv2, Err: "not testable"},
		{Probe: observation.ProbeHeartbleed, Err: "not testable"},
	}

	assert.True(t, Evaluate(snap, intermediate).AllOK)
}

func TestReportString(t *testing.T) {
	r := BuildReport([]string{MsgSHA1Signature}, []string{`must not support "SSLv3"`}, nil, nil)

	want := fmt.Sprintf("Validation Errors: [%q]\n\n", MsgSHA1Signature) +
		"Profile Errors: [\"must not support \\\"SSLv3\\\"\"]\n\n" +
		"Vulnerability Errors: []\n\n" +
		"Validated: false\n\n" +
		"Profile Matched: false\n\n" +
		"Vulnerable: false\n\n" +
		"All ok: false"
	assert.Equal(t, want, r.String())
}
