package native

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/khanhnv2901/tlsprofiler/internal/observation"
	"github.com/khanhnv2901/tlsprofiler/internal/probe"
)

func newTLSServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, probe.Target) {
	t.Helper()
	ts := httptest.NewUnstartedServer(handler)
	ts.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	ts.StartTLS()
	t.Cleanup(ts.Close)

	target, err := probe.ParseTarget(ts.URL)
	require.NoError(t, err)
	return ts, target
}

func newTestProber(t *testing.T, stores ...TrustStore) *Prober {
	t.Helper()
	if len(stores) == 0 {
		stores = []TrustStore{NewTrustStore("empty")}
	}
	return New(Config{
		DialTimeout: 5 * time.Second,
		TrustStores: stores,
		Logger:      zaptest.NewLogger(t),
	})
}

func TestCheck(t *testing.T) {
	_, target := newTLSServer(t, func(w http.ResponseWriter, r *http.Request) {})
	p := newTestProber(t)

	assert.NoError(t, p.Check(context.Background(), target))
}

func TestCheckUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())

	p := newTestProber(t)
	err = p.Check(context.Background(), probe.Target{Host: "127.0.0.1", Port: addr.Port})
	assert.Error(t, err)
}

func TestScan(t *testing.T) {
	_, target := newTLSServer(t, func(w http.ResponseWriter, r *http.Request) {})
	p := newTestProber(t)
	ctx := context.Background()

	tls12, err := p.Scan(ctx, target, observation.TLSv1_2)
	require.NoError(t, err)
	assert.Contains(t, tls12, "ECDHE-RSA-AES128-GCM-SHA256")
	assert.NotContains(t, tls12, "ECDHE-ECDSA-AES128-GCM-SHA256", "RSA certificate cannot serve ECDSA suites")

	tls10, err := p.Scan(ctx, target, observation.TLSv1_0)
	require.NoError(t, err)
	assert.Empty(t, tls10)

	tls13, err := p.Scan(ctx, target, observation.TLSv1_3)
	require.NoError(t, err)
	require.Len(t, tls13, 1)
	assert.True(t, strings.HasPrefix(tls13[0], "TLS_"), "TLS 1.3 suites keep IANA names: %s", tls13[0])
}

func TestScanLegacyProtocolsNotTestable(t *testing.T) {
	p := newTestProber(t)
	for _, protocol := range []observation.Protocol{observation.SSLv2, observation.SSLv3} {
		_, err := p.Scan(context.Background(), probe.Target{Host: "127.0.0.1", Port: 1}, protocol)
		assert.ErrorIs(t, err, probe.ErrNotTestable, protocol.String())
	}
}

func TestOpenSSLName(t *testing.T) {
	assert.Equal(t, "ECDHE-RSA-CHACHA20-POLY1305", OpenSSLName(tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256))
	assert.Equal(t, "DES-CBC3-SHA", OpenSSLName(tls.TLS_RSA_WITH_3DES_EDE_CBC_SHA))
	assert.Equal(t, "TLS_AES_256_GCM_SHA384", OpenSSLName(tls.TLS_AES_256_GCM_SHA384))
}

func TestInspect(t *testing.T) {
	ts, target := newTLSServer(t, func(w http.ResponseWriter, r *http.Request) {})
	p := newTestProber(t,
		NewTrustStore("test", ts.Certificate()),
		NewTrustStore("empty"),
		TrustStore{Name: "broken", Err: errors.New("not available")},
	)

	flags, err := p.Inspect(context.Background(), target)
	require.NoError(t, err)

	require.Len(t, flags.TrustStores, 2)
	assert.Equal(t, observation.TrustStoreResult{Store: "test", OK: true}, flags.TrustStores[0])
	assert.False(t, flags.TrustStores[1].OK)
	assert.NotEmpty(t, flags.TrustStores[1].Reason)
	assert.Equal(t, []string{"broken: not available"}, flags.ChainErrors)
	assert.True(t, flags.HostnameMatches)
	assert.True(t, flags.ChainOrderValid)
	assert.False(t, flags.HasSHA1Signature)
	assert.False(t, flags.HasLegacySymantecAnchor)
	assert.Zero(t, flags.SCTCount)
}

func TestInspectChainHostnameMismatch(t *testing.T) {
	root, leaf := newChain(t, "www.example.org")
	flags := inspectChain("other.example.org", []*x509.Certificate{leaf, root}, []TrustStore{NewTrustStore("test", root)}, time.Now())

	assert.False(t, flags.HostnameMatches)
	assert.True(t, flags.ChainOrderValid)
	assert.True(t, flags.TrustStores[0].OK)
}

func TestHasValidOrder(t *testing.T) {
	root, leaf := newChain(t, "www.example.org")

	assert.True(t, hasValidOrder([]*x509.Certificate{leaf}))
	assert.True(t, hasValidOrder([]*x509.Certificate{leaf, root}))
	assert.False(t, hasValidOrder([]*x509.Certificate{root, leaf}))
}

func TestHasValidOrderRequiresIssuerSignature(t *testing.T) {
	_, leaf := newChain(t, "www.example.org")
	impostor, _ := newChain(t, "www.example.org")

	require.Equal(t, leaf.RawIssuer, impostor.RawSubject, "same issuer name, different key")
	assert.False(t, hasValidOrder([]*x509.Certificate{leaf, impostor}))
}

func TestHasSHA1Signature(t *testing.T) {
	sha1Intermediate := &x509.Certificate{SignatureAlgorithm: x509.SHA1WithRSA, RawIssuer: []byte("root"), RawSubject: []byte("intermediate")}
	sha1Root := &x509.Certificate{SignatureAlgorithm: x509.SHA1WithRSA, RawIssuer: []byte("root"), RawSubject: []byte("root")}
	leaf := &x509.Certificate{SignatureAlgorithm: x509.SHA256WithRSA, RawIssuer: []byte("intermediate"), RawSubject: []byte("leaf")}

	assert.True(t, hasSHA1Signature([]*x509.Certificate{leaf, sha1Intermediate}))
	assert.False(t, hasSHA1Signature([]*x509.Certificate{leaf, sha1Root}), "root self-signature is ignored")
}

func TestIsLegacySymantecAnchor(t *testing.T) {
	verisign := &x509.Certificate{Subject: pkix.Name{Organization: []string{"VeriSign, Inc."}}}
	other := &x509.Certificate{Subject: pkix.Name{Organization: []string{"Internet Security Research Group"}}}

	assert.True(t, isLegacySymantecAnchor(verisign))
	assert.False(t, isLegacySymantecAnchor(other))
}

func TestParseSCTList(t *testing.T) {
	build := func(scts ...[]byte) []byte {
		var b cryptobyte.Builder
		b.AddASN1(cbasn1.OCTET_STRING, func(b *cryptobyte.Builder) {
			b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
				for _, sct := range scts {
					b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
						b.AddBytes(sct)
					})
				}
			})
		})
		return b.BytesOrPanic()
	}

	count, err := parseSCTList(build([]byte{0, 1}, []byte{2, 3}, []byte{4}))
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = parseSCTList(build())
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = parseSCTList(build([]byte{}))
	assert.ErrorIs(t, err, errMalformedSCTList)

	_, err = parseSCTList([]byte{0x04, 0x05, 0x00})
	assert.ErrorIs(t, err, errMalformedSCTList)
}

func TestFetchHSTS(t *testing.T) {
	_, target := newTLSServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	})
	p := newTestProber(t)

	maxAge, err := p.FetchHSTS(context.Background(), target)
	require.NoError(t, err)
	require.NotNil(t, maxAge)
	assert.Equal(t, int64(63072000), *maxAge)
}

func TestFetchHSTSAbsentOrInvalid(t *testing.T) {
	for name, header := range map[string]string{"absent": "", "invalid": "includeSubDomains"} {
		t.Run(name, func(t *testing.T) {
			_, target := newTLSServer(t, func(w http.ResponseWriter, r *http.Request) {
				if header != "" {
					w.Header().Set("Strict-Transport-Security", header)
				}
			})
			p := newTestProber(t)

			maxAge, err := p.FetchHSTS(context.Background(), target)
			require.NoError(t, err)
			assert.Nil(t, maxAge)
		})
	}
}

func TestVulnerabilitiesNotTestable(t *testing.T) {
	p := newTestProber(t)
	ctx := context.Background()
	target := probe.Target{Host: "127.0.0.1", Port: 443}

	_, err := p.Heartbleed(ctx, target)
	assert.ErrorIs(t, err, probe.ErrNotTestable)
	_, err = p.CCSInjection(ctx, target)
	assert.ErrorIs(t, err, probe.ErrNotTestable)
	verdict, err := p.Robot(ctx, target)
	assert.ErrorIs(t, err, probe.ErrNotTestable)
	assert.Equal(t, observation.RobotUnknown, verdict)
}

// newChain issues a CA and a leaf for host signed by it.
func newChain(t *testing.T, host string) (root, leaf *x509.Certificate) {
	t.Helper()

	rootKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	rootTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "Test Root", Organization: []string{"tlsprofiler"}},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	rootDER, err := x509.CreateCertificate(rand.Reader, rootTmpl, rootTmpl, &rootKey.PublicKey, rootKey)
	require.NoError(t, err)
	root, err = x509.ParseCertificate(rootDER)
	require.NoError(t, err)

	leafKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	leafTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: host},
		DNSNames:     []string{host},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTmpl, root, &leafKey.PublicKey, rootKey)
	require.NoError(t, err)
	leaf, err = x509.ParseCertificate(leafDER)
	require.NoError(t, err)

	return root, leaf
}
