package native

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/khanhnv2901/tlsprofiler/internal/observation"
	"github.com/khanhnv2901/tlsprofiler/internal/probe"
)

// oidSCTList is the embedded SignedCertificateTimestampList extension
// (RFC 6962 section 3.3).
var oidSCTList = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 11129, 2, 4, 2}

var errMalformedSCTList = errors.New("malformed SCT list extension")

// Root organizations distrusted by browsers in the Symantec PKI phase-out.
var legacySymantecOrganizations = []string{
	"Symantec Corporation",
	"VeriSign, Inc.",
	"GeoTrust Inc.",
	"GeoTrust, Inc.",
	"thawte, Inc.",
	"Equifax",
	"Equifax Secure Inc.",
}

// TrustStore is a named root pool. Err records why the store could not be
// loaded; such a store is reported as a chain error instead of a verdict.
type TrustStore struct {
	Name string
	Pool *x509.CertPool
	Err  error
}

// SystemTrustStore returns the platform root pool, named "system".
func SystemTrustStore() TrustStore {
	pool, err := x509.SystemCertPool()
	return TrustStore{Name: "system", Pool: pool, Err: err}
}

// LoadTrustStore reads a PEM bundle. The store is named after the file.
func LoadTrustStore(path string) (TrustStore, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied bundle
	if err != nil {
		return TrustStore{}, fmt.Errorf("read trust store %s: %w", path, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return TrustStore{}, fmt.Errorf("trust store %s: no PEM certificates found", path)
	}
	return TrustStore{Name: filepath.Base(path), Pool: pool}, nil
}

// NewTrustStore builds a store from already parsed roots.
func NewTrustStore(name string, roots ...*x509.Certificate) TrustStore {
	pool := x509.NewCertPool()
	for _, root := range roots {
		pool.AddCert(root)
	}
	return TrustStore{Name: name, Pool: pool}
}

// Inspect fetches the served chain and evaluates it against every trust store.
func (p *Prober) Inspect(ctx context.Context, target probe.Target) (observation.CertificateFlags, error) {
	conn, err := p.dial(ctx, target)
	if err != nil {
		return observation.CertificateFlags{}, err
	}
	defer conn.Close()

	cfg := p.baseConfig(target)
	cfg.MinVersion = tls.VersionTLS10
	state, err := p.handshake(ctx, conn, cfg)
	if err != nil {
		return observation.CertificateFlags{}, fmt.Errorf("tls handshake with %s: %w", target, err)
	}
	if len(state.PeerCertificates) == 0 {
		return observation.CertificateFlags{}, fmt.Errorf("%s sent no certificate", target)
	}

	flags := inspectChain(target.Host, state.PeerCertificates, p.trustStores, time.Now())

	count, err := countEmbeddedSCTs(state.PeerCertificates[0])
	if err != nil {
		p.logger.Warn("Ignoring unreadable SCT list",
			zap.String("target", target.String()),
			zap.Error(err))
	}
	flags.SCTCount = count

	return flags, nil
}

func inspectChain(host string, received []*x509.Certificate, stores []TrustStore, now time.Time) observation.CertificateFlags {
	leaf := received[0]
	intermediates := x509.NewCertPool()
	for _, cert := range received[1:] {
		intermediates.AddCert(cert)
	}

	flags := observation.CertificateFlags{
		HostnameMatches: leaf.VerifyHostname(host) == nil,
		ChainOrderValid: hasValidOrder(received),
	}

	var verified []*x509.Certificate
	for _, store := range stores {
		if store.Err != nil {
			flags.ChainErrors = append(flags.ChainErrors, fmt.Sprintf("%s: %v", store.Name, store.Err))
			continue
		}

		chains, err := leaf.Verify(x509.VerifyOptions{
			Roots:         store.Pool,
			Intermediates: intermediates,
			CurrentTime:   now,
			KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		})
		result := observation.TrustStoreResult{Store: store.Name, OK: err == nil}
		if err != nil {
			result.Reason = err.Error()
		} else if verified == nil && len(chains) > 0 {
			verified = chains[0]
		}
		flags.TrustStores = append(flags.TrustStores, result)
	}

	// crypto/x509 refuses SHA-1 signatures, so a chain relying on one never
	// verifies; fall back to the received chain to still report it.
	if verified != nil {
		flags.HasSHA1Signature = hasSHA1Signature(verified)
		flags.HasLegacySymantecAnchor = isLegacySymantecAnchor(verified[len(verified)-1])
	} else {
		flags.HasSHA1Signature = hasSHA1Signature(received)
	}

	return flags
}

// hasValidOrder reports whether each certificate is issued by the next one:
// the issuer name matches and the next key verifies the signature. SHA-1
// signatures are accepted here; they are reported separately.
func hasValidOrder(chain []*x509.Certificate) bool {
	for i := 0; i+1 < len(chain); i++ {
		if !bytes.Equal(chain[i].RawIssuer, chain[i+1].RawSubject) {
			return false
		}
		if err := chain[i].CheckSignatureFrom(chain[i+1]); err != nil {
			var insecure x509.InsecureAlgorithmError
			if !errors.As(err, &insecure) {
				return false
			}
		}
	}
	return true
}

// hasSHA1Signature ignores the self-signature of a trailing root.
func hasSHA1Signature(chain []*x509.Certificate) bool {
	for i, cert := range chain {
		if i == len(chain)-1 && bytes.Equal(cert.RawIssuer, cert.RawSubject) {
			continue
		}
		switch cert.SignatureAlgorithm {
		case x509.SHA1WithRSA, x509.DSAWithSHA1, x509.ECDSAWithSHA1:
			return true
		}
	}
	return false
}

func isLegacySymantecAnchor(root *x509.Certificate) bool {
	for _, org := range root.Subject.Organization {
		if slices.Contains(legacySymantecOrganizations, org) {
			return true
		}
	}
	return false
}

func countEmbeddedSCTs(leaf *x509.Certificate) (int, error) {
	for _, ext := range leaf.Extensions {
		if ext.Id.Equal(oidSCTList) {
			return parseSCTList(ext.Value)
		}
	}
	return 0, nil
}

// parseSCTList counts the entries of a DER OCTET STRING wrapping a TLS
// encoded SignedCertificateTimestampList.
func parseSCTList(der []byte) (int, error) {
	input := cryptobyte.String(der)
	var octets, list cryptobyte.String
	if !input.ReadASN1(&octets, cbasn1.OCTET_STRING) || !input.Empty() {
		return 0, errMalformedSCTList
	}
	if !octets.ReadUint16LengthPrefixed(&list) || !octets.Empty() {
		return 0, errMalformedSCTList
	}

	count := 0
	for !list.Empty() {
		var sct cryptobyte.String
		if !list.ReadUint16LengthPrefixed(&sct) || sct.Empty() {
			return 0, errMalformedSCTList
		}
		count++
	}
	return count, nil
}
