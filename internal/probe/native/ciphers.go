package native

import (
	"context"
	"crypto/tls"
	"fmt"

	"go.uber.org/zap"

	"github.com/khanhnv2901/tlsprofiler/internal/observation"
	"github.com/khanhnv2901/tlsprofiler/internal/probe"
)

// openSSLNames maps Go's cipher suite IDs to the OpenSSL names used by the
// Mozilla profile documents. TLS 1.3 suites keep their IANA names.
var openSSLNames = map[uint16]string{
	tls.TLS_RSA_WITH_RC4_128_SHA:                      "RC4-SHA",
	tls.TLS_RSA_WITH_3DES_EDE_CBC_SHA:                 "DES-CBC3-SHA",
	tls.TLS_RSA_WITH_AES_128_CBC_SHA:                  "AES128-SHA",
	tls.TLS_RSA_WITH_AES_256_CBC_SHA:                  "AES256-SHA",
	tls.TLS_RSA_WITH_AES_128_CBC_SHA256:               "AES128-SHA256",
	tls.TLS_RSA_WITH_AES_128_GCM_SHA256:               "AES128-GCM-SHA256",
	tls.TLS_RSA_WITH_AES_256_GCM_SHA384:               "AES256-GCM-SHA384",
	tls.TLS_ECDHE_ECDSA_WITH_RC4_128_SHA:              "ECDHE-ECDSA-RC4-SHA",
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA:          "ECDHE-ECDSA-AES128-SHA",
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_CBC_SHA:          "ECDHE-ECDSA-AES256-SHA",
	tls.TLS_ECDHE_RSA_WITH_RC4_128_SHA:                "ECDHE-RSA-RC4-SHA",
	tls.TLS_ECDHE_RSA_WITH_3DES_EDE_CBC_SHA:           "ECDHE-RSA-DES-CBC3-SHA",
	tls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA:            "ECDHE-RSA-AES128-SHA",
	tls.TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA:            "ECDHE-RSA-AES256-SHA",
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA256:       "ECDHE-ECDSA-AES128-SHA256",
	tls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA256:         "ECDHE-RSA-AES128-SHA256",
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256:         "ECDHE-RSA-AES128-GCM-SHA256",
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256:       "ECDHE-ECDSA-AES128-GCM-SHA256",
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384:         "ECDHE-RSA-AES256-GCM-SHA384",
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384:       "ECDHE-ECDSA-AES256-GCM-SHA384",
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256:   "ECDHE-RSA-CHACHA20-POLY1305",
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256: "ECDHE-ECDSA-CHACHA20-POLY1305",
}

// OpenSSLName returns the OpenSSL spelling of a cipher suite ID, falling
// back to Go's IANA name.
func OpenSSLName(id uint16) string {
	if name, ok := openSSLNames[id]; ok {
		return name
	}
	return tls.CipherSuiteName(id)
}

func tlsVersion(p observation.Protocol) (uint16, bool) {
	switch p {
	case observation.SSLv2, observation.SSLv3:
		return 0, false
	case observation.TLSv1_0:
		return tls.VersionTLS10, true
	case observation.TLSv1_1:
		return tls.VersionTLS11, true
	case observation.TLSv1_2:
		return tls.VersionTLS12, true
	case observation.TLSv1_3:
		return tls.VersionTLS13, true
	}
	return 0, false
}

// suitesFor lists every suite Go can offer at version, secure ones first.
func suitesFor(version uint16) []uint16 {
	var ids []uint16
	all := append(tls.CipherSuites(), tls.InsecureCipherSuites()...)
	for _, suite := range all {
		for _, v := range suite.SupportedVersions {
			if v == version {
				ids = append(ids, suite.ID)
				break
			}
		}
	}
	return ids
}

// Scan offers one cipher suite per handshake with the version pinned, so a
// completed handshake means the server accepts that suite. Go cannot pin a
// TLS 1.3 suite; for TLS 1.3 the suite the server picks is reported.
func (p *Prober) Scan(ctx context.Context, target probe.Target, protocol observation.Protocol) ([]string, error) {
	version, ok := tlsVersion(protocol)
	if !ok {
		return nil, fmt.Errorf("%w: %s needs a raw handshake", probe.ErrNotTestable, protocol)
	}

	if version == tls.VersionTLS13 {
		state, accepted, err := p.try(ctx, target, version, nil)
		if err != nil || !accepted {
			return nil, err
		}
		return []string{OpenSSLName(state.CipherSuite)}, nil
	}

	var accepted []string
	for _, id := range suitesFor(version) {
		_, ok, err := p.try(ctx, target, version, []uint16{id})
		if err != nil {
			return nil, err
		}
		if ok {
			accepted = append(accepted, OpenSSLName(id))
		}
	}

	p.logger.Debug("Cipher scan finished",
		zap.String("target", target.String()),
		zap.String("protocol", protocol.String()),
		zap.Int("accepted", len(accepted)))
	return accepted, nil
}

// try reports whether a handshake pinned to version and suites completes.
// Only dial failures and cancellation are errors; a refused handshake is not.
func (p *Prober) try(ctx context.Context, target probe.Target, version uint16, suites []uint16) (tls.ConnectionState, bool, error) {
	conn, err := p.dial(ctx, target)
	if err != nil {
		return tls.ConnectionState{}, false, err
	}
	defer conn.Close()

	cfg := p.baseConfig(target)
	cfg.MinVersion = version
	cfg.MaxVersion = version
	cfg.CipherSuites = suites

	state, err := p.handshake(ctx, conn, cfg)
	if err != nil {
		if ctx.Err() != nil {
			return tls.ConnectionState{}, false, ctx.Err()
		}
		return tls.ConnectionState{}, false, nil
	}
	return state, true, nil
}
