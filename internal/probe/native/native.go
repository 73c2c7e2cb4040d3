// Package native measures a TLS endpoint with Go's own crypto/tls stack.
//
// It covers TLS 1.0 through 1.3, certificate validation and the HSTS header.
// SSLv2, SSLv3 and the attack checks need raw record crafting and are
// reported as probe.ErrNotTestable.
package native

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/khanhnv2901/tlsprofiler/internal/probe"
)

const defaultDialTimeout = 10 * time.Second

// Config configures a Prober.
type Config struct {
	DialTimeout time.Duration
	// TrustStores are checked in order. Empty means the system store only.
	TrustStores []TrustStore
	Logger      *zap.Logger
}

// Prober implements every probe interface on top of crypto/tls.
type Prober struct {
	dialTimeout time.Duration
	trustStores []TrustStore
	logger      *zap.Logger
}

// New creates a Prober from cfg.
func New(cfg Config) *Prober {
	p := &Prober{
		dialTimeout: cfg.DialTimeout,
		trustStores: cfg.TrustStores,
		logger:      cfg.Logger,
	}
	if p.dialTimeout <= 0 {
		p.dialTimeout = defaultDialTimeout
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if len(p.trustStores) == 0 {
		p.trustStores = []TrustStore{SystemTrustStore()}
	}
	return p
}

// Suite returns p wired into every slot of a probe.Suite.
func (p *Prober) Suite() probe.Suite {
	return probe.Suite{
		Connectivity:    p,
		Ciphers:         p,
		Certificate:     p,
		Headers:         p,
		Vulnerabilities: p,
	}
}

// Check completes one TLS handshake with the widest version range Go offers.
func (p *Prober) Check(ctx context.Context, target probe.Target) error {
	conn, err := p.dial(ctx, target)
	if err != nil {
		return err
	}
	defer conn.Close()

	cfg := p.baseConfig(target)
	cfg.MinVersion = tls.VersionTLS10
	if _, err := p.handshake(ctx, conn, cfg); err != nil {
		return fmt.Errorf("tls handshake with %s: %w", target, err)
	}
	return nil
}

func (p *Prober) dial(ctx context.Context, target probe.Target) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: p.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", target.Addr())
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", target, err)
	}
	return conn, nil
}

func (p *Prober) handshake(ctx context.Context, conn net.Conn, cfg *tls.Config) (tls.ConnectionState, error) {
	hsCtx, cancel := context.WithTimeout(ctx, p.dialTimeout)
	defer cancel()

	client := tls.Client(conn, cfg)
	if err := client.HandshakeContext(hsCtx); err != nil {
		return tls.ConnectionState{}, err
	}
	return client.ConnectionState(), nil
}

// baseConfig skips verification; certificates are validated separately
// against each configured trust store.
func (p *Prober) baseConfig(target probe.Target) *tls.Config {
	cfg := &tls.Config{
		InsecureSkipVerify: true,
	}
	if net.ParseIP(target.Host) == nil {
		cfg.ServerName = target.Host
	}
	return cfg
}
