package native

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/khanhnv2901/tlsprofiler/internal/probe"
)

// FetchHSTS requests "/" over HTTPS and parses Strict-Transport-Security
// from the first response. Redirects are not followed. A header that
// browsers would ignore is reported as absent.
func (p *Prober) FetchHSTS(ctx context.Context, target probe.Target) (*int64, error) {
	transport := &http.Transport{
		DialContext:         (&net.Dialer{Timeout: p.dialTimeout}).DialContext,
		TLSClientConfig:     p.baseConfig(target),
		TLSHandshakeTimeout: p.dialTimeout,
		DisableKeepAlives:   true,
	}
	defer transport.CloseIdleConnections()

	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	url := fmt.Sprintf("https://%s/", target.Addr())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Host = target.Host
	req.Header.Set("User-Agent", "tlsprofiler")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	maxAge, err := probe.ParseHSTSMaxAge(resp.Header.Get("Strict-Transport-Security"))
	if err != nil {
		p.logger.Debug("Ignoring invalid HSTS header",
			zap.String("target", target.String()),
			zap.Error(err))
		return nil, nil
	}
	return maxAge, nil
}
