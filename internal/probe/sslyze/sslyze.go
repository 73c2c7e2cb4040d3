// Package sslyze runs the external sslyze scanner and maps its JSON output
// onto the probe interfaces. One sslyze invocation covers every probe for a
// target; the suite methods share its result.
package sslyze

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/khanhnv2901/tlsprofiler/internal/observation"
	"github.com/khanhnv2901/tlsprofiler/internal/probe"
	sharedErrors "github.com/khanhnv2901/tlsprofiler/internal/shared/errors"
)

const (
	defaultBinary   = "sslyze"
	defaultTimeout  = 10 * time.Minute
	defaultCacheTTL = 2 * time.Minute
)

// RunFunc executes a command and returns its standard output.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Config configures a Scanner.
type Config struct {
	// Path of the sslyze executable; "sslyze" from PATH when empty.
	Path string
	// CAFile is passed as an extra trust store for certificate validation.
	CAFile string
	// Timeout bounds one sslyze invocation.
	Timeout time.Duration
	// CacheTTL is how long a finished scan is reused for the same target.
	CacheTTL time.Duration
	Logger   *zap.Logger
	Run      RunFunc
}

// Scanner implements every probe interface by running sslyze once per
// target and caching the result.
type Scanner struct {
	path     string
	caFile   string
	timeout  time.Duration
	cacheTTL time.Duration
	logger   *zap.Logger
	run      RunFunc

	mu    sync.Mutex
	scans map[string]*scan
}

type scan struct {
	once       sync.Once
	done       chan struct{}
	result     *ServerScanResult
	err        error
	finishedAt time.Time
}

// New creates a Scanner.
func New(cfg Config) *Scanner {
	s := &Scanner{
		path:     cfg.Path,
		caFile:   cfg.CAFile,
		timeout:  cfg.Timeout,
		cacheTTL: cfg.CacheTTL,
		logger:   cfg.Logger,
		run:      cfg.Run,
		scans:    make(map[string]*scan),
	}
	if s.path == "" {
		s.path = defaultBinary
	}
	if s.timeout <= 0 {
		s.timeout = defaultTimeout
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = defaultCacheTTL
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.run == nil {
		s.run = execRun
	}
	return s
}

// Suite returns s wired into every slot of a probe.Suite.
func (s *Scanner) Suite() probe.Suite {
	return probe.Suite{
		Connectivity:    s,
		Ciphers:         s,
		Certificate:     s,
		Headers:         s,
		Vulnerabilities: s,
	}
}

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) // #nosec G204 -- binary comes from operator config, args are fixed flags and a parsed target.
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%w: %s", err, msg)
		}
		return out, err
	}
	return out, nil
}

func (s *Scanner) args(target probe.Target) []string {
	args := []string{
		"--json_out=-",
		"--quiet",
		"--certinfo",
		"--sslv2", "--sslv3", "--tlsv1", "--tlsv1_1", "--tlsv1_2", "--tlsv1_3",
		"--http_headers",
		"--heartbleed",
		"--openssl_ccs",
		"--robot",
	}
	if s.caFile != "" {
		args = append(args, "--certinfo_ca_file="+s.caFile)
	}
	return append(args, target.Addr())
}

// result returns the cached scan for target, starting one if needed. The
// scan runs detached from ctx so that every waiting probe can share it.
// The run is bounded by the scanner timeout, so a caller deadline does not
// end the wait; only cancellation of ctx does.
func (s *Scanner) result(ctx context.Context, target probe.Target) (*ServerScanResult, error) {
	key := target.Addr()

	s.mu.Lock()
	sc, ok := s.scans[key]
	if ok && !sc.finishedAt.IsZero() && time.Since(sc.finishedAt) > s.cacheTTL {
		ok = false
	}
	if !ok {
		sc = &scan{done: make(chan struct{})}
		s.scans[key] = sc
	}
	s.mu.Unlock()

	sc.once.Do(func() {
		go func() {
			runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
			defer cancel()

			result, err := s.invoke(runCtx, target)

			s.mu.Lock()
			sc.result, sc.err, sc.finishedAt = result, err, time.Now()
			s.mu.Unlock()
			close(sc.done)
		}()
	})

	for {
		select {
		case <-sc.done:
			return sc.result, sc.err
		case <-ctx.Done():
			if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ctx.Err()
			}
			s.logger.Debug("Waiting for sslyze past caller deadline", zap.String("target", target.String()))
			ctx = context.WithoutCancel(ctx)
		}
	}
}

func (s *Scanner) invoke(ctx context.Context, target probe.Target) (*ServerScanResult, error) {
	start := time.Now()
	s.logger.Info("Running sslyze", zap.String("target", target.String()), zap.String("binary", s.path))

	out, err := s.run(ctx, s.path, s.args(target)...)
	if err != nil && len(out) == 0 {
		return nil, fmt.Errorf("%w: sslyze: %v", sharedErrors.ErrBackendFailure, err)
	}
	if err != nil {
		s.logger.Warn("sslyze exited with error", zap.String("target", target.String()), zap.Error(err))
	}

	parsed, err := ParseOutput(out)
	if err != nil {
		return nil, err
	}
	if len(parsed.ServerScanResults) == 0 {
		return nil, fmt.Errorf("%w: sslyze returned no result for %s", sharedErrors.ErrBackendFailure, target)
	}

	s.logger.Debug("sslyze finished",
		zap.String("target", target.String()),
		zap.Duration("duration", time.Since(start)))
	result := parsed.ServerScanResults[0]
	return &result, nil
}

// completed returns the scan result section, or an error when sslyze could
// not connect.
func (s *Scanner) completed(ctx context.Context, target probe.Target) (*ScanResult, error) {
	result, err := s.result(ctx, target)
	if err != nil {
		return nil, err
	}
	if result.ConnectivityStatus == "ERROR" || result.ScanStatus == "ERROR_NO_CONNECTIVITY" {
		reason := lastLine(result.ConnectivityErrorTrace)
		if reason == "" {
			reason = "could not connect"
		}
		return nil, errors.New(reason)
	}
	if result.ScanResult == nil {
		return nil, fmt.Errorf("%w: sslyze scan has no results", sharedErrors.ErrBackendFailure)
	}
	return result.ScanResult, nil
}

// Check reports sslyze's connectivity verdict.
func (s *Scanner) Check(ctx context.Context, target probe.Target) error {
	_, err := s.completed(ctx, target)
	return err
}

func (s *Scanner) Scan(ctx context.Context, target probe.Target, protocol observation.Protocol) ([]string, error) {
	res, err := s.completed(ctx, target)
	if err != nil {
		return nil, err
	}

	var suites commandResult[cipherSuitesResult]
	switch protocol {
	case observation.SSLv2:
		suites = res.SSL20CipherSuites
	case observation.SSLv3:
		suites = res.SSL30CipherSuites
	case observation.TLSv1_0:
		suites = res.TLS10CipherSuites
	case observation.TLSv1_1:
		suites = res.TLS11CipherSuites
	case observation.TLSv1_2:
		suites = res.TLS12CipherSuites
	case observation.TLSv1_3:
		suites = res.TLS13CipherSuites
	default:
		return nil, fmt.Errorf("%w: %d", sharedErrors.ErrUnknownProtocol, int(protocol))
	}

	result, err := suites.value(protocol.String() + " cipher suites")
	if err != nil {
		return nil, err
	}
	return result.names(), nil
}

func (s *Scanner) Inspect(ctx context.Context, target probe.Target) (observation.CertificateFlags, error) {
	res, err := s.completed(ctx, target)
	if err != nil {
		return observation.CertificateFlags{}, err
	}
	info, err := res.CertificateInfo.value("certificate info")
	if err != nil {
		return observation.CertificateFlags{}, err
	}
	if len(info.CertificateDeployments) == 0 {
		return observation.CertificateFlags{}, fmt.Errorf("%w: no certificate deployment reported", sharedErrors.ErrBackendFailure)
	}
	return info.CertificateDeployments[0].flags(), nil
}

// FetchHSTS returns nil when the header is absent or carries no max-age.
func (s *Scanner) FetchHSTS(ctx context.Context, target probe.Target) (*int64, error) {
	res, err := s.completed(ctx, target)
	if err != nil {
		return nil, err
	}
	headers, err := res.HTTPHeaders.value("http headers")
	if err != nil {
		return nil, err
	}
	if headers.HTTPErrorTrace != "" {
		return nil, errors.New(lastLine(headers.HTTPErrorTrace))
	}
	if headers.HSTS == nil {
		return nil, nil
	}
	return headers.HSTS.MaxAge, nil
}

func (s *Scanner) Heartbleed(ctx context.Context, target probe.Target) (bool, error) {
	res, err := s.completed(ctx, target)
	if err != nil {
		return false, err
	}
	result, err := res.Heartbleed.value("heartbleed")
	if err != nil {
		return false, err
	}
	return result.IsVulnerable, nil
}

func (s *Scanner) CCSInjection(ctx context.Context, target probe.Target) (bool, error) {
	res, err := s.completed(ctx, target)
	if err != nil {
		return false, err
	}
	result, err := res.OpenSSLCCSInjection.value("openssl ccs injection")
	if err != nil {
		return false, err
	}
	return result.IsVulnerable, nil
}

func (s *Scanner) Robot(ctx context.Context, target probe.Target) (observation.RobotVerdict, error) {
	res, err := s.completed(ctx, target)
	if err != nil {
		return observation.RobotUnknown, err
	}
	result, err := res.Robot.value("robot")
	if err != nil {
		return observation.RobotUnknown, err
	}
	return result.verdict(), nil
}
