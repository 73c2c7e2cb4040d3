// Package collector gathers one Snapshot per target by running every probe
// of a probe.Suite concurrently.
package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"

	"github.com/khanhnv2901/tlsprofiler/internal/observation"
	"github.com/khanhnv2901/tlsprofiler/internal/probe"
	"github.com/khanhnv2901/tlsprofiler/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/tlsprofiler/internal/shared/errors"
)

// Collector runs the probes of Suite against a target.
type Collector struct {
	Suite        probe.Suite
	Logger       *zap.Logger
	ProbeTimeout time.Duration
}

// New returns a Collector with the default probe timeout.
func New(suite probe.Suite, logger *zap.Logger) *Collector {
	return &Collector{
		Suite:        suite,
		Logger:       logger,
		ProbeTimeout: constants.DefaultProbeTimeout,
	}
}

func (c *Collector) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c *Collector) probeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.ProbeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.ProbeTimeout)
}

// Collect checks connectivity, then runs all probes and waits for every one
// of them. A failed connectivity check returns a *ConnectivityError and no
// snapshot, unless the backend itself failed. Individual probe errors never fail the collection; they are
// recorded in the snapshot.
func (c *Collector) Collect(ctx context.Context, target probe.Target) (*observation.Snapshot, error) {
	logger := c.logger().With(zap.String("target", target.String()))

	logger.Info("Testing connectivity")
	checkCtx, cancel := c.probeContext(ctx)
	err := c.Suite.Connectivity.Check(checkCtx, target)
	cancel()
	if errors.Is(err, sharedErrors.ErrBackendFailure) {
		logger.Error("Connectivity check failed", zap.Error(err))
		return nil, fmt.Errorf("connectivity check for %s: %w", target, err)
	}
	if err != nil {
		logger.Warn("Could not connect", zap.Error(err))
		return nil, &ConnectivityError{Target: target.String(), Cause: err}
	}

	var (
		mu       sync.Mutex
		scans    []observation.ProtocolScan
		verdicts observation.Verdicts
		verdictN int
		snapshot = &observation.Snapshot{Target: target.String()}
		wg       conc.WaitGroup
	)

	run := func(kind observation.ProbeKind, protocol observation.Protocol, fn func(ctx context.Context) error) {
		wg.Go(func() {
			probeCtx, cancel := c.probeContext(ctx)
			defer cancel()

			var err error
			var catcher panics.Catcher
			catcher.Try(func() { err = fn(probeCtx) })
			if r := catcher.Recovered(); r != nil {
				err = fmt.Errorf("probe panicked: %v", r.Value)
			}
			if err == nil {
				return
			}

			failure := observation.ProbeFailure{Probe: kind, Protocol: protocol, Err: err.Error()}
			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, probe.ErrNotTestable) {
				logger.Debug("Probe skipped", zap.Stringer("probe", kind), zap.Error(err))
				snapshot.Skipped = append(snapshot.Skipped, failure)
				return
			}
			logger.Warn("Probe failed", zap.Stringer("probe", kind), zap.Error(err))
			snapshot.ProbeFailures = append(snapshot.ProbeFailures, failure)
		})
	}

	for _, protocol := range observation.AllProtocols {
		run(observation.ProbeCipherScan, protocol, func(ctx context.Context) error {
			logger.Debug("Testing protocol", zap.Stringer("protocol", protocol))
			ciphers, err := c.Suite.Ciphers.Scan(ctx, target, protocol)
			if err != nil {
				return err
			}
			mu.Lock()
			scans = append(scans, observation.ProtocolScan{Protocol: protocol, AcceptedCiphers: ciphers})
			mu.Unlock()
			return nil
		})
	}

	run(observation.ProbeCertificate, 0, func(ctx context.Context) error {
		flags, err := c.Suite.Certificate.Inspect(ctx, target)
		if err != nil {
			return err
		}
		mu.Lock()
		snapshot.Certificate = &flags
		mu.Unlock()
		return nil
	})

	run(observation.ProbeHeader, 0, func(ctx context.Context) error {
		maxAge, err := c.Suite.Headers.FetchHSTS(ctx, target)
		if err != nil {
			return err
		}
		mu.Lock()
		snapshot.HSTSMaxAge = maxAge
		mu.Unlock()
		return nil
	})

	run(observation.ProbeHeartbleed, 0, func(ctx context.Context) error {
		vulnerable, err := c.Suite.Vulnerabilities.Heartbleed(ctx, target)
		if err != nil {
			return err
		}
		mu.Lock()
		verdicts.Heartbleed = vulnerable
		verdictN++
		mu.Unlock()
		return nil
	})

	run(observation.ProbeCCSInjection, 0, func(ctx context.Context) error {
		vulnerable, err := c.Suite.Vulnerabilities.CCSInjection(ctx, target)
		if err != nil {
			return err
		}
		mu.Lock()
		verdicts.CCSInjection = vulnerable
		verdictN++
		mu.Unlock()
		return nil
	})

	run(observation.ProbeRobot, 0, func(ctx context.Context) error {
		verdict, err := c.Suite.Vulnerabilities.Robot(ctx, target)
		if err != nil {
			return err
		}
		mu.Lock()
		verdicts.Robot = verdict
		verdictN++
		mu.Unlock()
		return nil
	})

	wg.Wait()

	snapshot.SupportedProtocols, snapshot.SupportedCiphers = observation.Aggregate(scans)
	if verdictN > 0 {
		snapshot.Vulnerabilities = &verdicts
	}
	observation.SortFailures(snapshot.ProbeFailures)
	observation.SortFailures(snapshot.Skipped)

	logger.Info("Collection finished",
		zap.Strings("protocols", snapshot.SupportedProtocols.Strings()),
		zap.Int("ciphers", len(snapshot.SupportedCiphers)),
		zap.Int("failures", len(snapshot.ProbeFailures)),
		zap.Int("skipped", len(snapshot.Skipped)))
	return snapshot, nil
}
