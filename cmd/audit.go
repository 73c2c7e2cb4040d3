package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/khanhnv2901/tlsprofiler/internal/audit"
	"github.com/khanhnv2901/tlsprofiler/internal/probe"
)

var auditCmd = &cobra.Command{
	Use:   "audit <host[:port]>...",
	Short: "Audit one or more TLS endpoints against a Mozilla profile",
	Long: `Audit connects to each target, measures its TLS configuration and
compares it with the selected Mozilla server-side TLS profile.

Exit status: 0 when every target is fully compliant, 1 when any target is
not or could not be fully measured, 2 on configuration errors, 3 when any
target could not be reached. The native backend cannot test SSLv2, SSLv3
or the attack checks; use --backend sslyze for a complete audit.`,
	Example: `  tlsprofiler audit example.com
  tlsprofiler audit example.com:8443 mail.example.com --profile modern --format json
  tlsprofiler audit --backend sslyze --save example.com`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return configError("at least one target is required")
		}
		return nil
	},
	RunE: runAudit,
}

func init() {
	cfg := &cliConfig.Audit
	flags := auditCmd.Flags()
	flags.StringVarP(&cfg.Profile, "profile", "p", cfg.Profile, "Mozilla profile to check against (modern, intermediate, old)")
	flags.StringVarP(&cfg.Format, "format", "f", cfg.Format, "output format: text, json or yaml")
	flags.StringVar(&cfg.Backend, "backend", cfg.Backend, "probe backend: native or sslyze")
	flags.IntVarP(&cfg.Concurrency, "concurrency", "c", cfg.Concurrency, "maximum number of targets audited at once")
	flags.IntVar(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "audits started per second (0 = unlimited)")
	flags.IntVar(&cfg.TimeoutSecs, "timeout", cfg.TimeoutSecs, "timeout in seconds for one target")
	flags.IntVar(&cfg.ProbeTimeoutSecs, "probe-timeout", cfg.ProbeTimeoutSecs, "timeout in seconds for each probe")
	flags.StringArrayVar(&cfg.TrustStores, "trust-store", nil, "additional PEM trust store (repeatable)")
	flags.BoolVar(&cfg.Save, "save", false, "save results and append to the audit trail in the results directory")
	flags.BoolVar(&cfg.NoProgress, "no-progress", false, "disable the progress bar")
}

func validateAuditParams(cfg AuditRuntimeConfig) error {
	if err := validateFormat(cfg.Format); err != nil {
		return err
	}
	if cfg.Profile == "" {
		return configError("profile name is required")
	}
	if cfg.Concurrency < 1 {
		return configError("--concurrency must be at least 1, got %d", cfg.Concurrency)
	}
	if cfg.RateLimit < 0 {
		return configError("--rate-limit must not be negative, got %d", cfg.RateLimit)
	}
	if cfg.TimeoutSecs < 0 || cfg.ProbeTimeoutSecs < 0 {
		return configError("timeouts must not be negative")
	}
	return nil
}

func parseTargets(args []string) ([]probe.Target, error) {
	targets := make([]probe.Target, 0, len(args))
	for _, arg := range args {
		t, err := probe.ParseTarget(arg)
		if err != nil {
			return nil, &ExitError{Code: ExitConfig, Err: err}
		}
		targets = append(targets, t)
	}
	return targets, nil
}

func runAudit(cmd *cobra.Command, args []string) error {
	appCtx := getAppContext(cmd)
	cfg := appCtx.Config.Audit
	logger := appCtx.Logger

	if err := validateAuditParams(cfg); err != nil {
		return err
	}
	targets, err := parseTargets(args)
	if err != nil {
		return err
	}

	coll, err := newCollector(appCtx)
	if err != nil {
		return err
	}

	var record func(ctx context.Context, profileName string, o audit.Outcome, d time.Duration) error
	if cfg.Save {
		repo, err := newReportRepository(appCtx)
		if err != nil {
			return configError("failed to open results directory: %v", err)
		}
		record = repo.Record
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := &audit.Runner{
		Store:       newProfileStore(appCtx),
		Collector:   coll,
		Logger:      logger,
		Concurrency: cfg.Concurrency,
		RateLimit:   cfg.RateLimit,
		Timeout:     cfg.Timeout(),
	}

	progress := progressFor(cmd.ErrOrStderr(), len(targets), cfg.NoProgress)
	outcomes, err := runner.RunAll(ctx, targets, cfg.Profile, func(o audit.Outcome, d time.Duration) error {
		progress.Increment()
		if record == nil {
			return nil
		}
		return record(ctx, cfg.Profile, o, d)
	})
	progress.Finish()
	if err != nil {
		return &ExitError{Code: ExitConfig, Err: err}
	}

	if err := renderOutcomes(cmd.OutOrStdout(), cfg.Format, cfg.Profile, outcomes); err != nil {
		return err
	}

	if cfg.Save {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s results saved to %s\n", colorInfo("→"), appCtx.ResultsDir)
	}

	logger.Debug("audit run complete", zap.Int("targets", len(targets)))
	return outcomesExitError(outcomes)
}

// outcomesExitError picks the exit status for a batch: unreachable wins
// over non-compliance, which wins over incomplete measurements.
func outcomesExitError(outcomes []audit.Outcome) error {
	var unreachable, failed, incomplete bool
	for _, o := range outcomes {
		switch o.Status() {
		case audit.StatusUnreachable:
			unreachable = true
		case audit.StatusNotOK, audit.StatusError:
			failed = true
		case audit.StatusIncomplete:
			incomplete = true
		}
	}

	switch {
	case unreachable:
		return &ExitError{Code: ExitUnreachable, Err: errUnreachable, Silent: true}
	case failed:
		return &ExitError{Code: ExitNotOK, Err: errNotCompliant, Silent: true}
	case incomplete:
		return &ExitError{Code: ExitNotOK, Err: errIncomplete, Silent: true}
	default:
		return nil
	}
}
