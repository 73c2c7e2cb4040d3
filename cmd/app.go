package cmd

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/khanhnv2901/tlsprofiler/internal/collector"
	jsonrepo "github.com/khanhnv2901/tlsprofiler/internal/infrastructure/persistence/json"
	"github.com/khanhnv2901/tlsprofiler/internal/probe"
	"github.com/khanhnv2901/tlsprofiler/internal/probe/native"
	"github.com/khanhnv2901/tlsprofiler/internal/probe/sslyze"
	"github.com/khanhnv2901/tlsprofiler/internal/profile"
)

func newProfileSource(cfg ProfilesConfig) profile.Source {
	if cfg.File != "" {
		return &profile.FileSource{Path: cfg.File}
	}
	return &profile.HTTPSource{
		URL:    cfg.URL,
		Client: &http.Client{Timeout: defaultProfilesTimeoutSec * time.Second},
	}
}

func newProfileStore(appCtx *AppContext) *profile.Store {
	return profile.NewStore(newProfileSource(appCtx.Config.Profiles), appCtx.Logger)
}

// newSuite builds the probe backend selected by --backend. Extra trust
// stores are added after the system store for the native backend; sslyze
// takes the first one as its additional CA file.
func newSuite(appCtx *AppContext) (probe.Suite, error) {
	cfg := appCtx.Config
	logger := appCtx.Logger.Named(cfg.Audit.Backend)

	switch cfg.Audit.Backend {
	case backendNative:
		stores := []native.TrustStore{native.SystemTrustStore()}
		for _, path := range cfg.Audit.TrustStores {
			store, err := native.LoadTrustStore(path)
			if err != nil {
				return probe.Suite{}, configError("failed to load trust store: %v", err)
			}
			stores = append(stores, store)
		}
		return native.New(native.Config{
			DialTimeout: cfg.Audit.ProbeTimeout(),
			TrustStores: stores,
			Logger:      logger,
		}).Suite(), nil

	case backendSSLyze:
		var caFile string
		if len(cfg.Audit.TrustStores) > 0 {
			caFile = cfg.Audit.TrustStores[0]
			if len(cfg.Audit.TrustStores) > 1 {
				logger.Warn("sslyze accepts one extra trust store; ignoring the rest",
					zap.Strings("ignored", cfg.Audit.TrustStores[1:]))
			}
		}
		return sslyze.New(sslyze.Config{
			Path:    cfg.SSLyze.Path,
			CAFile:  caFile,
			Timeout: time.Duration(cfg.SSLyze.TimeoutSecs) * time.Second,
			Logger:  logger,
		}).Suite(), nil

	default:
		return probe.Suite{}, configError("unknown backend %q (valid: %s, %s)", cfg.Audit.Backend, backendNative, backendSSLyze)
	}
}

func newCollector(appCtx *AppContext) (*collector.Collector, error) {
	suite, err := newSuite(appCtx)
	if err != nil {
		return nil, err
	}
	c := collector.New(suite, appCtx.Logger.Named("collector"))
	if appCtx.Config.Audit.ProbeTimeoutSecs > 0 {
		c.ProbeTimeout = appCtx.Config.Audit.ProbeTimeout()
	}
	return c, nil
}

func newReportRepository(appCtx *AppContext) (*jsonrepo.ReportRepository, error) {
	return jsonrepo.NewReportRepository(appCtx.ResultsDir, appCtx.Operator)
}
