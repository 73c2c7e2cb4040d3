package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AppContext is the per-invocation state built by the root command.
type AppContext struct {
	Logger     *zap.Logger
	Operator   string
	ResultsDir string
	ConfigFile string
	Config     *CLIConfig
}

type appContextKey struct{}

var (
	cfgFile          string
	debug            bool
	operator         string
	globalAppContext *AppContext
)

var rootCmd = &cobra.Command{
	Use:   "tlsprofiler",
	Short: "Audit TLS endpoints against the Mozilla server-side TLS profiles",
	Long: `tlsprofiler connects to TLS endpoints, measures their protocol, cipher,
certificate, HSTS and vulnerability posture, and reports how they compare
with a Mozilla server-side TLS profile (modern, intermediate or old).`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initAppContext,
}

func initAppContext(cmd *cobra.Command, args []string) error {
	v := viper.New()
	if err := initViper(v, cfgFile); err != nil {
		return err
	}

	cfg := cliConfig
	applyConfigDefaults(v, cmd, cfg)

	logger, err := newLogger(debug, cfg.LogLevel)
	if err != nil {
		return configError("failed to create logger: %v", err)
	}

	resultsDir := v.GetString("results_dir")
	if resultsDir == "" {
		resultsDir = defaultResultsDir()
	}
	if abs, err := filepath.Abs(resultsDir); err == nil {
		resultsDir = abs
	}

	op := operator
	if op == "" {
		op = v.GetString("defaults.operator")
	}
	if op == "" {
		op = detectOperatorFromEnv()
	}

	appCtx := &AppContext{
		Logger:     logger,
		Operator:   op,
		ResultsDir: resultsDir,
		ConfigFile: v.ConfigFileUsed(),
		Config:     cfg,
	}
	storeAppContext(cmd, appCtx)

	logger.Debug("configuration loaded",
		zap.String("operator", op),
		zap.String("results_dir", resultsDir),
		zap.String("config_file", appCtx.ConfigFile))
	return nil
}

// newLogger builds a development logger in debug mode and a production
// logger at the configured level otherwise.
func newLogger(debug bool, level string) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func storeAppContext(cmd *cobra.Command, appCtx *AppContext) {
	globalAppContext = appCtx
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, appContextKey{}, appCtx))
}

func getAppContext(cmd *cobra.Command) *AppContext {
	if ctx := cmd.Context(); ctx != nil {
		if appCtx, ok := ctx.Value(appContextKey{}).(*AppContext); ok {
			return appCtx
		}
	}
	return globalAppContext
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil && !isSilent(err) {
		fmt.Fprintf(os.Stderr, "%s %v\n", colorError("Error:"), err)
	}
	if code := exitCodeFor(err); code != ExitOK {
		os.Exit(code)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.tlsprofiler.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&operator, "operator", "o", "", "operator name recorded with saved results (default $USER)")
	rootCmd.PersistentFlags().StringVar(&cliConfig.Profiles.File, "profiles-file", "", "read the profile document from a local file instead of the published URL")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &ExitError{Code: ExitConfig, Err: err}
	})

	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(resultsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(versionCmd)
}
