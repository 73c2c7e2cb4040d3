package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show configuration, data directory paths and the active backend",
	Long: `Display tlsprofiler configuration information including:
  - Data and results directory locations
  - Configuration file path
  - Profile document source and probe backend
  - Platform information`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		cfg := appCtx.Config

		dataDir, err := getDataDir()
		if err != nil {
			return fmt.Errorf("failed to get data directory: %w", err)
		}

		resultsExists := "✗ (not created yet)"
		if _, err := os.Stat(appCtx.ResultsDir); err == nil {
			resultsExists = "✓ (exists)"
		}

		configPath := appCtx.ConfigFile
		if configPath == "" {
			configPath = configFilePath(cfgFile)
		}
		configExists := "✗ (using defaults)"
		if _, err := os.Stat(configPath); err == nil {
			configExists = "✓ (exists)"
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "tlsprofiler System Information")
		fmt.Fprintln(out, "=============================")
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Platform:          %s/%s\n", runtime.GOOS, runtime.GOARCH)
		fmt.Fprintf(out, "Operator:          %s\n", appCtx.Operator)
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Data Locations:")
		fmt.Fprintf(out, "  Data Directory:     %s\n", dataDir)
		fmt.Fprintf(out, "  Results Directory:  %s %s\n", appCtx.ResultsDir, resultsExists)
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Configuration File:   %s %s\n", configPath, configExists)
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Auditing:")
		fmt.Fprintf(out, "  Profile Source:     %s\n", newProfileSource(cfg.Profiles))
		fmt.Fprintf(out, "  Default Profile:    %s\n", cfg.Audit.Profile)
		fmt.Fprintf(out, "  Backend:            %s\n", cfg.Audit.Backend)
		if cfg.Audit.Backend == backendSSLyze {
			fmt.Fprintf(out, "  sslyze Executable:  %s\n", cfg.SSLyze.Path)
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, "To override defaults, create ~/.tlsprofiler.yaml with e.g.:")
		fmt.Fprintln(out, "  results_dir: /custom/path/to/results")
		fmt.Fprintln(out, "  defaults:")
		fmt.Fprintln(out, "    profile: modern")

		return nil
	},
}
