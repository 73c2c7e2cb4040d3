package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/khanhnv2901/tlsprofiler/internal/audit"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Browse and verify saved audit results",
	Long: `Results saved with "audit --save" or by the API server live in the
results directory as <id>.json with a <id>.json.sha256 companion file, next
to an append-only audit.csv trail.`,
}

var resultsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved results, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		format := appCtx.Config.Audit.Format
		if err := validateFormat(format); err != nil {
			return err
		}

		repo, err := newReportRepository(appCtx)
		if err != nil {
			return configError("failed to open results directory: %v", err)
		}
		results, err := repo.List(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch format {
		case formatJSON:
			return writeJSONOutput(out, resultSummaries(results))
		case formatYAML:
			return writeYAMLOutput(out, resultSummaries(results))
		}

		if len(results) == 0 {
			fmt.Fprintf(out, "No saved results in %s\n", repo.Dir())
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTARTED\tTARGET\tPROFILE\tSTATUS")
		for _, s := range resultSummaries(results) {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.StartedAt, s.Target, s.Profile, formatStatusWithColor(s.Status))
		}
		return tw.Flush()
	},
}

var resultsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a saved result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		format := appCtx.Config.Audit.Format
		if err := validateFormat(format); err != nil {
			return err
		}

		repo, err := newReportRepository(appCtx)
		if err != nil {
			return configError("failed to open results directory: %v", err)
		}
		result, err := repo.FindByID(cmd.Context(), args[0])
		if err != nil {
			return &ExitError{Code: ExitConfig, Err: err}
		}

		outcome := audit.Outcome{Target: result.Target, Result: result}
		return renderOutcomes(cmd.OutOrStdout(), format, result.Profile, []audit.Outcome{outcome})
	},
}

var resultsVerifyCmd = &cobra.Command{
	Use:   "verify <id>",
	Short: "Check a saved result against its sha256 file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		repo, err := newReportRepository(appCtx)
		if err != nil {
			return configError("failed to open results directory: %v", err)
		}

		ok, err := repo.Verify(cmd.Context(), args[0])
		if err != nil {
			return &ExitError{Code: ExitConfig, Err: err}
		}
		out := cmd.OutOrStdout()
		if !ok {
			fmt.Fprintf(out, "%s %s: hash mismatch\n", colorError("✗"), args[0])
			return &ExitError{Code: ExitNotOK, Err: fmt.Errorf("result %s failed verification", args[0]), Silent: true}
		}
		fmt.Fprintf(out, "%s %s: hash verified\n", colorSuccess("✓"), args[0])
		return nil
	},
}

type resultSummary struct {
	ID        string `json:"id" yaml:"id"`
	StartedAt string `json:"started_at" yaml:"started_at"`
	Target    string `json:"target" yaml:"target"`
	Profile   string `json:"profile" yaml:"profile"`
	Status    string `json:"status" yaml:"status"`
}

func resultSummaries(results []*audit.Result) []resultSummary {
	summaries := make([]resultSummary, 0, len(results))
	for _, r := range results {
		o := audit.Outcome{Target: r.Target, Result: r}
		summaries = append(summaries, resultSummary{
			ID:        r.ID.String(),
			StartedAt: r.StartedAt.Format(time.RFC3339),
			Target:    r.Target,
			Profile:   r.Profile,
			Status:    o.Status(),
		})
	}
	return summaries
}

func init() {
	for _, c := range []*cobra.Command{resultsListCmd, resultsShowCmd} {
		c.Flags().StringVarP(&cliConfig.Audit.Format, "format", "f", cliConfig.Audit.Format, "output format: text, json or yaml")
	}
	resultsCmd.AddCommand(resultsListCmd)
	resultsCmd.AddCommand(resultsShowCmd)
	resultsCmd.AddCommand(resultsVerifyCmd)
}
