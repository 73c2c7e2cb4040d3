package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Inspect the Mozilla server-side TLS profiles",
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the profiles published in the profile document",
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		format := appCtx.Config.Audit.Format
		if err := validateFormat(format); err != nil {
			return err
		}

		store := newProfileStore(appCtx)
		names, err := store.Names(cmd.Context())
		if err != nil {
			return &ExitError{Code: exitCodeFor(err), Err: err}
		}
		version, err := store.Version(cmd.Context())
		if err != nil {
			return &ExitError{Code: exitCodeFor(err), Err: err}
		}

		out := cmd.OutOrStdout()
		switch format {
		case formatJSON:
			return writeJSONOutput(out, profilesListView{Version: version, Profiles: names})
		case formatYAML:
			return writeYAMLOutput(out, profilesListView{Version: version, Profiles: names})
		}

		if version != "" {
			fmt.Fprintf(out, "Profile document version %s\n", version)
		}
		for _, name := range names {
			fmt.Fprintf(out, "  %s\n", name)
		}
		return nil
	},
}

var profilesShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show the protocols, ciphers and HSTS requirement of one profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		format := appCtx.Config.Audit.Format
		if err := validateFormat(format); err != nil {
			return err
		}

		p, err := newProfileStore(appCtx).Load(cmd.Context(), args[0])
		if err != nil {
			return &ExitError{Code: exitCodeFor(err), Err: err}
		}
		return renderProfile(cmd.OutOrStdout(), format, p)
	},
}

type profilesListView struct {
	Version  string   `json:"version" yaml:"version"`
	Profiles []string `json:"profiles" yaml:"profiles"`
}

func init() {
	for _, c := range []*cobra.Command{profilesListCmd, profilesShowCmd} {
		c.Flags().StringVarP(&cliConfig.Audit.Format, "format", "f", cliConfig.Audit.Format, "output format: text, json or yaml")
	}
	profilesCmd.AddCommand(profilesListCmd)
	profilesCmd.AddCommand(profilesShowCmd)
}
