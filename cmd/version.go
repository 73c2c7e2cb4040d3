package cmd

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/khanhnv2901/tlsprofiler/internal/shared/constants"
)

// Set with -ldflags "-X github.com/khanhnv2901/tlsprofiler/cmd.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the tlsprofiler build and its compiled-in audit defaults",
	Long: `Print the tlsprofiler release. With --verbose, also print the build
metadata and the defaults an audit starts from: the Mozilla profile
document, the default profile and the available scan backends.`,
	Run: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		if verbose {
			writeBuildInfo(cmd.OutOrStdout())
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "tlsprofiler %s (%s)\n", Version, GitCommit)
	},
}

func writeBuildInfo(w io.Writer) {
	fmt.Fprintf(w, "tlsprofiler %s\n", Version)
	fmt.Fprintf(w, "  Commit:          %s\n", GitCommit)
	fmt.Fprintf(w, "  Built:           %s\n", BuildDate)
	fmt.Fprintf(w, "  Go:              %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(w, "  Profile source:  %s\n", constants.DefaultProfilesURL)
	fmt.Fprintf(w, "  Default profile: %s\n", constants.DefaultProfile)
	fmt.Fprintf(w, "  Backends:        %s (crypto/tls), %s (external)\n", backendNative, backendSSLyze)
}

func init() {
	versionCmd.Flags().BoolP("verbose", "v", false, "Also print build metadata and audit defaults")
}
