package cmd

import (
	"bytes"
	"runtime"
	"strings"
	"testing"

	"github.com/khanhnv2901/tlsprofiler/internal/shared/constants"
)

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	t.Cleanup(func() { versionCmd.SetOut(nil) })

	if err := versionCmd.Flags().Set("verbose", "false"); err != nil {
		t.Fatalf("set verbose: %v", err)
	}
	versionCmd.Run(versionCmd, nil)
	if got, want := buf.String(), "tlsprofiler "+Version+" ("+GitCommit+")\n"; got != want {
		t.Fatalf("short version output = %q, want %q", got, want)
	}

	buf.Reset()
	if err := versionCmd.Flags().Set("verbose", "true"); err != nil {
		t.Fatalf("set verbose: %v", err)
	}
	t.Cleanup(func() { _ = versionCmd.Flags().Set("verbose", "false") })
	versionCmd.Run(versionCmd, nil)

	out := buf.String()
	for _, want := range []string{
		"Commit:",
		"Built:",
		runtime.Version(),
		runtime.GOOS + "/" + runtime.GOARCH,
		constants.DefaultProfilesURL,
		"Default profile: " + constants.DefaultProfile,
		backendNative + " (crypto/tls)",
		backendSSLyze + " (external)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in verbose output, got:\n%s", want, out)
		}
	}
}
