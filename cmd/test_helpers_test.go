package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zaptest"
)

const testProfilesFile = "testdata/server-side-tls-conf.json"

// setupTestAppContext installs an AppContext backed by a temp results
// directory and the local profile document. The returned func restores
// the previous context.
func setupTestAppContext(t *testing.T) (*AppContext, func()) {
	t.Helper()

	original := globalAppContext

	profilesFile, err := filepath.Abs(testProfilesFile)
	if err != nil {
		t.Fatalf("failed to resolve profiles file: %v", err)
	}

	cfg := newCLIConfig()
	cfg.Profiles.File = profilesFile

	appCtx := &AppContext{
		Logger:     zaptest.NewLogger(t),
		Operator:   "test-operator",
		ResultsDir: filepath.Join(t.TempDir(), "results"),
		Config:     cfg,
	}
	globalAppContext = appCtx

	return appCtx, func() {
		globalAppContext = original
	}
}

// runCommand invokes c.RunE with output captured. The command context
// carries no AppContext, so getAppContext falls back to the global one.
func runCommand(t *testing.T, c *cobra.Command, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	c.SetOut(&buf)
	c.SetErr(&buf)
	c.SetContext(context.Background())
	t.Cleanup(func() {
		c.SetOut(nil)
		c.SetErr(nil)
	})

	err := c.RunE(c, args)
	return buf.String(), err
}

func mustReadTestProfiles(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(testProfilesFile)
	if err != nil {
		t.Fatalf("failed to read %s: %v", testProfilesFile, err)
	}
	return data
}
