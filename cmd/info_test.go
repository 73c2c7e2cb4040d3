package cmd

import (
	"runtime"
	"strings"
	"testing"
)

func TestInfoCommand(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	appCtx, restore := setupTestAppContext(t)
	defer restore()

	output, err := runCommand(t, infoCmd)
	if err != nil {
		t.Fatalf("info command failed: %v", err)
	}

	expectedSections := []string{
		"tlsprofiler System Information",
		"Platform:",
		"Data Directory:",
		"Results Directory:",
		"Configuration File:",
		"Profile Source:",
		"Backend:            native",
		appCtx.ResultsDir + " ✗ (not created yet)",
		appCtx.Config.Profiles.File,
	}
	for _, section := range expectedSections {
		if !strings.Contains(output, section) {
			t.Errorf("expected output to contain %q, got:\n%s", section, output)
		}
	}

	if !strings.Contains(output, runtime.GOOS+"/"+runtime.GOARCH) {
		t.Errorf("expected platform in output, got:\n%s", output)
	}
	if strings.Contains(output, "sslyze Executable") {
		t.Errorf("sslyze path should only be shown for the sslyze backend")
	}
}

func TestInfoCommandSSLyzeBackend(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	appCtx, restore := setupTestAppContext(t)
	defer restore()
	appCtx.Config.Audit.Backend = backendSSLyze
	appCtx.Config.SSLyze.Path = "/opt/sslyze"

	output, err := runCommand(t, infoCmd)
	if err != nil {
		t.Fatalf("info command failed: %v", err)
	}
	if !strings.Contains(output, "sslyze Executable:  /opt/sslyze") {
		t.Errorf("expected sslyze path in output, got:\n%s", output)
	}
}
