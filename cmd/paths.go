package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const appDirName = "tlsprofiler"

// getDataDir returns the appropriate data directory for the current OS
// following XDG Base Directory specification on Linux/Unix. The directory
// is not created.
func getDataDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		baseDir := os.Getenv("LOCALAPPDATA")
		if baseDir == "" {
			baseDir = os.Getenv("APPDATA")
		}
		if baseDir == "" {
			return "", fmt.Errorf("could not determine Windows data directory")
		}
		return filepath.Join(baseDir, appDirName), nil

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not determine home directory: %w", err)
		}
		return filepath.Join(homeDir, "Library", "Application Support", appDirName), nil

	default:
		// $XDG_DATA_HOME/tlsprofiler > ~/.local/share/tlsprofiler
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			return filepath.Join(xdgDataHome, appDirName), nil
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".local", "share", appDirName), nil
	}
}

// defaultResultsDir is <data dir>/results, or ./results when no data
// directory can be determined.
func defaultResultsDir() string {
	dataDir, err := getDataDir()
	if err != nil {
		return "results"
	}
	return filepath.Join(dataDir, "results")
}

func configFilePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".tlsprofiler.yaml"
	}
	return filepath.Join(homeDir, ".tlsprofiler.yaml")
}
