package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.bananaindex/logs, or a temp-dir fallback.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".bananaindex", "logs")
	}
	return filepath.Join(home, ".bananaindex", "logs")
}

// DefaultLogPath returns the debug log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "bananaindex.log")
}
