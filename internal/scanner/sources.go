package scanner

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DiscoverSourceDirs returns the top-level directories of root whose names
// start with one of prefixes, sorted by name.
func DiscoverSourceDirs(root string, prefixes []string) []string {
	entries, err := os.ReadDir(root)
	if err != nil {
		slog.Warn("failed to list source directories",
			slog.String("root", root),
			slog.String("error", err.Error()))
		return nil
	}

	var dirs []string
	for _, entry := range entries {
		if !entry.IsDir() || !hasAnyPrefix(entry.Name(), prefixes) {
			continue
		}
		dirs = append(dirs, filepath.Join(root, entry.Name()))
	}
	sort.Strings(dirs)
	return dirs
}

func hasAnyPrefix(name string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
