package scanner

import (
	"bufio"
	"bytes"
	"log/slog"
	"os"
	"strings"
)

// SubmoduleInfo describes one content source registered in .gitmodules.
// Path and URL may be empty: a stanza with only a name is still a descriptor.
type SubmoduleInfo struct {
	// Name is the submodule name from [submodule "name"].
	Name string
	// Path is relative to the repository root.
	Path string
	URL  string
	// Branch is the tracked branch, if any.
	Branch string
}

// ParseGitmodules parses .gitmodules content. It never fails: lines it does
// not understand are skipped, and a stanza missing keys is returned as-is.
func ParseGitmodules(content []byte) []SubmoduleInfo {
	var submodules []SubmoduleInfo
	var current *SubmoduleInfo

	flush := func() {
		if current != nil {
			submodules = append(submodules, *current)
		}
	}

	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		if strings.HasPrefix(line, "[") {
			flush()
			current = nil
			if name, ok := extractSubmoduleName(line); ok {
				current = &SubmoduleInfo{Name: name}
			}
			continue
		}

		if current == nil {
			continue
		}

		key, value, ok := parseKeyValue(line)
		if !ok {
			continue
		}
		switch strings.ToLower(key) {
		case "path":
			current.Path = value
		case "url":
			current.URL = value
		case "branch":
			current.Branch = value
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		slog.Warn("gitmodules scan stopped early", slog.String("error", err.Error()))
	}

	return submodules
}

// ScanFile reads and parses a descriptor file. A missing file yields no
// descriptors; an unreadable one is logged and also yields none.
func ScanFile(path string) []SubmoduleInfo {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		slog.Debug("no submodule descriptor file", slog.String("path", path))
		return nil
	}
	if err != nil {
		slog.Warn("failed to read submodule descriptor file",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return nil
	}
	return ParseGitmodules(content)
}

// extractSubmoduleName handles [submodule "name"] and [submodule name].
// Other section kinds are rejected.
func extractSubmoduleName(line string) (string, bool) {
	inner := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(line, "["), "]"))
	rest, ok := strings.CutPrefix(inner, "submodule")
	if !ok {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	rest = strings.Trim(rest, `"`)
	if rest == "" {
		return "", false
	}
	return rest, true
}

// parseKeyValue parses a "key = value" line. Surrounding quotes on the value are dropped.
func parseKeyValue(line string) (key, value string, ok bool) {
	k, v, found := strings.Cut(line, "=")
	if !found {
		return "", "", false
	}
	key = strings.TrimSpace(k)
	value = strings.TrimSpace(v)
	if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
		value = value[1 : len(value)-1]
	}
	return key, value, key != ""
}

// IsInitialized reports whether a submodule directory has content besides .git.
func IsInitialized(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if entry.Name() != ".git" {
			return true
		}
	}
	return false
}

// Filter keeps descriptors matching the include/exclude globs.
func Filter(subs []SubmoduleInfo, include, exclude []string) []SubmoduleInfo {
	if len(include) == 0 && len(exclude) == 0 {
		return subs
	}
	out := make([]SubmoduleInfo, 0, len(subs))
	for _, sm := range subs {
		if MatchesPattern(sm.Name, sm.Path, include, exclude) {
			out = append(out, sm)
		}
	}
	return out
}

// MatchesPattern checks name or path against include/exclude patterns.
// Exclusion wins; an empty include list includes everything.
func MatchesPattern(name, path string, include, exclude []string) bool {
	for _, pattern := range exclude {
		if matchPattern(name, pattern) || matchPattern(path, pattern) {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, pattern := range include {
		if matchPattern(name, pattern) || matchPattern(path, pattern) {
			return true
		}
	}
	return false
}

// matchPattern supports exact names, prefix/*, */suffix, prefix*, *suffix and *middle*.
func matchPattern(s, pattern string) bool {
	if s == "" {
		return false
	}
	switch {
	case s == pattern:
		return true
	case strings.HasSuffix(pattern, "/*"):
		prefix := strings.TrimSuffix(pattern, "/*")
		return s == prefix || strings.HasPrefix(s, prefix+"/")
	case strings.HasPrefix(pattern, "*/"):
		suffix := strings.TrimPrefix(pattern, "*/")
		return s == suffix || strings.HasSuffix(s, "/"+suffix)
	case len(pattern) > 1 && strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*"):
		return strings.Contains(s, pattern[1:len(pattern)-1])
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(s, strings.TrimSuffix(pattern, "*"))
	case strings.HasPrefix(pattern, "*"):
		return strings.HasSuffix(s, strings.TrimPrefix(pattern, "*"))
	}
	return false
}
