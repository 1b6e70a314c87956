package watcher

import (
	"strings"
	"time"
)

// Operation represents a file system operation type.
type Operation int

const (
	// OpCreate indicates a new file or directory was created.
	OpCreate Operation = iota
	// OpModify indicates an existing file was modified.
	OpModify
	// OpDelete indicates a file or directory was deleted.
	OpDelete
	// OpRename indicates a file or directory was renamed.
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent represents a file system event.
type FileEvent struct {
	// Path is relative to the watched root, slash separated.
	Path string

	Operation Operation

	// IsDir indicates if the event is for a directory.
	IsDir bool

	Timestamp time.Time
}

// NotifyFunc receives file events. It must not block for long.
type NotifyFunc func(FileEvent)

// Options configures the file watchers.
type Options struct {
	// PollInterval is the scan interval in polling mode.
	// Default: 5s
	PollInterval time.Duration

	// ForcePolling skips fsnotify, for network mounts and container volumes.
	ForcePolling bool

	// Ignore is the substring ignore set. Matching directories are not
	// watched at all.
	Ignore []string
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		PollInterval: 5 * time.Second,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	if o.PollInterval == 0 {
		o.PollInterval = DefaultOptions().PollInterval
	}
	return o
}

// matchesAny reports whether path contains any of the substrings.
func matchesAny(path string, substrings []string) bool {
	for _, s := range substrings {
		if s != "" && strings.Contains(path, s) {
			return true
		}
	}
	return false
}
