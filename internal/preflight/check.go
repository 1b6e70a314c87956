package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/bananaindex/internal/config"
	"github.com/Aman-CERP/bananaindex/internal/engine"
	"github.com/Aman-CERP/bananaindex/internal/errors"
	"github.com/Aman-CERP/bananaindex/internal/scanner"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the status by name in JSON output.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(s.String())), nil
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Checker performs preflight validation checks.
type Checker struct {
	eng     engine.Engine
	cfg     *config.Config
	verbose bool
	output  io.Writer
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose prints check details.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// New creates a Checker for eng configured by cfg.
func New(eng engine.Engine, cfg *config.Config, opts ...Option) *Checker {
	c := &Checker{
		eng:    eng,
		cfg:    cfg,
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs every check against root. Checks that need the engine are
// skipped once it is found unreachable.
func (c *Checker) RunAll(ctx context.Context, root string) []CheckResult {
	var results []CheckResult

	engineCheck := c.CheckEngine(ctx)
	results = append(results, engineCheck)

	results = append(results, c.CheckSubmoduleFile(root))
	results = append(results, c.CheckSourceDirs(root))

	dataDir := c.cfg.DataPath(root)
	results = append(results, c.CheckWritePermissions(dataDir))
	results = append(results, c.CheckDiskSpace(dataDir))
	results = append(results, c.CheckFileDescriptors())

	if engineCheck.Status == StatusPass {
		results = append(results, c.CheckIndex(ctx))
	}
	return results
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns a summary status string for the results.
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	hasCriticalFailure := false

	for _, r := range results {
		if r.IsCritical() {
			hasCriticalFailure = true
		}
		if r.Status == StatusWarn || (r.Status == StatusFail && !r.Required) {
			hasWarnings = true
		}
	}

	if hasCriticalFailure {
		return "failed"
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults prints check results to the configured output.
func (c *Checker) PrintResults(results []CheckResult) {
	_, _ = fmt.Fprintln(c.output, "bananaindex doctor")
	_, _ = fmt.Fprintln(c.output, "==================")
	_, _ = fmt.Fprintln(c.output)

	for _, r := range results {
		_, _ = fmt.Fprintf(c.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			_, _ = fmt.Fprintf(c.output, "      %s\n", r.Details)
		}
	}

	_, _ = fmt.Fprintln(c.output)
	_, _ = fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(c.SummaryStatus(results)))

	var failures, warnings []string
	for _, r := range results {
		if r.IsCritical() {
			failures = append(failures, r.Name+": "+r.Message)
		} else if r.Status != StatusPass {
			warnings = append(warnings, r.Name+": "+r.Message)
		}
	}
	printList(c.output, "error(s)", failures)
	printList(c.output, "warning(s)", warnings)
}

func printList(w io.Writer, label string, items []string) {
	if len(items) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "%d %s:\n", len(items), label)
	for _, it := range items {
		_, _ = fmt.Fprintf(w, "  - %s\n", it)
	}
}

// CheckEngine pings the configured engine.
func (c *Checker) CheckEngine(ctx context.Context) CheckResult {
	result := CheckResult{Name: "engine", Required: true}
	if err := c.eng.Health(ctx); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s unreachable", c.cfg.Engine.Backend)
		result.Details = err.Error()
		if c.cfg.Engine.Backend == config.BackendMeilisearch {
			result.Details += "; is Meilisearch running at " + c.cfg.Engine.URL + "?"
		}
		return result
	}
	result.Status = StatusPass
	result.Message = c.cfg.Engine.Backend + " OK"
	return result
}

// CheckSubmoduleFile requires a descriptor file with at least one source.
func (c *Checker) CheckSubmoduleFile(root string) CheckResult {
	result := CheckResult{Name: "submodules", Required: true}
	path := filepath.Join(root, c.cfg.Submodules.File)
	if _, err := os.Stat(path); err != nil {
		result.Status = StatusFail
		result.Message = c.cfg.Submodules.File + " not found"
		result.Details = path
		return result
	}

	subs := scanner.Filter(scanner.ScanFile(path), c.cfg.Submodules.Include, c.cfg.Submodules.Exclude)
	if len(subs) == 0 {
		result.Status = StatusFail
		result.Message = "no submodules selected from " + c.cfg.Submodules.File
		return result
	}
	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d submodules", len(subs))
	return result
}

// CheckSourceDirs warns about descriptors whose directory is missing or
// not checked out.
func (c *Checker) CheckSourceDirs(root string) CheckResult {
	result := CheckResult{Name: "source_dirs"}
	subs := scanner.Filter(scanner.ScanFile(filepath.Join(root, c.cfg.Submodules.File)),
		c.cfg.Submodules.Include, c.cfg.Submodules.Exclude)

	var missing []string
	for _, s := range subs {
		if s.Path == "" || !scanner.IsInitialized(filepath.Join(root, s.Path)) {
			missing = append(missing, s.Name)
		}
	}

	present := len(subs) - len(missing)
	result.Message = fmt.Sprintf("%d of %d checked out", present, len(subs))
	if len(missing) > 0 {
		result.Status = StatusWarn
		result.Details = "missing: " + strings.Join(missing, ", ") + "; run 'git submodule update --init'"
		return result
	}
	result.Status = StatusPass
	return result
}

// CheckWritePermissions checks that the data dir can hold the lock file
// and an embedded index.
func (c *Checker) CheckWritePermissions(dir string) CheckResult {
	result := CheckResult{Name: "data_dir", Required: true}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create %s: %v", dir, err)
		return result
	}
	f, err := os.CreateTemp(dir, ".preflight-*")
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(f.Name())

	result.Status = StatusPass
	result.Message = "writable"
	result.Details = dir
	return result
}

// CheckIndex warns when the index is absent or empty.
func (c *Checker) CheckIndex(ctx context.Context) CheckResult {
	result := CheckResult{Name: "index"}
	stats, err := c.eng.IndexStats(ctx, c.cfg.Engine.IndexName)
	switch {
	case errors.KindOf(err) == errors.KindNotFound:
		result.Status = StatusWarn
		result.Message = c.cfg.Engine.IndexName + " does not exist"
		result.Details = "run 'bananaindex index'"
	case err != nil:
		result.Status = StatusWarn
		result.Message = "cannot read index stats"
		result.Details = err.Error()
	case stats.NumberOfDocuments == 0:
		result.Status = StatusWarn
		result.Message = c.cfg.Engine.IndexName + " is empty"
		result.Details = "run 'bananaindex index'"
	default:
		result.Status = StatusPass
		result.Message = fmt.Sprintf("%d documents", stats.NumberOfDocuments)
	}
	return result
}
