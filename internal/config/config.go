package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Engine backends.
const (
	BackendMeilisearch = "meilisearch"
	BackendBleve       = "bleve"
)

// ProjectConfigName is the per-repository config file.
const ProjectConfigName = ".bananaindex.yaml"

// Config represents the complete bananaindex configuration.
type Config struct {
	Version    int             `yaml:"version" json:"version"`
	Engine     EngineConfig    `yaml:"engine" json:"engine"`
	Index      IndexConfig     `yaml:"index" json:"index"`
	Search     SearchConfig    `yaml:"search" json:"search"`
	Watch      WatchConfig     `yaml:"watch" json:"watch"`
	Submodules SubmoduleConfig `yaml:"submodules" json:"submodules"`
	Server     ServerConfig    `yaml:"server" json:"server"`
}

// EngineConfig selects and addresses the full-text engine.
type EngineConfig struct {
	// Backend is "meilisearch" (default) or "bleve" for the embedded offline engine.
	Backend string `yaml:"backend" json:"backend"`
	URL     string `yaml:"url" json:"url"`
	// APIKey is sent as a bearer token. Never written back to disk by WriteYAML.
	APIKey    string `yaml:"api_key,omitempty" json:"-"`
	IndexName string `yaml:"index_name" json:"index_name"`
	// DataDir holds the bleve index and the pipeline lock file, relative to the root.
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// RequestsPerSecond throttles engine calls; 0 disables the limiter.
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	Timeout           string  `yaml:"timeout" json:"timeout"`
}

// IndexConfig configures the indexing pipeline.
type IndexConfig struct {
	BatchSize   int    `yaml:"batch_size" json:"batch_size"`
	TaskTimeout string `yaml:"task_timeout" json:"task_timeout"`
	Workers     int    `yaml:"workers" json:"workers"`
}

// SearchConfig configures the query surface.
type SearchConfig struct {
	ResultLimit        int `yaml:"result_limit" json:"result_limit"`
	SuggestionLimit    int `yaml:"suggestion_limit" json:"suggestion_limit"`
	CacheSize          int `yaml:"cache_size" json:"cache_size"`
	SubmoduleScanLimit int `yaml:"submodule_scan_limit" json:"submodule_scan_limit"`
}

// WatchConfig configures the reindex scheduler.
type WatchConfig struct {
	QuietPeriod  string   `yaml:"quiet_period" json:"quiet_period"`
	PollInterval string   `yaml:"poll_interval" json:"poll_interval"`
	Prefixes     []string `yaml:"prefixes" json:"prefixes"`
	Ignore       []string `yaml:"ignore" json:"ignore"`
}

// SubmoduleConfig configures descriptor discovery.
type SubmoduleConfig struct {
	// File is the descriptor file, relative to the root.
	File string `yaml:"file" json:"file"`
	// Include specifies submodule name globs to include (empty = all).
	Include []string `yaml:"include" json:"include"`
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// ServerConfig configures the HTTP API and logging.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" json:"http_addr"`
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// DefaultIgnore is the substring ignore set for watch events.
var DefaultIgnore = []string{
	".git", "__pycache__", ".pyc", ".pyo", ".pyd", ".so", ".dll", ".dylib",
	".DS_Store", ".venv", "node_modules", ".idea", ".vscode",
}

// NewConfig creates a new Config with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Engine: EngineConfig{
			Backend:   BackendMeilisearch,
			URL:       "http://localhost:7700",
			IndexName: "nano_banana_index",
			DataDir:   ".bananaindex",
			Timeout:   "10s",
		},
		Index: IndexConfig{
			BatchSize:   100,
			TaskTimeout: "60s",
			Workers:     4,
		},
		Search: SearchConfig{
			ResultLimit:        20,
			SuggestionLimit:    5,
			CacheSize:          256,
			SubmoduleScanLimit: 10000,
		},
		Watch: WatchConfig{
			QuietPeriod:  "5s",
			PollInterval: "1s",
			Prefixes:     []string{"awesome-", "Awesome-"},
			Ignore:       append([]string(nil), DefaultIgnore...),
		},
		Submodules: SubmoduleConfig{
			File: ".gitmodules",
		},
		Server: ServerConfig{
			HTTPAddr: "127.0.0.1:8000",
			LogLevel: "info",
		},
	}
}

// GetUserConfigPath returns $XDG_CONFIG_HOME/bananaindex/config.yaml,
// or ~/.config/bananaindex/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "bananaindex", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "bananaindex", "config.yaml")
}

// Load loads configuration for the pipeline root dir.
// Precedence, lowest first:
//  1. Hardcoded defaults
//  2. User config (~/.config/bananaindex/config.yaml)
//  3. Project config (.bananaindex.yaml in dir)
//  4. dir/.env, which never overrides variables already set
//  5. Environment variables
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if p := GetUserConfigPath(); p != "" && fileExists(p) {
		if err := cfg.loadYAML(p); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	if envPath := filepath.Join(dir, ".env"); fileExists(envPath) {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{ProjectConfigName, ".bananaindex.yml"} {
		p := filepath.Join(dir, name)
		if fileExists(p) {
			return c.loadYAML(p)
		}
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	mergeString(&c.Engine.Backend, other.Engine.Backend)
	mergeString(&c.Engine.URL, other.Engine.URL)
	mergeString(&c.Engine.APIKey, other.Engine.APIKey)
	mergeString(&c.Engine.IndexName, other.Engine.IndexName)
	mergeString(&c.Engine.DataDir, other.Engine.DataDir)
	mergeString(&c.Engine.Timeout, other.Engine.Timeout)
	if other.Engine.RequestsPerSecond != 0 {
		c.Engine.RequestsPerSecond = other.Engine.RequestsPerSecond
	}

	mergeInt(&c.Index.BatchSize, other.Index.BatchSize)
	mergeString(&c.Index.TaskTimeout, other.Index.TaskTimeout)
	mergeInt(&c.Index.Workers, other.Index.Workers)

	mergeInt(&c.Search.ResultLimit, other.Search.ResultLimit)
	mergeInt(&c.Search.SuggestionLimit, other.Search.SuggestionLimit)
	mergeInt(&c.Search.CacheSize, other.Search.CacheSize)
	mergeInt(&c.Search.SubmoduleScanLimit, other.Search.SubmoduleScanLimit)

	mergeString(&c.Watch.QuietPeriod, other.Watch.QuietPeriod)
	mergeString(&c.Watch.PollInterval, other.Watch.PollInterval)
	if len(other.Watch.Prefixes) > 0 {
		c.Watch.Prefixes = other.Watch.Prefixes
	}
	if len(other.Watch.Ignore) > 0 {
		// extend the built-in set rather than replace it
		c.Watch.Ignore = appendUnique(c.Watch.Ignore, other.Watch.Ignore...)
	}

	mergeString(&c.Submodules.File, other.Submodules.File)
	if len(other.Submodules.Include) > 0 {
		c.Submodules.Include = other.Submodules.Include
	}
	if len(other.Submodules.Exclude) > 0 {
		c.Submodules.Exclude = other.Submodules.Exclude
	}

	mergeString(&c.Server.HTTPAddr, other.Server.HTTPAddr)
	mergeString(&c.Server.LogLevel, other.Server.LogLevel)
}

// applyEnvOverrides applies environment overrides. The unprefixed names
// match the variables existing deployments already export.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MEILISEARCH_URL"); v != "" {
		c.Engine.URL = v
	}
	if v := os.Getenv("MEILISEARCH_API_KEY"); v != "" {
		c.Engine.APIKey = v
	}
	if v := os.Getenv("INDEX_NAME"); v != "" {
		c.Engine.IndexName = v
	}
	if v := os.Getenv("SEARCH_RESULT_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.ResultLimit = n
		}
	}
	if v := os.Getenv("BANANAINDEX_ENGINE"); v != "" {
		c.Engine.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("BANANAINDEX_DATA_DIR"); v != "" {
		c.Engine.DataDir = v
	}
	if v := os.Getenv("BANANAINDEX_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Index.BatchSize = n
		}
	}
	if v := os.Getenv("BANANAINDEX_QUIET_PERIOD"); v != "" {
		c.Watch.QuietPeriod = v
	}
	if v := os.Getenv("BANANAINDEX_HTTP_ADDR"); v != "" {
		c.Server.HTTPAddr = v
	}
	if v := os.Getenv("BANANAINDEX_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Engine.Backend {
	case BackendMeilisearch, BackendBleve:
	default:
		return fmt.Errorf("engine.backend must be %q or %q, got %q", BackendMeilisearch, BackendBleve, c.Engine.Backend)
	}
	if c.Engine.Backend == BackendMeilisearch && c.Engine.URL == "" {
		return fmt.Errorf("engine.url is required for the meilisearch backend")
	}
	if c.Engine.IndexName == "" {
		return fmt.Errorf("engine.index_name must not be empty")
	}
	if c.Engine.RequestsPerSecond < 0 {
		return fmt.Errorf("engine.requests_per_second must not be negative")
	}
	if c.Index.BatchSize <= 0 {
		return fmt.Errorf("index.batch_size must be positive, got %d", c.Index.BatchSize)
	}
	if c.Index.Workers <= 0 {
		return fmt.Errorf("index.workers must be positive, got %d", c.Index.Workers)
	}
	if c.Search.ResultLimit <= 0 {
		return fmt.Errorf("search.result_limit must be positive, got %d", c.Search.ResultLimit)
	}
	if c.Search.SubmoduleScanLimit <= 0 {
		return fmt.Errorf("search.submodule_scan_limit must be positive, got %d", c.Search.SubmoduleScanLimit)
	}
	for name, v := range map[string]string{
		"engine.timeout":      c.Engine.Timeout,
		"index.task_timeout":  c.Index.TaskTimeout,
		"watch.quiet_period":  c.Watch.QuietPeriod,
		"watch.poll_interval": c.Watch.PollInterval,
	} {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: invalid duration %q: %w", name, v, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, v)
		}
	}
	switch strings.ToLower(c.Server.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("server.log_level must be debug, info, warn or error, got %q", c.Server.LogLevel)
	}
	return nil
}

// EngineTimeout is the per-request engine timeout.
func (c *Config) EngineTimeout() time.Duration { return mustDuration(c.Engine.Timeout, 10*time.Second) }

// TaskTimeout bounds each wait on an engine task.
func (c *Config) TaskTimeout() time.Duration { return mustDuration(c.Index.TaskTimeout, 60*time.Second) }

// QuietPeriod is the debounce window of the reindex scheduler.
func (c *Config) QuietPeriod() time.Duration { return mustDuration(c.Watch.QuietPeriod, 5*time.Second) }

// PollInterval is the scheduler's check interval.
func (c *Config) PollInterval() time.Duration { return mustDuration(c.Watch.PollInterval, time.Second) }

// DataPath resolves the data dir against root.
func (c *Config) DataPath(root string) string {
	if filepath.IsAbs(c.Engine.DataDir) {
		return c.Engine.DataDir
	}
	return filepath.Join(root, c.Engine.DataDir)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	out := *c
	out.Engine.APIKey = ""
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

func mustDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func appendUnique(base []string, extra ...string) []string {
	seen := make(map[string]bool, len(base))
	for _, s := range base {
		seen[s] = true
	}
	for _, s := range extra {
		if !seen[s] {
			base = append(base, s)
			seen[s] = true
		}
	}
	return base
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
