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

// Config represents the complete recordex configuration.
type Config struct {
	Version   int             `yaml:"version" json:"version"`
	Ingest    IngestConfig    `yaml:"ingest" json:"ingest"`
	Store     StoreConfig     `yaml:"store" json:"store"`
	Server    ServerConfig    `yaml:"server" json:"server"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
}

// IngestConfig configures the ingestion pipeline.
type IngestConfig struct {
	// ChunkSize is the paragraph chunker's target size in characters.
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`
	// CommitEvery is the number of written documents between commits.
	CommitEvery int `yaml:"commit_every" json:"commit_every"`
	// Dedupe skips blocks whose clean text was already written in the run.
	Dedupe bool `yaml:"dedupe" json:"dedupe"`
	// Extensions lists the input file extensions, matched case-insensitively.
	Extensions []string `yaml:"extensions" json:"extensions"`
	// Exclude lists glob patterns skipped during discovery.
	Exclude []string `yaml:"exclude" json:"exclude"`
	// NormalizeNFKC applies Unicode NFKC normalisation to record bodies.
	NormalizeNFKC bool `yaml:"normalize_nfkc" json:"normalize_nfkc"`
}

// StoreConfig configures the SQLite database.
type StoreConfig struct {
	Path string `yaml:"path" json:"path"`
	// Driver is "sqlite" (pure Go) or "sqlite3" (cgo).
	Driver        string `yaml:"driver" json:"driver"`
	BusyTimeoutMS int    `yaml:"busy_timeout_ms" json:"busy_timeout_ms"`
	CacheMB       int    `yaml:"cache_mb" json:"cache_mb"`
	// ForceLookupInsert disables RETURNING even when the engine supports it.
	ForceLookupInsert bool `yaml:"force_lookup_insert" json:"force_lookup_insert"`
}

// ServerConfig configures the search API.
type ServerConfig struct {
	Addr      string `yaml:"addr" json:"addr"`
	CacheSize int    `yaml:"cache_size" json:"cache_size"`
	CacheTTL  string `yaml:"cache_ttl" json:"cache_ttl"`
	MaxLimit  int    `yaml:"max_limit" json:"max_limit"`
	// RateLimit is the sustained API request rate per second; 0 disables
	// limiting.
	RateLimit int `yaml:"rate_limit" json:"rate_limit"`
	// Burst is the number of requests allowed above RateLimit at once.
	Burst int `yaml:"burst" json:"burst"`
}

// LoggingConfig configures the structured log file.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	File      string `yaml:"file" json:"file"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// TelemetryConfig configures local query telemetry. Nothing leaves the
// database file.
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// TopTerms bounds the number of distinct query terms tracked.
	TopTerms int `yaml:"top_terms" json:"top_terms"`
	// ZeroResults bounds the number of zero-result queries kept.
	ZeroResults   int    `yaml:"zero_results" json:"zero_results"`
	FlushInterval string `yaml:"flush_interval" json:"flush_interval"`
}

const (
	// ProjectConfigName is the per-directory config file.
	ProjectConfigName = ".recordex.yaml"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "RECORDEX_"

	DefaultChunkSize   = 2000
	DefaultCommitEvery = 200
	DefaultDBPath      = "records.sqlite"
)

// NewConfig creates a new Config with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Ingest: IngestConfig{
			ChunkSize:   DefaultChunkSize,
			CommitEvery: DefaultCommitEvery,
			Dedupe:      true,
			Extensions:  []string{".txt"},
			Exclude:     []string{},
		},
		Store: StoreConfig{
			Path:          DefaultDBPath,
			Driver:        "sqlite",
			BusyTimeoutMS: 5000,
			CacheMB:       64,
		},
		Server: ServerConfig{
			Addr:      "127.0.0.1:8787",
			CacheSize: 256,
			CacheTTL:  "10m",
			MaxLimit:  100,
			RateLimit: 50,
			Burst:     100,
		},
		Logging: LoggingConfig{
			Level:     "info",
			File:      "",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
		Telemetry: TelemetryConfig{
			Enabled:       true,
			TopTerms:      100,
			ZeroResults:   100,
			FlushInterval: "1m",
		},
	}
}

// GetUserConfigPath returns the path to the user configuration file:
//   - $XDG_CONFIG_HOME/recordex/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/recordex/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "recordex", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "recordex", "config.yaml")
	}
	return filepath.Join(home, ".config", "recordex", "config.yaml")
}

// Load loads configuration for the working directory dir.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/recordex/config.yaml)
//  3. Project config (explicitPath, or .recordex.yaml in dir)
//  4. .env file in dir
//  5. Environment variables (RECORDEX_*)
//
// Command-line flags are applied by the caller on top of the result.
func Load(dir, explicitPath string) (*Config, error) {
	cfg := NewConfig()

	userPath := GetUserConfigPath()
	if fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if explicitPath != "" {
		if !fileExists(explicitPath) {
			return nil, fmt.Errorf("config file %s: %w", explicitPath, os.ErrNotExist)
		}
		if err := cfg.loadYAML(explicitPath); err != nil {
			return nil, err
		}
	} else if p := filepath.Join(dir, ProjectConfigName); fileExists(p) {
		if err := cfg.loadYAML(p); err != nil {
			return nil, err
		}
	}

	dotenv := map[string]string{}
	if p := filepath.Join(dir, ".env"); fileExists(p) {
		vars, err := godotenv.Read(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		dotenv = vars
	}

	if err := cfg.applyEnvOverrides(envLookup(dotenv)); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadYAML decodes path on top of c. Keys absent from the file keep their
// current value, so explicit false and zero values are honoured.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// envLookup resolves a variable from the process environment first and
// falls back to values read from the .env file.
func envLookup(dotenv map[string]string) func(string) string {
	return func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return dotenv[key]
	}
}

// applyEnvOverrides applies RECORDEX_* overrides. Empty values are ignored.
func (c *Config) applyEnvOverrides(getenv func(string) string) error {
	str := func(name string, dst *string) {
		if v := strings.TrimSpace(getenv(EnvPrefix + name)); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		v := strings.TrimSpace(getenv(EnvPrefix + name))
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %q is not an integer", EnvPrefix, name, v)
		}
		*dst = n
		return nil
	}
	flag := func(name string, dst *bool) error {
		v := strings.TrimSpace(getenv(EnvPrefix + name))
		if v == "" {
			return nil
		}
		b, err := parseBool(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = b
		return nil
	}

	str("DB", &c.Store.Path)
	str("STORE_DRIVER", &c.Store.Driver)
	str("SERVER_ADDR", &c.Server.Addr)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FILE", &c.Logging.File)

	for name, dst := range map[string]*int{
		"CHUNK_SIZE":      &c.Ingest.ChunkSize,
		"COMMIT_EVERY":    &c.Ingest.CommitEvery,
		"BUSY_TIMEOUT_MS": &c.Store.BusyTimeoutMS,
		"CACHE_MB":        &c.Store.CacheMB,
		"TOP_TERMS":       &c.Telemetry.TopTerms,
		"RATE_LIMIT":      &c.Server.RateLimit,
	} {
		if err := num(name, dst); err != nil {
			return err
		}
	}

	for name, dst := range map[string]*bool{
		"DEDUPE":              &c.Ingest.Dedupe,
		"NORMALIZE_NFKC":      &c.Ingest.NormalizeNFKC,
		"FORCE_LOOKUP_INSERT": &c.Store.ForceLookupInsert,
		"TELEMETRY":           &c.Telemetry.Enabled,
	} {
		if err := flag(name, dst); err != nil {
			return err
		}
	}
	return nil
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("%q is not a boolean", v)
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Ingest.ChunkSize < 1 {
		return fmt.Errorf("ingest.chunk_size must be >= 1, got %d", c.Ingest.ChunkSize)
	}
	if c.Ingest.CommitEvery < 1 {
		return fmt.Errorf("ingest.commit_every must be >= 1, got %d", c.Ingest.CommitEvery)
	}
	if len(c.Ingest.Extensions) == 0 {
		return fmt.Errorf("ingest.extensions must not be empty")
	}
	for _, ext := range c.Ingest.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("ingest.extensions entries must start with '.', got %q", ext)
		}
	}

	if strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("store.path must not be empty")
	}
	switch c.Store.Driver {
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("store.driver must be 'sqlite' or 'sqlite3', got %s", c.Store.Driver)
	}
	if c.Store.BusyTimeoutMS < 0 {
		return fmt.Errorf("store.busy_timeout_ms must be non-negative, got %d", c.Store.BusyTimeoutMS)
	}
	if c.Store.CacheMB < 0 {
		return fmt.Errorf("store.cache_mb must be non-negative, got %d", c.Store.CacheMB)
	}

	if c.Server.CacheSize < 0 {
		return fmt.Errorf("server.cache_size must be non-negative, got %d", c.Server.CacheSize)
	}
	if _, err := c.Server.TTL(); err != nil {
		return err
	}
	if c.Server.MaxLimit < 1 {
		return fmt.Errorf("server.max_limit must be >= 1, got %d", c.Server.MaxLimit)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must be non-negative, got %d", c.Server.RateLimit)
	}
	if c.Server.RateLimit > 0 && c.Server.Burst < 1 {
		return fmt.Errorf("server.burst must be >= 1 when rate_limit is set, got %d", c.Server.Burst)
	}

	if c.Telemetry.TopTerms < 1 {
		return fmt.Errorf("telemetry.top_terms must be >= 1, got %d", c.Telemetry.TopTerms)
	}
	if c.Telemetry.ZeroResults < 1 {
		return fmt.Errorf("telemetry.zero_results must be >= 1, got %d", c.Telemetry.ZeroResults)
	}
	if _, err := c.Telemetry.Interval(); err != nil {
		return err
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	return nil
}

// TTL parses CacheTTL. An empty value means entries never expire.
func (s ServerConfig) TTL() (time.Duration, error) {
	if s.CacheTTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.CacheTTL)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("server.cache_ttl must be a non-negative duration, got %q", s.CacheTTL)
	}
	return d, nil
}

// Interval parses FlushInterval. Zero disables periodic flushing; events
// are then persisted on shutdown only.
func (t TelemetryConfig) Interval() (time.Duration, error) {
	if t.FlushInterval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(t.FlushInterval)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("telemetry.flush_interval must be a non-negative duration, got %q", t.FlushInterval)
	}
	return d, nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
