package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the user config at an empty temp dir so the developer's own
// config never leaks into a test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// =============================================================================
// Defaults
// =============================================================================

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig()

	require.NotNil(t, cfg)
	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, 2000, cfg.Ingest.ChunkSize)
	assert.Equal(t, 200, cfg.Ingest.CommitEvery)
	assert.True(t, cfg.Ingest.Dedupe)
	assert.Equal(t, []string{".txt"}, cfg.Ingest.Extensions)
	assert.False(t, cfg.Ingest.NormalizeNFKC)

	assert.Equal(t, "records.sqlite", cfg.Store.Path)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 5000, cfg.Store.BusyTimeoutMS)
	assert.False(t, cfg.Store.ForceLookupInsert)

	assert.Equal(t, 100, cfg.Server.MaxLimit)
	assert.Equal(t, 50, cfg.Server.RateLimit)
	assert.Equal(t, 100, cfg.Server.Burst)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, 100, cfg.Telemetry.TopTerms)
	assert.NoError(t, cfg.Validate())
}

// =============================================================================
// Precedence
// =============================================================================

func TestLoad_NoConfigFile_ReturnsDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(t.TempDir(), "")

	require.NoError(t, err)
	assert.Equal(t, NewConfig(), cfg)
}

func TestLoad_ProjectConfig_OverridesDefaults(t *testing.T) {
	// Given: a project config that disables dedupe explicitly
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectConfigName), `
ingest:
  chunk_size: 900
  dedupe: false
store:
  path: corpus.sqlite
`)

	// When: loading
	cfg, err := Load(dir, "")

	// Then: explicit false wins and untouched keys keep defaults
	require.NoError(t, err)
	assert.Equal(t, 900, cfg.Ingest.ChunkSize)
	assert.False(t, cfg.Ingest.Dedupe)
	assert.Equal(t, "corpus.sqlite", cfg.Store.Path)
	assert.Equal(t, 200, cfg.Ingest.CommitEvery)
}

func TestLoad_ExplicitPath_ReplacesProjectConfig(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectConfigName), "ingest:\n  chunk_size: 900\n")
	explicit := filepath.Join(t.TempDir(), "custom.yaml")
	writeFile(t, explicit, "ingest:\n  commit_every: 50\n")

	cfg, err := Load(dir, explicit)

	require.NoError(t, err)
	assert.Equal(t, 2000, cfg.Ingest.ChunkSize, "project file is not read when --config is given")
	assert.Equal(t, 50, cfg.Ingest.CommitEvery)
}

func TestLoad_ExplicitPathMissing_ReturnsError(t *testing.T) {
	isolate(t)

	_, err := Load(t.TempDir(), filepath.Join(t.TempDir(), "nope.yaml"))

	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_ProjectConfigOverridesUserConfig(t *testing.T) {
	// Given: both user and project config set chunk_size
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	writeFile(t, filepath.Join(xdg, "recordex", "config.yaml"), `
ingest:
  chunk_size: 1200
logging:
  level: debug
`)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectConfigName), "ingest:\n  chunk_size: 700\n")

	// When: loading
	cfg, err := Load(dir, "")

	// Then: project wins, user-only keys survive
	require.NoError(t, err)
	assert.Equal(t, 700, cfg.Ingest.ChunkSize)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_DotEnv_AppliesBelowProcessEnv(t *testing.T) {
	// Given: a .env file and a process variable for different keys
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".env"), "RECORDEX_DB=fromdotenv.sqlite\nRECORDEX_CHUNK_SIZE=1500\n")
	t.Setenv("RECORDEX_CHUNK_SIZE", "800")

	// When: loading
	cfg, err := Load(dir, "")

	// Then: .env fills gaps, process env wins on conflict
	require.NoError(t, err)
	assert.Equal(t, "fromdotenv.sqlite", cfg.Store.Path)
	assert.Equal(t, 800, cfg.Ingest.ChunkSize)
}

func TestLoad_EnvOverridesProjectConfig(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectConfigName), "ingest:\n  dedupe: true\n")
	t.Setenv("RECORDEX_DEDUPE", "0")
	t.Setenv("RECORDEX_FORCE_LOOKUP_INSERT", "true")
	t.Setenv("RECORDEX_STORE_DRIVER", "sqlite3")

	cfg, err := Load(dir, "")

	require.NoError(t, err)
	assert.False(t, cfg.Ingest.Dedupe)
	assert.True(t, cfg.Store.ForceLookupInsert)
	assert.Equal(t, "sqlite3", cfg.Store.Driver)
}

func TestLoad_EnvBadInteger_ReturnsError(t *testing.T) {
	isolate(t)
	t.Setenv("RECORDEX_CHUNK_SIZE", "big")

	_, err := Load(t.TempDir(), "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "RECORDEX_CHUNK_SIZE")
}

func TestLoad_EnvEmptyString_DoesNotOverride(t *testing.T) {
	isolate(t)
	t.Setenv("RECORDEX_DB", "")

	cfg, err := Load(t.TempDir(), "")

	require.NoError(t, err)
	assert.Equal(t, DefaultDBPath, cfg.Store.Path)
}

func TestLoad_InvalidYaml_ReturnsError(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectConfigName), "ingest: [unclosed\n")

	_, err := Load(dir, "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoad_InvalidFieldType_ReturnsError(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectConfigName), "ingest:\n  chunk_size: lots\n")

	_, err := Load(dir, "")

	require.Error(t, err)
}

// =============================================================================
// Validation
// =============================================================================

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero chunk size", func(c *Config) { c.Ingest.ChunkSize = 0 }, "chunk_size"},
		{"zero commit interval", func(c *Config) { c.Ingest.CommitEvery = 0 }, "commit_every"},
		{"no extensions", func(c *Config) { c.Ingest.Extensions = nil }, "extensions"},
		{"extension without dot", func(c *Config) { c.Ingest.Extensions = []string{"txt"} }, "extensions"},
		{"unknown driver", func(c *Config) { c.Store.Driver = "postgres" }, "store.driver"},
		{"empty db path", func(c *Config) { c.Store.Path = " " }, "store.path"},
		{"negative busy timeout", func(c *Config) { c.Store.BusyTimeoutMS = -1 }, "busy_timeout_ms"},
		{"bad ttl", func(c *Config) { c.Server.CacheTTL = "soon" }, "cache_ttl"},
		{"zero max limit", func(c *Config) { c.Server.MaxLimit = 0 }, "max_limit"},
		{"negative rate limit", func(c *Config) { c.Server.RateLimit = -1 }, "rate_limit"},
		{"rate limit without burst", func(c *Config) { c.Server.Burst = 0 }, "server.burst"},
		{"unknown level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"zero top terms", func(c *Config) { c.Telemetry.TopTerms = 0 }, "top_terms"},
		{"bad flush interval", func(c *Config) { c.Telemetry.FlushInterval = "-1s" }, "flush_interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestServerConfig_TTL(t *testing.T) {
	ttl, err := ServerConfig{CacheTTL: "90s"}.TTL()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, ttl)

	ttl, err = ServerConfig{}.TTL()
	require.NoError(t, err)
	assert.Zero(t, ttl)
}

func TestTelemetryConfig_Interval(t *testing.T) {
	d, err := TelemetryConfig{FlushInterval: "30s"}.Interval()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)

	d, err = TelemetryConfig{}.Interval()
	require.NoError(t, err)
	assert.Zero(t, d)
}

func TestLoad_EnvDisablesTelemetry(t *testing.T) {
	isolate(t)
	t.Setenv("RECORDEX_TELEMETRY", "off")

	cfg, err := Load(t.TempDir(), "")

	require.NoError(t, err)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestGetUserConfigPath_RespectsXDGConfigHome(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	assert.Equal(t, filepath.Join(xdg, "recordex", "config.yaml"), GetUserConfigPath())
}

func TestWriteYAML_RoundTripsThroughLoad(t *testing.T) {
	// Given: a modified config written to disk
	isolate(t)
	dir := t.TempDir()
	cfg := NewConfig()
	cfg.Ingest.NormalizeNFKC = true
	cfg.Server.Addr = ":9999"
	require.NoError(t, cfg.WriteYAML(filepath.Join(dir, ProjectConfigName)))

	// When: loading it back
	loaded, err := Load(dir, "")

	// Then: the values survive
	require.NoError(t, err)
	assert.True(t, loaded.Ingest.NormalizeNFKC)
	assert.Equal(t, ":9999", loaded.Server.Addr)
}
