package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milad-o/agenticflow-sub002/pkg/factory"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig()

	require.NotNil(t, cfg)
	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, BackendMemory, cfg.Source.Backend)
	assert.Equal(t, ProviderStatic, cfg.Embeddings.Provider)
	assert.Equal(t, 256, cfg.Embeddings.Dimensions)
	assert.Equal(t, 10, cfg.Search.Limit)
	assert.Nil(t, cfg.Search.Threshold)
	assert.Equal(t, factory.Auto, cfg.Retriever.Type)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoConfigFile_ReturnsDefaults(t *testing.T) {
	// Given: a working directory without retrieve.yaml
	t.Chdir(t.TempDir())

	// When: loading without a path
	cfg, err := Load("")

	// Then: defaults are returned
	require.NoError(t, err)
	assert.Equal(t, NewConfig().Source, cfg.Source)
	assert.Equal(t, factory.Auto, cfg.Retriever.Type)
}

func TestLoad_ExplicitMissingFile_ReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_DefaultFileInWorkingDir(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "search:\n  limit: 3\n")
	t.Chdir(dir)

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Search.Limit)
}

func TestLoad_YamlFile_OverridesDefaults(t *testing.T) {
	// Given: a file setting a subset of keys
	dir := t.TempDir()
	path := writeConfig(t, dir, `
logging:
  level: debug
  format: json
source:
  backend: sqlite
  path: /tmp/docs.db
  documents: [docs.jsonl, /abs/more.yaml]
search:
  threshold: 0.25
retriever:
  type: ensemble
  config:
    fusion_method: rank_fusion
  children:
    - type: bm25
    - type: keyword
`)

	// When: loading it
	cfg, err := Load(path)

	// Then: set keys change, others keep their defaults
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 5, cfg.Logging.MaxFiles)
	assert.Equal(t, BackendSQLite, cfg.Source.Backend)
	assert.Equal(t, "/tmp/docs.db", cfg.Source.Path)
	assert.Equal(t, []string{filepath.Join(dir, "docs.jsonl"), "/abs/more.yaml"}, cfg.Source.Documents)
	assert.Equal(t, 10, cfg.Search.Limit)
	require.NotNil(t, cfg.Search.Threshold)
	assert.InDelta(t, 0.25, *cfg.Search.Threshold, 1e-9)

	assert.Equal(t, "ensemble", cfg.Retriever.Type)
	require.Len(t, cfg.Retriever.Children, 2)
	assert.Equal(t, "bm25", cfg.Retriever.Children[0].Type)
}

func TestLoad_InvalidYAML_ReturnsError(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "search: [unclosed\n")

	_, err := Load(path)

	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	// Given: a file and environment overrides for every supported key
	path := writeConfig(t, t.TempDir(), "retriever:\n  type: bm25\nsearch:\n  limit: 4\n")
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvStrategy, "fuzzy")
	t.Setenv(EnvLimit, "7")
	t.Setenv(EnvThreshold, "0.5")

	// When: loading
	cfg, err := Load(path)

	// Then: the environment wins
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, factory.Spec{Type: "fuzzy"}, cfg.Retriever)
	assert.Equal(t, 7, cfg.Search.Limit)
	require.NotNil(t, cfg.Search.Threshold)
	assert.InDelta(t, 0.5, *cfg.Search.Threshold, 1e-9)
}

func TestLoad_InvalidEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Run("limit", func(t *testing.T) {
		t.Setenv(EnvLimit, "many")
		_, err := Load("")
		assert.ErrorContains(t, err, EnvLimit)
	})

	t.Run("threshold", func(t *testing.T) {
		t.Setenv(EnvThreshold, "high")
		_, err := Load("")
		assert.ErrorContains(t, err, EnvThreshold)
	})

	t.Run("threshold out of range", func(t *testing.T) {
		t.Setenv(EnvThreshold, "1.5")
		_, err := Load("")
		assert.ErrorContains(t, err, "search.threshold")
	})
}

func TestValidate(t *testing.T) {
	negative := -0.1

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"backend", func(c *Config) { c.Source.Backend = "postgres" }, "source.backend"},
		{"provider", func(c *Config) { c.Embeddings.Provider = "magic" }, "embeddings.provider"},
		{"static dimensions", func(c *Config) { c.Embeddings.Dimensions = 0 }, "embeddings.dimensions"},
		{"vector without provider", func(c *Config) {
			c.Source.Backend = BackendVector
			c.Embeddings.Provider = ProviderNone
		}, "needs an embedding provider"},
		{"cache size", func(c *Config) { c.Embeddings.CacheSize = -1 }, "embeddings.cache_size"},
		{"limit", func(c *Config) { c.Search.Limit = -1 }, "search.limit"},
		{"threshold", func(c *Config) { c.Search.Threshold = &negative }, "search.threshold"},
		{"retriever type", func(c *Config) { c.Retriever = factory.Spec{} }, "retriever.type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestLoggingConfig(t *testing.T) {
	cfg := NewConfig()
	cfg.Logging.File = "/var/log/retrieve.log"

	lc := cfg.LoggingConfig()

	assert.Equal(t, "warn", lc.Level)
	assert.Equal(t, "/var/log/retrieve.log", lc.FilePath)
	assert.True(t, lc.WriteToStderr)
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	// Given: a customized config written to disk
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := NewConfig()
	cfg.Source.Backend = BackendBleve
	cfg.Retriever = factory.Spec{Type: "bm25"}
	require.NoError(t, cfg.WriteYAML(path))

	// When: loading it back
	loaded, err := Load(path)

	// Then: the values survive
	require.NoError(t, err)
	assert.Equal(t, BackendBleve, loaded.Source.Backend)
	assert.Equal(t, "bm25", loaded.Retriever.Type)
}
