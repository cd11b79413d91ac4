// Package config loads the retrieve command's configuration: where
// documents come from, which embedding provider to use, logging, and the
// retriever tree to build.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/milad-o/agenticflow-sub002/internal/logging"
	"github.com/milad-o/agenticflow-sub002/pkg/factory"
)

// Source backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBleve  = "bleve"
	BackendVector = "vector"
)

// Embedding providers. ProviderNone leaves dense strategies on their
// keyword fallback.
const (
	ProviderNone   = "none"
	ProviderStatic = "static"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Environment overrides, applied after the YAML file.
const (
	EnvLogLevel  = "RETRIEVAL_LOG_LEVEL"
	EnvStrategy  = "RETRIEVAL_STRATEGY"
	EnvLimit     = "RETRIEVAL_LIMIT"
	EnvThreshold = "RETRIEVAL_THRESHOLD"
)

// DefaultFileName is looked up in the working directory when no path is
// given.
const DefaultFileName = "retrieve.yaml"

// Config is the complete configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
	Source     SourceConfig     `yaml:"source" json:"source"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Search     SearchConfig     `yaml:"search" json:"search"`

	// Retriever is the tree built for each search.
	Retriever factory.Spec `yaml:"retriever" json:"-"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	Format    string `yaml:"format" json:"format"`
	File      string `yaml:"file" json:"file"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// SourceConfig selects the data source documents are loaded into.
type SourceConfig struct {
	// Backend is memory, sqlite, bleve or vector.
	Backend string `yaml:"backend" json:"backend"`
	// Path is the SQLite database file. Empty means in-memory.
	Path string `yaml:"path" json:"path"`
	// Documents are JSONL or YAML files loaded before searching.
	Documents []string `yaml:"documents" json:"documents"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Host       string `yaml:"host" json:"host"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	CacheSize  int    `yaml:"cache_size" json:"cache_size"`
}

// SearchConfig holds per-query defaults.
type SearchConfig struct {
	Limit int `yaml:"limit" json:"limit"`
	// Threshold overrides the strategy's own threshold when set.
	Threshold *float64 `yaml:"threshold,omitempty" json:"threshold,omitempty"`
}

// NewConfig returns the defaults.
func NewConfig() *Config {
	logCfg := logging.DefaultConfig()
	return &Config{
		Version: 1,
		Logging: LoggingConfig{
			Level:     logCfg.Level,
			Format:    logCfg.Format,
			MaxSizeMB: logCfg.MaxSizeMB,
			MaxFiles:  logCfg.MaxFiles,
		},
		Source: SourceConfig{Backend: BackendMemory},
		Embeddings: EmbeddingsConfig{
			Provider:   ProviderStatic,
			Dimensions: 256,
			CacheSize:  1000,
		},
		Search:    SearchConfig{Limit: 10},
		Retriever: factory.Spec{Type: factory.Auto},
	}
}

// Load reads path, or DefaultFileName in the working directory when path
// is empty, over the defaults. A missing default file is not an error; a
// missing explicit path is. Environment overrides are applied last and the
// result is validated.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}
	if _, err := os.Stat(path); err == nil || explicit {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadYAML decodes path onto c; keys absent from the file keep their
// current values.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// Document paths are relative to the config file.
	base := filepath.Dir(path)
	for i, doc := range c.Source.Documents {
		if !filepath.IsAbs(doc) {
			c.Source.Documents[i] = filepath.Join(base, doc)
		}
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvStrategy); v != "" {
		c.Retriever = factory.Spec{Type: strings.TrimSpace(v)}
	}
	if v := os.Getenv(EnvLimit); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvLimit, err)
		}
		c.Search.Limit = n
	}
	if v := os.Getenv(EnvThreshold); v != "" {
		t, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvThreshold, err)
		}
		c.Search.Threshold = &t
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case logging.FormatJSON, logging.FormatText, "":
	default:
		return fmt.Errorf("logging.format must be 'json' or 'text', got %s", c.Logging.Format)
	}

	switch c.Source.Backend {
	case BackendMemory, BackendSQLite, BackendBleve, BackendVector:
	default:
		return fmt.Errorf("source.backend must be 'memory', 'sqlite', 'bleve' or 'vector', got %s", c.Source.Backend)
	}

	switch c.Embeddings.Provider {
	case ProviderNone, ProviderStatic, ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("embeddings.provider must be 'none', 'static', 'openai' or 'ollama', got %s", c.Embeddings.Provider)
	}
	if c.Embeddings.Provider == ProviderStatic && c.Embeddings.Dimensions <= 0 {
		return fmt.Errorf("embeddings.dimensions must be positive for the static provider, got %d", c.Embeddings.Dimensions)
	}
	if c.Source.Backend == BackendVector && c.Embeddings.Provider == ProviderNone {
		return fmt.Errorf("source.backend 'vector' needs an embedding provider")
	}
	if c.Embeddings.CacheSize < 0 {
		return fmt.Errorf("embeddings.cache_size must be non-negative, got %d", c.Embeddings.CacheSize)
	}

	if c.Search.Limit < 0 {
		return fmt.Errorf("search.limit must be non-negative, got %d", c.Search.Limit)
	}
	if t := c.Search.Threshold; t != nil && (*t < 0 || *t > 1) {
		return fmt.Errorf("search.threshold must be between 0 and 1, got %f", *t)
	}

	if c.Retriever.Type == "" {
		return fmt.Errorf("retriever.type is required")
	}
	return nil
}

// LoggingConfig converts the logging section for logging.Setup.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:         c.Logging.Level,
		Format:        c.Logging.Format,
		FilePath:      c.Logging.File,
		MaxSizeMB:     c.Logging.MaxSizeMB,
		MaxFiles:      c.Logging.MaxFiles,
		WriteToStderr: true,
	}
}

// WriteYAML writes the configuration to path.
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
