package retriever

import (
	"fmt"
	"time"
)

// Normalization selects how scores are rescaled after filtering.
type Normalization string

const (
	// NormalizeNone leaves scores untouched.
	NormalizeNone Normalization = "none"
	// NormalizeMinMax rescales scores into [0, 1].
	NormalizeMinMax Normalization = "minmax"
	// NormalizeZScore centers scores on the mean in units of sample stdev.
	NormalizeZScore Normalization = "zscore"
)

// Defaults shared by every strategy config.
const (
	DefaultSimilarityThreshold = 0.7
	DefaultMaxResults          = 10
	DefaultCacheSize           = 100
	DefaultCacheTTL            = 5 * time.Minute
)

// RerankConfig holds the boost constants applied when reranking is enabled.
type RerankConfig struct {
	// TermBoost is added once per distinct query term found in the content.
	TermBoost float64 `yaml:"term_boost"`

	// LengthBoost is added when content length is within the ideal range.
	LengthBoost float64 `yaml:"length_boost"`

	// IdealMinLength and IdealMaxLength bound the ideal content length in
	// characters.
	IdealMinLength int `yaml:"ideal_min_length"`
	IdealMaxLength int `yaml:"ideal_max_length"`

	// RecencyBoost is added when the document is younger than RecencyWindow.
	RecencyBoost  float64       `yaml:"recency_boost"`
	RecencyWindow time.Duration `yaml:"recency_window"`
}

// DefaultRerankConfig returns the stock boost constants.
func DefaultRerankConfig() RerankConfig {
	return RerankConfig{
		TermBoost:      0.1,
		LengthBoost:    0.05,
		IdealMinLength: 100,
		IdealMaxLength: 1000,
		RecencyBoost:   0.1,
		RecencyWindow:  24 * time.Hour,
	}
}

// Config is the base configuration embedded by every strategy config.
type Config struct {
	// SimilarityThreshold drops results scoring below it.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`

	// MaxResults is the default limit when Retrieve gets no WithLimit.
	MaxResults int `yaml:"max_results"`

	// EnableCaching turns on the per-retriever result cache.
	EnableCaching bool `yaml:"enable_caching"`

	// CacheSize bounds the number of cached queries.
	CacheSize int `yaml:"cache_size"`

	// CacheTTL is how long a cached result list stays fresh.
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// MetadataFilters keep documents whose metadata equals each value, or
	// contains it when the filter value is a list.
	MetadataFilters map[string]any `yaml:"metadata_filters,omitempty"`

	// ContentFilters keep documents containing every substring
	// (case-insensitive).
	ContentFilters []string `yaml:"content_filters,omitempty"`

	// EnableReranking applies the boosts in Rerank.
	EnableReranking bool `yaml:"enable_reranking"`

	// ScoreNormalization rescales scores after filtering.
	ScoreNormalization Normalization `yaml:"score_normalization"`

	Rerank RerankConfig `yaml:"rerank"`
}

// DefaultConfig returns the base configuration defaults.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: DefaultSimilarityThreshold,
		MaxResults:          DefaultMaxResults,
		EnableCaching:       true,
		CacheSize:           DefaultCacheSize,
		CacheTTL:            DefaultCacheTTL,
		ScoreNormalization:  NormalizeNone,
		Rerank:              DefaultRerankConfig(),
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if c.MaxResults < 0 {
		return ConfigurationError(fmt.Sprintf("max_results must be >= 0, got %d", c.MaxResults), nil)
	}
	if c.CacheSize < 0 {
		return ConfigurationError(fmt.Sprintf("cache_size must be >= 0, got %d", c.CacheSize), nil)
	}
	if c.CacheTTL < 0 {
		return ConfigurationError(fmt.Sprintf("cache_ttl must be >= 0, got %s", c.CacheTTL), nil)
	}
	switch c.ScoreNormalization {
	case "", NormalizeNone, NormalizeMinMax, NormalizeZScore:
	default:
		return ConfigurationError(fmt.Sprintf("unknown score_normalization %q", c.ScoreNormalization), nil)
	}
	if c.Rerank.IdealMaxLength < c.Rerank.IdealMinLength {
		return ConfigurationError("rerank.ideal_max_length must be >= rerank.ideal_min_length", nil)
	}
	return nil
}

// withDefaults fills zero-valued sizes so a partially populated Config
// still behaves.
func (c Config) withDefaults() Config {
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
	if c.CacheSize == 0 {
		c.CacheSize = DefaultCacheSize
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.ScoreNormalization == "" {
		c.ScoreNormalization = NormalizeNone
	}
	if c.Rerank == (RerankConfig{}) {
		c.Rerank = DefaultRerankConfig()
	}
	return c
}
