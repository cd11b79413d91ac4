package composite

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/milad-o/agenticflow-sub002/pkg/retriever"
)

// Contextual defaults.
const (
	DefaultContextWindow  = 2
	DefaultContextWeight  = 0.3
	DefaultHistorySize    = 10
	DefaultHistoryInQuery = 3
)

// ContextualConfig configures Contextual.
type ContextualConfig struct {
	retriever.Config `yaml:",inline"`

	// ContextWindow is how many ranks on each side count as neighbours.
	ContextWindow int `yaml:"context_window"`

	// ContextWeight blends the neighbour mean into each score.
	ContextWeight float64 `yaml:"context_weight"`

	// HistorySize bounds the remembered queries.
	HistorySize int `yaml:"history_size"`

	// HistoryInQuery is how many recent queries are appended to the
	// current one.
	HistoryInQuery int `yaml:"history_in_query"`
}

// DefaultContextualConfig returns the default contextual configuration.
// Results depend on history, so result caching is off.
func DefaultContextualConfig() ContextualConfig {
	cfg := ContextualConfig{
		Config:         retriever.DefaultConfig(),
		ContextWindow:  DefaultContextWindow,
		ContextWeight:  DefaultContextWeight,
		HistorySize:    DefaultHistorySize,
		HistoryInQuery: DefaultHistoryInQuery,
	}
	cfg.EnableCaching = false
	cfg.SimilarityThreshold = 0
	return cfg
}

// Contextual conditions a base retriever on the recent queries and smooths
// each score toward the mean of its rank neighbours:
//
//	score' = (1 − ContextWeight)·score + ContextWeight·mean(neighbours)
type Contextual struct {
	*retriever.Pipeline
	cfg  ContextualConfig
	base retriever.Retriever

	mu      sync.Mutex
	history []string
}

// NewContextual wraps base.
func NewContextual(base retriever.Retriever, cfg ContextualConfig, opts ...retriever.PipelineOption) (*Contextual, error) {
	if base == nil {
		return nil, missingChildren(ContextualType)
	}
	if cfg.ContextWindow < 0 {
		return nil, retriever.ConfigurationError(fmt.Sprintf("context_window must be >= 0, got %d", cfg.ContextWindow), nil)
	}
	if cfg.ContextWeight < 0 || cfg.ContextWeight > 1 {
		return nil, retriever.ConfigurationError(fmt.Sprintf("context_weight must be in [0, 1], got %g", cfg.ContextWeight), nil)
	}
	if cfg.HistorySize < 0 || cfg.HistoryInQuery < 0 {
		return nil, retriever.ConfigurationError("history sizes must be >= 0", nil)
	}

	c := &Contextual{cfg: cfg, base: base}
	var err error
	if c.Pipeline, err = retriever.NewPipeline(ContextualType, cfg.Config, c.Search, opts...); err != nil {
		return nil, err
	}
	return c, nil
}

// Search queries the base retriever with the query plus recent history,
// applies the neighbour boost and then records the query.
func (c *Contextual) Search(ctx context.Context, q retriever.Query) ([]retriever.Result, error) {
	expanded := q.Text
	if recent := c.recent(); len(recent) > 0 {
		expanded = q.Text + " " + strings.Join(recent, " ")
	}

	results, err := c.base.Retrieve(ctx, expanded, childOptions(q)...)
	if err != nil {
		return nil, err
	}
	results = retriever.CloneResults(results)

	original := make([]float64, len(results))
	for i, r := range results {
		original[i] = r.Score
	}
	for i := range results {
		lo := max(0, i-c.cfg.ContextWindow)
		hi := min(len(results)-1, i+c.cfg.ContextWindow)

		var sum float64
		var n int
		for j := lo; j <= hi; j++ {
			if j != i {
				sum += original[j]
				n++
			}
		}
		if n == 0 {
			continue
		}
		mean := sum / float64(n)
		results[i].Score = (1-c.cfg.ContextWeight)*original[i] + c.cfg.ContextWeight*mean
		results[i].SetMeta("original_score", original[i])
		results[i].SetMeta("neighbour_mean", mean)
	}

	c.remember(q.Text)
	return results, nil
}

func (c *Contextual) recent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := min(c.cfg.HistoryInQuery, len(c.history))
	return append([]string(nil), c.history[len(c.history)-n:]...)
}

func (c *Contextual) remember(query string) {
	if c.cfg.HistorySize == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = append(c.history, query)
	if over := len(c.history) - c.cfg.HistorySize; over > 0 {
		c.history = append(c.history[:0], c.history[over:]...)
	}
}

// History returns the remembered queries, oldest first.
func (c *Contextual) History() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.history...)
}

// ClearHistory forgets all remembered queries.
func (c *Contextual) ClearHistory() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = nil
}
