package text

import (
	"context"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/milad-o/agenticflow-sub002/pkg/retriever"
	"github.com/milad-o/agenticflow-sub002/pkg/source"
)

// DefaultMaxEditDistance is the default Levenshtein tolerance.
const DefaultMaxEditDistance = 2

// FuzzyConfig configures Fuzzy.
type FuzzyConfig struct {
	retriever.Config `yaml:",inline"`

	// MaxEditDistance is the largest Levenshtein distance still counted as
	// a match. Zero means exact substring matching only.
	MaxEditDistance int `yaml:"max_edit_distance"`

	// CaseSensitive compares with original case.
	CaseSensitive bool `yaml:"case_sensitive"`
}

// DefaultFuzzyConfig returns the default fuzzy configuration.
func DefaultFuzzyConfig() FuzzyConfig {
	return FuzzyConfig{
		Config:          retriever.DefaultConfig(),
		MaxEditDistance: DefaultMaxEditDistance,
	}
}

// Fuzzy tolerates typos. An exact substring scores 1.0; otherwise every
// query-length window of the content is compared by edit distance and the
// best window within MaxEditDistance scores 1 − d/max(len).
type Fuzzy struct {
	*retriever.Pipeline
	cfg     FuzzyConfig
	adapter *source.Adapter
}

// NewFuzzy creates a fuzzy retriever over src.
func NewFuzzy(src any, cfg FuzzyConfig, opts ...retriever.PipelineOption) (*Fuzzy, error) {
	if cfg.MaxEditDistance < 0 {
		return nil, retriever.ConfigurationError(fmt.Sprintf("max_edit_distance must be >= 0, got %d", cfg.MaxEditDistance), nil)
	}

	f := &Fuzzy{cfg: cfg}
	p, err := retriever.NewPipeline(FuzzyType, cfg.Config, f.Search, opts...)
	if err != nil {
		return nil, err
	}
	f.Pipeline = p

	if f.adapter, err = source.NewAdapter(src, source.WithLogger(p.Logger())); err != nil {
		return nil, err
	}
	return f, nil
}

// Search scores every candidate and returns those with a positive score.
func (f *Fuzzy) Search(ctx context.Context, q retriever.Query) ([]retriever.Result, error) {
	docs, err := f.adapter.Documents(ctx, q.Text, q.Limit)
	if err != nil {
		return nil, err
	}

	results := make([]retriever.Result, 0, len(docs))
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s := f.Score(q.Text, d.Content); s > 0 {
			results = append(results, retriever.Result{Document: d, Score: s})
		}
	}
	return results, nil
}

// Score returns the fuzzy similarity of content to query, in [0, 1].
func (f *Fuzzy) Score(query, content string) float64 {
	query = strings.TrimSpace(query)
	if query == "" || content == "" {
		return 0
	}
	if !f.cfg.CaseSensitive {
		query = strings.ToLower(query)
		content = strings.ToLower(content)
	}

	if strings.Contains(content, query) {
		return 1.0
	}
	if f.cfg.MaxEditDistance == 0 {
		return 0
	}

	q := []rune(query)
	c := []rune(content)
	width := min(len(q), len(c))

	best := 0.0
	for i := 0; i+width <= len(c); i++ {
		window := string(c[i : i+width])
		d := levenshtein.ComputeDistance(query, window)
		if d > f.cfg.MaxEditDistance {
			continue
		}
		sim := 1 - float64(d)/float64(max(len(q), width))
		if sim > best {
			best = sim
		}
	}
	return best
}
