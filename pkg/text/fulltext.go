package text

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/milad-o/agenticflow-sub002/internal/textanalysis"
	"github.com/milad-o/agenticflow-sub002/internal/tokenize"
	"github.com/milad-o/agenticflow-sub002/pkg/retriever"
	"github.com/milad-o/agenticflow-sub002/pkg/source"
)

// FullTextConfig configures FullText.
type FullTextConfig struct {
	retriever.Config `yaml:",inline"`

	// RemoveStopWords drops English stop words from query and content.
	RemoveStopWords bool `yaml:"remove_stop_words"`

	// Stemming applies the Porter stemmer.
	Stemming bool `yaml:"stemming"`

	// PhraseBonus is added when the raw query occurs in the content.
	PhraseBonus float64 `yaml:"phrase_bonus"`

	// EarlyBonus is added when that occurrence starts within EarlyWindow
	// characters.
	EarlyBonus  float64 `yaml:"early_bonus"`
	EarlyWindow int     `yaml:"early_window"`
}

// DefaultFullTextConfig returns the default full-text configuration.
func DefaultFullTextConfig() FullTextConfig {
	cfg := FullTextConfig{
		Config:          retriever.DefaultConfig(),
		RemoveStopWords: true,
		Stemming:        true,
		PhraseBonus:     1.0,
		EarlyBonus:      0.5,
		EarlyWindow:     100,
	}
	cfg.SimilarityThreshold = 0
	return cfg
}

// FullText scores analyzed term overlap: Σ ln(1+tf) over matching query
// terms, plus phrase and early-occurrence bonuses.
type FullText struct {
	*retriever.Pipeline
	cfg      FullTextConfig
	adapter  *source.Adapter
	analyzer *textanalysis.Analyzer
}

// NewFullText creates a full-text retriever over src.
func NewFullText(src any, cfg FullTextConfig, opts ...retriever.PipelineOption) (*FullText, error) {
	if cfg.EarlyWindow < 0 {
		return nil, retriever.ConfigurationError(fmt.Sprintf("early_window must be >= 0, got %d", cfg.EarlyWindow), nil)
	}

	analyzer, err := textanalysis.New(textanalysis.Options{
		RemoveStopWords: cfg.RemoveStopWords,
		Stem:            cfg.Stemming,
	})
	if err != nil {
		return nil, retriever.ConfigurationError("building analyzer", err)
	}

	f := &FullText{cfg: cfg, analyzer: analyzer}
	p, err := retriever.NewPipeline(FullTextType, cfg.Config, f.Search, opts...)
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
func (f *FullText) Search(ctx context.Context, q retriever.Query) ([]retriever.Result, error) {
	docs, err := f.adapter.Documents(ctx, q.Text, q.Limit)
	if err != nil {
		return nil, err
	}

	terms := tokenize.Unique(f.analyzer.Terms(q.Text))
	phrase := strings.ToLower(strings.TrimSpace(q.Text))

	results := make([]retriever.Result, 0, len(docs))
	for _, d := range docs {
		if s := f.score(terms, phrase, d.Content); s > 0 {
			results = append(results, retriever.Result{Document: d, Score: s})
		}
	}
	return results, nil
}

// Score returns the full-text score of content for query.
func (f *FullText) Score(query, content string) float64 {
	terms := tokenize.Unique(f.analyzer.Terms(query))
	return f.score(terms, strings.ToLower(strings.TrimSpace(query)), content)
}

func (f *FullText) score(terms []string, phrase, content string) float64 {
	if content == "" {
		return 0
	}

	var score float64
	if len(terms) > 0 {
		tf := tokenize.Counts(f.analyzer.Terms(content))
		for _, t := range terms {
			if n := tf[t]; n > 0 {
				score += math.Log1p(float64(n))
			}
		}
	}

	if phrase != "" {
		lower := strings.ToLower(content)
		if idx := strings.Index(lower, phrase); idx >= 0 {
			score += f.cfg.PhraseBonus
			if len([]rune(lower[:idx])) < f.cfg.EarlyWindow {
				score += f.cfg.EarlyBonus
			}
		}
	}
	return score
}
