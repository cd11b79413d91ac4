package vector

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/milad-o/agenticflow-sub002/internal/lazybuild"
	"github.com/milad-o/agenticflow-sub002/internal/tokenize"
	"github.com/milad-o/agenticflow-sub002/pkg/retriever"
	"github.com/milad-o/agenticflow-sub002/pkg/source"
)

// Sparse defaults.
const (
	DefaultMaxFeatures       = 10000
	DefaultSparsityThreshold = 0.001
)

// SparseConfig configures Sparse.
type SparseConfig struct {
	retriever.Config `yaml:",inline"`

	// MaxFeatures caps the vocabulary to the terms with the highest
	// document frequency. Zero keeps every term.
	MaxFeatures int `yaml:"max_features"`

	// UseIDF weights term frequency by inverse document frequency.
	UseIDF bool `yaml:"use_idf"`

	// SparsityThreshold drops vector entries whose weight is below it.
	SparsityThreshold float64 `yaml:"sparsity_threshold"`
}

// DefaultSparseConfig returns the default sparse configuration.
func DefaultSparseConfig() SparseConfig {
	return SparseConfig{
		Config:            retriever.DefaultConfig(),
		MaxFeatures:       DefaultMaxFeatures,
		UseIDF:            true,
		SparsityThreshold: DefaultSparsityThreshold,
	}
}

// SparseVector holds only the nonzero dimensions of a TF-IDF vector.
type SparseVector map[string]float64

// Norm returns the L2 norm.
func (v SparseVector) Norm() float64 {
	var sum float64
	for _, w := range v {
		sum += w * w
	}
	return math.Sqrt(sum)
}

// Cosine returns the cosine similarity of v and o, summing only over the
// dimensions both have.
func (v SparseVector) Cosine(o SparseVector) float64 {
	small, large := v, o
	if len(large) < len(small) {
		small, large = large, small
	}
	var dot float64
	for term, w := range small {
		if x, ok := large[term]; ok {
			dot += w * x
		}
	}
	if dot == 0 {
		return 0
	}
	return dot / (v.Norm() * o.Norm())
}

type sparseCorpus struct {
	docs    []retriever.Document
	vectors []SparseVector
	vocab   map[string]float64 // term -> idf (1 when UseIDF is off)
}

// Sparse ranks documents by cosine similarity of TF-IDF vectors. The
// vocabulary and idf weights are computed from the source once and reused
// until Rebuild.
type Sparse struct {
	*retriever.Pipeline
	cfg     SparseConfig
	adapter *source.Adapter
	corpus  lazybuild.Guard[*sparseCorpus]
}

// NewSparse creates a sparse retriever over src.
func NewSparse(src any, cfg SparseConfig, opts ...retriever.PipelineOption) (*Sparse, error) {
	if cfg.MaxFeatures < 0 {
		return nil, retriever.ConfigurationError(fmt.Sprintf("max_features must be >= 0, got %d", cfg.MaxFeatures), nil)
	}
	if cfg.SparsityThreshold < 0 {
		return nil, retriever.ConfigurationError(fmt.Sprintf("sparsity_threshold must be >= 0, got %g", cfg.SparsityThreshold), nil)
	}

	s := &Sparse{cfg: cfg}
	p, err := retriever.NewPipeline(SparseType, cfg.Config, s.Search, opts...)
	if err != nil {
		return nil, err
	}
	s.Pipeline = p

	if s.adapter, err = source.NewAdapter(src, source.WithLogger(p.Logger())); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sparse) buildCorpus(ctx context.Context) (*sparseCorpus, error) {
	docs, err := s.adapter.Documents(ctx, "", 0)
	if err != nil {
		return nil, err
	}

	tokens := make([][]string, len(docs))
	df := make(map[string]int)
	for i, d := range docs {
		tokens[i] = tokenize.Words(d.Content)
		for _, t := range tokenize.Unique(tokens[i]) {
			df[t]++
		}
	}

	terms := make([]string, 0, len(df))
	for t := range df {
		terms = append(terms, t)
	}
	slices.SortFunc(terms, func(a, b string) int {
		if c := cmp.Compare(df[b], df[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	if s.cfg.MaxFeatures > 0 && len(terms) > s.cfg.MaxFeatures {
		terms = terms[:s.cfg.MaxFeatures]
	}

	c := &sparseCorpus{docs: docs, vocab: make(map[string]float64, len(terms))}
	n := float64(len(docs))
	for _, t := range terms {
		idf := 1.0
		if s.cfg.UseIDF {
			idf = math.Log((1+n)/(1+float64(df[t]))) + 1
		}
		c.vocab[t] = idf
	}

	c.vectors = make([]SparseVector, len(docs))
	for i := range docs {
		c.vectors[i] = s.vectorize(c, tokens[i])
	}

	s.Logger().Info("sparse_vocabulary_built",
		slog.Int("documents", len(docs)),
		slog.Int("vocabulary", len(c.vocab)),
		slog.Int("terms_seen", len(df)))

	return c, nil
}

// vectorize weights in-vocabulary tokens by tf·idf, tf being the share of
// the text's tokens.
func (s *Sparse) vectorize(c *sparseCorpus, tokens []string) SparseVector {
	v := make(SparseVector)
	if len(tokens) == 0 {
		return v
	}
	total := float64(len(tokens))
	for term, n := range tokenize.Counts(tokens) {
		idf, ok := c.vocab[term]
		if !ok {
			continue
		}
		if w := float64(n) / total * idf; w >= s.cfg.SparsityThreshold && w > 0 {
			v[term] = w
		}
	}
	return v
}

// Search scores every corpus document against the query vector.
func (s *Sparse) Search(ctx context.Context, q retriever.Query) ([]retriever.Result, error) {
	c, err := s.corpus.Get(ctx, s.buildCorpus)
	if err != nil {
		return nil, err
	}

	qv := s.vectorize(c, tokenize.Words(q.Text))
	if len(qv) == 0 {
		return []retriever.Result{}, nil
	}

	results := make([]retriever.Result, 0)
	for i, d := range c.docs {
		if sim := qv.Cosine(c.vectors[i]); sim > 0 {
			results = append(results, retriever.Result{Document: d.Clone(), Score: sim})
		}
	}
	return results, nil
}

// Vectorize returns the sparse vector of text under the current
// vocabulary, building it if needed.
func (s *Sparse) Vectorize(ctx context.Context, text string) (SparseVector, error) {
	c, err := s.corpus.Get(ctx, s.buildCorpus)
	if err != nil {
		return nil, err
	}
	return s.vectorize(c, tokenize.Words(text)), nil
}

// Vocabulary returns the retained terms, sorted.
func (s *Sparse) Vocabulary(ctx context.Context) ([]string, error) {
	c, err := s.corpus.Get(ctx, s.buildCorpus)
	if err != nil {
		return nil, err
	}
	terms := make([]string, 0, len(c.vocab))
	for t := range c.vocab {
		terms = append(terms, t)
	}
	slices.Sort(terms)
	return terms, nil
}

// Rebuild recomputes the vocabulary from the source and drops cached
// results.
func (s *Sparse) Rebuild(ctx context.Context) error {
	if _, err := s.corpus.Rebuild(ctx, s.buildCorpus); err != nil {
		return err
	}
	s.ClearCache()
	return nil
}
