package text

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/milad-o/agenticflow-sub002/internal/lazybuild"
	"github.com/milad-o/agenticflow-sub002/internal/tokenize"
	"github.com/milad-o/agenticflow-sub002/pkg/retriever"
	"github.com/milad-o/agenticflow-sub002/pkg/source"
)

// BM25 defaults.
const (
	DefaultBM25K1      = 1.5
	DefaultBM25B       = 0.75
	DefaultBM25Epsilon = 1.0
)

// BM25Config configures BM25.
type BM25Config struct {
	retriever.Config `yaml:",inline"`

	// K1 controls term-frequency saturation.
	K1 float64 `yaml:"k1"`

	// B controls document-length normalization, in [0, 1].
	B float64 `yaml:"b"`

	// Epsilon is added inside the idf logarithm so that terms present in
	// most documents keep a positive weight.
	Epsilon float64 `yaml:"epsilon"`
}

// DefaultBM25Config returns the default BM25 configuration. BM25 scores
// are unbounded, so no threshold applies by default.
func DefaultBM25Config() BM25Config {
	cfg := BM25Config{
		Config:  retriever.DefaultConfig(),
		K1:      DefaultBM25K1,
		B:       DefaultBM25B,
		Epsilon: DefaultBM25Epsilon,
	}
	cfg.SimilarityThreshold = 0
	return cfg
}

// Validate checks the BM25 parameters.
func (c BM25Config) Validate() error {
	if c.K1 < 0 {
		return retriever.ConfigurationError(fmt.Sprintf("k1 must be >= 0, got %g", c.K1), nil)
	}
	if c.B < 0 || c.B > 1 {
		return retriever.ConfigurationError(fmt.Sprintf("b must be in [0, 1], got %g", c.B), nil)
	}
	if c.Epsilon < 0 {
		return retriever.ConfigurationError(fmt.Sprintf("epsilon must be >= 0, got %g", c.Epsilon), nil)
	}
	return c.Config.Validate()
}

// bm25Corpus is the immutable statistics snapshot a query runs against.
type bm25Corpus struct {
	docs    []retriever.Document
	index   map[string]int
	tf      []map[string]int
	lengths []int
	df      map[string]int
	avgdl   float64
}

// CorpusStats describes the built corpus.
type CorpusStats struct {
	Documents     int     `json:"documents"`
	Terms         int     `json:"terms"`
	AverageLength float64 `json:"average_length"`
	State         string  `json:"state"`
}

// BM25 is the Okapi BM25 ranking function:
//
//	idf(t)   = ln((N − df + 0.5) / (df + 0.5) + Epsilon)
//	score(d) = Σ idf(t) · tf·(K1+1) / (tf + K1·(1 − B + B·|d|/avgdl))
//
// The corpus is built from the source on first use and reused until
// Rebuild.
type BM25 struct {
	*retriever.Pipeline
	cfg     BM25Config
	adapter *source.Adapter
	corpus  lazybuild.Guard[*bm25Corpus]
}

// NewBM25 creates a BM25 retriever over src.
func NewBM25(src any, cfg BM25Config, opts ...retriever.PipelineOption) (*BM25, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &BM25{cfg: cfg}
	p, err := retriever.NewPipeline(BM25Type, cfg.Config, b.Search, opts...)
	if err != nil {
		return nil, err
	}
	b.Pipeline = p

	if b.adapter, err = source.NewAdapter(src, source.WithLogger(p.Logger())); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *BM25) buildCorpus(ctx context.Context) (*bm25Corpus, error) {
	docs, err := b.adapter.Documents(ctx, "", 0)
	if err != nil {
		return nil, err
	}

	c := &bm25Corpus{
		docs:    docs,
		index:   make(map[string]int, len(docs)),
		tf:      make([]map[string]int, len(docs)),
		lengths: make([]int, len(docs)),
		df:      make(map[string]int),
	}

	var total int
	for i, d := range docs {
		tokens := tokenize.Words(d.Content)
		c.index[d.ID] = i
		c.tf[i] = tokenize.Counts(tokens)
		c.lengths[i] = len(tokens)
		total += len(tokens)
		for term := range c.tf[i] {
			c.df[term]++
		}
	}
	if len(docs) > 0 {
		c.avgdl = float64(total) / float64(len(docs))
	}

	b.Logger().Info("bm25_corpus_built",
		slog.Int("documents", len(docs)),
		slog.Int("terms", len(c.df)),
		slog.Float64("avg_length", c.avgdl))

	return c, nil
}

func (b *BM25) loadCorpus(ctx context.Context) (*bm25Corpus, error) {
	return b.corpus.Get(ctx, b.buildCorpus)
}

// Search scores every corpus document and returns those scoring above 0.
func (b *BM25) Search(ctx context.Context, q retriever.Query) ([]retriever.Result, error) {
	c, err := b.loadCorpus(ctx)
	if err != nil {
		return nil, err
	}

	terms := tokenize.Words(q.Text)
	if len(terms) == 0 {
		return []retriever.Result{}, nil
	}
	idf := b.idf(c, terms)

	results := make([]retriever.Result, 0)
	for i, d := range c.docs {
		if s := b.score(c, i, terms, idf); s > 0 {
			results = append(results, retriever.Result{Document: d.Clone(), Score: s})
		}
	}
	return results, nil
}

// ScoreDocument returns the BM25 score of one corpus document. An unknown
// id scores 0.
func (b *BM25) ScoreDocument(ctx context.Context, query, docID string) (float64, error) {
	c, err := b.loadCorpus(ctx)
	if err != nil {
		return 0, err
	}
	i, ok := c.index[docID]
	if !ok {
		return 0, nil
	}
	terms := tokenize.Words(query)
	return b.score(c, i, terms, b.idf(c, terms)), nil
}

// Rebuild re-reads the source and recomputes corpus statistics. Cached
// results are dropped.
func (b *BM25) Rebuild(ctx context.Context) error {
	if _, err := b.corpus.Rebuild(ctx, b.buildCorpus); err != nil {
		return err
	}
	b.ClearCache()
	return nil
}

// CorpusStats reports the corpus statistics, building the corpus if
// needed.
func (b *BM25) CorpusStats(ctx context.Context) (CorpusStats, error) {
	c, err := b.loadCorpus(ctx)
	if err != nil {
		return CorpusStats{}, err
	}
	return CorpusStats{
		Documents:     len(c.docs),
		Terms:         len(c.df),
		AverageLength: c.avgdl,
		State:         b.corpus.State().String(),
	}, nil
}

func (b *BM25) idf(c *bm25Corpus, terms []string) map[string]float64 {
	n := float64(len(c.docs))
	idf := make(map[string]float64, len(terms))
	for _, t := range terms {
		if _, done := idf[t]; done {
			continue
		}
		df := float64(c.df[t])
		idf[t] = math.Log((n-df+0.5)/(df+0.5) + b.cfg.Epsilon)
	}
	return idf
}

func (b *BM25) score(c *bm25Corpus, i int, terms []string, idf map[string]float64) float64 {
	avgdl := c.avgdl
	if avgdl == 0 {
		avgdl = 1
	}
	norm := 1 - b.cfg.B + b.cfg.B*float64(c.lengths[i])/avgdl

	var score float64
	for _, t := range terms {
		tf := float64(c.tf[i][t])
		if tf == 0 {
			continue
		}
		score += idf[t] * tf * (b.cfg.K1 + 1) / (tf + b.cfg.K1*norm)
	}
	return score
}
