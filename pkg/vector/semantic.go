package vector

import (
	"context"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	aerrors "github.com/milad-o/agenticflow-sub002/internal/errors"
	"github.com/milad-o/agenticflow-sub002/pkg/embed"
	"github.com/milad-o/agenticflow-sub002/pkg/retriever"
	"github.com/milad-o/agenticflow-sub002/pkg/source"
	"github.com/milad-o/agenticflow-sub002/pkg/text"
)

// ExtraQueryEmbedding supplies a precomputed query vector through
// retriever.WithExtra. Accepted values are []float32, []float64 and []any
// of numbers.
const ExtraQueryEmbedding = "query_embedding"

// Semantic defaults.
const (
	DefaultDocumentCacheSize = 10000
	DefaultEmbedBatchSize    = 32
)

// SemanticConfig configures Semantic.
type SemanticConfig struct {
	retriever.Config `yaml:",inline"`

	// Metric selects the similarity function.
	Metric Metric `yaml:"metric"`

	// NormalizeEmbeddings scales query and document vectors to unit length
	// before comparison.
	NormalizeEmbeddings bool `yaml:"normalize_embeddings"`

	// QueryCacheSize bounds the query embedding cache.
	QueryCacheSize int `yaml:"query_cache_size"`

	// DocumentCacheSize bounds the per-document embedding cache.
	DocumentCacheSize int `yaml:"document_cache_size"`

	// BatchSize is the number of documents per EmbedBatch call.
	BatchSize int `yaml:"batch_size"`
}

// DefaultSemanticConfig returns the default semantic configuration.
func DefaultSemanticConfig() SemanticConfig {
	return SemanticConfig{
		Config:              retriever.DefaultConfig(),
		Metric:              MetricCosine,
		NormalizeEmbeddings: true,
		QueryCacheSize:      embed.DefaultQueryCacheSize,
		DocumentCacheSize:   DefaultDocumentCacheSize,
		BatchSize:           DefaultEmbedBatchSize,
	}
}

// Semantic ranks documents by the similarity of their embeddings to the
// query embedding. Documents that carry an embedding use it; the rest are
// embedded through the provider and cached by id. Without a usable query
// vector the search falls back to keyword matching.
type Semantic struct {
	*retriever.Pipeline
	cfg      SemanticConfig
	adapter  *source.Adapter
	provider *embed.CachedProvider // nil without a provider
	docs     *lru.Cache[string, []float32]
	fallback *text.Keyword
}

// NewSemantic creates a semantic retriever. provider may be nil, in which
// case only precomputed embeddings are used.
func NewSemantic(src any, provider embed.Provider, cfg SemanticConfig, opts ...retriever.PipelineOption) (*Semantic, error) {
	return newSemantic(SemanticType, src, provider, cfg, opts...)
}

// NewCosine creates a Semantic fixed to cosine similarity.
func NewCosine(src any, provider embed.Provider, cfg SemanticConfig, opts ...retriever.PipelineOption) (*Semantic, error) {
	cfg.Metric = MetricCosine
	return newSemantic(CosineType, src, provider, cfg, opts...)
}

// NewEuclidean creates a Semantic fixed to 1/(1+L2 distance).
func NewEuclidean(src any, provider embed.Provider, cfg SemanticConfig, opts ...retriever.PipelineOption) (*Semantic, error) {
	cfg.Metric = MetricEuclidean
	return newSemantic(EuclideanType, src, provider, cfg, opts...)
}

// NewDotProduct creates a Semantic fixed to the raw inner product.
func NewDotProduct(src any, provider embed.Provider, cfg SemanticConfig, opts ...retriever.PipelineOption) (*Semantic, error) {
	cfg.Metric = MetricDotProduct
	return newSemantic(DotProductType, src, provider, cfg, opts...)
}

// NewManhattan creates a Semantic fixed to 1/(1+L1 distance).
func NewManhattan(src any, provider embed.Provider, cfg SemanticConfig, opts ...retriever.PipelineOption) (*Semantic, error) {
	cfg.Metric = MetricManhattan
	return newSemantic(ManhattanType, src, provider, cfg, opts...)
}

func newSemantic(kind string, src any, provider embed.Provider, cfg SemanticConfig, opts ...retriever.PipelineOption) (*Semantic, error) {
	metric, err := ParseMetric(string(cfg.Metric))
	if err != nil {
		return nil, err
	}
	cfg.Metric = metric
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultEmbedBatchSize
	}
	if cfg.DocumentCacheSize <= 0 {
		cfg.DocumentCacheSize = DefaultDocumentCacheSize
	}

	s := &Semantic{cfg: cfg}
	p, err := retriever.NewPipeline(kind, cfg.Config, s.Search, opts...)
	if err != nil {
		return nil, err
	}
	s.Pipeline = p

	if s.adapter, err = source.NewAdapter(src, source.WithLogger(p.Logger())); err != nil {
		return nil, err
	}
	if provider != nil {
		s.provider = embed.NewCachedProvider(provider, cfg.QueryCacheSize)
	}
	s.docs, _ = lru.New[string, []float32](cfg.DocumentCacheSize)

	kwCfg := text.DefaultKeywordConfig()
	kwCfg.Config = cfg.Config
	kwCfg.EnableCaching = false
	if s.fallback, err = text.NewKeyword(src, kwCfg, retriever.WithLogger(p.Logger())); err != nil {
		return nil, err
	}
	return s, nil
}

// Metric returns the configured similarity metric.
func (s *Semantic) Metric() Metric {
	return s.cfg.Metric
}

// Search embeds the query and scores every candidate document.
func (s *Semantic) Search(ctx context.Context, q retriever.Query) ([]retriever.Result, error) {
	qvec, reason, ok, err := s.queryVector(ctx, q)
	if err != nil {
		return nil, err
	}
	if !ok {
		return s.keywordFallback(ctx, q, reason)
	}
	if s.cfg.NormalizeEmbeddings {
		qvec = embed.Normalize(qvec)
	}

	docs, err := s.candidates(ctx, q, qvec)
	if err != nil {
		return nil, err
	}
	vecs := s.documentVectors(ctx, docs)

	results := make([]retriever.Result, 0, len(docs))
	for i, d := range docs {
		v := vecs[i]
		if v == nil {
			continue
		}
		if len(v) != len(qvec) {
			s.Logger().Debug("embedding_dimension_mismatch",
				slog.String("doc_id", d.ID),
				slog.Int("query_dims", len(qvec)),
				slog.Int("doc_dims", len(v)))
			continue
		}
		if s.cfg.NormalizeEmbeddings {
			v = embed.Normalize(v)
		}
		results = append(results, retriever.Result{
			Document: d,
			Score:    s.cfg.Metric.Similarity(qvec, v),
			Metadata: map[string]any{"metric": string(s.cfg.Metric)},
		})
	}
	return results, nil
}

// queryVector returns the caller-supplied vector, or embeds the query when
// a provider is reachable. ok is false when neither is possible, with
// reason naming why. A provider error only fails the query once ctx is
// done.
func (s *Semantic) queryVector(ctx context.Context, q retriever.Query) (vec []float32, reason string, ok bool, err error) {
	if raw, present := q.Extra[ExtraQueryEmbedding]; present {
		vec, valid := toFloat32s(raw)
		if !valid {
			return nil, "", false, aerrors.New(aerrors.ErrCodeInvalidQuery,
				fmt.Sprintf("%s must be a numeric slice, got %T", ExtraQueryEmbedding, raw), nil)
		}
		return vec, "", true, nil
	}

	if s.provider == nil || !s.provider.Available(ctx) {
		return nil, "provider unavailable", false, nil
	}
	vec, err = s.provider.Embed(ctx, q.Text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", false, aerrors.New(aerrors.ErrCodeEmbeddingFailed, "embedding query failed", err).
				WithDetail("model", s.provider.ModelName())
		}
		s.Logger().Warn("query_embedding_failed",
			slog.String("model", s.provider.ModelName()),
			slog.String("error", err.Error()))
		return nil, "query embedding failed", false, nil
	}
	return vec, "", true, nil
}

func (s *Semantic) keywordFallback(ctx context.Context, q retriever.Query, reason string) ([]retriever.Result, error) {
	s.Logger().Debug("semantic_keyword_fallback", slog.String("reason", reason))
	results, err := s.fallback.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].SetMeta("fallback", text.KeywordType)
	}
	return results, nil
}

// candidates prefers the source's vector index when it has one.
func (s *Semantic) candidates(ctx context.Context, q retriever.Query, qvec []float32) ([]retriever.Document, error) {
	vs, ok := s.adapter.VectorSearcher()
	if !ok {
		return s.adapter.Documents(ctx, q.Text, q.Limit)
	}

	hits, err := vs.SearchByVector(ctx, qvec, max(q.Limit*4, 50))
	if err != nil {
		return nil, aerrors.New(aerrors.ErrCodeSourceFailed, "vector search failed", err)
	}
	docs := make([]retriever.Document, len(hits))
	for i, h := range hits {
		docs[i] = h.Document.Clone()
	}
	return docs, nil
}

// documentVectors resolves one vector per document. Entries are nil for
// documents that could not be embedded.
func (s *Semantic) documentVectors(ctx context.Context, docs []retriever.Document) [][]float32 {
	vecs := make([][]float32, len(docs))
	var missing []int
	for i, d := range docs {
		if d.HasEmbedding() {
			vecs[i] = d.Embedding
			continue
		}
		if v, ok := s.docs.Peek(d.ID); ok {
			vecs[i] = v
			continue
		}
		missing = append(missing, i)
	}

	if len(missing) == 0 || s.provider == nil || !s.provider.Available(ctx) {
		return vecs
	}

	for start := 0; start < len(missing); start += s.cfg.BatchSize {
		batch := missing[start:min(start+s.cfg.BatchSize, len(missing))]
		texts := make([]string, len(batch))
		for j, idx := range batch {
			texts[j] = docs[idx].Content
		}

		embedded, err := s.provider.EmbedBatch(ctx, texts)
		if err != nil || len(embedded) != len(batch) {
			s.embedOneByOne(ctx, docs, batch, vecs)
			continue
		}
		for j, idx := range batch {
			vecs[idx] = embedded[j]
			s.docs.Add(docs[idx].ID, embedded[j])
		}
	}
	return vecs
}

func (s *Semantic) embedOneByOne(ctx context.Context, docs []retriever.Document, batch []int, vecs [][]float32) {
	for _, idx := range batch {
		v, err := s.provider.Embed(ctx, docs[idx].Content)
		if err != nil {
			s.Logger().Warn("document_embedding_failed",
				slog.String("doc_id", docs[idx].ID),
				slog.String("error", err.Error()))
			continue
		}
		vecs[idx] = v
		s.docs.Add(docs[idx].ID, v)
	}
}

// ClearCache drops cached results and embeddings.
func (s *Semantic) ClearCache() {
	s.Pipeline.ClearCache()
	s.docs.Purge()
	if s.provider != nil {
		s.provider.Purge()
	}
}

func toFloat32s(v any) ([]float32, bool) {
	switch vec := v.(type) {
	case []float32:
		return vec, true
	case []float64:
		out := make([]float32, len(vec))
		for i, x := range vec {
			out[i] = float32(x)
		}
		return out, true
	case []any:
		out := make([]float32, len(vec))
		for i, x := range vec {
			switch n := x.(type) {
			case float64:
				out[i] = float32(n)
			case float32:
				out[i] = n
			case int:
				out[i] = float32(n)
			default:
				return nil, false
			}
		}
		return out, true
	default:
		return nil, false
	}
}
