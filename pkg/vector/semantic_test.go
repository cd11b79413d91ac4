package vector

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milad-o/agenticflow-sub002/pkg/embed"
	"github.com/milad-o/agenticflow-sub002/pkg/retriever"
	"github.com/milad-o/agenticflow-sub002/pkg/source"
	"github.com/milad-o/agenticflow-sub002/pkg/text"
)

// fakeProvider embeds from a fixed table and counts calls.
type fakeProvider struct {
	vectors     map[string][]float32
	unavailable bool
	embedCalls  atomic.Int32
	batchCalls  atomic.Int32
	batchTexts  atomic.Int32
}

func (f *fakeProvider) Embed(_ context.Context, text string) ([]float32, error) {
	f.embedCalls.Add(1)
	v, ok := f.vectors[text]
	if !ok {
		return nil, errors.New("no vector for " + text)
	}
	return v, nil
}

func (f *fakeProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.batchCalls.Add(1)
	f.batchTexts.Add(int32(len(texts)))
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, ok := f.vectors[text]
		if !ok {
			return nil, errors.New("no vector for " + text)
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeProvider) ModelName() string { return "fake" }

func (f *fakeProvider) Available(context.Context) bool { return !f.unavailable }

func noThreshold() retriever.RetrieveOption { return retriever.WithThreshold(0) }

func ids(results []retriever.Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Document.ID
	}
	return out
}

func uncached() SemanticConfig {
	cfg := DefaultSemanticConfig()
	cfg.EnableCaching = false
	return cfg
}

func TestSemantic_UsesDocumentEmbeddings(t *testing.T) {
	// Given: documents carrying precomputed embeddings and no provider
	src := source.NewMemorySource(
		retriever.Document{ID: "north", Content: "north", Embedding: []float32{0, 1}},
		retriever.Document{ID: "east", Content: "east", Embedding: []float32{1, 0}},
		retriever.Document{ID: "northeast", Content: "northeast", Embedding: []float32{1, 1}},
	)
	s, err := NewSemantic(src, nil, uncached())
	require.NoError(t, err)

	// When: the query vector is supplied by the caller
	results, err := s.Retrieve(context.Background(), "direction", noThreshold(),
		retriever.WithExtra(map[string]any{ExtraQueryEmbedding: []float64{0.1, 1}}))

	// Then: documents are ranked by cosine similarity
	require.NoError(t, err)
	assert.Equal(t, []string{"north", "northeast", "east"}, ids(results))
	assert.Equal(t, SemanticType, results[0].RetrieverType)
	assert.Equal(t, "cosine", results[0].Metadata["metric"])
}

func TestSemantic_EmbedsMissingDocumentsOnceAndCaches(t *testing.T) {
	provider := &fakeProvider{vectors: map[string][]float32{
		"query":  {1, 0},
		"close":  {0.9, 0.1},
		"far":    {0, 1},
		"medium": {0.5, 0.5},
	}}
	src := source.NewMemorySourceFromTexts("close", "far", "medium")
	s, err := NewSemantic(src, provider, uncached())
	require.NoError(t, err)

	for range 3 {
		results, err := s.Retrieve(context.Background(), "query", noThreshold())
		require.NoError(t, err)
		assert.Equal(t, []string{"doc_0", "doc_2", "doc_1"}, ids(results))
	}

	assert.Equal(t, int32(1), provider.batchCalls.Load(), "documents embedded once")
	assert.Equal(t, int32(3), provider.batchTexts.Load())
	assert.Equal(t, int32(1), provider.embedCalls.Load(), "query embedding cached")

	// Clearing caches forces re-embedding.
	s.ClearCache()
	_, err = s.Retrieve(context.Background(), "query", noThreshold())
	require.NoError(t, err)
	assert.Equal(t, int32(2), provider.batchCalls.Load())
	assert.Equal(t, int32(2), provider.embedCalls.Load())
}

func TestSemantic_SkipsDocumentsThatFailToEmbed(t *testing.T) {
	// Given: a provider that cannot embed one of the documents
	provider := &fakeProvider{vectors: map[string][]float32{
		"query": {1, 0},
		"good":  {1, 0},
	}}
	src := source.NewMemorySourceFromTexts("good", "broken")
	s, err := NewSemantic(src, provider, uncached())
	require.NoError(t, err)

	// When: retrieving
	results, err := s.Retrieve(context.Background(), "query", noThreshold())

	// Then: the failing document is skipped, the rest still ranks
	require.NoError(t, err)
	assert.Equal(t, []string{"doc_0"}, ids(results))
}

func TestSemantic_QueryEmbeddingFailureFallsBackToKeyword(t *testing.T) {
	// Given: an available provider with no vector for the query
	provider := &fakeProvider{vectors: map[string][]float32{"cat on a mat": {1, 0}}}
	src := source.NewMemorySourceFromTexts("cat on a mat", "dogs bark loudly")
	s, err := NewSemantic(src, provider, uncached())
	require.NoError(t, err)

	// When: retrieving
	results, err := s.Retrieve(context.Background(), "cat", noThreshold())

	// Then: keyword matching answers in degraded mode
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc_0", results[0].Document.ID)
	assert.Equal(t, text.KeywordType, results[0].Metadata["fallback"])
	assert.Equal(t, int32(1), provider.embedCalls.Load())
}

func TestSemantic_QueryEmbeddingFailureAfterCancelIsRetrievalError(t *testing.T) {
	provider := &fakeProvider{vectors: map[string][]float32{}}
	s, err := NewSemantic(source.NewMemorySourceFromTexts("doc"), provider, uncached())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Search(ctx, retriever.Query{Text: "query", Limit: 5})
	require.Error(t, err)
	assert.True(t, retriever.IsRetrievalError(err))
}

func TestSemantic_FallsBackToKeywordWithoutProvider(t *testing.T) {
	// Given: no provider and documents without embeddings
	src := source.NewMemorySourceFromTexts("the cat sat on the mat", "dogs bark loudly")
	for _, provider := range []embed.Provider{nil, &fakeProvider{unavailable: true}} {
		s, err := NewSemantic(src, provider, uncached())
		require.NoError(t, err)

		// When: retrieving
		results, err := s.Retrieve(context.Background(), "cat", noThreshold())

		// Then: keyword matching answers instead of failing
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "doc_0", results[0].Document.ID)
		assert.Equal(t, text.KeywordType, results[0].Metadata["fallback"])
		assert.Equal(t, SemanticType, results[0].RetrieverType)
	}
}

func TestSemantic_SkipsDimensionMismatch(t *testing.T) {
	src := source.NewMemorySource(
		retriever.Document{ID: "two", Content: "a", Embedding: []float32{1, 0}},
		retriever.Document{ID: "three", Content: "b", Embedding: []float32{1, 0, 0}},
	)
	s, err := NewSemantic(src, nil, uncached())
	require.NoError(t, err)

	results, err := s.Retrieve(context.Background(), "q", noThreshold(),
		retriever.WithExtra(map[string]any{ExtraQueryEmbedding: []float32{1, 0}}))
	require.NoError(t, err)
	assert.Equal(t, []string{"two"}, ids(results))
}

func TestSemantic_InvalidQueryEmbedding(t *testing.T) {
	s, err := NewSemantic(source.NewMemorySourceFromTexts("doc"), nil, uncached())
	require.NoError(t, err)

	_, err = s.Retrieve(context.Background(), "q",
		retriever.WithExtra(map[string]any{ExtraQueryEmbedding: "not a vector"}))
	assert.Error(t, err)
}

func TestSemantic_ShortlistsThroughVectorIndex(t *testing.T) {
	// Given: an hnsw-backed source
	vs, err := newAxisSource(t)
	require.NoError(t, err)

	s, err := NewCosine(vs, nil, uncached())
	require.NoError(t, err)

	// When: searching near the "x" axis
	results, err := s.Retrieve(context.Background(), "q", noThreshold(), retriever.WithLimit(2),
		retriever.WithExtra(map[string]any{ExtraQueryEmbedding: []float32{1, 0.05, 0}}))

	// Then: the nearest documents come back with cosine scores
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "x", results[0].Document.ID)
	assert.InDelta(t, 0.9988, results[0].Score, 1e-3)
	assert.Equal(t, CosineType, results[0].RetrieverType)
}

func newAxisSource(t *testing.T) (*source.VectorSource, error) {
	t.Helper()
	vs, err := source.NewVectorSource(3)
	if err != nil {
		return nil, err
	}
	err = vs.Add(context.Background(),
		retriever.Document{ID: "x", Content: "x axis", Embedding: []float32{1, 0, 0}},
		retriever.Document{ID: "y", Content: "y axis", Embedding: []float32{0, 1, 0}},
		retriever.Document{ID: "z", Content: "z axis", Embedding: []float32{0, 0, 1}},
		retriever.Document{ID: "xy", Content: "diagonal", Embedding: []float32{1, 1, 0}},
	)
	return vs, err
}

func TestFixedMetricConstructors(t *testing.T) {
	src := source.NewMemorySourceFromTexts("doc")
	cfg := uncached()
	cfg.Metric = MetricManhattan

	tests := []struct {
		name   string
		create func() (*Semantic, error)
		kind   string
		metric Metric
	}{
		{"cosine", func() (*Semantic, error) { return NewCosine(src, nil, cfg) }, CosineType, MetricCosine},
		{"euclidean", func() (*Semantic, error) { return NewEuclidean(src, nil, cfg) }, EuclideanType, MetricEuclidean},
		{"dot product", func() (*Semantic, error) { return NewDotProduct(src, nil, cfg) }, DotProductType, MetricDotProduct},
		{"manhattan", func() (*Semantic, error) { return NewManhattan(src, nil, cfg) }, ManhattanType, MetricManhattan},
		{"semantic keeps config metric", func() (*Semantic, error) { return NewSemantic(src, nil, cfg) }, SemanticType, MetricManhattan},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := tt.create()
			require.NoError(t, err)
			assert.Equal(t, tt.kind, s.Type())
			assert.Equal(t, tt.metric, s.Metric())
		})
	}

	cfg.Metric = "hamming"
	_, err := NewSemantic(src, nil, cfg)
	assert.True(t, retriever.IsConfigurationError(err))
}

func TestSemantic_StaticProviderRanksRelatedText(t *testing.T) {
	src := source.NewMemorySourceFromTexts(
		"neural networks learn layered representations",
		"bread recipes with sourdough starter",
		"stock market trading strategies",
	)
	s, err := NewSemantic(src, embed.NewStaticProvider(0), uncached())
	require.NoError(t, err)

	results, err := s.Retrieve(context.Background(), "neural networks", noThreshold())
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "doc_0", results[0].Document.ID)
	assert.True(t, slices.IsSortedFunc(results, func(a, b retriever.Result) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	}))
}
