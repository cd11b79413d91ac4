package source

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milad-o/agenticflow-sub002/pkg/retriever"
)

// searchOnly returns canned hits and records the requested limit.
type searchOnly struct {
	hits      []any
	err       error
	lastLimit int
}

func (s *searchOnly) Search(_ context.Context, _ string, limit int) ([]any, error) {
	s.lastLimit = limit
	return s.hits, s.err
}

// queryOnly is a database-like source.
type queryOnly struct {
	docs []retriever.Document
}

func (q *queryOnly) Query(context.Context, string, int) ([]retriever.Document, error) {
	return q.docs, nil
}

// everything implements every listing capability; messages must win.
type everything struct {
	searchOnly
}

func (everything) ListMessages(context.Context) ([]Message, error) {
	return []Message{{ID: "m1", Role: "user", Content: "hello"}}, nil
}

func (everything) Documents(context.Context) ([]retriever.Document, error) {
	return []retriever.Document{{ID: "d1", Content: "doc"}}, nil
}

type note struct {
	id, text string
}

func (n note) GetContent() string          { return n.text }
func (n note) GetID() string               { return n.id }
func (n note) GetMetadata() map[string]any { return map[string]any{"kind": "note"} }

type bareContent string

func (b bareContent) GetContent() string { return string(b) }

func TestNewAdapter_RejectsUnusableSources(t *testing.T) {
	_, err := NewAdapter(nil)
	assert.True(t, retriever.IsConfigurationError(err))

	_, err = NewAdapter(42)
	assert.True(t, retriever.IsConfigurationError(err))
}

func TestAdapter_PrefersMessagesThenDocuments(t *testing.T) {
	// Given: a source implementing every capability
	a, err := NewAdapter(&everything{})
	require.NoError(t, err)

	// When: listing candidates
	docs, err := a.Documents(context.Background(), "q", 5)

	// Then: message listing wins
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "m1", docs[0].ID)
	assert.Equal(t, "user", docs[0].Metadata["role"])
}

func TestAdapter_DocumentListReturnsCopies(t *testing.T) {
	src := NewMemorySource(retriever.Document{ID: "a", Content: "x", Metadata: map[string]any{"k": "v"}})
	a, err := NewAdapter(src)
	require.NoError(t, err)

	docs, err := a.Documents(context.Background(), "", 0)
	require.NoError(t, err)
	docs[0].Metadata["k"] = "mutated"

	again, err := a.Documents(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Equal(t, "v", again[0].Metadata["k"])
}

func TestAdapter_SearchConvertsHeterogeneousHits(t *testing.T) {
	// Given: a search source returning every supported hit shape and one
	// unsupported value
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var logs bytes.Buffer
	src := &searchOnly{hits: []any{
		retriever.Document{ID: "doc", Content: "tagged"},
		&retriever.Document{ID: "ptr", Content: "pointer"},
		ScoredHit{Document: retriever.Document{ID: "scored", Content: "scored payload"}, Score: 3.5},
		map[string]any{"id": 7, "page_content": "dict", "metadata": map[string]any{"a": 1}, "timestamp": float64(ts.Unix()), "embedding": []any{1.0, 2.0}},
		"plain string",
		note{id: "n1", text: "a note"},
		bareContent("bare"),
		3.14,
		map[string]any{"title": "no content"},
	}}
	a, err := NewAdapter(src, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	require.NoError(t, err)

	// When: listing candidates
	docs, err := a.Documents(context.Background(), "q", 5)

	// Then: known shapes convert, unknown ones are skipped with a warning
	require.NoError(t, err)
	require.Len(t, docs, 7)
	assert.Equal(t, "doc", docs[0].ID)
	assert.Equal(t, "ptr", docs[1].ID)
	assert.Equal(t, 3.5, docs[2].Metadata["source_score"])
	assert.Equal(t, "7", docs[3].ID)
	assert.Equal(t, "dict", docs[3].Content)
	assert.True(t, ts.Equal(docs[3].Timestamp))
	assert.Equal(t, []float32{1, 2}, docs[3].Embedding)
	assert.Equal(t, retriever.ContentID("plain string"), docs[4].ID)
	assert.Equal(t, "n1", docs[5].ID)
	assert.Equal(t, "note", docs[5].Metadata["kind"])
	assert.Equal(t, "bare", docs[6].Content)
	assert.NotEmpty(t, docs[6].ID)
	assert.Contains(t, logs.String(), "unsupported_hit_type")

	// And: the search was broad
	assert.Equal(t, 100, src.lastLimit)
	_, _ = a.Documents(context.Background(), "q", 20)
	assert.Equal(t, 200, src.lastLimit)
}

func TestAdapter_QueryableSource(t *testing.T) {
	a, err := NewAdapter(&queryOnly{docs: []retriever.Document{{ID: "row1", Content: "from db"}}})
	require.NoError(t, err)

	docs, err := a.Documents(context.Background(), "db", 1)

	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "row1", docs[0].ID)
}

func TestAdapter_SourceErrorsAreRetrievalErrors(t *testing.T) {
	a, err := NewAdapter(&searchOnly{err: errors.New("backend down")})
	require.NoError(t, err)

	_, err = a.Documents(context.Background(), "q", 1)

	require.Error(t, err)
	assert.True(t, retriever.IsRetrievalError(err))
	assert.ErrorContains(t, err, "backend down")
}

func TestAdapter_Capabilities(t *testing.T) {
	plain, err := NewAdapter(NewMemorySourceFromTexts("a"))
	require.NoError(t, err)
	assert.False(t, plain.HasEmbeddings())
	_, ok := plain.VectorSearcher()
	assert.False(t, ok)

	vs, err := NewVectorSource(2)
	require.NoError(t, err)
	require.NoError(t, vs.Add(context.Background(), retriever.Document{ID: "v", Content: "v", Embedding: []float32{1, 0}}))
	withVectors, err := NewAdapter(vs)
	require.NoError(t, err)
	assert.True(t, withVectors.HasEmbeddings())
	_, ok = withVectors.VectorSearcher()
	assert.True(t, ok)
	assert.Same(t, vs, withVectors.Source())
}

func TestMessageStore(t *testing.T) {
	s := NewMessageStore()
	s.Append("user", "what is bm25")
	s.Append("assistant", "a ranking function")

	a, err := NewAdapter(s)
	require.NoError(t, err)
	docs, err := a.Documents(context.Background(), "", 0)

	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "msg_1", docs[1].ID)
	assert.Equal(t, "assistant", docs[1].Metadata["role"])
	assert.False(t, docs[0].Timestamp.IsZero())
}
