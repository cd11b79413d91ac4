// Package source connects retrieval strategies to whatever holds the
// documents.
//
// A source is any value implementing at least one capability interface.
// Adapter probes them in a fixed order (message listing, document listing,
// free-text search, database query) and normalizes whatever comes back into
// retriever.Document values. The concrete sources in this package cover the
// common cases: an in-memory slice, a chat message store, a bleve index, a
// SQLite FTS5 table and an HNSW vector graph.
package source

import (
	"context"
	"time"

	"github.com/milad-o/agenticflow-sub002/pkg/retriever"
)

// Message is a chat message held by a MessageLister.
type Message struct {
	ID        string
	Role      string
	Content   string
	Timestamp time.Time
	Metadata  map[string]any
}

// MessageLister is implemented by conversation memories.
type MessageLister interface {
	ListMessages(ctx context.Context) ([]Message, error)
}

// DocumentEnumerable is implemented by sources that can list every document.
type DocumentEnumerable interface {
	Documents(ctx context.Context) ([]retriever.Document, error)
}

// Searchable is implemented by sources with their own free-text search.
// Hits may be of any shape Adapter understands.
type Searchable interface {
	Search(ctx context.Context, query string, limit int) ([]any, error)
}

// Queryable is implemented by database-like sources.
type Queryable interface {
	Query(ctx context.Context, query string, limit int) ([]retriever.Document, error)
}

// EmbeddingAware is implemented by sources whose documents carry embeddings.
type EmbeddingAware interface {
	HasEmbeddings() bool
}

// VectorSearchable is implemented by sources with a nearest-neighbour index.
type VectorSearchable interface {
	SearchByVector(ctx context.Context, vector []float32, k int) ([]ScoredHit, error)
}

// ScoredHit is a document with the score its source assigned.
type ScoredHit struct {
	Document retriever.Document
	Score    float64
}

// ContentBearer is the minimal shape of a hit Adapter can convert. Hits
// may also implement GetID() string and GetMetadata() map[string]any.
type ContentBearer interface {
	GetContent() string
}

type idBearer interface {
	GetID() string
}

type metadataBearer interface {
	GetMetadata() map[string]any
}
