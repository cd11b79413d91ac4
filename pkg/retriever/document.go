package retriever

import (
	"crypto/sha256"
	"encoding/hex"
	"maps"
	"slices"
	"time"
)

// Document is a unit of retrievable content.
type Document struct {
	// ID identifies the document within its source.
	ID string `json:"id" yaml:"id"`

	// Content is the text scored by strategies.
	Content string `json:"content" yaml:"content"`

	// Metadata holds arbitrary attributes used by filters.
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	// Timestamp is when the document was produced. Zero means unknown.
	Timestamp time.Time `json:"timestamp,omitzero" yaml:"timestamp,omitempty"`

	// Embedding is an optional precomputed dense vector.
	Embedding []float32 `json:"embedding,omitempty" yaml:"embedding,omitempty"`
}

// Clone returns a copy that shares no mutable state with d.
func (d Document) Clone() Document {
	d.Metadata = maps.Clone(d.Metadata)
	d.Embedding = slices.Clone(d.Embedding)
	return d
}

// HasEmbedding reports whether the document carries a vector.
func (d Document) HasEmbedding() bool {
	return len(d.Embedding) > 0
}

// ContentID derives a stable identifier from content, for hits that arrive
// without one.
func ContentID(content string) string {
	sum := sha256.Sum256([]byte(content))
	return "doc_" + hex.EncodeToString(sum[:8])
}
