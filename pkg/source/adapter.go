package source

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"time"

	aerrors "github.com/milad-o/agenticflow-sub002/internal/errors"
	"github.com/milad-o/agenticflow-sub002/pkg/retriever"
)

// Search fan-out bounds used when a source can only be searched.
const (
	searchMultiplier = 10
	minSearchLimit   = 100
)

// capability is the probe result, in priority order.
type capability int

const (
	capMessages capability = iota
	capDocuments
	capSearch
	capQuery
)

func (c capability) String() string {
	switch c {
	case capMessages:
		return "messages"
	case capDocuments:
		return "documents"
	case capSearch:
		return "search"
	default:
		return "query"
	}
}

// Adapter turns an arbitrary source into candidate documents.
type Adapter struct {
	src    any
	cap    capability
	logger *slog.Logger
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) AdapterOption {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAdapter probes src and returns an adapter for it. src must implement
// at least one of MessageLister, DocumentEnumerable, Searchable or Queryable.
func NewAdapter(src any, opts ...AdapterOption) (*Adapter, error) {
	a := &Adapter{src: src, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}

	switch src.(type) {
	case nil:
		return nil, retriever.ConfigurationError("data source is required", nil)
	case MessageLister:
		a.cap = capMessages
	case DocumentEnumerable:
		a.cap = capDocuments
	case Searchable:
		a.cap = capSearch
	case Queryable:
		a.cap = capQuery
	default:
		return nil, retriever.ConfigurationError(
			fmt.Sprintf("data source %T supports neither message listing, document listing, search nor query", src), nil)
	}

	a.logger = a.logger.With("source", fmt.Sprintf("%T", src), "capability", a.cap.String())
	return a, nil
}

// Source returns the wrapped source.
func (a *Adapter) Source() any {
	return a.src
}

// HasEmbeddings reports whether the source advertises embeddings.
func (a *Adapter) HasEmbeddings() bool {
	ea, ok := a.src.(EmbeddingAware)
	return ok && ea.HasEmbeddings()
}

// VectorSearcher returns the source's vector index, if it has one.
func (a *Adapter) VectorSearcher() (VectorSearchable, bool) {
	vs, ok := a.src.(VectorSearchable)
	return vs, ok
}

// Documents returns candidate documents for query. Listing sources return
// everything; searching sources are asked broadly (limit×10, at least 100).
// The returned documents are copies.
func (a *Adapter) Documents(ctx context.Context, query string, limit int) ([]retriever.Document, error) {
	switch a.cap {
	case capMessages:
		msgs, err := a.src.(MessageLister).ListMessages(ctx)
		if err != nil {
			return nil, sourceError("list messages", err)
		}
		docs := make([]retriever.Document, 0, len(msgs))
		for _, m := range msgs {
			docs = append(docs, messageDocument(m))
		}
		return docs, nil

	case capDocuments:
		docs, err := a.src.(DocumentEnumerable).Documents(ctx)
		if err != nil {
			return nil, sourceError("list documents", err)
		}
		out := make([]retriever.Document, len(docs))
		for i := range docs {
			out[i] = docs[i].Clone()
		}
		return out, nil

	case capSearch:
		hits, err := a.src.(Searchable).Search(ctx, query, broadLimit(limit))
		if err != nil {
			return nil, sourceError("search", err)
		}
		docs := make([]retriever.Document, 0, len(hits))
		for _, hit := range hits {
			doc, ok := ConvertHit(hit)
			if !ok {
				a.logger.Warn("unsupported_hit_type", slog.String("type", fmt.Sprintf("%T", hit)))
				continue
			}
			docs = append(docs, doc)
		}
		return docs, nil

	default:
		docs, err := a.src.(Queryable).Query(ctx, query, broadLimit(limit))
		if err != nil {
			return nil, sourceError("query", err)
		}
		out := make([]retriever.Document, len(docs))
		for i := range docs {
			out[i] = docs[i].Clone()
		}
		return out, nil
	}
}

func broadLimit(limit int) int {
	return max(limit*searchMultiplier, minSearchLimit)
}

func sourceError(op string, err error) error {
	return aerrors.New(aerrors.ErrCodeSourceFailed, "data source "+op+" failed", err).
		WithDetail("operation", op)
}

func messageDocument(m Message) retriever.Document {
	meta := maps.Clone(m.Metadata)
	if meta == nil {
		meta = make(map[string]any, 1)
	}
	if m.Role != "" {
		meta["role"] = m.Role
	}
	id := m.ID
	if id == "" {
		id = retriever.ContentID(m.Role + "\x00" + m.Content)
	}
	return retriever.Document{ID: id, Content: m.Content, Metadata: meta, Timestamp: m.Timestamp}
}

// ConvertHit normalizes a search hit into a Document. It understands
// Document, *Document, ScoredHit, *ScoredHit, map[string]any, string and
// any ContentBearer. The second result is false for unknown shapes.
func ConvertHit(hit any) (retriever.Document, bool) {
	var doc retriever.Document

	switch h := hit.(type) {
	case retriever.Document:
		doc = h.Clone()
	case *retriever.Document:
		if h == nil {
			return doc, false
		}
		doc = h.Clone()
	case ScoredHit:
		doc = scoredDocument(h)
	case *ScoredHit:
		if h == nil {
			return doc, false
		}
		doc = scoredDocument(*h)
	case map[string]any:
		var ok bool
		if doc, ok = mapDocument(h); !ok {
			return doc, false
		}
	case string:
		doc = retriever.Document{Content: h}
	case ContentBearer:
		doc = retriever.Document{Content: h.GetContent()}
		if ib, ok := hit.(idBearer); ok {
			doc.ID = ib.GetID()
		}
		if mb, ok := hit.(metadataBearer); ok {
			doc.Metadata = maps.Clone(mb.GetMetadata())
		}
	default:
		return doc, false
	}

	if doc.ID == "" {
		doc.ID = retriever.ContentID(doc.Content)
	}
	return doc, true
}

func scoredDocument(h ScoredHit) retriever.Document {
	doc := h.Document.Clone()
	if doc.Metadata == nil {
		doc.Metadata = make(map[string]any, 1)
	}
	doc.Metadata["source_score"] = h.Score
	return doc
}

// mapDocument reads the keys commonly used by document dictionaries.
func mapDocument(m map[string]any) (retriever.Document, bool) {
	var doc retriever.Document

	for _, key := range []string{"content", "text", "page_content"} {
		if s, ok := m[key].(string); ok && s != "" {
			doc.Content = s
			break
		}
	}
	if doc.Content == "" {
		return doc, false
	}

	switch id := m["id"].(type) {
	case nil:
	case string:
		doc.ID = id
	default:
		doc.ID = fmt.Sprint(id)
	}

	if meta, ok := m["metadata"].(map[string]any); ok {
		doc.Metadata = maps.Clone(meta)
	}
	doc.Timestamp = parseTimestamp(m["timestamp"])
	doc.Embedding = parseEmbedding(m["embedding"])

	return doc, true
}

func parseTimestamp(v any) time.Time {
	switch ts := v.(type) {
	case time.Time:
		return ts
	case float64:
		sec := int64(ts)
		return time.Unix(sec, int64((ts-float64(sec))*1e9)).UTC()
	case int64:
		return time.Unix(ts, 0).UTC()
	case int:
		return time.Unix(int64(ts), 0).UTC()
	case string:
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			return t
		}
		if f, err := strconv.ParseFloat(ts, 64); err == nil {
			return parseTimestamp(f)
		}
	}
	return time.Time{}
}

func parseEmbedding(v any) []float32 {
	switch e := v.(type) {
	case []float32:
		return append([]float32(nil), e...)
	case []float64:
		out := make([]float32, len(e))
		for i, x := range e {
			out[i] = float32(x)
		}
		return out
	case []any:
		out := make([]float32, 0, len(e))
		for _, x := range e {
			switch n := x.(type) {
			case float64:
				out = append(out, float32(n))
			case float32:
				out = append(out, n)
			case int:
				out = append(out, float32(n))
			default:
				return nil
			}
		}
		return out
	}
	return nil
}
