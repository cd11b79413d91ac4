package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/milad-o/agenticflow-sub002/internal/textanalysis"
	"github.com/milad-o/agenticflow-sub002/pkg/retriever"
)

// errClosed is returned by sources used after Close.
var errClosed = errors.New("source is closed")

// BleveSource is a search-only source backed by an in-memory bleve index.
// Hits come back as ScoredHit values carrying bleve's BM25 score.
type BleveSource struct {
	mu     sync.RWMutex
	index  bleve.Index
	docs   map[string]retriever.Document
	closed bool
}

// bleveDocument is what gets indexed; everything else stays in docs.
type bleveDocument struct {
	Content string `json:"content"`
}

// NewBleveSource creates an empty in-memory index using the stemming,
// stop-word-filtering retrieval analyzer.
func NewBleveSource() (*BleveSource, error) {
	m, err := textanalysis.NewMapping(textanalysis.Options{RemoveStopWords: true, Stem: true})
	if err != nil {
		return nil, err
	}
	idx, err := bleve.NewMemOnly(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}
	return &BleveSource{index: idx, docs: make(map[string]retriever.Document)}, nil
}

// Index adds or replaces documents.
func (s *BleveSource) Index(ctx context.Context, docs ...retriever.Document) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := s.index.NewBatch()
	for _, d := range docs {
		if d.ID == "" {
			d.ID = retriever.ContentID(d.Content)
		}
		if err := batch.Index(d.ID, bleveDocument{Content: d.Content}); err != nil {
			return fmt.Errorf("failed to index document %s: %w", d.ID, err)
		}
		s.docs[d.ID] = d.Clone()
	}
	if err := s.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// Search returns up to limit ScoredHit values. A blank query matches every
// document, ordered by id.
func (s *BleveSource) Search(ctx context.Context, queryStr string, limit int) ([]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}

	var q query.Query
	if strings.TrimSpace(queryStr) == "" {
		q = bleve.NewMatchAllQuery()
	} else {
		mq := bleve.NewMatchQuery(queryStr)
		mq.SetField("content")
		q = mq
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	if strings.TrimSpace(queryStr) == "" {
		req.SortBy([]string{"_id"})
	}

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]any, 0, len(res.Hits))
	for _, h := range res.Hits {
		doc, ok := s.docs[h.ID]
		if !ok {
			continue
		}
		hits = append(hits, ScoredHit{Document: doc.Clone(), Score: h.Score})
	}
	return hits, nil
}

// Delete removes documents by id.
func (s *BleveSource) Delete(ctx context.Context, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}

	batch := s.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
		delete(s.docs, id)
	}
	if err := s.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

// Count returns the number of indexed documents.
func (s *BleveSource) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Close releases the index.
func (s *BleveSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.index.Close()
}
