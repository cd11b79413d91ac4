package source

import (
	"context"
	"fmt"
	"sync"

	"github.com/coder/hnsw"

	"github.com/milad-o/agenticflow-sub002/pkg/embed"
	"github.com/milad-o/agenticflow-sub002/pkg/retriever"
)

// VectorSource holds documents with embeddings in an HNSW graph for
// approximate cosine nearest-neighbour search.
type VectorSource struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[uint64]
	dims  int

	docs    map[uint64]retriever.Document
	keys    map[string]uint64
	order   []string
	nextKey uint64
	orphans int
}

// NewVectorSource creates an empty graph for vectors of size dims.
func NewVectorSource(dims int) (*VectorSource, error) {
	if dims <= 0 {
		return nil, retriever.ConfigurationError(fmt.Sprintf("vector dimensions must be positive, got %d", dims), nil)
	}

	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = 16
	g.EfSearch = 20
	g.Ml = 0.25

	return &VectorSource{
		graph: g,
		dims:  dims,
		docs:  make(map[uint64]retriever.Document),
		keys:  make(map[string]uint64),
	}, nil
}

// Add inserts documents; each must carry an embedding of the configured
// size. Re-adding an id replaces it.
func (s *VectorSource) Add(ctx context.Context, docs ...retriever.Document) error {
	for _, d := range docs {
		if len(d.Embedding) != s.dims {
			return fmt.Errorf("document %s: embedding has %d dimensions, want %d", d.ID, len(d.Embedding), s.dims)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range docs {
		d = d.Clone()
		if d.ID == "" {
			d.ID = retriever.ContentID(d.Content)
		}

		// Old nodes stay in the graph as orphans; coder/hnsw misbehaves when
		// the last node is deleted.
		if old, ok := s.keys[d.ID]; ok {
			delete(s.docs, old)
			s.orphans++
		} else {
			s.order = append(s.order, d.ID)
		}

		key := s.nextKey
		s.nextKey++
		s.graph.Add(hnsw.MakeNode(key, embed.Normalize(d.Embedding)))
		s.docs[key] = d
		s.keys[d.ID] = key
	}
	return nil
}

// Documents returns every document in insertion order.
func (s *VectorSource) Documents(ctx context.Context) ([]retriever.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]retriever.Document, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.docs[s.keys[id]].Clone())
	}
	return out, nil
}

// HasEmbeddings reports whether the graph holds any document.
func (s *VectorSource) HasEmbeddings() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order) > 0
}

// SearchByVector returns the k nearest documents with cosine similarity as
// score.
func (s *VectorSource) SearchByVector(ctx context.Context, vector []float32, k int) ([]ScoredHit, error) {
	if len(vector) != s.dims {
		return nil, fmt.Errorf("query vector has %d dimensions, want %d", len(vector), s.dims)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.order) == 0 || k <= 0 {
		return []ScoredHit{}, nil
	}

	q := embed.Normalize(vector)
	nodes := s.graph.Search(q, min(k+s.orphans, s.graph.Len()))

	hits := make([]ScoredHit, 0, k)
	for _, n := range nodes {
		doc, ok := s.docs[n.Key]
		if !ok {
			continue
		}
		hits = append(hits, ScoredHit{
			Document: doc.Clone(),
			Score:    1 - float64(hnsw.CosineDistance(q, n.Value)),
		})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

// Delete removes documents by id.
func (s *VectorSource) Delete(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		key, ok := s.keys[id]
		if !ok {
			continue
		}
		delete(s.docs, key)
		delete(s.keys, id)
		s.orphans++
		for i, o := range s.order {
			if o == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
}

// Len returns the number of live documents.
func (s *VectorSource) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Dimensions returns the configured vector size.
func (s *VectorSource) Dimensions() int {
	return s.dims
}
