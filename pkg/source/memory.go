package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/milad-o/agenticflow-sub002/pkg/retriever"
)

// MemorySource is an in-memory document list.
type MemorySource struct {
	mu   sync.RWMutex
	docs []retriever.Document
}

// NewMemorySource creates a source holding copies of docs.
func NewMemorySource(docs ...retriever.Document) *MemorySource {
	s := &MemorySource{}
	s.Add(docs...)
	return s
}

// NewMemorySourceFromTexts creates a source with ids "doc_0", "doc_1", ...
func NewMemorySourceFromTexts(texts ...string) *MemorySource {
	docs := make([]retriever.Document, len(texts))
	for i, text := range texts {
		docs[i] = retriever.Document{ID: fmt.Sprintf("doc_%d", i), Content: text}
	}
	return NewMemorySource(docs...)
}

// Add appends copies of docs. Documents without an ID get one derived from
// their content.
func (s *MemorySource) Add(docs ...retriever.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range docs {
		d = d.Clone()
		if d.ID == "" {
			d.ID = retriever.ContentID(d.Content)
		}
		s.docs = append(s.docs, d)
	}
}

// Documents returns copies of every document.
func (s *MemorySource) Documents(ctx context.Context) ([]retriever.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]retriever.Document, len(s.docs))
	for i := range s.docs {
		out[i] = s.docs[i].Clone()
	}
	return out, nil
}

// HasEmbeddings reports whether any document carries an embedding.
func (s *MemorySource) HasEmbeddings() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.docs {
		if d.HasEmbedding() {
			return true
		}
	}
	return false
}

// Len returns the number of documents.
func (s *MemorySource) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// MessageStore is an in-memory conversation history.
type MessageStore struct {
	mu   sync.RWMutex
	msgs []Message
	now  func() time.Time
}

// NewMessageStore creates an empty store.
func NewMessageStore() *MessageStore {
	return &MessageStore{now: time.Now}
}

// Append records a message, stamping it with an ID and time if missing.
func (s *MessageStore) Append(role, content string) Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := Message{
		ID:        fmt.Sprintf("msg_%d", len(s.msgs)),
		Role:      role,
		Content:   content,
		Timestamp: s.now(),
	}
	s.msgs = append(s.msgs, m)
	return m
}

// ListMessages returns every message in order.
func (s *MessageStore) ListMessages(ctx context.Context) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Message(nil), s.msgs...), nil
}
