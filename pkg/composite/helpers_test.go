package composite

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/milad-o/agenticflow-sub002/pkg/retriever"
)

// stubRetriever returns fixed results and records what it was asked.
type stubRetriever struct {
	kind    string
	results []retriever.Result
	err     error
	calls   atomic.Int32

	mu        sync.Mutex
	lastQuery string
	lastReq   retriever.Request
}

func newStub(kind string, scores ...scored) *stubRetriever {
	s := &stubRetriever{kind: kind}
	for i, sc := range scores {
		s.results = append(s.results, retriever.Result{
			Document: retriever.Document{ID: sc.id, Content: sc.content()},
			Score:    sc.score,
			Rank:     i + 1,
		})
	}
	return s
}

func failingStub(kind string) *stubRetriever {
	return &stubRetriever{kind: kind, err: retriever.RetrievalError(kind, errors.New("backend down"))}
}

func (s *stubRetriever) Retrieve(_ context.Context, query string, opts ...retriever.RetrieveOption) ([]retriever.Result, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.lastQuery = query
	s.lastReq = retriever.NewRequest(retriever.DefaultConfig(), opts...)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return retriever.CloneResults(s.results), nil
}

func (s *stubRetriever) Type() string                     { return s.kind }
func (s *stubRetriever) HealthCheck(context.Context) bool { return s.err == nil }

func (s *stubRetriever) query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastQuery
}

type scored struct {
	id    string
	score float64
	text  string
}

func (s scored) content() string {
	if s.text != "" {
		return s.text
	}
	return "content of " + s.id
}

func ids(results []retriever.Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Document.ID
	}
	return out
}

func retrieve(t *testing.T, r retriever.Retriever, query string, opts ...retriever.RetrieveOption) []retriever.Result {
	t.Helper()
	results, err := r.Retrieve(context.Background(), query, opts...)
	require.NoError(t, err)
	return results
}
