package text

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/milad-o/agenticflow-sub002/pkg/retriever"
	"github.com/milad-o/agenticflow-sub002/pkg/source"
)

func corpus() *source.MemorySource {
	return source.NewMemorySource(
		retriever.Document{ID: "ml", Content: "Machine learning algorithms learn from data"},
		retriever.Document{ID: "dl", Content: "Deep learning uses neural networks with many layers"},
		retriever.Document{ID: "cook", Content: "Cooking pasta requires boiling water and salt"},
		retriever.Document{ID: "py", Content: "Python is a popular language for machine learning"},
	)
}

func ids(results []retriever.Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Document.ID
	}
	return out
}

func retrieveAll(t *testing.T, r retriever.Retriever, query string, opts ...retriever.RetrieveOption) []retriever.Result {
	t.Helper()
	opts = append([]retriever.RetrieveOption{retriever.WithThreshold(0)}, opts...)
	results, err := r.Retrieve(context.Background(), query, opts...)
	require.NoError(t, err)
	return results
}
