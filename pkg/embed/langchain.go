package embed

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/tmc/langchaingo/embeddings"
)

// LangChainProvider adapts a langchaingo embedder (OpenAI, Ollama, Voyage
// and the rest of its clients) to Provider.
type LangChainProvider struct {
	embedder embeddings.Embedder
	model    string
	probe    bool
}

// LangChainOption configures a LangChainProvider.
type LangChainOption func(*LangChainProvider)

// WithProbe makes Available embed a short text instead of assuming the
// remote service is reachable.
func WithProbe() LangChainOption {
	return func(p *LangChainProvider) {
		p.probe = true
	}
}

// NewLangChainProvider wraps embedder. model is used for cache keys.
func NewLangChainProvider(embedder embeddings.Embedder, model string, opts ...LangChainOption) (*LangChainProvider, error) {
	if embedder == nil {
		return nil, errors.New("langchain embedder is required")
	}
	if model == "" {
		model = "langchain"
	}
	p := &LangChainProvider{embedder: embedder, model: model}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// NewLangChainFuncProvider builds a provider from a plain batch function,
// for clients that are not langchaingo embedders.
func NewLangChainFuncProvider(fn func(ctx context.Context, texts []string) ([][]float32, error), model string, opts ...LangChainOption) (*LangChainProvider, error) {
	embedder, err := embeddings.NewEmbedder(embeddings.EmbedderClientFunc(fn))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return NewLangChainProvider(embedder, model, opts...)
}

// Embed embeds a single text.
func (p *LangChainProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := p.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return vec, nil
}

// EmbedBatch embeds texts in order.
func (p *LangChainProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	// langchaingo strips newlines in place; keep the caller's slice intact.
	vecs, err := p.embedder.EmbedDocuments(ctx, slices.Clone(texts))
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts))
	}
	return vecs, nil
}

// ModelName returns the configured model name.
func (p *LangChainProvider) ModelName() string {
	return p.model
}

// Available reports whether the embedder answers. Without WithProbe it
// returns true.
func (p *LangChainProvider) Available(ctx context.Context) bool {
	if !p.probe {
		return true
	}
	_, err := p.embedder.EmbedQuery(ctx, "ping")
	return err == nil
}
