package cmd

import (
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/milad-o/agenticflow-sub002/internal/config"
	"github.com/milad-o/agenticflow-sub002/pkg/embed"
)

// newProvider builds the configured embedding provider. ProviderNone
// returns nil, which leaves dense strategies on their keyword fallback.
func newProvider(cfg config.EmbeddingsConfig) (embed.Provider, error) {
	switch cfg.Provider {
	case config.ProviderNone:
		return nil, nil

	case config.ProviderStatic:
		return embed.NewStaticProvider(cfg.Dimensions), nil

	case config.ProviderOpenAI:
		opts := []openai.Option{}
		if cfg.Model != "" {
			opts = append(opts, openai.WithEmbeddingModel(cfg.Model))
		}
		if cfg.Host != "" {
			opts = append(opts, openai.WithBaseURL(cfg.Host))
		}
		client, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai client: %w", err)
		}
		return langChainProvider(client, cfg.Model)

	case config.ProviderOllama:
		opts := []ollama.Option{}
		if cfg.Model != "" {
			opts = append(opts, ollama.WithModel(cfg.Model))
		}
		if cfg.Host != "" {
			opts = append(opts, ollama.WithServerURL(cfg.Host))
		}
		client, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		return langChainProvider(client, cfg.Model)
	}
	return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
}

func langChainProvider(client embeddings.EmbedderClient, model string) (embed.Provider, error) {
	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embed.NewLangChainProvider(embedder, model, embed.WithProbe())
}
