package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/milad-o/agenticflow-sub002/internal/config"
	aerrors "github.com/milad-o/agenticflow-sub002/internal/errors"
	"github.com/milad-o/agenticflow-sub002/pkg/embed"
	"github.com/milad-o/agenticflow-sub002/pkg/factory"
	"github.com/milad-o/agenticflow-sub002/pkg/retriever"
	"github.com/milad-o/agenticflow-sub002/pkg/source"
)

// session is a loaded data source plus everything needed to build
// retrievers over it.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	provider embed.Provider
	src      any
	docs     int
	closers  []func() error
}

// openSession loads the configured documents into the configured backend.
func openSession(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*session, error) {
	if logger == nil {
		logger = slog.Default()
	}

	docs, err := LoadDocuments(cfg.Source.Documents...)
	if err != nil {
		return nil, aerrors.New(aerrors.ErrCodeSourceFailed, "failed to load documents", err)
	}
	if len(docs) == 0 && !(cfg.Source.Backend == config.BackendSQLite && cfg.Source.Path != "") {
		return nil, aerrors.New(aerrors.ErrCodeSourceFailed, "no documents to search", nil).
			WithSuggestion("pass --docs or set source.documents in " + config.DefaultFileName)
	}

	provider, err := newProvider(cfg.Embeddings)
	if err != nil {
		return nil, aerrors.New(aerrors.ErrCodeConfigInvalid, "failed to create embedding provider", err)
	}

	s := &session{cfg: cfg, logger: logger, provider: provider, docs: len(docs)}
	if err := s.load(ctx, docs); err != nil {
		_ = s.Close()
		return nil, err
	}

	logger.Debug("documents_loaded",
		slog.Int("count", len(docs)),
		slog.String("backend", cfg.Source.Backend))
	return s, nil
}

func (s *session) load(ctx context.Context, docs []retriever.Document) error {
	switch s.cfg.Source.Backend {
	case config.BackendMemory:
		s.src = source.NewMemorySource(docs...)

	case config.BackendSQLite:
		db, err := source.NewSQLiteSource(s.cfg.Source.Path)
		if err != nil {
			return aerrors.New(aerrors.ErrCodeSourceFailed, "failed to open sqlite source", err)
		}
		s.closers = append(s.closers, db.Close)
		if len(docs) > 0 {
			if err := db.Add(ctx, docs...); err != nil {
				return aerrors.New(aerrors.ErrCodeSourceFailed, "failed to add documents to sqlite", err)
			}
		}
		s.src = db

	case config.BackendBleve:
		idx, err := source.NewBleveSource()
		if err != nil {
			return aerrors.New(aerrors.ErrCodeSourceFailed, "failed to create bleve index", err)
		}
		s.closers = append(s.closers, idx.Close)
		if err := idx.Index(ctx, docs...); err != nil {
			return aerrors.New(aerrors.ErrCodeSourceFailed, "failed to index documents", err)
		}
		s.src = idx

	case config.BackendVector:
		embedded, err := s.embedAll(ctx, docs)
		if err != nil {
			return err
		}
		vs, err := source.NewVectorSource(len(embedded[0].Embedding))
		if err != nil {
			return err
		}
		if err := vs.Add(ctx, embedded...); err != nil {
			return aerrors.New(aerrors.ErrCodeSourceFailed, "failed to add documents to vector index", err)
		}
		s.src = vs

	default:
		return retriever.ConfigurationError(fmt.Sprintf("unknown source backend %q", s.cfg.Source.Backend), nil)
	}
	return nil
}

// embedAll fills in missing document embeddings with the provider.
func (s *session) embedAll(ctx context.Context, docs []retriever.Document) ([]retriever.Document, error) {
	if s.provider == nil {
		return nil, retriever.ConfigurationError("the vector backend needs an embedding provider", nil)
	}

	var (
		texts   []string
		missing []int
	)
	for i, d := range docs {
		if !d.HasEmbedding() {
			texts = append(texts, d.Content)
			missing = append(missing, i)
		}
	}
	if len(texts) == 0 {
		return docs, nil
	}

	vectors, err := s.provider.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, aerrors.New(aerrors.ErrCodeEmbeddingFailed, "failed to embed documents", err)
	}
	if len(vectors) != len(texts) {
		return nil, aerrors.New(aerrors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("provider returned %d vectors for %d documents", len(vectors), len(texts)), nil)
	}

	out := make([]retriever.Document, len(docs))
	copy(out, docs)
	for j, i := range missing {
		out[i].Embedding = vectors[j]
	}
	return out, nil
}

// Build constructs the retriever tree described by spec.
func (s *session) Build(spec factory.Spec) (retriever.Retriever, error) {
	return factory.DefaultRegistry().Build(spec, s.src, s.dependencies())
}

// Create constructs a single registered type with its default config.
func (s *session) Create(kind string) (retriever.Retriever, error) {
	return factory.DefaultRegistry().Create(kind, s.src, nil, s.dependencies())
}

func (s *session) dependencies() factory.Dependencies {
	return factory.Dependencies{Provider: s.provider, Logger: s.logger}
}

// Close releases the backend.
func (s *session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}
