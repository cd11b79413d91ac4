package factory

import (
	"sync"

	"github.com/milad-o/agenticflow-sub002/pkg/composite"
	"github.com/milad-o/agenticflow-sub002/pkg/embed"
	"github.com/milad-o/agenticflow-sub002/pkg/retriever"
	"github.com/milad-o/agenticflow-sub002/pkg/source"
	"github.com/milad-o/agenticflow-sub002/pkg/text"
	"github.com/milad-o/agenticflow-sub002/pkg/vector"
)

// Auto asks Create to pick a leaf type from the source's capabilities.
const Auto = "auto"

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// DefaultRegistry returns the process-wide registry holding every
// built-in type. Types registered on it are visible to all callers.
func DefaultRegistry() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
		RegisterBuiltins(defaultRegistry)
	})
	return defaultRegistry
}

// RegisterBuiltins adds the built-in strategies to r.
func RegisterBuiltins(r *Registry) {
	r.MustRegister(text.KeywordType, leaf(text.DefaultKeywordConfig,
		func(src any, cfg text.KeywordConfig, deps Dependencies) (retriever.Retriever, error) {
			ret, err := text.NewKeyword(src, cfg, deps.options()...)
			return as(ret, err)
		}))
	r.MustRegister(text.FullTextType, leaf(text.DefaultFullTextConfig,
		func(src any, cfg text.FullTextConfig, deps Dependencies) (retriever.Retriever, error) {
			ret, err := text.NewFullText(src, cfg, deps.options()...)
			return as(ret, err)
		}))
	r.MustRegister(text.BM25Type, leaf(text.DefaultBM25Config,
		func(src any, cfg text.BM25Config, deps Dependencies) (retriever.Retriever, error) {
			ret, err := text.NewBM25(src, cfg, deps.options()...)
			return as(ret, err)
		}))
	r.MustRegister(text.FuzzyType, leaf(text.DefaultFuzzyConfig,
		func(src any, cfg text.FuzzyConfig, deps Dependencies) (retriever.Retriever, error) {
			ret, err := text.NewFuzzy(src, cfg, deps.options()...)
			return as(ret, err)
		}))
	r.MustRegister(text.RegexType, leaf(text.DefaultRegexConfig,
		func(src any, cfg text.RegexConfig, deps Dependencies) (retriever.Retriever, error) {
			ret, err := text.NewRegex(src, cfg, deps.options()...)
			return as(ret, err)
		}))

	semantic := map[string]func(any, embed.Provider, vector.SemanticConfig, ...retriever.PipelineOption) (*vector.Semantic, error){
		vector.SemanticType:   vector.NewSemantic,
		vector.CosineType:     vector.NewCosine,
		vector.EuclideanType:  vector.NewEuclidean,
		vector.DotProductType: vector.NewDotProduct,
		vector.ManhattanType:  vector.NewManhattan,
	}
	for kind, newFn := range semantic {
		r.MustRegister(kind, leaf(vector.DefaultSemanticConfig,
			func(src any, cfg vector.SemanticConfig, deps Dependencies) (retriever.Retriever, error) {
				ret, err := newFn(src, deps.Provider, cfg, deps.options()...)
				return as(ret, err)
			}))
	}
	r.MustRegister(vector.SparseType, leaf(vector.DefaultSparseConfig,
		func(src any, cfg vector.SparseConfig, deps Dependencies) (retriever.Retriever, error) {
			ret, err := vector.NewSparse(src, cfg, deps.options()...)
			return as(ret, err)
		}))

	r.MustRegister(composite.EnsembleType, compositeReg(composite.DefaultEnsembleConfig,
		func(_ any, cfg composite.EnsembleConfig, deps Dependencies) (retriever.Retriever, error) {
			ret, err := composite.NewEnsemble(deps.Children, cfg, deps.options()...)
			return as(ret, err)
		}))
	r.MustRegister(composite.FusionType, compositeReg(composite.DefaultFusionConfig,
		func(_ any, cfg composite.FusionConfig, deps Dependencies) (retriever.Retriever, error) {
			ret, err := composite.NewFusion(deps.Children, cfg, deps.Reranker, deps.options()...)
			return as(ret, err)
		}))
	r.MustRegister(composite.HybridType, compositeReg(composite.DefaultHybridConfig,
		func(_ any, cfg composite.HybridConfig, deps Dependencies) (retriever.Retriever, error) {
			ret, err := composite.NewHybrid(deps.Dense, deps.Sparse, cfg, deps.options()...)
			return as(ret, err)
		}))
	r.MustRegister(composite.ContextualType, compositeReg(composite.DefaultContextualConfig,
		func(_ any, cfg composite.ContextualConfig, deps Dependencies) (retriever.Retriever, error) {
			ret, err := composite.NewContextual(deps.Base, cfg, deps.options()...)
			return as(ret, err)
		}))
}

func compositeReg[C any](def func() C, build func(src any, cfg C, deps Dependencies) (retriever.Retriever, error)) Registration {
	reg := leaf(def, build)
	reg.Composite = true
	return reg
}

// DetectType picks a leaf type for src: semantic when it advertises
// embeddings, full_text when it has a database-like query surface,
// keyword otherwise.
func DetectType(src any) string {
	if ea, ok := src.(source.EmbeddingAware); ok && ea.HasEmbeddings() {
		return vector.SemanticType
	}
	if _, ok := src.(source.Queryable); ok {
		return text.FullTextType
	}
	return text.KeywordType
}
