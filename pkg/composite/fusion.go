package composite

import (
	"context"
	"log/slog"

	"github.com/milad-o/agenticflow-sub002/pkg/retriever"
)

// NeuralReranker reorders fused results. Implementations may call a
// cross-encoder or any other model.
type NeuralReranker interface {
	Rerank(ctx context.Context, query string, results []retriever.Result) ([]retriever.Result, error)
}

// PassThroughReranker returns results unchanged.
type PassThroughReranker struct{}

// Rerank implements NeuralReranker.
func (PassThroughReranker) Rerank(_ context.Context, _ string, results []retriever.Result) ([]retriever.Result, error) {
	return results, nil
}

// FusionConfig configures Fusion.
type FusionConfig struct {
	retriever.Config `yaml:",inline"`

	// Methods are applied independently; a document keeps its best fused
	// score across methods.
	Methods []FusionMethod `yaml:"methods"`

	// Weights holds one weight per child. Empty means equal weights.
	Weights []float64 `yaml:"weights"`

	// RRFConstant is k for rank fusion.
	RRFConstant int `yaml:"rrf_constant"`
}

// DefaultFusionConfig returns the default fusion configuration.
func DefaultFusionConfig() FusionConfig {
	cfg := FusionConfig{
		Config:      retriever.DefaultConfig(),
		Methods:     []FusionMethod{RankFusion, WeightedSum},
		RRFConstant: DefaultRRFConstant,
	}
	cfg.SimilarityThreshold = 0
	return cfg
}

// Fusion fuses its children with several methods and merges the outcomes
// by the maximum fused score per document.
type Fusion struct {
	*retriever.Pipeline
	cfg      FusionConfig
	children []retriever.Retriever
	weights  []float64
	reranker NeuralReranker
}

// NewFusion creates a fusion retriever over children. A nil reranker
// passes results through.
func NewFusion(children []retriever.Retriever, cfg FusionConfig, reranker NeuralReranker, opts ...retriever.PipelineOption) (*Fusion, error) {
	if len(children) == 0 {
		return nil, missingChildren(FusionType)
	}
	if len(cfg.Methods) == 0 {
		cfg.Methods = []FusionMethod{RankFusion}
	}
	cfg.Methods = append([]FusionMethod(nil), cfg.Methods...)
	for i, m := range cfg.Methods {
		parsed, err := ParseFusionMethod(string(m))
		if err != nil {
			return nil, err
		}
		cfg.Methods[i] = parsed
	}
	weights, err := normalizedWeights(cfg.Weights, len(children))
	if err != nil {
		return nil, err
	}

	if reranker == nil {
		reranker = PassThroughReranker{}
	}

	f := &Fusion{cfg: cfg, children: children, weights: weights, reranker: reranker}
	if f.Pipeline, err = retriever.NewPipeline(FusionType, cfg.Config, f.Search, opts...); err != nil {
		return nil, err
	}
	return f, nil
}

// Search fuses children with every configured method and reranks.
func (f *Fusion) Search(ctx context.Context, q retriever.Query) ([]retriever.Result, error) {
	outcomes := runChildren(ctx, f.Logger(), f.children, q.Text, childOptions(q))
	if len(succeeded(outcomes)) == 0 {
		return nil, allFailed(FusionType, outcomes)
	}

	lists := make([]RankedList, 0, len(outcomes))
	for i, o := range outcomes {
		if o.err == nil {
			lists = append(lists, RankedList{Source: o.kind, Weight: f.weights[i], Results: o.results})
		}
	}

	best := make(map[string]retriever.Result)
	var order []string
	for _, m := range f.cfg.Methods {
		for _, r := range Fuse(m, lists, f.cfg.RRFConstant) {
			prev, ok := best[r.Document.ID]
			if !ok {
				order = append(order, r.Document.ID)
			}
			if !ok || r.Score > prev.Score {
				best[r.Document.ID] = r
			}
		}
	}

	merged := make([]retriever.Result, 0, len(order))
	for _, id := range order {
		merged = append(merged, best[id])
	}
	retriever.SortResults(merged)

	reranked, err := f.reranker.Rerank(ctx, q.Text, merged)
	if err != nil {
		f.Logger().Warn("rerank_failed", slog.String("error", err.Error()))
		return merged, nil
	}
	return reranked, nil
}
