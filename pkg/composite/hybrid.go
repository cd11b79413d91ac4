package composite

import (
	"context"
	"fmt"

	"github.com/milad-o/agenticflow-sub002/pkg/retriever"
)

// HybridConfig configures Hybrid.
type HybridConfig struct {
	retriever.Config `yaml:",inline"`

	DenseWeight  float64 `yaml:"dense_weight"`
	SparseWeight float64 `yaml:"sparse_weight"`

	// NormalizeScores min-max scales each side before interpolation.
	NormalizeScores bool `yaml:"normalize_scores"`
}

// DefaultHybridConfig returns the default hybrid configuration.
func DefaultHybridConfig() HybridConfig {
	cfg := HybridConfig{
		Config:          retriever.DefaultConfig(),
		DenseWeight:     0.7,
		SparseWeight:    0.3,
		NormalizeScores: true,
	}
	cfg.SimilarityThreshold = 0
	return cfg
}

// Hybrid interpolates a dense and a sparse retriever:
//
//	score = DenseWeight·dense + SparseWeight·sparse
//
// over the union of their results, a missing side counting as 0.
type Hybrid struct {
	*retriever.Pipeline
	cfg    HybridConfig
	dense  retriever.Retriever
	sparse retriever.Retriever
}

// NewHybrid creates a hybrid retriever.
func NewHybrid(dense, sparse retriever.Retriever, cfg HybridConfig, opts ...retriever.PipelineOption) (*Hybrid, error) {
	if dense == nil || sparse == nil {
		return nil, missingChildren(HybridType)
	}
	if cfg.DenseWeight < 0 || cfg.SparseWeight < 0 {
		return nil, retriever.ConfigurationError(
			fmt.Sprintf("hybrid weights must be >= 0, got dense %g sparse %g", cfg.DenseWeight, cfg.SparseWeight), nil)
	}
	if cfg.DenseWeight+cfg.SparseWeight == 0 {
		return nil, retriever.ConfigurationError("hybrid weights must not both be zero", nil)
	}

	h := &Hybrid{cfg: cfg, dense: dense, sparse: sparse}
	var err error
	if h.Pipeline, err = retriever.NewPipeline(HybridType, cfg.Config, h.Search, opts...); err != nil {
		return nil, err
	}
	return h, nil
}

// Search runs both sides concurrently and interpolates their scores.
func (h *Hybrid) Search(ctx context.Context, q retriever.Query) ([]retriever.Result, error) {
	outcomes := runChildren(ctx, h.Logger(), []retriever.Retriever{h.dense, h.sparse}, q.Text, childOptions(q))
	if len(succeeded(outcomes)) == 0 {
		return nil, allFailed(HybridType, outcomes)
	}

	dense := retriever.CloneResults(outcomes[0].results)
	sparse := retriever.CloneResults(outcomes[1].results)
	if h.cfg.NormalizeScores {
		retriever.MinMax(dense)
		retriever.MinMax(sparse)
	}

	acc := newAccumulator()
	denseScores := make(map[string]float64, len(dense))
	sparseScores := make(map[string]float64, len(sparse))
	for _, r := range dense {
		acc.entry(r)
		denseScores[r.Document.ID] = r.Score
	}
	for _, r := range sparse {
		acc.entry(r)
		sparseScores[r.Document.ID] = r.Score
	}

	out := make([]retriever.Result, 0, len(acc.order))
	for _, id := range acc.order {
		r := acc.entries[id].result
		d, s := denseScores[id], sparseScores[id]
		r.Score = h.cfg.DenseWeight*d + h.cfg.SparseWeight*s
		r.SetMeta("dense_score", d)
		r.SetMeta("sparse_score", s)
		out = append(out, r)
	}
	return out, nil
}
