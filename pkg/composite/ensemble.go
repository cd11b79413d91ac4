package composite

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/milad-o/agenticflow-sub002/pkg/retriever"
)

// Ensemble defaults.
const (
	DefaultDiversityThreshold = 0.8
	DefaultMinRetrievers      = 1
)

// EnsembleConfig configures Ensemble.
type EnsembleConfig struct {
	retriever.Config `yaml:",inline"`

	// Weights holds one weight per child. Empty means equal weights.
	// Weights are scaled to sum to 1.
	Weights []float64 `yaml:"weights"`

	// FusionMethod combines the child lists.
	FusionMethod FusionMethod `yaml:"fusion_method"`

	// RRFConstant is k for rank fusion.
	RRFConstant int `yaml:"rrf_constant"`

	// NormalizeChildScores min-max scales each child list before fusion.
	NormalizeChildScores bool `yaml:"normalize_child_scores"`

	// MinRetrievers is the number of children that must succeed; below it
	// the ensemble returns no results.
	MinRetrievers int `yaml:"min_retrievers"`

	// EnableDiversity drops near-duplicate content after fusion.
	EnableDiversity    bool    `yaml:"enable_diversity"`
	DiversityThreshold float64 `yaml:"diversity_threshold"`
}

// DefaultEnsembleConfig returns the default ensemble configuration. Fused
// scores are not calibrated to a common scale, so no threshold applies by
// default.
func DefaultEnsembleConfig() EnsembleConfig {
	cfg := EnsembleConfig{
		Config:               retriever.DefaultConfig(),
		FusionMethod:         WeightedSum,
		RRFConstant:          DefaultRRFConstant,
		NormalizeChildScores: true,
		MinRetrievers:        DefaultMinRetrievers,
		DiversityThreshold:   DefaultDiversityThreshold,
	}
	cfg.SimilarityThreshold = 0
	return cfg
}

// Ensemble runs every child concurrently and fuses their ranked lists.
type Ensemble struct {
	*retriever.Pipeline
	cfg      EnsembleConfig
	children []retriever.Retriever
	weights  []float64
}

// NewEnsemble creates an ensemble over children.
func NewEnsemble(children []retriever.Retriever, cfg EnsembleConfig, opts ...retriever.PipelineOption) (*Ensemble, error) {
	if len(children) == 0 {
		return nil, missingChildren(EnsembleType)
	}
	method, err := ParseFusionMethod(string(cfg.FusionMethod))
	if err != nil {
		return nil, err
	}
	cfg.FusionMethod = method
	weights, err := normalizedWeights(cfg.Weights, len(children))
	if err != nil {
		return nil, err
	}
	if cfg.MinRetrievers < 0 || cfg.MinRetrievers > len(children) {
		return nil, retriever.ConfigurationError(
			fmt.Sprintf("min_retrievers must be in [0, %d], got %d", len(children), cfg.MinRetrievers), nil)
	}
	if cfg.DiversityThreshold < 0 || cfg.DiversityThreshold > 1 {
		return nil, retriever.ConfigurationError(
			fmt.Sprintf("diversity_threshold must be in [0, 1], got %g", cfg.DiversityThreshold), nil)
	}

	e := &Ensemble{cfg: cfg, children: children, weights: weights}
	if e.Pipeline, err = retriever.NewPipeline(EnsembleType, cfg.Config, e.Search, opts...); err != nil {
		return nil, err
	}
	return e, nil
}

// Weights returns the normalized child weights.
func (e *Ensemble) Weights() []float64 {
	return append([]float64(nil), e.weights...)
}

// Search fuses the children's results.
func (e *Ensemble) Search(ctx context.Context, q retriever.Query) ([]retriever.Result, error) {
	outcomes := runChildren(ctx, e.Logger(), e.children, q.Text, childOptions(q))

	lists := make([]RankedList, 0, len(outcomes))
	for i, o := range outcomes {
		if o.err != nil {
			continue
		}
		results := retriever.CloneResults(o.results)
		if e.cfg.NormalizeChildScores {
			retriever.MinMax(results)
		}
		lists = append(lists, RankedList{Source: o.kind, Weight: e.weights[i], Results: results})
	}

	if len(lists) < e.cfg.MinRetrievers {
		e.Logger().Warn("ensemble_quota_not_met",
			slog.Int("succeeded", len(lists)),
			slog.Int("required", e.cfg.MinRetrievers))
		return []retriever.Result{}, nil
	}

	fused := Fuse(e.cfg.FusionMethod, lists, e.cfg.RRFConstant)
	if e.cfg.EnableDiversity {
		fused = DiversityFilter(fused, e.cfg.DiversityThreshold)
	}
	return fused, nil
}
