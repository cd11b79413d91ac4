package factory

import (
	"github.com/milad-o/agenticflow-sub002/pkg/composite"
	"github.com/milad-o/agenticflow-sub002/pkg/retriever"
)

// Default child types for CreateHybrid.
const (
	DefaultDenseType  = "semantic"
	DefaultSparseType = "sparse"
)

// CreateEnsemble fuses existing retrievers. cfg may be nil.
func (r *Registry) CreateEnsemble(children []retriever.Retriever, cfg any, deps Dependencies) (retriever.Retriever, error) {
	deps.Children = children
	return r.Create(composite.EnsembleType, nil, cfg, deps)
}

// CreateFusion fuses existing retrievers with several methods. cfg may be
// nil.
func (r *Registry) CreateFusion(children []retriever.Retriever, cfg any, deps Dependencies) (retriever.Retriever, error) {
	deps.Children = children
	return r.Create(composite.FusionType, nil, cfg, deps)
}

// CreateHybrid builds the dense and sparse children by type name over src
// with their default configs, then interpolates them. Empty names use
// DefaultDenseType and DefaultSparseType.
func (r *Registry) CreateHybrid(src any, denseType, sparseType string, cfg any, deps Dependencies) (retriever.Retriever, error) {
	if denseType == "" {
		denseType = DefaultDenseType
	}
	if sparseType == "" {
		sparseType = DefaultSparseType
	}

	dense, err := r.Create(denseType, src, nil, deps)
	if err != nil {
		return nil, err
	}
	sparse, err := r.Create(sparseType, src, nil, deps)
	if err != nil {
		return nil, err
	}

	deps.Dense, deps.Sparse = dense, sparse
	return r.Create(composite.HybridType, src, cfg, deps)
}

// CreateContextual builds the base retriever by type name over src and
// wraps it.
func (r *Registry) CreateContextual(src any, baseType string, cfg any, deps Dependencies) (retriever.Retriever, error) {
	base, err := r.Create(baseType, src, nil, deps)
	if err != nil {
		return nil, err
	}
	deps.Base = base
	return r.Create(composite.ContextualType, src, cfg, deps)
}
