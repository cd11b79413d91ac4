// Package composite combines retrievers: Ensemble fuses any number of
// children, Hybrid interpolates a dense and a sparse child, Contextual
// conditions a retriever on conversation history and Fusion merges
// several fusion methods.
//
// Children run concurrently. A failing child is logged and contributes
// nothing; the composite fails only when no child succeeds.
package composite

// Retriever type names.
const (
	EnsembleType   = "ensemble"
	HybridType     = "hybrid"
	ContextualType = "contextual"
	FusionType     = "fusion"
)
