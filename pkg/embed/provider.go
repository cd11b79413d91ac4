// Package embed defines the embedding provider contract used by the vector
// strategies, plus an offline hash embedder, a langchaingo adapter and a
// bounded cache wrapper.
package embed

import (
	"context"
	"math"
)

// Provider turns text into dense vectors.
type Provider interface {
	// Embed returns the vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per text, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// ModelName identifies the model; it is part of cache keys.
	ModelName() string

	// Available reports whether the provider can currently serve requests.
	Available(ctx context.Context) bool
}

// Normalize returns v scaled to unit L2 norm. A zero vector is returned
// unchanged.
func Normalize(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	out := make([]float32, len(v))
	for i, val := range v {
		out[i] = float32(float64(val) / magnitude)
	}
	return out
}
