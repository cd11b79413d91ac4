// Package vector implements embedding-based retrieval: dense Semantic
// search over a pluggable distance metric and sparse TF-IDF matching.
package vector

import (
	"fmt"
	"math"

	"github.com/milad-o/agenticflow-sub002/pkg/retriever"
)

// Retriever type names.
const (
	SemanticType   = "semantic"
	CosineType     = "cosine"
	EuclideanType  = "euclidean"
	DotProductType = "dot_product"
	ManhattanType  = "manhattan"
	SparseType     = "sparse"
)

// Metric selects how two dense vectors are compared. Every metric is
// turned into a similarity where higher is better.
type Metric string

const (
	MetricCosine     Metric = "cosine"
	MetricEuclidean  Metric = "euclidean"
	MetricDotProduct Metric = "dot_product"
	MetricManhattan  Metric = "manhattan"
)

// ParseMetric validates a metric name. Empty means cosine.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(s); m {
	case "":
		return MetricCosine, nil
	case MetricCosine, MetricEuclidean, MetricDotProduct, MetricManhattan:
		return m, nil
	default:
		return "", retriever.ConfigurationError(fmt.Sprintf("unknown similarity metric %q", s), nil)
	}
}

// Similarity compares a and b. Vectors of different length score 0.
func (m Metric) Similarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	switch m {
	case MetricEuclidean:
		return 1 / (1 + EuclideanDistance(a, b))
	case MetricDotProduct:
		return DotProduct(a, b)
	case MetricManhattan:
		return 1 / (1 + ManhattanDistance(a, b))
	default:
		return CosineSimilarity(a, b)
	}
}

// CosineSimilarity returns dot(a,b)/(|a||b|), or 0 when either norm is 0.
func CosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// DotProduct returns the raw inner product.
func DotProduct(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// EuclideanDistance returns the L2 distance.
func EuclideanDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// ManhattanDistance returns the L1 distance.
func ManhattanDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += math.Abs(float64(a[i]) - float64(b[i]))
	}
	return sum
}
