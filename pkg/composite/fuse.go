package composite

import (
	"fmt"
	"maps"
	"math"

	"github.com/milad-o/agenticflow-sub002/internal/tokenize"
	"github.com/milad-o/agenticflow-sub002/pkg/retriever"
)

// DefaultRRFConstant is the reciprocal rank fusion smoothing constant.
const DefaultRRFConstant = 60

// FusionMethod selects how ranked lists are combined.
type FusionMethod string

const (
	// WeightedSum adds weight·score over the lists containing a document.
	WeightedSum FusionMethod = "weighted_sum"
	// RankFusion is reciprocal rank fusion: Σ weight/(k + rank).
	RankFusion FusionMethod = "rank_fusion"
	// MaxScore keeps the best score any list gave a document.
	MaxScore FusionMethod = "max"
	// MinScore keeps the worst score among the lists containing it.
	MinScore FusionMethod = "min"
	// RRF is accepted as an alias of RankFusion.
	RRF FusionMethod = "rrf"
)

// ParseFusionMethod validates a method name. Empty means WeightedSum.
func ParseFusionMethod(s string) (FusionMethod, error) {
	switch m := FusionMethod(s); m {
	case "":
		return WeightedSum, nil
	case WeightedSum, MaxScore, MinScore:
		return m, nil
	case RankFusion, RRF:
		return RankFusion, nil
	default:
		return "", retriever.ConfigurationError(fmt.Sprintf("unknown fusion method %q", s), nil)
	}
}

// RankedList is one child's ranked results with its fusion weight.
type RankedList struct {
	Source  string
	Weight  float64
	Results []retriever.Result
}

// fusedEntry accumulates one document across lists. result holds the
// highest-scoring child result seen so far, best its child score.
type fusedEntry struct {
	result  retriever.Result
	best    float64
	score   float64
	sources []string
	seen    bool
}

// accumulator merges documents by id, remembering first-seen order so
// equal scores stay deterministic.
type accumulator struct {
	order   []string
	entries map[string]*fusedEntry
}

func newAccumulator() *accumulator {
	return &accumulator{entries: make(map[string]*fusedEntry)}
}

func (a *accumulator) entry(r retriever.Result) *fusedEntry {
	e, ok := a.entries[r.Document.ID]
	if !ok {
		e = &fusedEntry{}
		a.entries[r.Document.ID] = e
		a.order = append(a.order, r.Document.ID)
	}
	if !ok || r.Score > e.best {
		e.result = retriever.Result{
			Document: r.Document.Clone(),
			Metadata: maps.Clone(r.Metadata),
		}
		e.best = r.Score
	}
	return e
}

func (a *accumulator) results(method FusionMethod) []retriever.Result {
	out := make([]retriever.Result, 0, len(a.order))
	for _, id := range a.order {
		e := a.entries[id]
		r := e.result
		r.Score = e.score
		r.SetMeta("fusion_method", string(method))
		r.SetMeta("sources", e.sources)
		out = append(out, r)
	}
	retriever.SortResults(out)
	retriever.AssignRanks(out)
	return out
}

// Fuse combines lists with method. k applies to RankFusion only; k <= 0
// uses DefaultRRFConstant. The output is sorted and ranked.
func Fuse(method FusionMethod, lists []RankedList, k int) []retriever.Result {
	switch method {
	case RankFusion, RRF:
		return FuseRRF(lists, k)
	case MaxScore:
		return FuseMax(lists)
	case MinScore:
		return FuseMin(lists)
	default:
		return FuseWeightedSum(lists)
	}
}

// FuseWeightedSum scores each document Σ weight·score over the lists that
// contain it.
func FuseWeightedSum(lists []RankedList) []retriever.Result {
	acc := newAccumulator()
	for _, l := range lists {
		for _, r := range l.Results {
			e := acc.entry(r)
			e.score += l.Weight * r.Score
			e.sources = append(e.sources, l.Source)
		}
	}
	return acc.results(WeightedSum)
}

// FuseRRF scores each document Σ weight/(k + rank), rank being its
// 1-based position in each list.
func FuseRRF(lists []RankedList, k int) []retriever.Result {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	acc := newAccumulator()
	for _, l := range lists {
		for i, r := range l.Results {
			e := acc.entry(r)
			e.score += l.Weight / float64(k+i+1)
			e.sources = append(e.sources, l.Source)
		}
	}
	return acc.results(RankFusion)
}

// FuseMax keeps each document's highest score.
func FuseMax(lists []RankedList) []retriever.Result {
	return fuseExtreme(lists, MaxScore, math.Max)
}

// FuseMin keeps each document's lowest score among the lists that
// returned it.
func FuseMin(lists []RankedList) []retriever.Result {
	return fuseExtreme(lists, MinScore, math.Min)
}

func fuseExtreme(lists []RankedList, method FusionMethod, pick func(a, b float64) float64) []retriever.Result {
	acc := newAccumulator()
	for _, l := range lists {
		for _, r := range l.Results {
			e := acc.entry(r)
			if e.seen {
				e.score = pick(e.score, r.Score)
			} else {
				e.score = r.Score
				e.seen = true
			}
			e.sources = append(e.sources, l.Source)
		}
	}
	return acc.results(method)
}

// DiversityFilter walks results in rank order and drops any whose word set
// has Jaccard similarity >= threshold with an already kept result. Ranks
// are reassigned.
func DiversityFilter(results []retriever.Result, threshold float64) []retriever.Result {
	kept := make([]retriever.Result, 0, len(results))
	sets := make([]map[string]struct{}, 0, len(results))

	for _, r := range results {
		words := tokenize.Set(r.Document.Content)
		duplicate := false
		for _, s := range sets {
			if tokenize.Jaccard(words, s) >= threshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		kept = append(kept, r)
		sets = append(sets, words)
	}

	retriever.AssignRanks(kept)
	return kept
}

// normalizedWeights scales weights to sum to 1. A nil slice means equal
// weights.
func normalizedWeights(weights []float64, n int) ([]float64, error) {
	if len(weights) == 0 {
		out := make([]float64, n)
		for i := range out {
			out[i] = 1 / float64(n)
		}
		return out, nil
	}
	if len(weights) != n {
		return nil, retriever.ConfigurationError(
			fmt.Sprintf("got %d weights for %d retrievers", len(weights), n), nil)
	}

	var sum float64
	for _, w := range weights {
		if w < 0 || math.IsNaN(w) {
			return nil, retriever.ConfigurationError(fmt.Sprintf("weights must be >= 0, got %g", w), nil)
		}
		sum += w
	}
	if sum == 0 {
		return nil, retriever.ConfigurationError("weights must not all be zero", nil)
	}

	out := make([]float64, n)
	for i, w := range weights {
		out[i] = w / sum
	}
	return out, nil
}
