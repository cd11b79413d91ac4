package retriever

import (
	"maps"
	"sort"
)

// Result is a scored document in a ranked list.
type Result struct {
	Document Document `json:"document"`

	// Score is the strategy score after pipeline post-processing.
	Score float64 `json:"score"`

	// Rank is 1-based and contiguous within a list.
	Rank int `json:"rank"`

	// RetrieverType names the strategy that produced the list.
	RetrieverType string `json:"retriever_type"`

	// Metadata carries per-result annotations (component scores, boosts).
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Clone returns a deep copy of r.
func (r Result) Clone() Result {
	r.Document = r.Document.Clone()
	r.Metadata = maps.Clone(r.Metadata)
	return r
}

// SetMeta sets a result annotation, allocating the map on first use.
func (r *Result) SetMeta(key string, value any) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]any)
	}
	r.Metadata[key] = value
}

// CloneResults deep-copies a result list.
func CloneResults(results []Result) []Result {
	if results == nil {
		return nil
	}
	out := make([]Result, len(results))
	for i := range results {
		out[i] = results[i].Clone()
	}
	return out
}

// SortResults orders results by descending score. Equal scores keep their
// incoming order so that strategy ordering is preserved.
func SortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

// AssignRanks numbers results 1..N in their current order.
func AssignRanks(results []Result) {
	for i := range results {
		results[i].Rank = i + 1
	}
}
