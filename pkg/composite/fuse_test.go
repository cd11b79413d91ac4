package composite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milad-o/agenticflow-sub002/pkg/retriever"
)

func list(source string, weight float64, scores ...scored) RankedList {
	return RankedList{Source: source, Weight: weight, Results: newStub(source, scores...).results}
}

func scoreOf(t *testing.T, results []retriever.Result, id string) float64 {
	t.Helper()
	for _, r := range results {
		if r.Document.ID == id {
			return r.Score
		}
	}
	require.Failf(t, "missing result", "no result with id %s", id)
	return 0
}

func TestFuseWeightedSum(t *testing.T) {
	lists := []RankedList{
		list("a", 0.6, scored{id: "x", score: 1.0}, scored{id: "y", score: 0.5}),
		list("b", 0.4, scored{id: "y", score: 1.0}, scored{id: "z", score: 0.2}),
	}

	fused := FuseWeightedSum(lists)

	require.Len(t, fused, 3)
	assert.InDelta(t, 0.6, scoreOf(t, fused, "x"), 1e-9)
	assert.InDelta(t, 0.6*0.5+0.4*1.0, scoreOf(t, fused, "y"), 1e-9)
	assert.InDelta(t, 0.4*0.2, scoreOf(t, fused, "z"), 1e-9)
	assert.Equal(t, []string{"y", "x", "z"}, ids(fused))
	assert.Equal(t, []int{1, 2, 3}, []int{fused[0].Rank, fused[1].Rank, fused[2].Rank})
	assert.Equal(t, []string{"a", "b"}, fused[0].Metadata["sources"])
}

func TestFuseWeightedSum_KeepsBestChildResult(t *testing.T) {
	// Given: the same document from two children with different metadata
	weak := retriever.Result{
		Document: retriever.Document{ID: "x", Content: "dense copy"},
		Score:    0.3,
		Metadata: map[string]any{"fallback": true},
	}
	strong := retriever.Result{
		Document: retriever.Document{ID: "x", Content: "sparse copy"},
		Score:    0.9,
		Metadata: map[string]any{"metric": "cosine"},
	}
	lists := []RankedList{
		{Source: "dense", Weight: 0.5, Results: []retriever.Result{weak}},
		{Source: "sparse", Weight: 0.5, Results: []retriever.Result{strong}},
	}

	// When: fusing by weighted sum
	fused := FuseWeightedSum(lists)

	// Then: the higher-scoring child supplies document and metadata
	require.Len(t, fused, 1)
	assert.Equal(t, "sparse copy", fused[0].Document.Content)
	assert.Equal(t, "cosine", fused[0].Metadata["metric"])
	assert.NotContains(t, fused[0].Metadata, "fallback")
	assert.Equal(t, []string{"dense", "sparse"}, fused[0].Metadata["sources"])
	assert.InDelta(t, 0.6, fused[0].Score, 1e-9)
	assert.NotContains(t, strong.Metadata, "sources")
}

func TestFuseRRF_TopOfEveryListStaysFirst(t *testing.T) {
	// Given: three lists that all rank "top" first but disagree otherwise
	lists := []RankedList{
		list("a", 1, scored{id: "top", score: 0.9}, scored{id: "p", score: 0.8}, scored{id: "q", score: 0.1}),
		list("b", 1, scored{id: "top", score: 5}, scored{id: "q", score: 4}, scored{id: "r", score: 3}),
		list("c", 1, scored{id: "top", score: 0.3}, scored{id: "r", score: 0.2}, scored{id: "p", score: 0.1}),
	}

	// When: fusing by reciprocal rank
	fused := FuseRRF(lists, 60)

	// Then: "top" ranks first with 3/(60+1)
	require.NotEmpty(t, fused)
	assert.Equal(t, "top", fused[0].Document.ID)
	assert.InDelta(t, 3.0/61, fused[0].Score, 1e-12)
	assert.Equal(t, string(RankFusion), fused[0].Metadata["fusion_method"])
}

func TestFuseRRF_DefaultConstant(t *testing.T) {
	lists := []RankedList{list("a", 1, scored{id: "x", score: 1})}
	assert.InDelta(t, 1.0/61, FuseRRF(lists, 0)[0].Score, 1e-12)
}

func TestFuseMaxMin(t *testing.T) {
	lists := []RankedList{
		list("a", 1, scored{id: "x", score: 0.9}, scored{id: "y", score: 0.2}),
		list("b", 1, scored{id: "x", score: 0.4}, scored{id: "y", score: 0.7}),
		list("c", 1, scored{id: "z", score: 0.5}),
	}

	maxed := FuseMax(lists)
	assert.InDelta(t, 0.9, scoreOf(t, maxed, "x"), 1e-9)
	assert.InDelta(t, 0.7, scoreOf(t, maxed, "y"), 1e-9)

	minned := FuseMin(lists)
	assert.InDelta(t, 0.4, scoreOf(t, minned, "x"), 1e-9)
	assert.InDelta(t, 0.2, scoreOf(t, minned, "y"), 1e-9)
	assert.InDelta(t, 0.5, scoreOf(t, minned, "z"), 1e-9, "single-list documents keep their score")
}

func TestFuse_Dispatch(t *testing.T) {
	lists := []RankedList{list("a", 1, scored{id: "x", score: 0.5})}
	for _, m := range []FusionMethod{WeightedSum, RankFusion, RRF, MaxScore, MinScore} {
		fused := Fuse(m, lists, 60)
		require.Len(t, fused, 1, string(m))
	}
	assert.InDelta(t, 1.0/61, Fuse(RRF, lists, 60)[0].Score, 1e-12)
}

func TestDiversityFilter(t *testing.T) {
	results := newStub("s",
		scored{id: "a", score: 0.9, text: "the quick brown fox jumps"},
		scored{id: "b", score: 0.8, text: "The quick brown fox jumps"},
		scored{id: "c", score: 0.7, text: "a completely different sentence"},
		scored{id: "d", score: 0.6, text: "the quick brown fox leaps"},
	).results

	kept := DiversityFilter(results, 0.8)

	// b is identical to a after lowercasing; d shares 4 of 6 words (0.67).
	assert.Equal(t, []string{"a", "c", "d"}, ids(kept))
	assert.Equal(t, 3, kept[2].Rank)

	strict := DiversityFilter(results, 0.5)
	assert.Equal(t, []string{"a", "c"}, ids(strict))
}

func TestNormalizedWeights(t *testing.T) {
	w, err := normalizedWeights(nil, 4)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 0.25, 0.25, 0.25}, w)

	w, err = normalizedWeights([]float64{3, 1}, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.75, 0.25}, w)

	for _, bad := range [][]float64{{1}, {-1, 2}, {0, 0}} {
		_, err := normalizedWeights(bad, 2)
		assert.True(t, retriever.IsConfigurationError(err), "%v", bad)
	}
}

func TestParseFusionMethod(t *testing.T) {
	m, err := ParseFusionMethod("rrf")
	require.NoError(t, err)
	assert.Equal(t, RankFusion, m)

	m, err = ParseFusionMethod("")
	require.NoError(t, err)
	assert.Equal(t, WeightedSum, m)

	_, err = ParseFusionMethod("borda")
	assert.True(t, retriever.IsConfigurationError(err))
}
