package retriever

import "math"

// NormalizeScores rescales scores in place. Lists shorter than two are
// left unchanged.
func NormalizeScores(results []Result, method Normalization) {
	switch method {
	case NormalizeMinMax:
		MinMax(results)
	case NormalizeZScore:
		ZScore(results)
	}
}

// MinMax rescales scores into [0, 1]. When every score is equal the list
// is left unchanged.
func MinMax(results []Result) {
	if len(results) < 2 {
		return
	}

	lo, hi := results[0].Score, results[0].Score
	for _, r := range results[1:] {
		lo = math.Min(lo, r.Score)
		hi = math.Max(hi, r.Score)
	}

	span := hi - lo
	if span == 0 {
		return
	}
	for i := range results {
		results[i].Score = (results[i].Score - lo) / span
	}
}

// ZScore replaces scores by (score - mean) / sample stdev. When every score
// is equal the list is left unchanged.
func ZScore(results []Result) {
	n := len(results)
	if n < 2 {
		return
	}

	var sum float64
	for _, r := range results {
		sum += r.Score
	}
	mean := sum / float64(n)

	var sq float64
	for _, r := range results {
		d := r.Score - mean
		sq += d * d
	}
	stdev := math.Sqrt(sq / float64(n-1))
	if stdev == 0 {
		return
	}

	for i := range results {
		results[i].Score = (results[i].Score - mean) / stdev
	}
}
