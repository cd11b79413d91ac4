// Package text implements the lexical retrieval strategies: Keyword,
// FullText, BM25, Fuzzy and Regex.
//
// Each strategy scores the candidates its data source yields and embeds a
// *retriever.Pipeline for caching, filtering, ranking and thresholding.
// Scores are not bounded to [0, 1] except where noted, so thresholds
// should be chosen per strategy.
package text

// Strategy type names.
const (
	KeywordType  = "keyword"
	FullTextType = "full_text"
	BM25Type     = "bm25"
	FuzzyType    = "fuzzy"
	RegexType    = "regex"
)
