// Package retriever defines the contract shared by every retrieval strategy
// and the pipeline that wraps them.
//
// A strategy only scores candidates. Everything around that is done by
// Pipeline, in this order:
//
//  1. result cache lookup (copy returned on hit)
//  2. strategy call, over-fetching twice the requested limit
//  3. metadata and content filters
//  4. score normalization (minmax or zscore)
//  5. optional rerank boosts (query terms, content length, recency)
//  6. stable descending sort and 1-based ranks
//  7. threshold, truncation to limit, re-rank
//  8. cache store
//
// Strategies embed *Pipeline to inherit Retrieve, HealthCheck, ClearCache
// and Stats.
//
// # Usage
//
//	p := retriever.NewPipeline("keyword", retriever.DefaultConfig(), searchFn)
//	results, err := p.Retrieve(ctx, "machine learning", retriever.WithLimit(5))
package retriever
