package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Retriever answers free-text queries with a ranked result list.
type Retriever interface {
	// Retrieve returns at most the requested limit of results, ranked 1..N
	// by descending score, all at or above the threshold.
	Retrieve(ctx context.Context, query string, opts ...RetrieveOption) ([]Result, error)

	// Type returns the strategy name, e.g. "bm25".
	Type() string

	// HealthCheck runs a trivial query and reports whether it succeeded.
	HealthCheck(ctx context.Context) bool
}

// SearchFunc scores candidates for a query. It returns raw results in any
// order; the pipeline does everything else.
type SearchFunc func(ctx context.Context, q Query) ([]Result, error)

// Stats contains pipeline counters.
type Stats struct {
	Type        string `json:"type"`
	Calls       int64  `json:"calls"`
	CacheHits   int64  `json:"cache_hits"`
	CacheMisses int64  `json:"cache_misses"`
	CacheSize   int    `json:"cache_size"`
	Errors      int64  `json:"errors"`
}

// Pipeline wraps a strategy SearchFunc with caching, filtering,
// normalization, reranking, ranking and thresholding.
type Pipeline struct {
	kind   string
	config Config
	search SearchFunc
	cache  *resultCache
	logger *slog.Logger
	now    func() time.Time

	calls  atomic.Int64
	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock sets the time source used for cache expiry and recency boosts.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPipeline creates a pipeline named kind around search.
func NewPipeline(kind string, cfg Config, search SearchFunc, opts ...PipelineOption) (*Pipeline, error) {
	if search == nil {
		return nil, ConfigurationError(kind+": search function is required", nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	p := &Pipeline{
		kind:   kind,
		config: cfg,
		search: search,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("retriever", kind)

	if cfg.EnableCaching {
		cache, err := newResultCache(cfg.CacheSize, cfg.CacheTTL)
		if err != nil {
			return nil, ConfigurationError(kind+": "+err.Error(), err)
		}
		cache.now = p.now
		p.cache = cache
	}

	return p, nil
}

// Type returns the strategy name.
func (p *Pipeline) Type() string {
	return p.kind
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config {
	return p.config
}

// Logger returns the pipeline's logger, for strategies that embed it.
func (p *Pipeline) Logger() *slog.Logger {
	return p.logger
}

// Retrieve runs the full pipeline for query.
func (p *Pipeline) Retrieve(ctx context.Context, query string, opts ...RetrieveOption) ([]Result, error) {
	p.calls.Add(1)
	req := NewRequest(p.config, opts...)

	if strings.TrimSpace(query) == "" {
		return []Result{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, RetrievalError(p.kind, err)
	}

	var key string
	if p.cache != nil {
		key = cacheKey(query, req)
		if cached, ok := p.cache.get(key); ok {
			p.hits.Add(1)
			p.logger.Debug("cache_hit", slog.String("query", query), slog.Int("results", len(cached)))
			return cached, nil
		}
		p.misses.Add(1)
	}

	start := p.now()
	raw, err := p.runSearch(ctx, Query{Text: query, Limit: req.Limit * 2, Extra: req.Extra})
	if err != nil {
		p.errors.Add(1)
		p.logger.Warn("retrieval_failed", slog.String("query", query), slog.String("error", err.Error()))
		return nil, err
	}

	results := p.postProcess(query, raw, req)

	if p.cache != nil {
		p.cache.put(key, results)
	}

	p.logger.Debug("retrieve_complete",
		slog.String("query", query),
		slog.Int("candidates", len(raw)),
		slog.Int("results", len(results)),
		slog.Duration("duration", p.now().Sub(start)))

	return results, nil
}

// runSearch calls the strategy, converting errors and panics into
// retrieval errors.
func (p *Pipeline) runSearch(ctx context.Context, q Query) (results []Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			results = nil
			err = RetrievalError(p.kind, fmt.Errorf("panic: %v", r))
		}
	}()

	results, err = p.search(ctx, q)
	if err != nil {
		if IsConfigurationError(err) || IsRetrievalError(err) {
			return nil, err
		}
		return nil, RetrievalError(p.kind, err)
	}
	return results, nil
}

func (p *Pipeline) postProcess(query string, raw []Result, req Request) []Result {
	results := CloneResults(raw)
	for i := range results {
		results[i].RetrieverType = p.kind
	}

	results = ApplyFilters(results, p.config)
	NormalizeScores(results, p.config.ScoreNormalization)
	if p.config.EnableReranking {
		ApplyRerank(results, query, p.config.Rerank, p.now())
	}

	SortResults(results)

	kept := results[:0]
	for _, r := range results {
		if r.Score >= req.Threshold {
			kept = append(kept, r)
		}
	}
	if req.Limit > 0 && len(kept) > req.Limit {
		kept = kept[:req.Limit]
	}
	AssignRanks(kept)

	if kept == nil {
		kept = []Result{}
	}
	return kept
}

// HealthCheck runs a trivial self-query. It never panics.
func (p *Pipeline) HealthCheck(ctx context.Context) (healthy bool) {
	defer func() {
		if r := recover(); r != nil {
			healthy = false
		}
	}()

	_, err := p.Retrieve(ctx, "test", WithLimit(1), WithThreshold(0))
	if err != nil {
		p.logger.Warn("health_check_failed", slog.String("error", err.Error()))
		return false
	}
	return true
}

// ClearCache drops every cached result list.
func (p *Pipeline) ClearCache() {
	if p.cache != nil {
		p.cache.purge()
	}
}

// Stats returns pipeline counters.
func (p *Pipeline) Stats() Stats {
	s := Stats{
		Type:        p.kind,
		Calls:       p.calls.Load(),
		CacheHits:   p.hits.Load(),
		CacheMisses: p.misses.Load(),
		Errors:      p.errors.Load(),
	}
	if p.cache != nil {
		s.CacheSize = p.cache.len()
	}
	return s
}
