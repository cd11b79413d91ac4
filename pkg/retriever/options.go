package retriever

import "maps"

// Request is the resolved form of a Retrieve call's options.
type Request struct {
	Limit     int
	Threshold float64
	Extra     map[string]any

	hasLimit     bool
	hasThreshold bool
}

// RetrieveOption configures a single Retrieve call.
type RetrieveOption func(*Request)

// WithLimit caps the number of results. Values <= 0 are ignored.
func WithLimit(n int) RetrieveOption {
	return func(r *Request) {
		if n > 0 {
			r.Limit = n
			r.hasLimit = true
		}
	}
}

// WithThreshold overrides the configured similarity threshold.
func WithThreshold(t float64) RetrieveOption {
	return func(r *Request) {
		r.Threshold = t
		r.hasThreshold = true
	}
}

// WithExtra passes strategy-specific parameters through to the strategy
// and into the cache key.
func WithExtra(extra map[string]any) RetrieveOption {
	return func(r *Request) {
		if len(extra) == 0 {
			return
		}
		if r.Extra == nil {
			r.Extra = make(map[string]any, len(extra))
		}
		maps.Copy(r.Extra, extra)
	}
}

// NewRequest resolves options against cfg.
func NewRequest(cfg Config, opts ...RetrieveOption) Request {
	var r Request
	for _, opt := range opts {
		opt(&r)
	}
	if !r.hasLimit {
		r.Limit = cfg.MaxResults
	}
	if !r.hasThreshold {
		r.Threshold = cfg.SimilarityThreshold
	}
	return r
}

// Options converts the request back into options, for composites that
// forward a call to their children.
func (r Request) Options() []RetrieveOption {
	opts := []RetrieveOption{WithLimit(r.Limit), WithThreshold(r.Threshold)}
	if len(r.Extra) > 0 {
		opts = append(opts, WithExtra(r.Extra))
	}
	return opts
}

// Query is what a strategy receives from the pipeline.
type Query struct {
	// Text is the raw query string.
	Text string

	// Limit is the number of candidates wanted, already over-fetched.
	Limit int

	// Extra holds strategy-specific parameters.
	Extra map[string]any
}
