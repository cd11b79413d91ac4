package text

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/milad-o/agenticflow-sub002/pkg/retriever"
	"github.com/milad-o/agenticflow-sub002/pkg/source"
)

// ExtraRegexFlags overrides the configured flags for one call via
// retriever.WithExtra.
const ExtraRegexFlags = "flags"

// RegexConfig configures Regex.
type RegexConfig struct {
	retriever.Config `yaml:",inline"`

	// Flags combines i (ignore case), m (multi-line) and s (dot matches
	// newline).
	Flags string `yaml:"flags"`

	// StartBonus is added when a match begins at the first character.
	StartBonus float64 `yaml:"start_bonus"`
}

// DefaultRegexConfig returns the default regex configuration.
func DefaultRegexConfig() RegexConfig {
	return RegexConfig{
		Config:     retriever.DefaultConfig(),
		Flags:      "i",
		StartBonus: 0.5,
	}
}

// Regex treats the query as a regular expression and scores
// (matches + StartBonus·[match at 0]) / ln(len+1), capped at 1.
type Regex struct {
	*retriever.Pipeline
	cfg     RegexConfig
	adapter *source.Adapter

	mu       sync.Mutex
	compiled map[string]*regexp.Regexp // nil value marks an invalid pattern
}

// NewRegex creates a regex retriever over src.
func NewRegex(src any, cfg RegexConfig, opts ...retriever.PipelineOption) (*Regex, error) {
	if err := validateFlags(cfg.Flags); err != nil {
		return nil, err
	}

	r := &Regex{cfg: cfg, compiled: make(map[string]*regexp.Regexp)}
	p, err := retriever.NewPipeline(RegexType, cfg.Config, r.Search, opts...)
	if err != nil {
		return nil, err
	}
	r.Pipeline = p

	if r.adapter, err = source.NewAdapter(src, source.WithLogger(p.Logger())); err != nil {
		return nil, err
	}
	return r, nil
}

func validateFlags(flags string) error {
	for _, f := range flags {
		if !strings.ContainsRune("ims", f) {
			return retriever.ConfigurationError(fmt.Sprintf("unsupported regex flag %q", f), nil)
		}
	}
	return nil
}

// Search matches every candidate against the query pattern. An invalid
// pattern matches nothing.
func (r *Regex) Search(ctx context.Context, q retriever.Query) ([]retriever.Result, error) {
	flags := r.cfg.Flags
	if f, ok := q.Extra[ExtraRegexFlags].(string); ok {
		if err := validateFlags(f); err != nil {
			return nil, err
		}
		flags = f
	}

	re := r.pattern(q.Text, flags)
	if re == nil {
		return []retriever.Result{}, nil
	}

	docs, err := r.adapter.Documents(ctx, q.Text, q.Limit)
	if err != nil {
		return nil, err
	}

	results := make([]retriever.Result, 0)
	for _, d := range docs {
		if s := r.score(re, d.Content); s > 0 {
			results = append(results, retriever.Result{Document: d, Score: s})
		}
	}
	return results, nil
}

// pattern compiles and caches the pattern. Invalid patterns are cached
// as nil and logged once.
func (r *Regex) pattern(expr, flags string) *regexp.Regexp {
	key := flags + "\x00" + expr

	r.mu.Lock()
	defer r.mu.Unlock()

	if re, ok := r.compiled[key]; ok {
		return re
	}

	prefix := ""
	if flags != "" {
		prefix = "(?" + flags + ")"
	}
	re, err := regexp.Compile(prefix + expr)
	if err != nil {
		r.Logger().Warn("invalid_regex_pattern",
			slog.String("pattern", expr),
			slog.String("flags", flags),
			slog.String("error", err.Error()))
		re = nil
	}
	r.compiled[key] = re
	return re
}

func (r *Regex) score(re *regexp.Regexp, content string) float64 {
	if content == "" {
		return 0
	}
	matches := re.FindAllStringIndex(content, -1)
	if len(matches) == 0 {
		return 0
	}

	score := float64(len(matches))
	if matches[0][0] == 0 {
		score += r.cfg.StartBonus
	}
	score /= math.Log(float64(utf8.RuneCountInString(content)) + 1)
	return math.Min(score, 1.0)
}
