package text

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/milad-o/agenticflow-sub002/internal/tokenize"
	"github.com/milad-o/agenticflow-sub002/pkg/retriever"
	"github.com/milad-o/agenticflow-sub002/pkg/source"
)

// KeywordConfig configures Keyword.
type KeywordConfig struct {
	retriever.Config `yaml:",inline"`

	// CaseSensitive matches terms with their original case.
	CaseSensitive bool `yaml:"case_sensitive"`

	// WholeWordsOnly counts a term only at word boundaries.
	WholeWordsOnly bool `yaml:"whole_words_only"`

	// MinWordLength drops shorter query terms.
	MinWordLength int `yaml:"min_word_length"`

	// ExactMatchBonus is added when the whole query occurs in the content.
	ExactMatchBonus float64 `yaml:"exact_match_bonus"`

	// TermBonus is added per query term that occurs at least once.
	TermBonus float64 `yaml:"term_bonus"`

	// RepeatBonus scales ln(occurrences) per matching term.
	RepeatBonus float64 `yaml:"repeat_bonus"`
}

// DefaultKeywordConfig returns the default keyword configuration, with no
// threshold.
func DefaultKeywordConfig() KeywordConfig {
	cfg := KeywordConfig{
		Config:          retriever.DefaultConfig(),
		MinWordLength:   2,
		ExactMatchBonus: 1.0,
		TermBonus:       0.5,
		RepeatBonus:     0.1,
	}
	cfg.SimilarityThreshold = 0
	return cfg
}

// Keyword scores documents by exact and per-term occurrence, dampened by
// content length:
//
//	(exact + Σ(TermBonus + RepeatBonus·ln(count))) / ln(len(content)+1)
type Keyword struct {
	*retriever.Pipeline
	cfg     KeywordConfig
	adapter *source.Adapter
}

// NewKeyword creates a keyword retriever over src.
func NewKeyword(src any, cfg KeywordConfig, opts ...retriever.PipelineOption) (*Keyword, error) {
	if cfg.MinWordLength < 0 {
		return nil, retriever.ConfigurationError(fmt.Sprintf("min_word_length must be >= 0, got %d", cfg.MinWordLength), nil)
	}

	k := &Keyword{cfg: cfg}
	p, err := retriever.NewPipeline(KeywordType, cfg.Config, k.Search, opts...)
	if err != nil {
		return nil, err
	}
	k.Pipeline = p

	if k.adapter, err = source.NewAdapter(src, source.WithLogger(p.Logger())); err != nil {
		return nil, err
	}
	return k, nil
}

// Search scores every candidate and returns those with a positive score.
func (k *Keyword) Search(ctx context.Context, q retriever.Query) ([]retriever.Result, error) {
	docs, err := k.adapter.Documents(ctx, q.Text, q.Limit)
	if err != nil {
		return nil, err
	}

	m := k.newMatcher(q.Text)
	results := make([]retriever.Result, 0, len(docs))
	for _, d := range docs {
		if s := m.score(d.Content); s > 0 {
			results = append(results, retriever.Result{Document: d, Score: s})
		}
	}
	return results, nil
}

// Score returns the keyword score of content for query.
func (k *Keyword) Score(query, content string) float64 {
	return k.newMatcher(query).score(content)
}

// keywordMatcher holds the per-query state shared across documents.
type keywordMatcher struct {
	cfg      KeywordConfig
	phrase   string
	terms    []string
	patterns []*regexp.Regexp
	exact    *regexp.Regexp
}

func (k *Keyword) newMatcher(query string) *keywordMatcher {
	m := &keywordMatcher{cfg: k.cfg, phrase: strings.TrimSpace(query)}
	if !k.cfg.CaseSensitive {
		m.phrase = strings.ToLower(m.phrase)
	}

	var terms []string
	for _, f := range strings.Fields(m.phrase) {
		f = strings.TrimFunc(f, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
		if f != "" && utf8.RuneCountInString(f) >= k.cfg.MinWordLength {
			terms = append(terms, f)
		}
	}
	m.terms = tokenize.Unique(terms)

	if k.cfg.WholeWordsOnly {
		m.exact = regexp.MustCompile(`\b` + regexp.QuoteMeta(m.phrase) + `\b`)
		m.patterns = make([]*regexp.Regexp, len(m.terms))
		for i, t := range m.terms {
			m.patterns[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(t) + `\b`)
		}
	}
	return m
}

func (m *keywordMatcher) score(content string) float64 {
	if content == "" || m.phrase == "" {
		return 0
	}
	c := content
	if !m.cfg.CaseSensitive {
		c = strings.ToLower(c)
	}

	exact := strings.Contains(c, m.phrase)
	if m.exact != nil {
		exact = m.exact.MatchString(c)
	}

	var score float64
	if exact {
		score += m.cfg.ExactMatchBonus
	}
	for i, t := range m.terms {
		var n int
		if m.patterns != nil {
			n = len(m.patterns[i].FindAllStringIndex(c, -1))
		} else {
			n = strings.Count(c, t)
		}
		if n > 0 {
			score += m.cfg.TermBonus + m.cfg.RepeatBonus*math.Log(float64(n))
		}
	}
	if score == 0 {
		return 0
	}
	return score / math.Log(float64(utf8.RuneCountInString(content))+1)
}
