// Package textanalysis builds the bleve analyzers used for full-text
// scoring and for the bleve-backed document source.
package textanalysis

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/porter"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
)

// AnalyzerName is the name the analyzer is registered under in a mapping.
const AnalyzerName = "retrieval_text"

// Options selects the token filters after lowercasing.
type Options struct {
	// RemoveStopWords drops English stop words.
	RemoveStopWords bool
	// Stem applies the Porter stemmer.
	Stem bool
}

// definition returns the custom analyzer config: unicode word
// segmentation, lowercase, then the optional filters.
func definition(opts Options) map[string]interface{} {
	filters := []string{lowercase.Name}
	if opts.RemoveStopWords {
		filters = append(filters, en.StopName)
	}
	if opts.Stem {
		filters = append(filters, porter.Name)
	}
	return map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": filters,
	}
}

// NewMapping returns an index mapping whose default analyzer is the
// retrieval analyzer.
func NewMapping(opts Options) (*mapping.IndexMappingImpl, error) {
	m := bleve.NewIndexMapping()
	if err := m.AddCustomAnalyzer(AnalyzerName, definition(opts)); err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}
	m.DefaultAnalyzer = AnalyzerName
	return m, nil
}

// Analyzer turns text into normalized terms.
type Analyzer struct {
	analyze func([]byte) analysis.TokenStream
}

// New builds a standalone analyzer.
func New(opts Options) (*Analyzer, error) {
	m, err := NewMapping(opts)
	if err != nil {
		return nil, err
	}
	a := m.AnalyzerNamed(AnalyzerName)
	if a == nil {
		return nil, fmt.Errorf("analyzer %q not found", AnalyzerName)
	}
	return &Analyzer{analyze: a.Analyze}, nil
}

// Terms returns the analyzed terms of text in order.
func (a *Analyzer) Terms(text string) []string {
	stream := a.analyze([]byte(text))
	terms := make([]string, 0, len(stream))
	for _, tok := range stream {
		if len(tok.Term) > 0 {
			terms = append(terms, string(tok.Term))
		}
	}
	return terms
}
