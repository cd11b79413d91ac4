package retriever

import (
	"strings"
	"time"
	"unicode/utf8"
)

// ApplyRerank adds the configured boosts to each score in place.
func ApplyRerank(results []Result, query string, cfg RerankConfig, now time.Time) {
	terms := uniqueTerms(strings.ToLower(query))

	for i := range results {
		doc := results[i].Document
		content := strings.ToLower(doc.Content)
		var boost float64

		for _, term := range terms {
			if strings.Contains(content, term) {
				boost += cfg.TermBoost
			}
		}

		n := utf8.RuneCountInString(doc.Content)
		if n >= cfg.IdealMinLength && n <= cfg.IdealMaxLength {
			boost += cfg.LengthBoost
		}

		if !doc.Timestamp.IsZero() {
			age := now.Sub(doc.Timestamp)
			if age >= 0 && age <= cfg.RecencyWindow {
				boost += cfg.RecencyBoost
			}
		}

		if boost != 0 {
			results[i].SetMeta("rerank_boost", boost)
			results[i].Score += boost
		}
	}
}

func uniqueTerms(s string) []string {
	fields := strings.Fields(s)
	seen := make(map[string]struct{}, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
