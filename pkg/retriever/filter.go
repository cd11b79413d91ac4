package retriever

import (
	"reflect"
	"strings"
)

// ApplyFilters returns the results whose documents pass the metadata and
// content filters in cfg. The input slice is reused.
func ApplyFilters(results []Result, cfg Config) []Result {
	if len(cfg.MetadataFilters) == 0 && len(cfg.ContentFilters) == 0 {
		return results
	}

	kept := results[:0]
	for _, r := range results {
		if MatchesMetadata(r.Document, cfg.MetadataFilters) && MatchesContent(r.Document, cfg.ContentFilters) {
			kept = append(kept, r)
		}
	}
	return kept
}

// MatchesMetadata reports whether every filter key is satisfied. A scalar
// filter value requires equality; a list filter value requires the
// document value to be one of its elements.
func MatchesMetadata(doc Document, filters map[string]any) bool {
	for key, want := range filters {
		got, ok := doc.Metadata[key]
		if !ok {
			return false
		}
		if !metadataValueMatches(got, want) {
			return false
		}
	}
	return true
}

func metadataValueMatches(got, want any) bool {
	rv := reflect.ValueOf(want)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		for i := 0; i < rv.Len(); i++ {
			if valuesEqual(got, rv.Index(i).Interface()) {
				return true
			}
		}
		return false
	}
	return valuesEqual(got, want)
}

// valuesEqual compares loosely so that values decoded from YAML or JSON
// (int vs float64) still match.
func valuesEqual(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	fa, aok := toFloat(a)
	fb, bok := toFloat(b)
	if aok && bok {
		return fa == fb
	}
	return false
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}

// MatchesContent reports whether content contains every filter substring,
// ignoring case.
func MatchesContent(doc Document, filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	content := strings.ToLower(doc.Content)
	for _, f := range filters {
		if !strings.Contains(content, strings.ToLower(f)) {
			return false
		}
	}
	return true
}
