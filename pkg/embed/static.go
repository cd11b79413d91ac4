package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/milad-o/agenticflow-sub002/internal/tokenize"
)

// DefaultStaticDimensions is the vector size of StaticProvider.
const DefaultStaticDimensions = 256

// Term and character n-gram weights.
const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

// englishStopWords are dropped before hashing terms.
var englishStopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "in": {}, "is": {}, "it": {}, "of": {},
	"on": {}, "or": {}, "that": {}, "the": {}, "this": {}, "to": {},
	"was": {}, "with": {},
}

// StaticProvider embeds text by hashing terms and character trigrams into
// a fixed number of buckets. It needs no network or model and is
// deterministic, so similar wording yields similar vectors.
type StaticProvider struct {
	dims int
}

// NewStaticProvider creates a hash embedder. dims <= 0 uses
// DefaultStaticDimensions.
func NewStaticProvider(dims int) *StaticProvider {
	if dims <= 0 {
		dims = DefaultStaticDimensions
	}
	return &StaticProvider{dims: dims}
}

// Embed returns a unit vector for text. Blank text yields the zero vector.
func (p *StaticProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vector := make([]float32, p.dims)
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return vector, nil
	}

	for _, token := range tokenize.Identifiers(trimmed) {
		if _, stop := englishStopWords[token]; stop {
			continue
		}
		vector[hashToIndex(token, p.dims)] += tokenWeight
	}

	for _, ngram := range charNgrams(trimmed, ngramSize) {
		vector[hashToIndex(ngram, p.dims)] += ngramWeight
	}

	return Normalize(vector), nil
}

// EmbedBatch embeds each text in order.
func (p *StaticProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := p.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// ModelName returns the model identifier.
func (p *StaticProvider) ModelName() string {
	return fmt.Sprintf("static-hash-%d", p.dims)
}

// Available is always true.
func (p *StaticProvider) Available(context.Context) bool {
	return true
}

// Dimensions returns the vector size.
func (p *StaticProvider) Dimensions() int {
	return p.dims
}

// charNgrams returns the sliding n-rune windows over the letters and digits
// of text.
func charNgrams(text string, n int) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	runes := []rune(b.String())
	if len(runes) < n {
		return []string{}
	}

	ngrams := make([]string, 0, len(runes)-n+1)
	for i := 0; i+n <= len(runes); i++ {
		ngrams = append(ngrams, string(runes[i:i+n]))
	}
	return ngrams
}

func hashToIndex(s string, dims int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % uint32(dims))
}
