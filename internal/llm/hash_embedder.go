// ABOUTME: Offline bag-of-words embedder using hashed token counts
// ABOUTME: Deterministic vectors for tests and for running without an API key
package llm

import (
	"context"
	"hash/fnv"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// DefaultHashDim is the vector width of the hash embedder
const DefaultHashDim = 1024

// stopwords carry no locating signal
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "in": {}, "on": {}, "at": {}, "of": {}, "to": {},
	"is": {}, "it": {}, "its": {}, "and": {}, "or": {}, "by": {}, "for": {}, "with": {},
	"this": {}, "that": {}, "my": {}, "our": {}, "be": {}, "was": {}, "are": {},
}

// HashEmbedder maps each non-stopword token to a bucket via FNV-1a and L2-normalizes.
// Texts sharing the same content words get distance 0; disjoint texts get 1.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder creates a hash embedder; dim <= 0 uses DefaultHashDim
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = DefaultHashDim
	}
	return &HashEmbedder{dim: dim}
}

// Model identifies the embedder and its width
func (h *HashEmbedder) Model() string {
	return "hash-bow-" + strconv.Itoa(h.dim)
}

// Embed never fails
func (h *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *HashEmbedder) vector(text string) []float64 {
	v := make([]float64, h.dim)
	for _, tok := range Tokenize(text) {
		f := fnv.New64a()
		_, _ = f.Write([]byte(tok))
		v[f.Sum64()%uint64(h.dim)]++
	}

	var norm float64
	for _, x := range v {
		norm += x * x
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] /= norm
	}
	return v
}

// Tokenize lowercases text, splits on anything that is not a letter or digit,
// and drops stopwords.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if _, stop := stopwords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}
