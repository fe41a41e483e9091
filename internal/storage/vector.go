// ABOUTME: Brute-force vector ranking shared by every Index backend
// ABOUTME: Cosine distance, stable ordering, and an LRU query-embedding cache
package storage

import (
	"context"
	"fmt"
	"math"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/harper/homefacts/internal/models"
)

// Record is a fact together with its stored vector
type Record struct {
	Fact   models.Fact
	Vector []float64
}

// Rank orders records by cosine distance to query. Records whose category does not
// match are skipped. Ties keep input order.
func Rank(query []float64, records []Record, category models.Category, limit int) []models.Hit {
	hits := make([]models.Hit, 0, len(records))
	for i := range records {
		r := &records[i]
		if category != "" && r.Fact.Category != category {
			continue
		}
		hits = append(hits, models.Hit{
			FactID:   r.Fact.FactID,
			Content:  r.Fact.Content,
			Metadata: r.Fact.Metadata(),
			Distance: CosineDistance(query, r.Vector),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// CosineSimilarity calculates cosine similarity between two vectors
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// CosineDistance is 1 - cosine similarity, clamped at zero so rounding never
// produces a negative distance for identical vectors.
func CosineDistance(a, b []float64) float64 {
	d := 1 - CosineSimilarity(a, b)
	if d < 0 {
		return 0
	}
	return d
}

// EmbedOne embeds a single text.
func EmbedOne(ctx context.Context, e Embedder, text string) ([]float64, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}
	return vectors[0], nil
}

// CachedEmbedder memoizes embeddings by text. Ranking embeds the same clue once per
// device, so the cache turns N lookups into one provider call.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float64]
}

// NewCachedEmbedder wraps e with an LRU cache of at most maxSize entries.
func NewCachedEmbedder(e Embedder, maxSize int) *CachedEmbedder {
	if maxSize <= 0 {
		maxSize = 512
	}
	// New only fails for a non-positive size
	cache, _ := lru.New[string, []float64](maxSize)
	return &CachedEmbedder{inner: e, cache: cache}
}

// Model returns the wrapped embedder's model id
func (c *CachedEmbedder) Model() string {
	return c.inner.Model()
}

// Len reports how many texts are cached
func (c *CachedEmbedder) Len() int {
	return c.cache.Len()
}

// Embed returns cached vectors where present and fetches the rest in one call.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	var missing []string
	var missingIdx []int

	for i, t := range texts {
		if v, ok := c.cache.Get(t); ok {
			out[i] = v
		} else {
			missing = append(missing, t)
			missingIdx = append(missingIdx, i)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := c.inner.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missing) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(missing))
	}

	for j, v := range vectors {
		out[missingIdx[j]] = v
		c.cache.Add(missing[j], v)
	}
	return out, nil
}
