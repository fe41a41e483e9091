// ABOUTME: Unit tests for vector ranking helpers
// ABOUTME: Tests cosine distance, category filtering, stable ordering, and the embed cache
package storage

import (
	"context"
	"math"
	"testing"

	"github.com/harper/homefacts/internal/models"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        []float64
		b        []float64
		expected float64
		delta    float64
	}{
		{
			name:     "identical vectors",
			a:        []float64{1.0, 0.0, 0.0},
			b:        []float64{1.0, 0.0, 0.0},
			expected: 1.0,
			delta:    0.001,
		},
		{
			name:     "orthogonal vectors",
			a:        []float64{1.0, 0.0, 0.0},
			b:        []float64{0.0, 1.0, 0.0},
			expected: 0.0,
			delta:    0.001,
		},
		{
			name:     "opposite vectors",
			a:        []float64{1.0, 0.0, 0.0},
			b:        []float64{-1.0, 0.0, 0.0},
			expected: -1.0,
			delta:    0.001,
		},
		{
			name:     "length mismatch",
			a:        []float64{1.0, 0.0},
			b:        []float64{1.0, 0.0, 0.0},
			expected: 0.0,
			delta:    0.001,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CosineSimilarity(tt.a, tt.b)
			if math.Abs(result-tt.expected) > tt.delta {
				t.Errorf("CosineSimilarity(%v, %v) = %.4f, expected %.4f", tt.a, tt.b, result, tt.expected)
			}
		})
	}
}

func TestCosineDistance_NeverNegative(t *testing.T) {
	v := []float64{0.1, 0.7, 0.2, 0.3333333}
	if d := CosineDistance(v, v); d < 0 || d > 1e-9 {
		t.Errorf("distance of a vector to itself = %v, want ~0 and >= 0", d)
	}
	if d := CosineDistance([]float64{1, 0}, []float64{0, 1}); math.Abs(d-1) > 1e-9 {
		t.Errorf("orthogonal distance = %v, want 1", d)
	}
}

func TestRank(t *testing.T) {
	records := []Record{
		{Fact: models.Fact{FactID: "far", Category: models.CategoryLocatingClue}, Vector: []float64{0, 1, 0}},
		{Fact: models.Fact{FactID: "near", Category: models.CategoryLocatingClue}, Vector: []float64{0.9, 0.1, 0}},
		{Fact: models.Fact{FactID: "cap", Category: models.CategoryCapability}, Vector: []float64{1, 0, 0}},
		{Fact: models.Fact{FactID: "exact", Category: models.CategoryLocatingClue}, Vector: []float64{1, 0, 0}},
	}
	query := []float64{1, 0, 0}

	hits := Rank(query, records, models.CategoryLocatingClue, 0)
	if len(hits) != 3 {
		t.Fatalf("got %d hits, want 3 (capability filtered out)", len(hits))
	}
	want := []string{"exact", "near", "far"}
	for i, id := range want {
		if hits[i].FactID != id {
			t.Errorf("hits[%d] = %s, want %s", i, hits[i].FactID, id)
		}
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Distance < hits[i-1].Distance {
			t.Errorf("hits not ascending at %d", i)
		}
	}

	all := Rank(query, records, "", 2)
	if len(all) != 2 {
		t.Fatalf("limit 2 returned %d hits", len(all))
	}
	// cap and exact tie at distance 0; input order wins
	if all[0].FactID != "cap" || all[1].FactID != "exact" {
		t.Errorf("tie order = [%s %s], want [cap exact]", all[0].FactID, all[1].FactID)
	}
	if all[0].Metadata["category"] != string(models.CategoryCapability) {
		t.Errorf("metadata category = %q", all[0].Metadata["category"])
	}
}

type countingEmbedder struct {
	calls int
	texts int
}

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	c.calls++
	c.texts += len(texts)
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = []float64{float64(len(t)), 1}
	}
	return out, nil
}

func (c *countingEmbedder) Model() string { return "counting" }

func TestCachedEmbedder(t *testing.T) {
	inner := &countingEmbedder{}
	cached := NewCachedEmbedder(inner, 2)
	ctx := context.Background()

	if _, err := EmbedOne(ctx, cached, "bedroom"); err != nil {
		t.Fatal(err)
	}
	if _, err := EmbedOne(ctx, cached, "bedroom"); err != nil {
		t.Fatal(err)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1 after repeated text", inner.calls)
	}

	vectors, err := cached.Embed(ctx, []string{"bedroom", "kitchen", "hall"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vectors) != 3 || vectors[1][0] != float64(len("kitchen")) {
		t.Errorf("unexpected vectors %v", vectors)
	}
	if inner.texts != 3 {
		t.Errorf("inner embedded %d texts, want 3 (bedroom cached)", inner.texts)
	}

	// capacity 2: bedroom was the least recently used when hall arrived
	if _, err := EmbedOne(ctx, cached, "bedroom"); err != nil {
		t.Fatal(err)
	}
	if inner.texts != 4 {
		t.Errorf("inner embedded %d texts, want 4 after eviction", inner.texts)
	}
	if cached.Model() != "counting" {
		t.Errorf("Model() = %q", cached.Model())
	}
}

func TestCachedEmbedderKeepsRecentlyUsed(t *testing.T) {
	inner := &countingEmbedder{}
	cached := NewCachedEmbedder(inner, 2)
	ctx := context.Background()

	for _, text := range []string{"bedroom", "kitchen", "bedroom", "hall"} {
		if _, err := EmbedOne(ctx, cached, text); err != nil {
			t.Fatal(err)
		}
	}
	// reading bedroom made kitchen the eviction victim
	if inner.texts != 3 || cached.Len() != 2 {
		t.Fatalf("inner embedded %d texts, cache holds %d", inner.texts, cached.Len())
	}
	if _, err := EmbedOne(ctx, cached, "bedroom"); err != nil {
		t.Fatal(err)
	}
	if inner.texts != 3 {
		t.Errorf("bedroom should still be cached, inner embedded %d texts", inner.texts)
	}
	if _, err := EmbedOne(ctx, cached, "kitchen"); err != nil {
		t.Fatal(err)
	}
	if inner.texts != 4 {
		t.Errorf("kitchen should have been evicted, inner embedded %d texts", inner.texts)
	}
}
