// ABOUTME: Tests for the Charm KV Index using an in-memory Store
// ABOUTME: Covers ordering, naming, upsert semantics, querying and copying between backends
package charm

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/harper/homefacts/internal/models"
	"github.com/harper/homefacts/internal/storage"
)

// memStore is a map-backed Store. Keys come back unordered like the real KV.
type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memStore) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memStore) ListKeys(prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	// reverse order so the index cannot rely on key order
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return keys, nil
}

// letterEmbedder counts letters a-z
type letterEmbedder struct{}

func (letterEmbedder) Model() string { return "letters" }

func (letterEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v := make([]float64, 26)
		for _, r := range strings.ToLower(t) {
			if r >= 'a' && r <= 'z' {
				v[r-'a']++
			}
		}
		out[i] = v
	}
	return out, nil
}

func newTestIndex() *Index {
	return NewIndex(newMemStore(), letterEmbedder{})
}

func TestKeys(t *testing.T) {
	if got := FactKey("lamp", "f1"); got != "fact:lamp:f1" {
		t.Errorf("FactKey = %s", got)
	}
	if got := DeviceKey("lamp"); got != "device:lamp" {
		t.Errorf("DeviceKey = %s", got)
	}
}

func TestIndexCollectionsInCreationOrder(t *testing.T) {
	x := newTestIndex()
	ctx := context.Background()

	for _, id := range []string{"zeta", "alpha", "mid"} {
		if _, err := x.GetOrCreateCollection(ctx, id, ""); err != nil {
			t.Fatal(err)
		}
	}
	devices, err := x.ListCollections(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, d := range devices {
		ids = append(ids, d.DeviceID)
	}
	if strings.Join(ids, ",") != "zeta,alpha,mid" {
		t.Errorf("order = %v", ids)
	}
}

func TestIndexCorruptSequence(t *testing.T) {
	store := newMemStore()
	x := NewIndex(store, letterEmbedder{})
	ctx := context.Background()

	if _, err := x.GetOrCreateCollection(ctx, "lamp", ""); err != nil {
		t.Fatal(err)
	}
	if err := store.Set(SeqKey(), []byte("not-a-number")); err != nil {
		t.Fatal(err)
	}

	// an existing device needs no new sequence number
	if _, err := x.GetOrCreateCollection(ctx, "lamp", ""); err != nil {
		t.Errorf("existing device err = %v", err)
	}
	_, err := x.GetOrCreateCollection(ctx, "fan", "")
	if err == nil || !strings.Contains(err.Error(), "corrupt sequence counter") {
		t.Fatalf("new device err = %v, want corrupt sequence counter", err)
	}
	if d, _ := x.getDevice("fan"); d != nil {
		t.Errorf("device created despite the bad counter: %+v", d)
	}
	err = x.Upsert(ctx, &models.Fact{DeviceID: "lamp", FactID: "f1", Content: "dims", Category: models.CategoryCapability})
	if err == nil || !strings.Contains(err.Error(), "corrupt sequence counter") {
		t.Errorf("new fact err = %v, want corrupt sequence counter", err)
	}
}

func TestIndexNaming(t *testing.T) {
	x := newTestIndex()
	ctx := context.Background()

	d, _ := x.GetOrCreateCollection(ctx, "lamp", "")
	if d.DeviceName != models.DefaultDeviceName {
		t.Errorf("DeviceName = %q", d.DeviceName)
	}
	d, _ = x.GetOrCreateCollection(ctx, "lamp", "Lamp")
	if d.DeviceName != "Lamp" {
		t.Errorf("DeviceName = %q, want Lamp", d.DeviceName)
	}
	d, _ = x.GetOrCreateCollection(ctx, "lamp", "Other")
	if d.DeviceName != "Lamp" {
		t.Errorf("DeviceName = %q, want Lamp kept", d.DeviceName)
	}

	if _, err := x.GetCollection(ctx, "nope"); !errors.Is(err, storage.ErrCollectionNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestIndexUpsertAndFacts(t *testing.T) {
	x := newTestIndex()
	ctx := context.Background()

	facts := []models.Fact{
		{FactID: "a", DeviceID: "lamp", Content: "bedroom", Category: models.CategoryLocatingClue},
		{FactID: "b", DeviceID: "lamp", Content: "dimmable", Category: models.CategoryCapability},
		{FactID: "c", DeviceID: "lamp", Content: "on", Category: models.CategoryState},
	}
	for i := range facts {
		if err := x.Upsert(ctx, &facts[i]); err != nil {
			t.Fatal(err)
		}
	}

	update := models.Fact{FactID: "a", DeviceID: "lamp", Content: "study", Category: models.CategoryOther}
	if err := x.Upsert(ctx, &update); err != nil {
		t.Fatal(err)
	}

	all, _ := x.Facts(ctx, "lamp", "")
	if len(all) != 3 || all[0].FactID != "a" || all[0].Content != "study" {
		t.Fatalf("all = %+v", all)
	}
	if all[0].Category != models.CategoryLocatingClue {
		t.Errorf("category changed to %s", all[0].Category)
	}

	n, _ := x.Count(ctx, "lamp")
	if n != 3 {
		t.Errorf("Count = %d", n)
	}

	if err := x.Delete(ctx, "lamp", "b"); err != nil {
		t.Fatal(err)
	}
	if err := x.Delete(ctx, "lamp", "b"); !errors.Is(err, storage.ErrFactNotFound) {
		t.Errorf("second delete err = %v", err)
	}
	if _, err := x.GetFact(ctx, "lamp", "b"); !errors.Is(err, storage.ErrFactNotFound) {
		t.Errorf("GetFact err = %v", err)
	}
}

func TestIndexPrefixCollision(t *testing.T) {
	x := newTestIndex()
	ctx := context.Background()

	a := models.Fact{FactID: "1", DeviceID: "lamp", Content: "on", Category: models.CategoryState}
	b := models.Fact{FactID: "2", DeviceID: "lamp:x", Content: "off", Category: models.CategoryState}
	_ = x.Upsert(ctx, &a)
	_ = x.Upsert(ctx, &b)

	facts, _ := x.Facts(ctx, "lamp", "")
	if len(facts) != 1 || facts[0].FactID != "1" {
		t.Errorf("facts = %+v", facts)
	}
}

func TestIndexQuery(t *testing.T) {
	x := newTestIndex()
	ctx := context.Background()

	for _, f := range []models.Fact{
		{FactID: "a", DeviceID: "lamp", Content: "kitchen", Category: models.CategoryLocatingClue},
		{FactID: "b", DeviceID: "lamp", Content: "bedroom", Category: models.CategoryLocatingClue},
		{FactID: "c", DeviceID: "lamp", Content: "bedroom", Category: models.CategoryState},
	} {
		f := f
		if err := x.Upsert(ctx, &f); err != nil {
			t.Fatal(err)
		}
	}

	hits, err := x.Query(ctx, "lamp", "bedroom", models.CategoryLocatingClue, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 || hits[0].FactID != "b" || hits[0].Distance > 1e-9 {
		t.Errorf("hits = %+v", hits)
	}

	hits, _ = x.Query(ctx, "missing", "bedroom", "", 3)
	if len(hits) != 0 {
		t.Errorf("missing device hits = %+v", hits)
	}
}

func TestCopyBetweenIndexes(t *testing.T) {
	src := newTestIndex()
	dst := newTestIndex()
	ctx := context.Background()

	_, _ = src.GetOrCreateCollection(ctx, "lamp", "Lamp")
	f := models.Fact{FactID: "a", DeviceID: "lamp", Content: "bedroom", Category: models.CategoryLocatingClue}
	_ = src.Upsert(ctx, &f)
	_, _ = src.GetOrCreateCollection(ctx, "fan", "")

	stats, err := storage.Copy(ctx, src, dst)
	if err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	if stats.Devices != 2 || stats.Facts != 1 {
		t.Errorf("stats = %+v", stats)
	}

	got, err := dst.GetFact(ctx, "lamp", "a")
	if err != nil || got.Content != "bedroom" {
		t.Errorf("copied fact = %+v, err = %v", got, err)
	}
	d, _ := dst.GetCollection(ctx, "lamp")
	if d.DeviceName != "Lamp" {
		t.Errorf("DeviceName = %q", d.DeviceName)
	}
}

// batchStore counts batches and the writes made outside any batch
type batchStore struct {
	*memStore
	batches   int
	depth     int
	unbatched int
}

func (b *batchStore) Batch(fn func() error) error {
	b.batches++
	b.depth++
	defer func() { b.depth-- }()
	return fn()
}

func (b *batchStore) Set(key string, value []byte) error {
	if b.depth == 0 {
		b.unbatched++
	}
	return b.memStore.Set(key, value)
}

func TestIndexBatchesWrites(t *testing.T) {
	store := &batchStore{memStore: newMemStore()}
	x := NewIndex(store, letterEmbedder{})
	ctx := context.Background()

	if _, err := x.GetOrCreateCollection(ctx, "lamp", "bedside lamp"); err != nil {
		t.Fatal(err)
	}
	if err := x.Upsert(ctx, &models.Fact{DeviceID: "lamp", Content: "near the bed", Category: models.CategoryLocatingClue}); err != nil {
		t.Fatal(err)
	}
	if store.batches != 2 {
		t.Errorf("batches = %d, want 2", store.batches)
	}
	if store.unbatched != 0 {
		t.Errorf("%d writes happened outside a batch", store.unbatched)
	}
}
