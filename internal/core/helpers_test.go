// ABOUTME: Shared fixtures for engine tests
// ABOUTME: In-memory SQLite index with the deterministic hash embedder
package core

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/harper/homefacts/internal/llm"
	"github.com/harper/homefacts/internal/models"
	"github.com/harper/homefacts/internal/storage"
	"github.com/harper/homefacts/internal/storage/sqlite"
)

func newTestIndex(t *testing.T) storage.Index {
	t.Helper()
	idx, err := sqlite.NewStorageInMemory(llm.NewHashEmbedder(0))
	if err != nil {
		t.Fatalf("NewStorageInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func newTestEngine(t *testing.T) (*Engine, *Writer) {
	t.Helper()
	e := NewEngine(newTestIndex(t), Options{}, nil)
	return e, NewWriter(e)
}

func mustAdd(t *testing.T, w *Writer, deviceID, content string, c models.Category) *models.Fact {
	t.Helper()
	f, err := w.Add(context.Background(), deviceID, content, c)
	if err != nil {
		t.Fatalf("Add(%s, %q) error = %v", deviceID, content, err)
	}
	return f
}

func mustEnsure(t *testing.T, w *Writer, deviceID, name string) {
	t.Helper()
	if _, err := w.EnsureDevice(context.Background(), deviceID, name); err != nil {
		t.Fatalf("EnsureDevice(%s) error = %v", deviceID, err)
	}
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// failingIndex wraps an index and fails every Query
type failingIndex struct {
	storage.Index
}

var errBackend = errors.New("backend down")

func (f failingIndex) Query(context.Context, string, string, models.Category, int) ([]models.Hit, error) {
	return nil, errBackend
}
