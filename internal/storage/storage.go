// ABOUTME: Index interface shared by the SQLite and Charm backends
// ABOUTME: One collection per device; facts are embedded on write and ranked by distance on query
package storage

import (
	"context"
	"errors"

	"github.com/harper/homefacts/internal/models"
)

var (
	// ErrCollectionNotFound is returned when a device has no collection.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrFactNotFound is returned when a fact id is unknown within a collection.
	ErrFactNotFound = errors.New("fact not found")
)

// Embedder turns text into vectors. Implementations live in internal/llm.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	Model() string
}

// Index is the semantic store the resolution engine reads and writes.
// Collections are listed in creation order.
type Index interface {
	// GetOrCreateCollection returns the existing collection for deviceID or creates it.
	// The name of an existing collection is only replaced when deviceName is non-empty
	// and the stored name is the default placeholder.
	GetOrCreateCollection(ctx context.Context, deviceID, deviceName string) (*models.Device, error)
	GetCollection(ctx context.Context, deviceID string) (*models.Device, error)
	ListCollections(ctx context.Context) ([]models.Device, error)
	Count(ctx context.Context, deviceID string) (int, error)

	// Upsert embeds fact.Content and stores the fact under fact.DeviceID.
	Upsert(ctx context.Context, fact *models.Fact) error
	Delete(ctx context.Context, deviceID, factID string) error
	GetFact(ctx context.Context, deviceID, factID string) (*models.Fact, error)
	// Facts lists a collection's facts in insertion order. An empty category means all.
	Facts(ctx context.Context, deviceID string, category models.Category) ([]models.Fact, error)

	// Query ranks facts in one collection by distance to text, ascending.
	// An empty category means no filter; limit <= 0 means every matching fact.
	Query(ctx context.Context, deviceID, text string, category models.Category, limit int) ([]models.Hit, error)

	Close() error
}
