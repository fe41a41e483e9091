// ABOUTME: SQLite-backed Index that wraps the device, fact and embedding stores
// ABOUTME: Embeds fact content on write and ranks a device's vectors on query
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harper/homefacts/internal/models"
	"github.com/harper/homefacts/internal/storage"
)

// Storage is the SQLite implementation of storage.Index
type Storage struct {
	db         *DB
	embedder   storage.Embedder
	devices    *DeviceStore
	facts      *FactStore
	embeddings *EmbeddingStore
	mu         sync.RWMutex
}

var _ storage.Index = (*Storage)(nil)

// NewStorage opens the database at the default XDG path
func NewStorage(embedder storage.Embedder) (*Storage, error) {
	return NewStorageWithPath(DefaultDBPath(), embedder)
}

// NewStorageWithPath opens (or creates) the database at dbPath
func NewStorageWithPath(dbPath string, embedder storage.Embedder) (*Storage, error) {
	db, err := Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return NewIndex(db, embedder), nil
}

// NewStorageInMemory creates an in-memory storage (for testing)
func NewStorageInMemory(embedder storage.Embedder) (*Storage, error) {
	db, err := OpenInMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	return NewIndex(db, embedder), nil
}

// NewIndex builds a Storage over an open database. Query embeddings are cached.
func NewIndex(db *DB, embedder storage.Embedder) *Storage {
	if _, ok := embedder.(*storage.CachedEmbedder); !ok && embedder != nil {
		embedder = storage.NewCachedEmbedder(embedder, 0)
	}
	return &Storage{
		db:         db,
		embedder:   embedder,
		devices:    NewDeviceStore(db),
		facts:      NewFactStore(db),
		embeddings: NewEmbeddingStore(db),
	}
}

// DB exposes the underlying database
func (s *Storage) DB() *DB {
	return s.db
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// GetOrCreateCollection returns the device collection, creating it if needed
func (s *Storage) GetOrCreateCollection(ctx context.Context, deviceID, deviceName string) (*models.Device, error) {
	if strings.TrimSpace(deviceID) == "" {
		return nil, fmt.Errorf("device id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.devices.Ensure(ctx, deviceID, strings.TrimSpace(deviceName)); err != nil {
		return nil, fmt.Errorf("ensure device %s: %w", deviceID, err)
	}
	return s.devices.Get(ctx, deviceID)
}

// GetCollection returns the device collection or storage.ErrCollectionNotFound
func (s *Storage) GetCollection(ctx context.Context, deviceID string) (*models.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, err := s.devices.Get(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("%w: %s", storage.ErrCollectionNotFound, deviceID)
	}
	return d, nil
}

// ListCollections returns every device in creation order
func (s *Storage) ListCollections(ctx context.Context) ([]models.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.devices.List(ctx)
}

// Count returns the number of facts stored for a device
func (s *Storage) Count(ctx context.Context, deviceID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.facts.Count(ctx, deviceID)
}

// Upsert embeds the fact content and writes fact and vector in one transaction.
// The device collection is created on first write.
func (s *Storage) Upsert(ctx context.Context, fact *models.Fact) error {
	if s.embedder == nil {
		return fmt.Errorf("no embedder configured")
	}
	if fact.DeviceID == "" {
		return fmt.Errorf("fact has no device id")
	}
	if fact.FactID == "" {
		fact.FactID = uuid.Must(uuid.NewV7()).String()
	}

	vector, err := storage.EmbedOne(ctx, s.embedder, fact.Content)
	if err != nil {
		return fmt.Errorf("embed fact %s: %w", fact.FactID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := NewDeviceStore(tx).Ensure(ctx, fact.DeviceID, ""); err != nil {
			return err
		}
		if err := NewFactStore(tx).Save(ctx, fact); err != nil {
			return err
		}
		return NewEmbeddingStore(tx).Save(ctx, &models.Embedding{
			FactID:    fact.FactID,
			DeviceID:  fact.DeviceID,
			Model:     s.embedder.Model(),
			Vector:    vector,
			CreatedAt: time.Now(),
		})
	})
}

// Delete removes a fact and its vector
func (s *Storage) Delete(ctx context.Context, deviceID, factID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed, err := s.facts.Delete(ctx, deviceID, factID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: %s/%s", storage.ErrFactNotFound, deviceID, factID)
	}
	return nil
}

// GetFact returns a fact or storage.ErrFactNotFound
func (s *Storage) GetFact(ctx context.Context, deviceID, factID string) (*models.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := s.facts.Get(ctx, deviceID, factID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("%w: %s/%s", storage.ErrFactNotFound, deviceID, factID)
	}
	return f, nil
}

// Facts lists a device's facts in insertion order
func (s *Storage) Facts(ctx context.Context, deviceID string, category models.Category) ([]models.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.facts.List(ctx, deviceID, category)
}

// Query ranks a device's facts by cosine distance to text
func (s *Storage) Query(ctx context.Context, deviceID, text string, category models.Category, limit int) ([]models.Hit, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("no embedder configured")
	}

	s.mu.RLock()
	records, err := s.embeddings.Records(ctx, deviceID, category)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []models.Hit{}, nil
	}

	query, err := storage.EmbedOne(ctx, s.embedder, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return storage.Rank(query, records, "", limit), nil
}
