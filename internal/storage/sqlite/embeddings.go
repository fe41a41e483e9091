// ABOUTME: Embedding storage operations for SQLite
// ABOUTME: Stores one vector per fact as a little-endian float64 BLOB
package sqlite

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/harper/homefacts/internal/models"
	"github.com/harper/homefacts/internal/storage"
)

// EmbeddingStore handles embedding persistence
type EmbeddingStore struct {
	q querier
}

// NewEmbeddingStore creates a new EmbeddingStore
func NewEmbeddingStore(q querier) *EmbeddingStore {
	return &EmbeddingStore{q: q}
}

// Save stores or replaces the vector for a fact
func (s *EmbeddingStore) Save(ctx context.Context, emb *models.Embedding) error {
	if len(emb.Vector) == 0 {
		return fmt.Errorf("empty embedding for fact %s", emb.FactID)
	}
	createdAt := emb.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO embeddings (device_id, fact_id, model, vector, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(device_id, fact_id) DO UPDATE SET
			model = excluded.model,
			vector = excluded.vector,
			created_at = excluded.created_at
	`, emb.DeviceID, emb.FactID, emb.Model, vectorToBlob(emb.Vector), formatTime(createdAt))
	return err
}

// Records returns a device's facts joined with their vectors, in insertion order.
// Facts without a stored vector are skipped.
func (s *EmbeddingStore) Records(ctx context.Context, deviceID string, category models.Category) ([]storage.Record, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT f.id, f.device_id, f.content, f.category, f.source, f.extra, f.created_at, f.updated_at, e.vector
		FROM facts f
		JOIN embeddings e ON e.device_id = f.device_id AND e.fact_id = f.id
		WHERE f.device_id = ? AND (? = '' OR f.category = ?)
		ORDER BY f.seq ASC
	`, deviceID, string(category), string(category))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []storage.Record
	for rows.Next() {
		var blob []byte
		fact, err := scanFact(rows, []any{&blob})
		if err != nil {
			return nil, err
		}
		records = append(records, storage.Record{Fact: *fact, Vector: blobToVector(blob)})
	}
	return records, rows.Err()
}

// vectorToBlob converts a float64 slice to binary blob
func vectorToBlob(vector []float64) []byte {
	blob := make([]byte, len(vector)*8)
	for i, v := range vector {
		binary.LittleEndian.PutUint64(blob[i*8:], math.Float64bits(v))
	}
	return blob
}

// blobToVector converts a binary blob to float64 slice
func blobToVector(blob []byte) []float64 {
	count := len(blob) / 8
	vector := make([]float64, count)
	for i := 0; i < count; i++ {
		bits := binary.LittleEndian.Uint64(blob[i*8:])
		vector[i] = math.Float64frombits(bits)
	}
	return vector
}
