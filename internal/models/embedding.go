// ABOUTME: Embedding models for vector storage and semantic search
// ABOUTME: Defines the stored vector record and the ranked hit returned by an index
package models

import "time"

// Embedding represents a stored embedding vector for one fact
type Embedding struct {
	FactID    string    `json:"fact_id"`
	DeviceID  string    `json:"device_id"`
	Model     string    `json:"model"`
	Vector    []float64 `json:"vector"`
	CreatedAt time.Time `json:"created_at"`
}

// Hit is one fact returned by a nearest-neighbour query, ordered by distance.
// Distance is 1 - cosine similarity, clamped to be non-negative.
type Hit struct {
	FactID   string            `json:"fact_id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Distance float64           `json:"distance"`
}
