// ABOUTME: Fact storage operations for SQLite
// ABOUTME: Insert-or-update by (device, fact id) and category-filtered listing
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harper/homefacts/internal/models"
)

// FactStore handles fact persistence
type FactStore struct {
	q querier
}

// NewFactStore creates a new FactStore
func NewFactStore(q querier) *FactStore {
	return &FactStore{q: q}
}

// Save inserts a fact or, when the id already exists in the device, replaces its
// content and updated_at. Category, source and created_at never change.
func (s *FactStore) Save(ctx context.Context, fact *models.Fact) error {
	now := time.Now()
	if fact.CreatedAt.IsZero() {
		fact.CreatedAt = now
	}
	if fact.UpdatedAt.IsZero() {
		fact.UpdatedAt = fact.CreatedAt
	}

	extra, err := extraJSON(fact.Extra)
	if err != nil {
		return err
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO facts (id, device_id, content, category, source, extra, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id, id) DO UPDATE SET
			content = excluded.content,
			updated_at = excluded.updated_at
	`, fact.FactID, fact.DeviceID, fact.Content, string(fact.Category), nullString(fact.Source),
		extra, formatTime(fact.CreatedAt), formatTime(fact.UpdatedAt))
	return err
}

// Get retrieves a fact by device and id. Returns nil when absent.
func (s *FactStore) Get(ctx context.Context, deviceID, factID string) (*models.Fact, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, device_id, content, category, source, extra, created_at, updated_at
		FROM facts
		WHERE device_id = ? AND id = ?
	`, deviceID, factID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	facts, err := scanFacts(rows)
	if err != nil {
		return nil, err
	}
	if len(facts) == 0 {
		return nil, nil
	}
	return &facts[0], nil
}

// List returns a device's facts in insertion order. An empty category means all.
func (s *FactStore) List(ctx context.Context, deviceID string, category models.Category) ([]models.Fact, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, device_id, content, category, source, extra, created_at, updated_at
		FROM facts
		WHERE device_id = ? AND (? = '' OR category = ?)
		ORDER BY seq ASC
	`, deviceID, string(category), string(category))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanFacts(rows)
}

// Delete removes a fact. Reports whether a row was removed.
func (s *FactStore) Delete(ctx context.Context, deviceID, factID string) (bool, error) {
	res, err := s.q.ExecContext(ctx, "DELETE FROM facts WHERE device_id = ? AND id = ?", deviceID, factID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Count returns the number of facts in a device
func (s *FactStore) Count(ctx context.Context, deviceID string) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM facts WHERE device_id = ?", deviceID).Scan(&n)
	return n, err
}

func scanFacts(rows *sql.Rows) ([]models.Fact, error) {
	var facts []models.Fact
	for rows.Next() {
		fact, err := scanFact(rows, nil)
		if err != nil {
			return nil, err
		}
		facts = append(facts, *fact)
	}
	return facts, rows.Err()
}

// scanFact reads the eight fact columns followed by any extra destinations.
func scanFact(rows *sql.Rows, tail []any) (*models.Fact, error) {
	var (
		fact                 models.Fact
		category             string
		source, extra        sql.NullString
		createdAt, updatedAt string
	)
	dest := append([]any{&fact.FactID, &fact.DeviceID, &fact.Content, &category,
		&source, &extra, &createdAt, &updatedAt}, tail...)
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}

	fact.Category = models.Category(category)
	if source.Valid {
		fact.Source = source.String
	}
	if extra.Valid && extra.String != "" {
		if err := json.Unmarshal([]byte(extra.String), &fact.Extra); err != nil {
			fact.Extra = nil
		}
	}
	fact.CreatedAt = parseTime(createdAt)
	fact.UpdatedAt = parseTime(updatedAt)
	return &fact, nil
}

func extraJSON(extra map[string]string) (sql.NullString, error) {
	if len(extra) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(extra)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode fact extra: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// nullString converts an empty string to sql.NullString
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
