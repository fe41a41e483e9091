// ABOUTME: Device collection storage operations for SQLite
// ABOUTME: Creates, names, and lists device collections in creation order
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/harper/homefacts/internal/models"
)

// querier is satisfied by *DB, *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DeviceStore handles device collection persistence
type DeviceStore struct {
	q querier
}

// NewDeviceStore creates a new DeviceStore
func NewDeviceStore(q querier) *DeviceStore {
	return &DeviceStore{q: q}
}

// Ensure creates the device row if missing. A default stored name is replaced by a
// non-empty name; any other stored name is kept.
func (s *DeviceStore) Ensure(ctx context.Context, deviceID, deviceName string) error {
	name := deviceName
	if name == "" {
		name = models.DefaultDeviceName
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO devices (id, name, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name
		WHERE devices.name = ? AND excluded.name != ?
	`, deviceID, name, formatTime(time.Now()), models.DefaultDeviceName, models.DefaultDeviceName)
	return err
}

// Get retrieves a device with its fact count. Returns nil when absent.
func (s *DeviceStore) Get(ctx context.Context, deviceID string) (*models.Device, error) {
	var (
		d         models.Device
		createdAt string
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT d.id, d.name, d.created_at,
			(SELECT COUNT(*) FROM facts f WHERE f.device_id = d.id)
		FROM devices d
		WHERE d.id = ?
	`, deviceID).Scan(&d.DeviceID, &d.DeviceName, &createdAt, &d.FactCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d.CreatedAt = parseTime(createdAt)
	return &d, nil
}

// List returns every device in creation order
func (s *DeviceStore) List(ctx context.Context) ([]models.Device, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT d.id, d.name, d.created_at,
			(SELECT COUNT(*) FROM facts f WHERE f.device_id = d.id)
		FROM devices d
		ORDER BY d.seq ASC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var devices []models.Device
	for rows.Next() {
		var (
			d         models.Device
			createdAt string
		)
		if err := rows.Scan(&d.DeviceID, &d.DeviceName, &createdAt, &d.FactCount); err != nil {
			return nil, err
		}
		d.CreatedAt = parseTime(createdAt)
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

// Delete removes a device and, by cascade, its facts and embeddings
func (s *DeviceStore) Delete(ctx context.Context, deviceID string) error {
	_, err := s.q.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", deviceID)
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
