// ABOUTME: Charm KV implementation of storage.Index
// ABOUTME: Stores each fact with its vector as JSON and ranks a device by brute force
package charm

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harper/homefacts/internal/models"
	"github.com/harper/homefacts/internal/storage"
)

type deviceRecord struct {
	DeviceID   string    `json:"device_id"`
	DeviceName string    `json:"device_name"`
	Seq        int64     `json:"seq"`
	CreatedAt  time.Time `json:"created_at"`
}

type factRecord struct {
	Fact   models.Fact `json:"fact"`
	Seq    int64       `json:"seq"`
	Model  string      `json:"model"`
	Vector []float64   `json:"vector"`
}

// Index is the KV-backed storage.Index
type Index struct {
	store    Store
	embedder storage.Embedder
	mu       sync.RWMutex
}

var _ storage.Index = (*Index)(nil)

// NewIndex builds an Index over store. Query embeddings are cached.
func NewIndex(store Store, embedder storage.Embedder) *Index {
	if _, ok := embedder.(*storage.CachedEmbedder); !ok && embedder != nil {
		embedder = storage.NewCachedEmbedder(embedder, 0)
	}
	return &Index{store: store, embedder: embedder}
}

// Close closes the underlying store when it supports it
func (x *Index) Close() error {
	if c, ok := x.store.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// batch groups the writes of one operation so a syncing store pushes them together
func (x *Index) batch(fn func() error) error {
	if b, ok := x.store.(Batcher); ok {
		return b.Batch(fn)
	}
	return fn()
}

func (x *Index) nextSeq() (int64, error) {
	raw, err := x.store.Get(SeqKey())
	if err != nil {
		return 0, err
	}
	var n int64
	if raw != nil {
		if n, err = strconv.ParseInt(string(raw), 10, 64); err != nil {
			return 0, fmt.Errorf("corrupt sequence counter %q: %w", raw, err)
		}
	}
	n++
	if err := x.store.Set(SeqKey(), []byte(strconv.FormatInt(n, 10))); err != nil {
		return 0, err
	}
	return n, nil
}

func (x *Index) getDevice(deviceID string) (*deviceRecord, error) {
	var d deviceRecord
	found, err := GetJSON(x.store, DeviceKey(deviceID), &d)
	if err != nil || !found {
		return nil, err
	}
	return &d, nil
}

// ensureDevice creates or renames a device; callers hold x.mu.
func (x *Index) ensureDevice(deviceID, deviceName string) (*deviceRecord, error) {
	d, err := x.getDevice(deviceID)
	if err != nil {
		return nil, err
	}
	if d != nil {
		if deviceName != "" && deviceName != models.DefaultDeviceName && d.DeviceName == models.DefaultDeviceName {
			d.DeviceName = deviceName
			if err := SetJSON(x.store, DeviceKey(deviceID), d); err != nil {
				return nil, err
			}
		}
		return d, nil
	}

	seq, err := x.nextSeq()
	if err != nil {
		return nil, err
	}
	if deviceName == "" {
		deviceName = models.DefaultDeviceName
	}
	d = &deviceRecord{DeviceID: deviceID, DeviceName: deviceName, Seq: seq, CreatedAt: time.Now().UTC()}
	if err := SetJSON(x.store, DeviceKey(deviceID), d); err != nil {
		return nil, err
	}
	return d, nil
}

// factRecords loads a device's facts sorted by insertion order
func (x *Index) factRecords(deviceID string) ([]factRecord, error) {
	keys, err := x.store.ListKeys(DeviceFactPrefix(deviceID))
	if err != nil {
		return nil, err
	}
	records := make([]factRecord, 0, len(keys))
	for _, k := range keys {
		var r factRecord
		found, err := GetJSON(x.store, k, &r)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", k, err)
		}
		// a device id containing ':' can share another device's prefix
		if !found || r.Fact.DeviceID != deviceID {
			continue
		}
		records = append(records, r)
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Seq < records[j].Seq })
	return records, nil
}

func (x *Index) toDevice(d *deviceRecord) (*models.Device, error) {
	records, err := x.factRecords(d.DeviceID)
	if err != nil {
		return nil, err
	}
	return &models.Device{
		DeviceID:   d.DeviceID,
		DeviceName: d.DeviceName,
		FactCount:  len(records),
		CreatedAt:  d.CreatedAt,
	}, nil
}

// GetOrCreateCollection returns the device collection, creating it if needed
func (x *Index) GetOrCreateCollection(_ context.Context, deviceID, deviceName string) (*models.Device, error) {
	if strings.TrimSpace(deviceID) == "" {
		return nil, fmt.Errorf("device id is required")
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	var d *deviceRecord
	err := x.batch(func() error {
		var err error
		d, err = x.ensureDevice(deviceID, strings.TrimSpace(deviceName))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ensure device %s: %w", deviceID, err)
	}
	return x.toDevice(d)
}

// GetCollection returns the device collection or storage.ErrCollectionNotFound
func (x *Index) GetCollection(_ context.Context, deviceID string) (*models.Device, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	d, err := x.getDevice(deviceID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("%w: %s", storage.ErrCollectionNotFound, deviceID)
	}
	return x.toDevice(d)
}

// ListCollections returns every device in creation order
func (x *Index) ListCollections(_ context.Context) ([]models.Device, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	keys, err := x.store.ListKeys(DevicePrefix)
	if err != nil {
		return nil, err
	}
	records := make([]deviceRecord, 0, len(keys))
	for _, k := range keys {
		var d deviceRecord
		found, err := GetJSON(x.store, k, &d)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", k, err)
		}
		if found {
			records = append(records, d)
		}
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Seq < records[j].Seq })

	devices := make([]models.Device, 0, len(records))
	for i := range records {
		d, err := x.toDevice(&records[i])
		if err != nil {
			return nil, err
		}
		devices = append(devices, *d)
	}
	return devices, nil
}

// Count returns the number of facts stored for a device
func (x *Index) Count(_ context.Context, deviceID string) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	records, err := x.factRecords(deviceID)
	return len(records), err
}

// Upsert embeds the fact and stores it. An existing fact keeps its category,
// source, extra, created_at and position; content and updated_at are replaced.
func (x *Index) Upsert(ctx context.Context, fact *models.Fact) error {
	if x.embedder == nil {
		return fmt.Errorf("no embedder configured")
	}
	if fact.DeviceID == "" {
		return fmt.Errorf("fact has no device id")
	}
	if fact.FactID == "" {
		fact.FactID = uuid.Must(uuid.NewV7()).String()
	}
	now := time.Now().UTC()
	if fact.CreatedAt.IsZero() {
		fact.CreatedAt = now
	}
	if fact.UpdatedAt.IsZero() {
		fact.UpdatedAt = fact.CreatedAt
	}

	vector, err := storage.EmbedOne(ctx, x.embedder, fact.Content)
	if err != nil {
		return fmt.Errorf("embed fact %s: %w", fact.FactID, err)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	return x.batch(func() error {
		if _, err := x.ensureDevice(fact.DeviceID, ""); err != nil {
			return err
		}

		key := FactKey(fact.DeviceID, fact.FactID)
		var existing factRecord
		found, err := GetJSON(x.store, key, &existing)
		if err != nil {
			return err
		}

		record := factRecord{Fact: *fact, Model: x.embedder.Model(), Vector: vector}
		if found {
			record.Fact = existing.Fact
			record.Fact.Content = fact.Content
			record.Fact.UpdatedAt = fact.UpdatedAt
			record.Seq = existing.Seq
		} else {
			if record.Seq, err = x.nextSeq(); err != nil {
				return err
			}
		}
		return SetJSON(x.store, key, record)
	})
}

// Delete removes a fact
func (x *Index) Delete(_ context.Context, deviceID, factID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	key := FactKey(deviceID, factID)
	raw, err := x.store.Get(key)
	if err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("%w: %s/%s", storage.ErrFactNotFound, deviceID, factID)
	}
	return x.store.Delete(key)
}

// GetFact returns a fact or storage.ErrFactNotFound
func (x *Index) GetFact(_ context.Context, deviceID, factID string) (*models.Fact, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var r factRecord
	found, err := GetJSON(x.store, FactKey(deviceID, factID), &r)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s/%s", storage.ErrFactNotFound, deviceID, factID)
	}
	return &r.Fact, nil
}

// Facts lists a device's facts in insertion order
func (x *Index) Facts(_ context.Context, deviceID string, category models.Category) ([]models.Fact, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	records, err := x.factRecords(deviceID)
	if err != nil {
		return nil, err
	}
	facts := make([]models.Fact, 0, len(records))
	for _, r := range records {
		if category == "" || r.Fact.Category == category {
			facts = append(facts, r.Fact)
		}
	}
	return facts, nil
}

// Query ranks a device's facts by cosine distance to text
func (x *Index) Query(ctx context.Context, deviceID, text string, category models.Category, limit int) ([]models.Hit, error) {
	if x.embedder == nil {
		return nil, fmt.Errorf("no embedder configured")
	}

	x.mu.RLock()
	records, err := x.factRecords(deviceID)
	x.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	candidates := make([]storage.Record, 0, len(records))
	for _, r := range records {
		candidates = append(candidates, storage.Record{Fact: r.Fact, Vector: r.Vector})
	}
	if len(candidates) == 0 {
		return []models.Hit{}, nil
	}

	query, err := storage.EmbedOne(ctx, x.embedder, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return storage.Rank(query, candidates, category, limit), nil
}
