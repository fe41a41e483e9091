// ABOUTME: FactWriter adds, updates and deletes facts in a device collection
// ABOUTME: Update and delete resolve approximate text to a fact id, then apply under a per-device lock
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harper/homefacts/internal/models"
	"github.com/harper/homefacts/internal/storage"
	"go.uber.org/zap"
)

// Candidate is the fact an approximate text resolved to
type Candidate struct {
	DeviceID string      `json:"device_id"`
	Fact     models.Fact `json:"fact"`
	Distance float64     `json:"distance"`
	// Scope is the category the winning search was limited to; empty when the
	// fact came from the search across every category.
	Scope models.Category `json:"scope,omitempty"`
}

// WriteOutcome is the user-facing result of a write. Applied is false when there
// was nothing to change; Message explains why.
type WriteOutcome struct {
	Op       models.OpKind `json:"op"`
	DeviceID string        `json:"device_id"`
	FactID   string        `json:"fact_id,omitempty"`
	Applied  bool          `json:"applied"`
	Message  string        `json:"message"`
	Before   string        `json:"before,omitempty"`
	After    string        `json:"after,omitempty"`
	Distance float64       `json:"distance,omitempty"`
}

// Writer mutates device collections. Writes to one device are serialized; writes
// to different devices run in parallel.
type Writer struct {
	engine *Engine
	locks  *keyedMutex
	now    func() time.Time
	newID  func() string
}

// NewWriter creates a writer over the engine's index
func NewWriter(engine *Engine) *Writer {
	return &Writer{
		engine: engine,
		locks:  newKeyedMutex(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return "fact_" + uuid.Must(uuid.NewV7()).String() },
	}
}

// EnsureDevice creates the device collection if absent. A non-empty name
// replaces the default placeholder.
func (w *Writer) EnsureDevice(ctx context.Context, deviceID, deviceName string) (*models.Device, error) {
	if strings.TrimSpace(deviceID) == "" {
		return nil, invalidf("device id is required")
	}
	d, err := w.engine.index.GetOrCreateCollection(ctx, deviceID, deviceName)
	if err != nil {
		return nil, indexErr("get or create collection", err)
	}
	return d, nil
}

// Add stores a new fact with a fresh id, creating the device if needed.
func (w *Writer) Add(ctx context.Context, deviceID, content string, category models.Category) (*models.Fact, error) {
	return w.AddFact(ctx, &models.Fact{DeviceID: deviceID, Content: content, Category: category})
}

// AddFact is Add with provenance. FactID, CreatedAt and UpdatedAt are always assigned here.
func (w *Writer) AddFact(ctx context.Context, fact *models.Fact) (*models.Fact, error) {
	if strings.TrimSpace(fact.DeviceID) == "" {
		return nil, invalidf("device id is required")
	}
	fact.Content = strings.TrimSpace(fact.Content)
	if fact.Content == "" {
		return nil, invalidf("content is required")
	}
	if !fact.Category.Valid() {
		return nil, invalidf("unknown category %q", fact.Category)
	}

	unlock := w.locks.Lock(fact.DeviceID)
	defer unlock()

	if _, err := w.EnsureDevice(ctx, fact.DeviceID, ""); err != nil {
		return nil, err
	}

	now := w.now()
	fact.FactID = w.newID()
	fact.CreatedAt = now
	fact.UpdatedAt = now
	if err := w.engine.index.Upsert(ctx, fact); err != nil {
		return nil, indexErr("upsert", err)
	}

	w.engine.logger.Info("fact added",
		zap.String("device_id", fact.DeviceID),
		zap.String("fact_id", fact.FactID),
		zap.String("category", string(fact.Category)))
	return fact, nil
}

// ResolveCandidate finds the fact most similar to text across every category.
// A locating-clue fact wins a tie with a fact of another category.
func (w *Writer) ResolveCandidate(ctx context.Context, deviceID, text string) (*Candidate, error) {
	return w.ResolveCandidateIn(ctx, deviceID, text, "")
}

// ResolveCandidateIn is ResolveCandidate limited to one category; an empty
// category searches them all. A best hit at the no-match distance is not a
// candidate: nothing on the device resembles text.
func (w *Writer) ResolveCandidateIn(ctx context.Context, deviceID, text string, category models.Category) (*Candidate, error) {
	if strings.TrimSpace(text) == "" {
		return nil, invalidf("text is required")
	}
	if category != "" && !category.Valid() {
		return nil, invalidf("unknown category %q", category)
	}
	d, err := w.engine.device(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if d.FactCount == 0 {
		return nil, notFoundf("device %q has no facts", deviceID)
	}

	best, err := w.nearest(ctx, deviceID, text, category)
	if err != nil {
		return nil, err
	}
	scope := category
	if category == "" && best != nil {
		clue, err := w.nearest(ctx, deviceID, text, models.CategoryLocatingClue)
		if err != nil {
			return nil, err
		}
		if clue != nil && clue.Distance <= best.Distance {
			best = clue
			scope = models.CategoryLocatingClue
		}
	}
	if best == nil || best.Distance >= w.engine.opts.DefaultDistance {
		return nil, notFoundf("no fact on device %q resembles %q", deviceID, text)
	}

	fact, err := w.getFact(ctx, deviceID, best.FactID)
	if err != nil {
		return nil, err
	}
	return &Candidate{
		DeviceID: deviceID,
		Fact:     *fact,
		Distance: w.engine.floor(best.Distance),
		Scope:    scope,
	}, nil
}

func (w *Writer) nearest(ctx context.Context, deviceID, text string, category models.Category) (*models.Hit, error) {
	hits, err := w.engine.index.Query(ctx, deviceID, text, category, 1)
	if err != nil {
		return nil, indexErr("query "+deviceID, err)
	}
	if len(hits) == 0 {
		return nil, nil
	}
	return &hits[0], nil
}

// ApplyUpdate replaces the content of a fact already resolved to factID. Id,
// category and created_at are kept. A fact that no longer exists yields
// Applied=false and an ErrNotFound error.
func (w *Writer) ApplyUpdate(ctx context.Context, deviceID, factID, newContent string) (WriteOutcome, error) {
	out := WriteOutcome{Op: models.OpUpdate, DeviceID: deviceID, FactID: factID}

	unlock := w.locks.Lock(deviceID)
	defer unlock()

	before, err := w.getFact(ctx, deviceID, factID)
	if err != nil {
		out.Message = outcomeMessage("update", deviceID, err)
		return out, err
	}
	fact, err := w.applyUpdate(ctx, deviceID, factID, newContent)
	if err != nil {
		out.Message = outcomeMessage("update", deviceID, err)
		return out, err
	}

	out.Applied = true
	out.Before = before.Content
	out.After = fact.Content
	out.Message = fmt.Sprintf("updated fact %s on %s: %q -> %q", factID, deviceID, out.Before, out.After)
	w.engine.logger.Info("fact updated by id",
		zap.String("device_id", deviceID),
		zap.String("fact_id", factID))
	return out, nil
}

func (w *Writer) applyUpdate(ctx context.Context, deviceID, factID, newContent string) (*models.Fact, error) {
	newContent = strings.TrimSpace(newContent)
	if newContent == "" {
		return nil, invalidf("new content is required")
	}
	fact, err := w.getFact(ctx, deviceID, factID)
	if err != nil {
		return nil, err
	}

	now := w.now()
	if !now.After(fact.UpdatedAt) {
		now = fact.UpdatedAt.Add(time.Microsecond)
	}
	fact.Content = newContent
	fact.UpdatedAt = now
	if err := w.engine.index.Upsert(ctx, fact); err != nil {
		return nil, indexErr("upsert", err)
	}
	return fact, nil
}

// ApplyDelete removes a fact by id. Deleting it twice reports Applied=false.
func (w *Writer) ApplyDelete(ctx context.Context, deviceID, factID string) (WriteOutcome, error) {
	out := WriteOutcome{Op: models.OpDelete, DeviceID: deviceID, FactID: factID}

	unlock := w.locks.Lock(deviceID)
	defer unlock()

	before, err := w.getFact(ctx, deviceID, factID)
	if err == nil {
		err = w.applyDelete(ctx, deviceID, factID)
	}
	if err != nil {
		out.Message = outcomeMessage("delete", deviceID, err)
		return out, err
	}

	out.Applied = true
	out.Before = before.Content
	out.Message = fmt.Sprintf("deleted fact %s from %s: %q", factID, deviceID, before.Content)
	w.engine.logger.Info("fact deleted by id",
		zap.String("device_id", deviceID),
		zap.String("fact_id", factID))
	return out, nil
}

func (w *Writer) applyDelete(ctx context.Context, deviceID, factID string) error {
	err := w.engine.index.Delete(ctx, deviceID, factID)
	if errors.Is(err, storage.ErrFactNotFound) {
		return notFoundf("fact %q on device %q", factID, deviceID)
	}
	if err != nil {
		return indexErr("delete", err)
	}
	return nil
}

// Update resolves oldContent and replaces it with newContent in one locked step.
// A missing or empty device yields Applied=false and an ErrNotFound error.
func (w *Writer) Update(ctx context.Context, deviceID, oldContent, newContent string) (WriteOutcome, error) {
	return w.UpdateIn(ctx, deviceID, "", oldContent, newContent)
}

// UpdateIn is Update with resolution limited to category when it is set.
func (w *Writer) UpdateIn(ctx context.Context, deviceID string, category models.Category, oldContent, newContent string) (WriteOutcome, error) {
	out := WriteOutcome{Op: models.OpUpdate, DeviceID: deviceID}
	if strings.TrimSpace(newContent) == "" {
		out.Message = "new content is required"
		return out, invalidf("new content is required")
	}

	unlock := w.locks.Lock(deviceID)
	defer unlock()

	c, err := w.ResolveCandidateIn(ctx, deviceID, oldContent, category)
	if err != nil {
		out.Message = outcomeMessage("update", deviceID, err)
		return out, err
	}
	fact, err := w.applyUpdate(ctx, deviceID, c.Fact.FactID, newContent)
	if err != nil {
		out.Message = outcomeMessage("update", deviceID, err)
		return out, err
	}

	out.FactID = fact.FactID
	out.Applied = true
	out.Before = c.Fact.Content
	out.After = fact.Content
	out.Distance = c.Distance
	out.Message = fmt.Sprintf("updated fact %s on %s: %q -> %q", fact.FactID, deviceID, out.Before, out.After)
	w.engine.logger.Info("fact updated",
		zap.String("device_id", deviceID),
		zap.String("fact_id", fact.FactID),
		zap.Float64("resolve_distance", c.Distance))
	return out, nil
}

// Delete resolves content and removes that fact in one locked step.
func (w *Writer) Delete(ctx context.Context, deviceID, content string) (WriteOutcome, error) {
	return w.DeleteIn(ctx, deviceID, "", content)
}

// DeleteIn is Delete with resolution limited to category when it is set.
func (w *Writer) DeleteIn(ctx context.Context, deviceID string, category models.Category, content string) (WriteOutcome, error) {
	out := WriteOutcome{Op: models.OpDelete, DeviceID: deviceID}

	unlock := w.locks.Lock(deviceID)
	defer unlock()

	c, err := w.ResolveCandidateIn(ctx, deviceID, content, category)
	if err != nil {
		out.Message = outcomeMessage("delete", deviceID, err)
		return out, err
	}
	if err := w.applyDelete(ctx, deviceID, c.Fact.FactID); err != nil {
		out.Message = outcomeMessage("delete", deviceID, err)
		return out, err
	}

	out.FactID = c.Fact.FactID
	out.Applied = true
	out.Before = c.Fact.Content
	out.Distance = c.Distance
	out.Message = fmt.Sprintf("deleted fact %s from %s: %q", c.Fact.FactID, deviceID, c.Fact.Content)
	w.engine.logger.Info("fact deleted",
		zap.String("device_id", deviceID),
		zap.String("fact_id", c.Fact.FactID),
		zap.Float64("resolve_distance", c.Distance))
	return out, nil
}

func (w *Writer) getFact(ctx context.Context, deviceID, factID string) (*models.Fact, error) {
	f, err := w.engine.index.GetFact(ctx, deviceID, factID)
	if errors.Is(err, storage.ErrFactNotFound) {
		return nil, notFoundf("fact %q on device %q", factID, deviceID)
	}
	if err != nil {
		return nil, indexErr("get fact", err)
	}
	return f, nil
}

func outcomeMessage(verb, deviceID string, err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return fmt.Sprintf("nothing to %s: device %s has no matching facts", verb, deviceID)
	case errors.Is(err, ErrInvalidInput):
		return err.Error()
	default:
		return fmt.Sprintf("%s failed: %v", verb, err)
	}
}

// keyedMutex hands out one mutex per key and frees it when unused
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock blocks until key is free and returns the matching unlock
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
