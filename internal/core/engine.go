// ABOUTME: Engine ties the semantic index to the matching and ranking algorithms
// ABOUTME: Holds the tunable constants and the logger passed in by the composition root
package core

import (
	"context"
	"errors"
	"strings"

	"github.com/harper/homefacts/internal/models"
	"github.com/harper/homefacts/internal/storage"
	"go.uber.org/zap"
)

// Defaults for Options
const (
	DefaultEpsilon         = 1e-6
	DefaultNoMatchDistance = 1.0
	DefaultConstraintTopK  = 3
	DefaultRankWorkers     = 4
)

// Options are the engine's policy constants
type Options struct {
	// Epsilon floors every real match distance so 1/d stays finite.
	Epsilon float64
	// DefaultDistance is reported when there is nothing to compare against.
	DefaultDistance float64
	// ConstraintTopK is how many facts each clue of a constraint group may contribute.
	ConstraintTopK int
	// RankWorkers bounds how many devices are scored concurrently.
	RankWorkers int
}

// DefaultOptions returns the standard constants
func DefaultOptions() Options {
	return Options{
		Epsilon:         DefaultEpsilon,
		DefaultDistance: DefaultNoMatchDistance,
		ConstraintTopK:  DefaultConstraintTopK,
		RankWorkers:     DefaultRankWorkers,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Epsilon <= 0 {
		o.Epsilon = d.Epsilon
	}
	if o.DefaultDistance <= 0 {
		o.DefaultDistance = d.DefaultDistance
	}
	if o.ConstraintTopK <= 0 {
		o.ConstraintTopK = d.ConstraintTopK
	}
	if o.RankWorkers <= 0 {
		o.RankWorkers = d.RankWorkers
	}
	return o
}

// Engine answers resolution queries against an Index
type Engine struct {
	index  storage.Index
	opts   Options
	logger *zap.Logger
}

// NewEngine creates an engine. Zero option fields take their defaults; a nil
// logger discards output.
func NewEngine(index storage.Index, opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		index:  index,
		opts:   opts.withDefaults(),
		logger: logger,
	}
}

// Options returns the effective constants
func (e *Engine) Options() Options {
	return e.opts
}

// Index returns the underlying index
func (e *Engine) Index() storage.Index {
	return e.index
}

// Logger returns the engine's logger
func (e *Engine) Logger() *zap.Logger {
	return e.logger
}

func (e *Engine) noMatch() models.MatchResult {
	return models.MatchResult{Metadata: map[string]string{}, Distance: e.opts.DefaultDistance}
}

func (e *Engine) floor(d float64) float64 {
	if d < e.opts.Epsilon {
		return e.opts.Epsilon
	}
	return d
}

func (e *Engine) toMatch(h models.Hit) models.MatchResult {
	return models.MatchResult{
		FactID:   h.FactID,
		Content:  h.Content,
		Metadata: h.Metadata,
		Distance: e.floor(h.Distance),
	}
}

// device loads a collection, mapping a missing one to ErrNotFound
func (e *Engine) device(ctx context.Context, deviceID string) (*models.Device, error) {
	if strings.TrimSpace(deviceID) == "" {
		return nil, invalidf("device id is required")
	}
	d, err := e.index.GetCollection(ctx, deviceID)
	if errors.Is(err, storage.ErrCollectionNotFound) {
		return nil, notFoundf("device %q", deviceID)
	}
	if err != nil {
		return nil, indexErr("get collection", err)
	}
	return d, nil
}

// ListDevices returns every device collection in creation order
func (e *Engine) ListDevices(ctx context.Context) ([]models.Device, error) {
	devices, err := e.index.ListCollections(ctx)
	if err != nil {
		return nil, indexErr("list collections", err)
	}
	return devices, nil
}

// DeviceFacts lists a device's facts in insertion order. An empty category means all.
func (e *Engine) DeviceFacts(ctx context.Context, deviceID string, category models.Category) ([]models.Fact, error) {
	if category != "" && !category.Valid() {
		return nil, invalidf("unknown category %q", category)
	}
	if _, err := e.device(ctx, deviceID); err != nil {
		return nil, err
	}
	facts, err := e.index.Facts(ctx, deviceID, category)
	if err != nil {
		return nil, indexErr("list facts", err)
	}
	return facts, nil
}
