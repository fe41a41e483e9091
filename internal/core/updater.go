// ABOUTME: MemoryUpdater turns a dialogue into fact operations and applies them
// ABOUTME: Ops without a device id are routed to the best-ranked device for their clues
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/harper/homefacts/internal/models"
	"go.uber.org/zap"
)

// OpExtractor proposes fact operations for a dialogue. llm.OpenAIClient implements it.
type OpExtractor interface {
	ExtractFactOps(ctx context.Context, dialogue string) ([]models.FactOp, error)
}

// OpResult reports one applied (or rejected) operation
type OpResult struct {
	Op      models.FactOp `json:"op"`
	Outcome WriteOutcome  `json:"outcome"`
	Error   string        `json:"error,omitempty"`
}

// UpdateReport is the result of one Apply call
type UpdateReport struct {
	Results []OpResult `json:"results"`
	Applied int        `json:"applied"`
	Failed  int        `json:"failed"`
}

// MemoryUpdater keeps device facts current from conversations
type MemoryUpdater struct {
	extractor OpExtractor
	engine    *Engine
	writer    *Writer
}

// NewMemoryUpdater creates a MemoryUpdater
func NewMemoryUpdater(extractor OpExtractor, engine *Engine, writer *Writer) *MemoryUpdater {
	return &MemoryUpdater{extractor: extractor, engine: engine, writer: writer}
}

// Apply extracts ops from dialogue and applies them in order.
func (u *MemoryUpdater) Apply(ctx context.Context, dialogue string) (*UpdateReport, error) {
	if u.extractor == nil {
		return nil, fmt.Errorf("no extractor configured")
	}
	ops, err := u.extractor.ExtractFactOps(ctx, dialogue)
	if err != nil {
		return nil, fmt.Errorf("failed to extract fact ops: %w", err)
	}
	return u.ApplyOps(ctx, ops), nil
}

// ApplyOps applies each op independently. A bad op is reported and the rest still run.
func (u *MemoryUpdater) ApplyOps(ctx context.Context, ops []models.FactOp) *UpdateReport {
	report := &UpdateReport{Results: make([]OpResult, 0, len(ops))}
	for _, op := range ops {
		res := u.applyOne(ctx, op)
		if res.Outcome.Applied {
			report.Applied++
		} else {
			report.Failed++
		}
		report.Results = append(report.Results, res)
	}

	u.engine.logger.Info("memory update applied",
		zap.Int("ops", len(ops)),
		zap.Int("applied", report.Applied),
		zap.Int("failed", report.Failed))
	return report
}

func (u *MemoryUpdater) applyOne(ctx context.Context, op models.FactOp) OpResult {
	res := OpResult{Op: op, Outcome: WriteOutcome{Op: op.Op, DeviceID: op.DeviceID}}
	fail := func(err error) OpResult {
		res.Error = err.Error()
		if res.Outcome.Message == "" {
			res.Outcome.Message = err.Error()
		}
		return res
	}

	if err := op.Validate(); err != nil {
		return fail(fmt.Errorf("%w: %v", ErrInvalidInput, err))
	}

	deviceID := op.DeviceID
	if deviceID == "" {
		id, err := u.resolveDevice(ctx, op.Clues)
		if err != nil {
			return fail(err)
		}
		deviceID = id
		res.Op.DeviceID = id
		res.Outcome.DeviceID = id
	}

	switch op.Op {
	case models.OpAdd:
		category, _ := models.ParseCategory(op.Category)
		fact, err := u.writer.Add(ctx, deviceID, op.Content, category)
		if err != nil {
			return fail(err)
		}
		res.Outcome = WriteOutcome{
			Op: models.OpAdd, DeviceID: deviceID, FactID: fact.FactID, Applied: true,
			After: fact.Content, Message: fmt.Sprintf("added fact %s to %s", fact.FactID, deviceID),
		}
	case models.OpUpdate:
		out, err := u.writer.UpdateIn(ctx, deviceID, opCategory(op), op.OldContent, op.Content)
		res.Outcome = out
		if err != nil {
			return fail(err)
		}
	case models.OpDelete:
		out, err := u.writer.DeleteIn(ctx, deviceID, opCategory(op), op.Target())
		res.Outcome = out
		if err != nil {
			return fail(err)
		}
	}
	return res
}

// opCategory is the op's category, or empty to let resolution search every category.
// Validate has already rejected unknown names.
func opCategory(op models.FactOp) models.Category {
	if op.Category == "" {
		return ""
	}
	c, _ := models.ParseCategory(op.Category)
	return c
}

// resolveDevice picks the top-ranked device for clues
func (u *MemoryUpdater) resolveDevice(ctx context.Context, clues []string) (string, error) {
	var cleaned []string
	for _, c := range clues {
		if s := strings.TrimSpace(c); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	ranked, err := u.engine.RankDevices(ctx, cleaned, 1)
	if err != nil {
		return "", err
	}
	if len(ranked) == 0 {
		return "", notFoundf("no device matches clues %v", cleaned)
	}
	best := ranked[0]
	// a device that matched nothing scores exactly the default distance
	if best.Score >= u.engine.opts.DefaultDistance {
		return "", notFoundf("no device matches clues %v", cleaned)
	}
	return best.DeviceID, nil
}

// IsNotFound reports whether err is a not-found outcome rather than a failure
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
