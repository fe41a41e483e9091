// ABOUTME: ClueScorer finds the single best locating-clue fact for one clue
// ABOUTME: Empty collections and zero hits produce the default no-match result
package core

import (
	"context"
	"strings"

	"github.com/harper/homefacts/internal/models"
	"go.uber.org/zap"
)

// BestMatch returns the locating-clue fact of deviceID closest to clue.
func (e *Engine) BestMatch(ctx context.Context, deviceID, clue string) (models.MatchResult, error) {
	if strings.TrimSpace(clue) == "" {
		return models.MatchResult{}, invalidf("clue is required")
	}
	d, err := e.device(ctx, deviceID)
	if err != nil {
		return models.MatchResult{}, err
	}
	return e.bestMatch(ctx, d, clue)
}

func (e *Engine) bestMatch(ctx context.Context, d *models.Device, clue string) (models.MatchResult, error) {
	if d.FactCount == 0 {
		return e.noMatch(), nil
	}

	hits, err := e.index.Query(ctx, d.DeviceID, clue, models.CategoryLocatingClue, 1)
	if err != nil {
		return models.MatchResult{}, indexErr("query "+d.DeviceID, err)
	}
	if len(hits) == 0 {
		return e.noMatch(), nil
	}

	m := e.toMatch(hits[0])
	e.logger.Debug("best match",
		zap.String("device_id", d.DeviceID),
		zap.String("clue", clue),
		zap.String("fact_id", m.FactID),
		zap.Float64("distance", m.Distance))
	return m, nil
}
