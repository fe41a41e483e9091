// ABOUTME: ConstraintMatcher gathers top-K locating-clue facts per clue of a group
// ABOUTME: Hits are merged by fact id so each fact appears once with every clue that found it
package core

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/harper/homefacts/internal/models"
	"go.uber.org/zap"
)

// MatchConstraintGroup matches one constraint group against a device.
func (e *Engine) MatchConstraintGroup(ctx context.Context, deviceID string, clues []string) (*models.ConstraintMatch, error) {
	d, err := e.device(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return e.matchGroup(ctx, d, 0, clues)
}

// MatchConstraints matches every group against a device, one result per group in order.
func (e *Engine) MatchConstraints(ctx context.Context, deviceID string, groups [][]string) ([]models.ConstraintMatch, error) {
	if len(groups) == 0 {
		return nil, invalidf("at least one constraint group is required")
	}
	d, err := e.device(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	out := make([]models.ConstraintMatch, 0, len(groups))
	for i, g := range groups {
		m, err := e.matchGroup(ctx, d, i, g)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, nil
}

func (e *Engine) matchGroup(ctx context.Context, d *models.Device, idx int, clues []string) (*models.ConstraintMatch, error) {
	var valid []string
	for _, c := range clues {
		if s := strings.TrimSpace(c); s != "" {
			valid = append(valid, s)
		}
	}

	result := &models.ConstraintMatch{
		Key:              constraintKey(idx, valid),
		Clues:            valid,
		HarmonicDistance: e.opts.DefaultDistance,
	}
	if len(valid) == 0 || d.FactCount == 0 {
		result.Hits = []models.ConstraintHit{{MatchResult: e.noMatch()}}
		return result, nil
	}

	var (
		hits  []models.ConstraintHit
		byID  = map[string]int{}
		bests []float64
	)
	for _, clue := range valid {
		found, err := e.index.Query(ctx, d.DeviceID, clue, models.CategoryLocatingClue, e.opts.ConstraintTopK)
		if err != nil {
			return nil, indexErr("query "+d.DeviceID, err)
		}
		if len(found) == 0 {
			continue
		}
		bests = append(bests, e.floor(found[0].Distance))

		for _, h := range found {
			m := e.toMatch(h)
			if i, seen := byID[m.FactID]; seen {
				if !containsString(hits[i].Clues, clue) {
					hits[i].Clues = append(hits[i].Clues, clue)
				}
				if m.Distance < hits[i].Distance {
					hits[i].Distance = m.Distance
				}
				continue
			}
			byID[m.FactID] = len(hits)
			hits = append(hits, models.ConstraintHit{MatchResult: m, Clues: []string{clue}})
		}
	}

	if len(hits) == 0 {
		result.Hits = []models.ConstraintHit{{MatchResult: e.noMatch()}}
		return result, nil
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	result.Hits = hits
	result.Matched = true
	result.HarmonicDistance = round4(HarmonicMean(bests))

	e.logger.Debug("constraint group matched",
		zap.String("device_id", d.DeviceID),
		zap.String("key", result.Key),
		zap.Int("hits", len(hits)),
		zap.Float64("harmonic_distance", result.HarmonicDistance))
	return result, nil
}

// constraintKey joins the clues with "|", falling back to the group index.
func constraintKey(idx int, clues []string) string {
	if len(clues) == 0 {
		return strconv.Itoa(idx)
	}
	return strings.Join(clues, "|")
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
