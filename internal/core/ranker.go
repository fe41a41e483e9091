// ABOUTME: DeviceRanker scores every device against a flat clue list
// ABOUTME: Per-clue best distances are combined by harmonic mean; lower scores rank first
package core

import (
	"context"
	"sort"
	"strings"

	"github.com/harper/homefacts/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RankDevices returns up to topK devices ordered by aggregate score ascending.
// Devices with equal scores keep their collection creation order.
func (e *Engine) RankDevices(ctx context.Context, clues []string, topK int) ([]models.DeviceRanking, error) {
	if len(clues) == 0 {
		return nil, invalidf("at least one clue is required")
	}
	for i, c := range clues {
		if strings.TrimSpace(c) == "" {
			return nil, invalidf("clue %d is blank", i)
		}
	}
	if topK < 0 {
		return nil, invalidf("top_k must be >= 0, got %d", topK)
	}
	if topK == 0 {
		return []models.DeviceRanking{}, nil
	}

	devices, err := e.index.ListCollections(ctx)
	if err != nil {
		return nil, indexErr("list collections", err)
	}
	if len(devices) == 0 {
		return []models.DeviceRanking{}, nil
	}

	rankings := make([]models.DeviceRanking, len(devices))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.RankWorkers)
	for i := range devices {
		g.Go(func() error {
			r, err := e.scoreDevice(gctx, &devices[i], clues)
			if err != nil {
				return err
			}
			rankings[i] = *r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(rankings, func(i, j int) bool { return rankings[i].Score < rankings[j].Score })
	if len(rankings) > topK {
		rankings = rankings[:topK]
	}

	e.logger.Debug("ranked devices",
		zap.Strings("clues", clues),
		zap.Int("devices", len(devices)),
		zap.Int("returned", len(rankings)))
	return rankings, nil
}

func (e *Engine) scoreDevice(ctx context.Context, d *models.Device, clues []string) (*models.DeviceRanking, error) {
	r := &models.DeviceRanking{
		DeviceID:   d.DeviceID,
		DeviceName: d.DeviceName,
		FactCount:  d.FactCount,
		Clues:      make([]models.ClueScore, 0, len(clues)),
	}
	for _, clue := range clues {
		m, err := e.bestMatch(ctx, d, clue)
		if err != nil {
			return nil, err
		}
		r.Clues = append(r.Clues, models.ClueScore{Clue: clue, Distance: m.Distance, BestFact: m})
	}
	r.Score = HarmonicMean(r.Distances())
	return r, nil
}
