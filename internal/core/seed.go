// ABOUTME: Seeds device collections from profiles, one fact per profile entry
// ABOUTME: Re-seeding skips entries whose content and category already exist
package core

import (
	"context"
	"fmt"

	"github.com/harper/homefacts/internal/models"
	"go.uber.org/zap"
)

// SeedSource is recorded on every fact written by Seed
const SeedSource = "seed"

// SeedStats counts what Seed did
type SeedStats struct {
	Devices int `json:"devices"`
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}

// Seed creates each profile's device and writes its entries as facts.
func (w *Writer) Seed(ctx context.Context, profiles []models.DeviceProfile) (SeedStats, error) {
	var stats SeedStats

	for _, p := range profiles {
		if _, err := w.EnsureDevice(ctx, p.DeviceID, p.DeviceName); err != nil {
			return stats, fmt.Errorf("seed %s: %w", p.DeviceID, err)
		}
		stats.Devices++

		existing, err := w.engine.index.Facts(ctx, p.DeviceID, "")
		if err != nil {
			return stats, indexErr("list facts", err)
		}
		have := make(map[models.ProfileEntry]struct{}, len(existing))
		for _, f := range existing {
			have[models.ProfileEntry{Category: f.Category, Content: f.Content}] = struct{}{}
		}

		for _, entry := range p.Entries() {
			if _, dup := have[entry]; dup {
				stats.Skipped++
				continue
			}
			_, err := w.AddFact(ctx, &models.Fact{
				DeviceID: p.DeviceID,
				Content:  entry.Content,
				Category: entry.Category,
				Source:   SeedSource,
			})
			if err != nil {
				return stats, fmt.Errorf("seed %s: %w", p.DeviceID, err)
			}
			have[entry] = struct{}{}
			stats.Added++
		}
	}

	w.engine.logger.Info("seeded devices",
		zap.Int("devices", stats.Devices),
		zap.Int("added", stats.Added),
		zap.Int("skipped", stats.Skipped))
	return stats, nil
}
