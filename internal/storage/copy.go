// ABOUTME: Copies device collections between Index backends
// ABOUTME: Used to push the local SQLite index to Charm and pull it back
package storage

import (
	"context"
	"fmt"
)

// CopyStats reports what Copy wrote
type CopyStats struct {
	Devices int `json:"devices"`
	Facts   int `json:"facts"`
}

// Copy replicates every collection and fact in src into dst. Fact ids and
// timestamps are kept; vectors are recomputed by dst's embedder.
func Copy(ctx context.Context, src, dst Index) (CopyStats, error) {
	var stats CopyStats

	devices, err := src.ListCollections(ctx)
	if err != nil {
		return stats, fmt.Errorf("list source devices: %w", err)
	}
	for _, d := range devices {
		if _, err := dst.GetOrCreateCollection(ctx, d.DeviceID, d.DeviceName); err != nil {
			return stats, fmt.Errorf("create %s: %w", d.DeviceID, err)
		}
		stats.Devices++

		facts, err := src.Facts(ctx, d.DeviceID, "")
		if err != nil {
			return stats, fmt.Errorf("list facts for %s: %w", d.DeviceID, err)
		}
		for i := range facts {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			if err := dst.Upsert(ctx, &facts[i]); err != nil {
				return stats, fmt.Errorf("copy fact %s: %w", facts[i].FactID, err)
			}
			stats.Facts++
		}
	}
	return stats, nil
}
