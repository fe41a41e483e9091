// ABOUTME: CLI command to rank devices against clues
// ABOUTME: Prints each device's score and its best fact per clue
package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/homefacts/internal/core"
)

var rankTopK int

// NewRankCmd creates the rank command
func NewRankCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rank <clue>...",
		Short: "Rank devices by how well they match the clues",
		Long: `Rank every device against a list of clues.

Each clue is matched against the device's locating-clue facts; the
per-clue distances are combined by harmonic mean, so one strong match
outweighs several weak ones. Lower scores rank first.

Examples:
  homefacts rank bedroom "near bed"
  homefacts rank kitchen --top-k 1 --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: runRank,
	}

	cmd.Flags().IntVarP(&rankTopK, "top-k", "k", -1, "Devices to return (default HOMEFACTS_RANK_TOP_K)")

	return cmd
}

func runRank(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	topK := rankTopK
	if topK < 0 {
		topK = a.Config.RankTopK
	}

	rankings, err := a.Engine.RankDevices(context.Background(), args, topK)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch outputFormat {
	case "json":
		return printJSON(out, rankings)
	case "table":
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "RANK\tDEVICE\tNAME\tSCORE\tFACTS\n")
		fmt.Fprintf(w, "----\t------\t----\t-----\t-----\n")
		for i, r := range rankings {
			fmt.Fprintf(w, "%d\t%s\t%s\t%.4f\t%d\n", i+1, r.DeviceID, truncate(r.DeviceName, 30), r.Score, r.FactCount)
		}
		return w.Flush()
	default:
		fmt.Fprintln(out, core.RenderRanking(rankings))
		return nil
	}
}
