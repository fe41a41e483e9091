// ABOUTME: CLI command to seed devices from a profile file or a previous export
// ABOUTME: Re-running a seed skips facts that already exist
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/homefacts/internal/models"
	"github.com/harper/homefacts/internal/storage"
)

var seedFromExport bool

// NewSeedCmd creates the seed command
func NewSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed <file>",
		Short: "Create devices and facts from a profile file",
		Long: `Seed devices from a YAML file:

  devices:
    - device_id: lamp
      device_name: bedside lamp
      capabilities: [turn on, dims]
      states: [brightness]
      locating_clues: [in the bedroom, near the bed]
      usage_habits: [on in the evening]

With --from-export the file is an export written by 'homefacts export'.`,
		Args: cobra.ExactArgs(1),
		RunE: runSeed,
	}
	cmd.Flags().BoolVar(&seedFromExport, "from-export", false, "Read a homefacts export instead of a profile file")
	return cmd
}

func runSeed(cmd *cobra.Command, args []string) error {
	profiles, err := loadSeedProfiles(args[0], seedFromExport)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	stats, err := a.Writer.Seed(context.Background(), profiles)
	if err != nil {
		return err
	}
	if wantJSON() {
		return printJSON(cmd.OutOrStdout(), stats)
	}
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Seeded %d device(s): %d fact(s) added, %d already present\n",
			stats.Devices, stats.Added, stats.Skipped)
	}
	return nil
}

func loadSeedProfiles(path string, fromExport bool) ([]models.DeviceProfile, error) {
	if !fromExport {
		return models.LoadProfiles(path)
	}
	data, err := storage.ReadExport(path)
	if err != nil {
		return nil, err
	}
	return data.Profiles(), nil
}
