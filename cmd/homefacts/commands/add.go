// ABOUTME: CLI command to add a fact to a device
// ABOUTME: Content comes from an argument, a file, or stdin
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/homefacts/internal/models"
)

var (
	addFile     string
	addCategory string
	addName     string
)

// NewAddCmd creates the add command
func NewAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <device-id> [content]",
		Short: "Add a fact to a device",
		Long: `Add a fact to a device, creating the device if needed.

Categories: capability, state, locating-clue, usage-habit, other.

Examples:
  homefacts add lamp "near the bed" --category locating-clue
  homefacts add lamp "dims to 10%" -c capability --name "bedside lamp"
  echo "usually on after sunset" | homefacts add lamp -c usage-habit`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runAdd,
	}

	cmd.Flags().StringVar(&addFile, "file", "", "Read content from file")
	cmd.Flags().StringVarP(&addCategory, "category", "c", string(models.CategoryLocatingClue), "Fact category")
	cmd.Flags().StringVar(&addName, "name", "", "Device name, used when the device is new or unnamed")

	return cmd
}

func runAdd(cmd *cobra.Command, args []string) error {
	category, err := models.ParseCategory(addCategory)
	if err != nil {
		return err
	}
	content, err := readInput(cmd, args[1:], addFile)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx := context.Background()
	if addName != "" {
		if _, err := a.Writer.EnsureDevice(ctx, args[0], addName); err != nil {
			return err
		}
	}
	fact, err := a.Writer.AddFact(ctx, &models.Fact{
		DeviceID: args[0],
		Content:  content,
		Category: category,
		Source:   "cli",
	})
	if err != nil {
		return err
	}

	if wantJSON() {
		return printJSON(cmd.OutOrStdout(), fact)
	}
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Added %s fact %s to %s\n", fact.Category, fact.FactID, fact.DeviceID)
	}
	return nil
}
