// ABOUTME: CLI commands to update and delete facts by approximate text
// ABOUTME: --dry-run shows which fact would change without writing
package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/homefacts/internal/core"
	"github.com/harper/homefacts/internal/models"
)

var (
	dryRun     bool
	writeScope string
)

// NewUpdateCmd creates the update command
func NewUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <device-id> <old-content> <new-content>",
		Short: "Replace the fact closest to old-content",
		Long: `Replace the device fact closest to old-content. The fact keeps its id,
category and creation time. --category limits the search to one category.

Examples:
  homefacts update lamp "on the nightstand" "on the dresser"
  homefacts update lamp nightstand "on the dresser" --dry-run
  homefacts update lamp dims "dims slowly" -c capability`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp(a)

			scope, err := parseScope(writeScope)
			if err != nil {
				return err
			}
			ctx := context.Background()
			if dryRun {
				return printCandidate(ctx, cmd, a.Writer, args[0], args[1], scope)
			}
			out, err := a.Writer.UpdateIn(ctx, args[0], scope, args[1], args[2])
			return printOutcome(cmd, out, err)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only show the fact that would change")
	cmd.Flags().StringVarP(&writeScope, "category", "c", "", "Only consider facts of this category")
	return cmd
}

// NewDeleteCmd creates the delete command
func NewDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <device-id> <content>",
		Short: "Delete the fact closest to content",
		Example: `  homefacts delete lamp "near the bed"
  homefacts delete lamp bed --dry-run`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp(a)

			scope, err := parseScope(writeScope)
			if err != nil {
				return err
			}
			ctx := context.Background()
			if dryRun {
				return printCandidate(ctx, cmd, a.Writer, args[0], args[1], scope)
			}
			out, err := a.Writer.DeleteIn(ctx, args[0], scope, args[1])
			return printOutcome(cmd, out, err)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only show the fact that would be deleted")
	cmd.Flags().StringVarP(&writeScope, "category", "c", "", "Only consider facts of this category")
	return cmd
}

func parseScope(raw string) (models.Category, error) {
	if raw == "" {
		return "", nil
	}
	return models.ParseCategory(raw)
}

func printCandidate(ctx context.Context, cmd *cobra.Command, w *core.Writer, deviceID, text string, scope models.Category) error {
	c, err := w.ResolveCandidateIn(ctx, deviceID, text, scope)
	if err != nil {
		return err
	}
	if wantJSON() {
		return printJSON(cmd.OutOrStdout(), c)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%q resolves to %s [%s]: %s (distance %.4f)\n",
		text, c.Fact.FactID, c.Fact.Category, c.Fact.Content, c.Distance)
	return nil
}

// printOutcome reports the write. Nothing-to-change is printed, not returned as an error.
func printOutcome(cmd *cobra.Command, out core.WriteOutcome, err error) error {
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return err
	}
	if wantJSON() {
		return printJSON(cmd.OutOrStdout(), out)
	}
	if !quiet || !out.Applied {
		fmt.Fprintln(cmd.OutOrStdout(), core.RenderOutcome(out))
	}
	return nil
}
